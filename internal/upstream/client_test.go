package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitOrder(t *testing.T) {
	var received OrderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders/", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(OrderResponse{OrderID: 41, TotalPrice: 1234.5})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	resp, err := client.SubmitOrder(context.Background(), OrderRequest{
		UserID:       3,
		CustomerName: "JUAN DELA CRUZ",
		ORNumber:     "OR-0051",
		StudentID:    "2021-00123",
		Course:       "BSIT",
		Items:        []OrderItem{{ItemID: 7, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, 41, resp.OrderID)
	assert.InDelta(t, 1234.5, resp.TotalPrice, 1e-9)
	assert.Equal(t, "JUAN DELA CRUZ", received.CustomerName)
	assert.Equal(t, "OR-0051", received.ORNumber)
	assert.Len(t, received.Items, 1)
}

func TestSubmitOrderBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "insufficient stock for item 7"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.SubmitOrder(context.Background(), OrderRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient stock")
	assert.Contains(t, err.Error(), "400")
}

func TestItemsCategoryFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/items/", r.URL.Path)
		require.Equal(t, "school supplies", r.URL.Query().Get("category"))

		json.NewEncoder(w).Encode([]Item{
			{ItemID: 1, Name: "Intermediate Pad", Unit: "pc", Category: "school supplies", Price: 35, StockQuantity: 120, ReorderLevel: 20},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	items, err := client.Items(context.Background(), "school supplies")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Intermediate Pad", items[0].Name)
	assert.Equal(t, 120, items[0].StockQuantity)
}

func TestItemsContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Items(ctx, "")
	require.Error(t, err)
}
