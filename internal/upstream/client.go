// Package upstream talks to the inventory backend that owns the item
// catalog and records submitted orders.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 15 * time.Second

// Item is one catalog entry as the backend reports it.
type Item struct {
	ItemID        int     `json:"item_id"`
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
	ReorderLevel  int     `json:"reorder_level"`
}

// OrderItem is one line of an order submission.
type OrderItem struct {
	ItemID   int `json:"item_id"`
	Quantity int `json:"quantity"`
}

// OrderRequest is the order-submission body.
type OrderRequest struct {
	UserID       int         `json:"user_id"`
	CustomerName string      `json:"customer_name"`
	ORNumber     string      `json:"OR_number"`
	StudentID    string      `json:"student_id,omitempty"`
	Course       string      `json:"course,omitempty"`
	Items        []OrderItem `json:"items"`
}

// OrderResponse is what the backend returns for a recorded order.
type OrderResponse struct {
	OrderID    int     `json:"order_id"`
	TotalPrice float64 `json:"total_price"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Client is an HTTP client for the inventory backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL. A zero timeout
// falls back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SubmitOrder records an order and returns its ID and computed total.
func (c *Client) SubmitOrder(ctx context.Context, order OrderRequest) (*OrderResponse, error) {
	requestBody, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	endpoint := c.baseURL + "/orders/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call backend at %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, backendError(resp.StatusCode, responseBody)
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(responseBody, &orderResp); err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	return &orderResp, nil
}

// Items fetches the catalog, optionally filtered by category.
func (c *Client) Items(ctx context.Context, category string) ([]Item, error) {
	endpoint := c.baseURL + "/items/"
	if category != "" {
		endpoint += "?category=" + url.QueryEscape(category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call backend at %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, backendError(resp.StatusCode, responseBody)
	}

	var items []Item
	if err := json.Unmarshal(responseBody, &items); err != nil {
		return nil, fmt.Errorf("failed to parse items response: %w", err)
	}

	return items, nil
}

func backendError(status int, body []byte) error {
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Detail != "" {
			return fmt.Errorf("backend error (%d): %s", status, errResp.Detail)
		}
		if errResp.Error != "" {
			return fmt.Errorf("backend error (%d): %s", status, errResp.Error)
		}
	}
	return fmt.Errorf("backend returned status %d: %s", status, string(body))
}
