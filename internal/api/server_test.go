package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itrackpos/pos-engine/internal/printer"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	manager, err := printer.NewManager(filepath.Join(t.TempDir(), "devices.json"), time.Second)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	queue := printer.NewPrintQueue(manager)
	t.Cleanup(queue.Stop)

	return NewServer(manager, queue)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestScanParseEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/scan/parse", map[string]string{
		"raw": "JUAN DELA CRUZ\t2021-00123\tBSIT",
	})
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Name   string `json:"name"`
		Course string `json:"course"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Name != "JUAN DELA CRUZ" || resp.Course != "BSIT" {
		t.Errorf("parsed = %+v", resp)
	}
}

func TestScanParseRequiresRaw(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/scan/parse", map[string]string{})
	if w.Code != 400 {
		t.Errorf("status = %d", w.Code)
	}
}

func TestPrintUnknownTemplate(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/print", map[string]any{
		"device_id": "dev-1",
		"template":  "invoice",
		"payload":   map[string]any{"customer_name": "X"},
	})
	if w.Code != 400 {
		t.Errorf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "template") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestPrintEnqueuesJob(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/print", map[string]any{
		"device_id": "ghost-printer",
		"template":  "book",
		"payload": map[string]any{
			"customer_name": "JUAN DELA CRUZ",
			"items":         []map[string]any{{"name": "Notebook", "qty": 2, "price": 45.0}},
			"total":         90.0,
		},
	})
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("no job_id in response")
	}

	// A second print while the slot is held is bounced with 409.
	w2 := doJSON(t, s, http.MethodPost, "/print", map[string]any{
		"device_id": "ghost-printer",
		"payload":   map[string]any{"customer_name": "Y"},
	})
	if w2.Code != 409 {
		t.Errorf("second print status = %d: %s", w2.Code, w2.Body.String())
	}

	jw := doJSON(t, s, http.MethodGet, "/job/"+resp.JobID, nil)
	if jw.Code != 200 {
		t.Errorf("job lookup status = %d", jw.Code)
	}
}

func TestJobNotFound(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/job/nope", nil)
	if w.Code != 404 {
		t.Errorf("status = %d", w.Code)
	}
}

func TestConnectUnknownDevice(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/connect", map[string]string{"device_id": "nope"})
	if w.Code != 404 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "message") {
		t.Errorf("no operator message in %s", w.Body.String())
	}
}

func TestWebSocketDisconnectStopsPumps(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	baseline := runtime.NumGoroutine()

	for i := 0; i < 5; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}

		// Round-trip a key event so both pumps are demonstrably live.
		err = conn.WriteJSON(WSMessage{
			Event: EventKeyEvent,
			Data:  map[string]any{"key": "char", "char": "A", "ts_ms": float64(1000 + i)},
		})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		var reply WSMessage
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		conn.Close()
	}

	// Both pumps of every client must wind down once the peer is gone.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+2 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Errorf("goroutines = %d, baseline %d: websocket pumps leaked", runtime.NumGoroutine(), baseline)
}

func TestNetworkDeviceLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/device/network", map[string]any{
		"host": "10.0.0.9",
		"port": 9100,
	})
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	nw := doJSON(t, s, http.MethodPost, "/device/"+resp.DeviceID+"/name", map[string]string{"name": "Cashier 2"})
	if nw.Code != 200 {
		t.Errorf("rename status = %d", nw.Code)
	}

	dw := doJSON(t, s, http.MethodGet, "/devices", nil)
	if !strings.Contains(dw.Body.String(), "Cashier 2") {
		t.Errorf("devices listing missing rename: %s", dw.Body.String())
	}
}
