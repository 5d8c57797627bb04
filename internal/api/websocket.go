package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/itrackpos/pos-engine/internal/printer"
	"github.com/itrackpos/pos-engine/internal/scan"
)

// WebSocket message types
const (
	EventKeyEvent       = "key_event"
	EventPrint          = "print"
	EventScanComplete   = "scan_complete"
	EventJobDone        = "job_done"
	EventPrinterAdded   = "printer_added"
	EventPrinterRemoved = "printer_removed"
	EventResponse       = "response"
	EventError          = "error"
)

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// keyEventPayload is one keystroke as reported by the browser.
type keyEventPayload struct {
	Key           string `json:"key"`  // "char", "enter", "tab", "escape", "other"
	Char          string `json:"char"` // valid when key == "char"
	TimestampMS   int64  `json:"ts_ms"`
	Alt           bool   `json:"alt"`
	Ctrl          bool   `json:"ctrl"`
	Meta          bool   `json:"meta"`
	EditableFocus bool   `json:"editable_focus"`
}

// WSClient is one connected WebSocket client. Each client gets its own
// scan classifier so two cashier stations never share a buffer.
type WSClient struct {
	conn       *websocket.Conn
	send       chan WSMessage
	server     *Server
	classifier *scan.Classifier
	mu         sync.Mutex
}

// handleWebSocket upgrades the connection and starts the pumps.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		fmt.Printf("WebSocket upgrade failed: %v\n", err)
		return
	}

	client := &WSClient{
		conn:       conn,
		send:       make(chan WSMessage, 256),
		server:     s,
		classifier: scan.NewClassifier(),
	}

	fmt.Println("📡 WebSocket client connected")

	go client.readPump()
	go client.writePump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.mu.Lock()
		err := c.conn.WriteJSON(msg)
		c.mu.Unlock()

		if err != nil {
			fmt.Printf("WebSocket write error: %v\n", err)
			return
		}
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventKeyEvent:
		c.handleKeyEvent(msg.Data)
	case EventPrint:
		c.handlePrintEvent(msg.Data)
	default:
		c.sendError(fmt.Sprintf("unknown event: %s", msg.Event))
	}
}

// handleKeyEvent feeds one keystroke into this client's classifier and
// reports the verdict. Completed scans additionally push a
// scan_complete event with the parsed fields.
func (c *WSClient) handleKeyEvent(data map[string]any) {
	ev, err := decodeKeyEvent(data)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	action := c.classifier.Feed(ev)

	switch action.Kind {
	case scan.ActionCompleted:
		c.send <- WSMessage{
			Event: EventScanComplete,
			Data: map[string]any{
				"raw":    action.Raw,
				"name":   action.Scan.Name,
				"course": action.Scan.Course,
			},
		}
	default:
		c.sendResponse(map[string]any{
			"action":   actionName(action.Kind),
			"buffered": c.classifier.Buffer(),
		})
	}
}

func decodeKeyEvent(data map[string]any) (scan.KeyEvent, error) {
	var p keyEventPayload
	if v, ok := data["key"].(string); ok {
		p.Key = v
	}
	if v, ok := data["char"].(string); ok {
		p.Char = v
	}
	if v, ok := data["ts_ms"].(float64); ok {
		p.TimestampMS = int64(v)
	}
	p.Alt, _ = data["alt"].(bool)
	p.Ctrl, _ = data["ctrl"].(bool)
	p.Meta, _ = data["meta"].(bool)
	p.EditableFocus, _ = data["editable_focus"].(bool)

	ev := scan.KeyEvent{
		When:          time.UnixMilli(p.TimestampMS),
		Alt:           p.Alt,
		Ctrl:          p.Ctrl,
		Meta:          p.Meta,
		EditableFocus: p.EditableFocus,
	}

	switch p.Key {
	case "char":
		runes := []rune(p.Char)
		if len(runes) != 1 {
			return ev, fmt.Errorf("char key event needs exactly one character, got %q", p.Char)
		}
		ev.Key = scan.KeyRune
		ev.Rune = runes[0]
	case "enter":
		ev.Key = scan.KeyEnter
	case "tab":
		ev.Key = scan.KeyTab
	case "escape":
		ev.Key = scan.KeyEscape
	case "other":
		ev.Key = scan.KeyOther
	default:
		return ev, fmt.Errorf("unknown key kind %q", p.Key)
	}

	return ev, nil
}

func actionName(kind scan.ActionKind) string {
	switch kind {
	case scan.ActionPassThrough:
		return "pass_through"
	case scan.ActionBuffered:
		return "buffered"
	case scan.ActionCleared:
		return "cleared"
	case scan.ActionCompleted:
		return "completed"
	default:
		return "ignored"
	}
}

// handlePrintEvent mirrors POST /print over the socket.
func (c *WSClient) handlePrintEvent(data map[string]any) {
	var req printRequest
	if v, ok := data["device_id"].(string); ok {
		req.DeviceID = v
	}
	if v, ok := data["template"].(string); ok {
		req.Template = v
	}
	if v, ok := data["qr"].(string); ok {
		req.QR = v
	}
	if v, ok := data["payload"]; ok {
		raw, err := json.Marshal(v)
		if err != nil {
			c.sendError(fmt.Sprintf("invalid payload: %v", err))
			return
		}
		req.Payload = raw
	}

	if req.DeviceID == "" {
		c.sendError("device_id is required")
		return
	}
	if len(req.Payload) == 0 {
		c.sendError("payload is required")
		return
	}

	encoded, err := encodeRequest(&req)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	jobID, err := c.server.queue.Enqueue(req.DeviceID, encoded)
	if err != nil {
		c.sendError(printer.UserMessage(err))
		return
	}

	c.sendResponse(map[string]any{
		"success": true,
		"job_id":  jobID,
	})
}

func (c *WSClient) sendResponse(data map[string]any) {
	c.send <- WSMessage{
		Event: EventResponse,
		Data:  data,
	}
}

func (c *WSClient) sendError(message string) {
	c.send <- WSMessage{
		Event: EventError,
		Data: map[string]any{
			"error": message,
		},
	}
}

// Client tracking for broadcasts
var (
	clients   = make(map[*WSClient]bool)
	clientsMu sync.RWMutex
)

func addClient(client *WSClient) {
	clientsMu.Lock()
	clients[client] = true
	clientsMu.Unlock()
}

func removeClient(client *WSClient) {
	clientsMu.Lock()
	delete(clients, client)
	clientsMu.Unlock()
}

func (c *WSClient) readPump() {
	defer func() {
		// Deregister first: broadcast holds the clients lock while
		// sending, so after removeClient returns nothing else can
		// write to c.send and closing it is safe. The close releases
		// writePump from its range loop.
		removeClient(c)
		close(c.send)
		c.conn.Close()
		fmt.Println("📡 WebSocket client disconnected")
	}()

	addClient(c)

	for {
		var msg WSMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("WebSocket error: %v\n", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func broadcast(message WSMessage) {
	clientsMu.RLock()
	defer clientsMu.RUnlock()

	for client := range clients {
		select {
		case client.send <- message:
		default:
			// Client send buffer full, skip
		}
	}
}

// broadcastJobDone pushes a settled job to every connected client.
func (s *Server) broadcastJobDone(job *printer.PrintJob) {
	data := map[string]any{
		"id":        job.ID,
		"device_id": job.PrinterID,
		"status":    job.Status,
	}
	if job.Error != nil {
		data["error"] = job.Error.Error()
		data["message"] = printer.UserMessage(job.Error)
	}

	broadcast(WSMessage{Event: EventJobDone, Data: data})
}

// BroadcastPrinterAdded notifies all clients of a new device.
func (s *Server) BroadcastPrinterAdded(p *printer.Printer) {
	broadcast(WSMessage{
		Event: EventPrinterAdded,
		Data: map[string]any{
			"id":          p.ID,
			"type":        p.Type,
			"description": p.Description,
			"name":        p.Name,
		},
	})

	fmt.Printf("📡 Broadcast: Printer added - %s\n", p.Description)
}

// BroadcastPrinterRemoved notifies all clients of a lost device.
func (s *Server) BroadcastPrinterRemoved(printerID string) {
	broadcast(WSMessage{
		Event: EventPrinterRemoved,
		Data: map[string]any{
			"id": printerID,
		},
	})

	fmt.Printf("📡 Broadcast: Printer removed - %s\n", printerID)
}
