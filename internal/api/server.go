// Package api exposes the engine over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/itrackpos/pos-engine/internal/printer"
	"github.com/itrackpos/pos-engine/internal/receipt"
	"github.com/itrackpos/pos-engine/internal/scan"
	"github.com/itrackpos/pos-engine/pkg/payload"
)

// Server is the API server.
type Server struct {
	router   *gin.Engine
	manager  *printer.Manager
	queue    *printer.PrintQueue
	upgrader websocket.Upgrader
}

// NewServer creates a new API server around the device manager and the
// print queue.
func NewServer(manager *printer.Manager, queue *printer.PrintQueue) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.Use(corsMiddleware())

	server := &Server{
		router:  router,
		manager: manager,
		queue:   queue,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
	}

	server.setupRoutes()

	// Completed jobs are pushed to every connected client.
	queue.OnJobDone(server.broadcastJobDone)

	return server
}

func (s *Server) setupRoutes() {
	// HTTP API
	s.router.GET("/devices", s.handleGetDevices)
	s.router.POST("/device/:id/name", s.handleSetDeviceName)
	s.router.POST("/device/network", s.handleAddNetworkDevice)
	s.router.POST("/connect", s.handleConnect)
	s.router.POST("/disconnect", s.handleDisconnect)
	s.router.POST("/print", s.handlePrint)
	s.router.GET("/jobs", s.handleGetJobs)
	s.router.GET("/job/:id", s.handleGetJob)
	s.router.POST("/scan/parse", s.handleScanParse)

	// WebSocket
	s.router.GET("/ws", s.handleWebSocket)

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// handleGetDevices returns all detected printers.
func (s *Server) handleGetDevices(c *gin.Context) {
	devices := s.manager.GetAllPrinters()

	c.JSON(200, gin.H{
		"devices": devices,
	})
}

// handleSetDeviceName sets a custom name for a device.
func (s *Server) handleSetDeviceName(c *gin.Context) {
	deviceID := c.Param("id")

	var req struct {
		Name string `json:"name" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "name is required"})
		return
	}

	if !s.manager.SetPrinterName(deviceID, req.Name) {
		c.JSON(404, gin.H{"error": "device not found"})
		return
	}

	c.JSON(200, gin.H{"success": true})
}

// handleAddNetworkDevice manually registers a network printer.
func (s *Server) handleAddNetworkDevice(c *gin.Context) {
	var req struct {
		Host        string `json:"host" binding:"required"`
		Port        int    `json:"port"`
		Description string `json:"description"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "host is required"})
		return
	}

	deviceID := s.manager.AddNetworkPrinter(req.Host, req.Port, req.Description)

	c.JSON(200, gin.H{
		"success":   true,
		"device_id": deviceID,
		"device":    s.manager.GetPrinter(deviceID),
	})
}

// handleConnect opens a session to a device, replacing any previous
// session.
func (s *Server) handleConnect(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "device_id is required"})
		return
	}

	session, err := s.manager.Connect(c.Request.Context(), req.DeviceID)
	if err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{
			"error":   err.Error(),
			"message": printer.UserMessage(err),
		})
		return
	}

	c.JSON(200, gin.H{
		"success":   true,
		"interface": session.InterfaceNumber,
		"endpoint":  session.EndpointNumber,
	})
}

// handleDisconnect closes the active session.
func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.manager.Disconnect(); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

// printRequest is shared between the HTTP and WebSocket print paths.
type printRequest struct {
	DeviceID string          `json:"device_id" binding:"required"`
	Template string          `json:"template"`
	QR       string          `json:"qr"`
	Payload  json.RawMessage `json:"payload" binding:"required"`
}

// encodeRequest turns a print request into cut-terminated printer
// bytes, or a human-readable error.
func encodeRequest(req *printRequest) ([]byte, error) {
	tpl := receipt.Template(req.Template)
	if req.Template == "" {
		tpl = receipt.TemplateGarment
	}
	if !tpl.Valid() {
		return nil, fmt.Errorf("unknown template %q", req.Template)
	}

	p, err := payload.Parse(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	return receipt.Encode(p, tpl, req.QR)
}

// handlePrint encodes a receipt payload and enqueues it.
func (s *Server) handlePrint(c *gin.Context) {
	var req printRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	data, err := encodeRequest(&req)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	jobID, err := s.queue.Enqueue(req.DeviceID, data)
	if err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{
			"error":   err.Error(),
			"message": printer.UserMessage(err),
		})
		return
	}

	c.JSON(200, gin.H{
		"success": true,
		"job_id":  jobID,
	})
}

// handleGetJobs returns all print jobs.
func (s *Server) handleGetJobs(c *gin.Context) {
	jobs := s.queue.GetAllJobs()

	jobsData := make([]gin.H, len(jobs))
	for i, job := range jobs {
		jobsData[i] = jobJSON(job)
	}

	c.JSON(200, gin.H{"jobs": jobsData})
}

// handleGetJob returns a specific print job.
func (s *Server) handleGetJob(c *gin.Context) {
	job := s.queue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(404, gin.H{"error": "job not found"})
		return
	}

	c.JSON(200, jobJSON(job))
}

// handleScanParse splits a raw scan payload into structured fields.
func (s *Server) handleScanParse(c *gin.Context) {
	var req struct {
		Raw string `json:"raw" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "raw is required"})
		return
	}

	parsed := scan.Parse(req.Raw)

	c.JSON(200, gin.H{
		"name":   parsed.Name,
		"course": parsed.Course,
	})
}

func jobJSON(job *printer.PrintJob) gin.H {
	data := gin.H{
		"id":         job.ID,
		"device_id":  job.PrinterID,
		"status":     job.Status,
		"created_at": job.CreatedAt,
	}
	if !job.CompletedAt.IsZero() {
		data["completed_at"] = job.CompletedAt
	}
	if job.Error != nil {
		data["error"] = job.Error.Error()
		data["message"] = printer.UserMessage(job.Error)
	}
	return data
}

// sessionErrorStatus maps session errors onto HTTP statuses.
func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, printer.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, printer.ErrNoDeviceSelected):
		return http.StatusNotFound
	case errors.Is(err, printer.ErrNotConnected),
		errors.Is(err, printer.ErrNoBulkOutEndpoint),
		errors.Is(err, printer.ErrUnsupportedTransport):
		return http.StatusUnprocessableEntity
	case errors.Is(err, printer.ErrTransferTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Run starts the API server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
