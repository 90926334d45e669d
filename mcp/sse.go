package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/foomo/linkgraph-mcp/notion"
	"github.com/foomo/linkgraph-mcp/service"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// SSEEvent represents an SSE event structure
type SSEEvent struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func newEvent(name string, data interface{}) SSEEvent {
	return SSEEvent{
		ID:        name + "_" + uuid.NewString(),
		Event:     name,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID       string
	Writer   http.ResponseWriter
	Flusher  http.Flusher
	Done     chan struct{}
	LastSeen time.Time

	mu sync.Mutex
}

// MCPSSEServer wraps the MCP server with SSE capabilities
type MCPSSEServer struct {
	logger       *zap.Logger
	mcpServer    *server.MCPServer
	service      service.Service
	creds        notion.Credentials
	config       *SSEServerConfig
	clients      map[string]*SSEClient
	clientsMutex sync.RWMutex
	broadcast    chan SSEEvent
	closed       bool
}

// SSEServerConfig holds configuration for the SSE server
type SSEServerConfig struct {
	KeepaliveInterval time.Duration
	BufferSize        int
	ClientTimeout     time.Duration
}

// DefaultSSEServerConfig returns the default configuration for SSE server
func DefaultSSEServerConfig() *SSEServerConfig {
	return &SSEServerConfig{
		KeepaliveInterval: 30 * time.Second,
		BufferSize:        100,
		ClientTimeout:     60 * time.Second,
	}
}

// NewMCPSSEServer creates a new MCP SSE server
func NewMCPSSEServer(logger *zap.Logger, mcpServer *server.MCPServer, serviceInstance service.Service, creds notion.Credentials, config *SSEServerConfig) *MCPSSEServer {
	if config == nil {
		config = DefaultSSEServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = DefaultSSEServerConfig().KeepaliveInterval
	}

	sseServer := &MCPSSEServer{
		logger:    logger,
		mcpServer: mcpServer,
		service:   serviceInstance,
		creds:     creds,
		config:    config,
		clients:   make(map[string]*SSEClient),
		broadcast: make(chan SSEEvent, config.BufferSize),
	}

	go sseServer.broadcastLoop()

	return sseServer
}

// Close stops the broadcast loop and disconnects all clients.
func (s *MCPSSEServer) Close() {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.broadcast)
	for id, client := range s.clients {
		close(client.Done)
		delete(s.clients, id)
	}
}

// broadcastLoop handles broadcasting events to all connected clients
func (s *MCPSSEServer) broadcastLoop() {
	for event := range s.broadcast {
		var failed []string
		s.clientsMutex.RLock()
		for clientID, client := range s.clients {
			select {
			case <-client.Done:
				failed = append(failed, clientID)
			default:
				if err := s.sendEventToClient(client, event); err != nil {
					s.logger.Error("failed to send event to client", zap.String("clientID", clientID), zap.Error(err))
					failed = append(failed, clientID)
				}
			}
		}
		s.clientsMutex.RUnlock()
		for _, clientID := range failed {
			s.removeClient(clientID)
		}
	}
}

// sendEventToClient sends an SSE event to a specific client
func (s *MCPSSEServer) sendEventToClient(client *SSEClient, event SSEEvent) error {
	client.mu.Lock()
	defer client.mu.Unlock()
	if err := writeEvent(client.Writer, client.Flusher, event); err != nil {
		return err
	}
	client.LastSeen = time.Now()
	return nil
}

func writeEvent(w io.Writer, flusher http.Flusher, event SSEEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Event, eventJSON); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	flusher.Flush()
	return nil
}

// addClient adds a new SSE client
func (s *MCPSSEServer) addClient(w http.ResponseWriter) *SSEClient {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return nil
	}

	client := &SSEClient{
		ID:       "client_" + uuid.NewString(),
		Writer:   w,
		Flusher:  flusher,
		Done:     make(chan struct{}),
		LastSeen: time.Now(),
	}

	connectEvent := newEvent("connected", map[string]string{"clientID": client.ID, "message": "Connected to link graph SSE server"})
	if err := s.sendEventToClient(client, connectEvent); err != nil {
		s.logger.Error("failed to send connection event", zap.String("clientID", client.ID), zap.Error(err))
		return nil
	}

	s.clientsMutex.Lock()
	s.clients[client.ID] = client
	s.clientsMutex.Unlock()

	s.logger.Info("SSE client connected", zap.String("clientID", client.ID))
	return client
}

// removeClient removes a client from the server
func (s *MCPSSEServer) removeClient(clientID string) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	if client, exists := s.clients[clientID]; exists {
		close(client.Done)
		delete(s.clients, clientID)
		s.logger.Info("SSE client disconnected", zap.String("clientID", clientID))
	}
}

// broadcastEvent sends an event to all connected clients
func (s *MCPSSEServer) broadcastEvent(event SSEEvent) {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.broadcast <- event:
	default:
		s.logger.Warn("broadcast channel full, dropping event", zap.String("eventID", event.ID))
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control, Content-Type, "+TokenHeader)
}

// HandleSSE keeps a client connected to receive graph_computed broadcasts
func (s *MCPSSEServer) HandleSSE(w http.ResponseWriter, r *http.Request) {
	setSSEHeaders(w)

	client := s.addClient(w)
	if client == nil {
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(s.config.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.removeClient(client.ID)
			return
		case <-client.Done:
			return
		case <-ticker.C:
			keepaliveEvent := newEvent("keepalive", map[string]interface{}{"timestamp": time.Now()})
			if err := s.sendEventToClient(client, keepaliveEvent); err != nil {
				s.removeClient(client.ID)
				return
			}
		}
	}
}

type graphRequest struct {
	DatabaseID    string `json:"databaseId"`
	ConnectedOnly bool   `json:"connectedOnly"`
}

type pageResolvedData struct {
	PageID string   `json:"pageId"`
	Title  string   `json:"title"`
	Links  []string `json:"links"`
	Error  string   `json:"error,omitempty"`
}

// HandleGraphSSE computes a link graph and streams per-page progress, the
// result and a completion event to the caller.
func (s *MCPSSEServer) HandleGraphSSE(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		http.Error(w, "Link graph service not available", http.StatusServiceUnavailable)
		return
	}

	var request graphRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if request.DatabaseID == "" {
		http.Error(w, "databaseId is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	setSSEHeaders(w)

	send := func(event SSEEvent) {
		if err := writeEvent(w, flusher, event); err != nil {
			s.logger.Debug("failed to stream graph event", zap.String("event", event.Event), zap.Error(err))
		}
	}

	send(newEvent("graph_start", map[string]string{"databaseId": request.DatabaseID}))

	ctx := withHTTPRequest(r.Context(), r)
	graph, err := s.service.ComputeLinkGraph(ctx, credentialsFromContext(ctx, s.creds), request.DatabaseID, service.Options{
		ConnectedOnly: request.ConnectedOnly,
		OnPage: func(result service.PageResult) {
			data := pageResolvedData{
				PageID: result.Page.ID,
				Title:  result.Page.Title,
				Links:  result.Links,
			}
			if result.Err != nil {
				data.Error = result.Err.Error()
			}
			send(newEvent("page_resolved", data))
		},
	})
	if err != nil {
		send(newEvent("graph_error", map[string]string{"error": err.Error()}))
		return
	}

	send(newEvent("graph_result", LinkGraphResponse{
		Results: graph.Results(),
		Stats:   graph.Stats,
		Edges:   graph.Edges(),
	}))
	send(newEvent("graph_complete", map[string]string{"status": "completed"}))

	s.broadcastEvent(newEvent("graph_computed", map[string]interface{}{
		"databaseId": request.DatabaseID,
		"stats":      graph.Stats,
	}))
}

// ClientCount returns the number of connected clients
func (s *MCPSSEServer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

// GetConnectedClients returns information about connected clients
func (s *MCPSSEServer) GetConnectedClients() []map[string]interface{} {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	clients := make([]map[string]interface{}, 0, len(s.clients))
	for _, client := range s.clients {
		client.mu.Lock()
		lastSeen := client.LastSeen
		client.mu.Unlock()
		clients = append(clients, map[string]interface{}{
			"id":        client.ID,
			"lastSeen":  lastSeen,
			"connected": time.Since(lastSeen) < s.config.ClientTimeout,
		})
	}
	return clients
}

// GetStats returns server statistics
func (s *MCPSSEServer) GetStats() map[string]interface{} {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	return map[string]interface{}{
		"connectedClients": len(s.clients),
		"bufferSize":       len(s.broadcast),
		"serverVersion":    Version,
	}
}
