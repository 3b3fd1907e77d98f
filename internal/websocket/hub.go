package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/storylinez/storylinez-go/internal/model"
	"github.com/storylinez/storylinez-go/pkg/pipeline"
)

const (
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

// Error codes sent in error frames
const (
	CodeRunFailed   = "RUN_FAILED"
	CodeRunCanceled = "RUN_CANCELED"
)

// Client represents a WebSocket client
type Client struct {
	RunID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans run events out to the clients watching each run.
type Hub struct {
	// Clients grouped by run ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	log *slog.Logger
	mu  sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	RunID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, sendBuffer),
		done:       make(chan struct{}),
		log:        logger.With("component", "ws_hub"),
	}
}

// Run starts the hub's main loop. It closes every client when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for runID, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.clients, runID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.RunID] == nil {
				h.clients[client.RunID] = make(map[*Client]bool)
			}
			h.clients[client.RunID][client] = true
			h.mu.Unlock()
			h.log.Debug("client registered", "run_id", client.RunID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.log.Debug("client unregistered", "run_id", client.RunID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.RunID] {
				select {
				case client.Send <- msg.Message:
				default:
					h.log.Warn("client too slow, dropping", "run_id", msg.RunID)
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.RunID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.RunID)
	}
}

// Register adds a new client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribers returns the number of clients watching runID.
func (h *Hub) Subscribers(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[runID])
}

// BroadcastProgress sends a stage transition to all run subscribers
func (h *Hub) BroadcastProgress(runID string, ev pipeline.Event) {
	msg := model.WSProgressMessage{
		Type:   model.WSMessageTypeProgress,
		RunID:  runID,
		Stage:  ev.Stage,
		Event:  ev.Kind,
		Result: ev.Result,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	h.send(runID, msg)
}

// BroadcastRun sends the state a run was left in after an attempt:
// complete for a succeeded run, error for a failed or canceled one and
// status otherwise.
func (h *Hub) BroadcastRun(run *model.Run) {
	switch run.Status {
	case model.RunStatusSucceeded:
		h.send(run.ID, model.WSCompleteMessage{
			Type:   model.WSMessageTypeComplete,
			RunID:  run.ID,
			Result: run,
		})
	case model.RunStatusFailed, model.RunStatusCanceled:
		code := CodeRunFailed
		if run.Status == model.RunStatusCanceled {
			code = CodeRunCanceled
		}
		message := string(run.Status)
		if run.Error != nil {
			message = *run.Error
		}
		h.send(run.ID, model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			RunID: run.ID,
			Error: model.WSError{Code: code, Message: message},
		})
	default:
		h.send(run.ID, model.WSStatusMessage{
			Type:   model.WSMessageTypeStatus,
			RunID:  run.ID,
			Status: run.Status,
			Run:    run,
		})
	}
}

// send never blocks the worker; a full queue drops the frame.
func (h *Hub) send(runID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to marshal message", "run_id", runID, "error", err)
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{RunID: runID, Message: data}:
	default:
		h.log.Warn("broadcast queue full, dropping message", "run_id", runID)
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, runID string) {
	client := &Client{
		RunID: runID,
		Conn:  c,
		Send:  make(chan []byte, sendBuffer),
	}

	if !h.Register(client) {
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return
	}
	defer h.Unregister(client)

	pongs := make(chan []byte, 1)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			case message := <-pongs:
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "run_id", runID, "error", err)
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case pongs <- data:
			default:
			}
		}
	}
}
