package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jwkim-dev/tickstream/cmd/gateway/internal/protocol"
	"github.com/jwkim-dev/tickstream/cmd/gateway/internal/repository"
)

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// Hub owns the set of live subscriber connections. There is no per-symbol
// filter: every accepted tick is pushed to every registered client. All
// mutation of and iteration over the client set happens under one mutex.
type Hub struct {
	clients map[ClientInterface]bool

	store  repository.TickStore
	logger *zap.Logger
	mu     sync.RWMutex
}

func NewHub(store repository.TickStore, logger *zap.Logger) *Hub {
	h := &Hub{
		clients: make(map[ClientInterface]bool),
		store:   store,
		logger:  logger,
	}

	go h.store.RunFeed(context.Background(), h.Broadcast)

	return h
}

// Register adds a connection to the live push set. Clients are registered
// before any snapshot request of theirs is served, so the boundary between
// snapshot and live push can overlap but never leaves a gap.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.logger.Debug("Client registered", zap.String("client", client.ID()))
}

// Unregister removes a connection. Idempotent: removing an absent client is
// a no-op.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	// Closing under the lock guarantees no Broadcast iteration can still be
	// sending to this client.
	client.Close()
	h.logger.Debug("Client unregistered", zap.String("client", client.ID()))
}

// Broadcast pushes one accepted tick payload to every registered client.
// Best-effort per subscriber: a client whose transport has failed tears
// itself down via Unregister without affecting delivery to the rest.
func (h *Hub) Broadcast(payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msgBytes := []byte(payload)
	for client := range h.clients {
		client.SendBytes(msgBytes)
	}
}

// HandleCommand dispatches a client request.
func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest) {
	switch req.Action {
	case protocol.ActionSnapshot:
		h.handleSnapshot(client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSnapshot(client ClientInterface, req protocol.WSRequest) {
	symbol := req.Payload.Symbol
	if symbol == "" {
		h.sendError(client, req.ID, "Missing symbol")
		return
	}

	entries, err := h.SnapshotFor(context.Background(), symbol)
	if err != nil {
		h.logger.Error("Snapshot read failed", zap.String("symbol", symbol), zap.Error(err))
		h.sendError(client, req.ID, "Snapshot unavailable for "+symbol)
		return
	}

	h.sendAck(client, req.ID, "success", "Snapshot for "+symbol)
	for _, entry := range entries {
		client.SendBytes([]byte(entry))
	}
}

// SnapshotFor returns the symbol's current cached window, newest first.
func (h *Hub) SnapshotFor(ctx context.Context, symbol string) ([]string, error) {
	return h.store.Snapshot(ctx, symbol)
}

func (h *Hub) sendAck(c ClientInterface, id, status, msg string) {
	c.SendJSON(protocol.WSResponse{Type: "ack", ID: id, Status: status, Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: "error", ID: id, Message: msg})
}
