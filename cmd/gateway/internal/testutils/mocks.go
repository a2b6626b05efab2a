package testutils

import (
	"context"
	"sync"

	"github.com/jwkim-dev/tickstream/cmd/gateway/internal/protocol"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // Stores decoded JSON messages
	RawBytes []string              // Stores raw bytes
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	// If it's a response, store it
	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

func (m *MockClient) ReceivedCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.RawBytes)
}

// MockTickStore simulates the Redis read side
type MockTickStore struct {
	Snapshots   map[string][]string
	SnapshotErr error
	Mu          sync.Mutex
}

func NewMockStore() *MockTickStore {
	return &MockTickStore{Snapshots: make(map[string][]string)}
}

func (m *MockTickStore) Snapshot(ctx context.Context, symbol string) ([]string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.SnapshotErr != nil {
		return nil, m.SnapshotErr
	}
	return m.Snapshots[symbol], nil
}

func (m *MockTickStore) RunFeed(ctx context.Context, onTick func(payload string)) {
	// No-op for unit tests
}

func (m *MockTickStore) Close() error { return nil }
