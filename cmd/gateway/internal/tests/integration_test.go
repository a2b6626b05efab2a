package tests

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gobwas/ws"
	"github.com/gorilla/websocket" // Using Gorilla for the test CLIENT
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jwkim-dev/tickstream/cmd/gateway/internal/gateway"
	"github.com/jwkim-dev/tickstream/cmd/gateway/internal/hub"
	"github.com/jwkim-dev/tickstream/cmd/gateway/internal/repository"
)

func startServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := repository.NewRedisStore(rdb)
	wsHub := hub.NewHub(repo, zap.NewNop())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		client := gateway.NewClient(conn, wsHub, zap.NewNop())
		client.Start()
	}))

	return server, mr
}

func connectWS(t *testing.T, serverURL string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(serverURL, "http")
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	return wsConn
}

func TestEndToEnd_LivePush(t *testing.T) {
	server, mr := startServer(t)
	defer server.Close()
	defer mr.Close()

	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	// Connected clients receive every accepted tick with no subscription step
	go func() {
		time.Sleep(100 * time.Millisecond)
		mr.Publish("ticks.live", `{"stockId":"005930","currentPrice":"70000"}`)
	}()

	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive broadcast: %v", err)
	}
	if !strings.Contains(string(msg), "70000") {
		t.Errorf("Expected tick payload, got: %s", msg)
	}
}

func TestEndToEnd_FanOutToAllClients(t *testing.T) {
	server, mr := startServer(t)
	defer server.Close()
	defer mr.Close()

	first := connectWS(t, server.URL)
	defer first.Close()
	second := connectWS(t, server.URL)
	defer second.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		mr.Publish("ticks.live", `{"stockId":"000660","currentPrice":"120000"}`)
	}()

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Client %d failed to receive broadcast: %v", i, err)
		}
		if !strings.Contains(string(msg), "120000") {
			t.Errorf("Client %d: expected tick payload, got: %s", i, msg)
		}
	}
}

func TestEndToEnd_SnapshotRequest(t *testing.T) {
	server, mr := startServer(t)
	defer server.Close()
	defer mr.Close()

	// Seed the recency window the way the ingestor writes it (newest first)
	mr.Lpush("stock:005930", `{"stockId":"005930","currentPrice":"70100"}`)
	mr.Lpush("stock:005930", `{"stockId":"005930","currentPrice":"70200"}`)

	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	snapMsg := `{"action": "snapshot", "payload": {"symbol": "005930"}, "id": "t1"}`
	wsConn.WriteMessage(websocket.TextMessage, []byte(snapMsg))

	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive snapshot ack: %v", err)
	}
	if !strings.Contains(string(msg), "success") {
		t.Errorf("Expected snapshot ack, got: %s", msg)
	}

	_, msg, err = wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive snapshot entry: %v", err)
	}
	if !strings.Contains(string(msg), "70200") {
		t.Errorf("Expected newest entry first, got: %s", msg)
	}

	_, msg, err = wsConn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive snapshot entry: %v", err)
	}
	if !strings.Contains(string(msg), "70100") {
		t.Errorf("Expected older entry second, got: %s", msg)
	}
}

func TestEndToEnd_DisconnectedClientDoesNotBlockOthers(t *testing.T) {
	server, mr := startServer(t)
	defer server.Close()
	defer mr.Close()

	dying := connectWS(t, server.URL)
	survivor := connectWS(t, server.URL)
	defer survivor.Close()

	dying.Close()
	time.Sleep(100 * time.Millisecond)

	mr.Publish("ticks.live", `{"stockId":"035420","currentPrice":"213500"}`)

	survivor.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := survivor.ReadMessage()
	if err != nil {
		t.Fatalf("Surviving client failed to receive broadcast: %v", err)
	}
	if !strings.Contains(string(msg), "213500") {
		t.Errorf("Expected tick payload, got: %s", msg)
	}
}

func TestEndToEnd_InvalidJSON(t *testing.T) {
	server, _ := startServer(t)
	defer server.Close()
	wsConn := connectWS(t, server.URL)
	defer wsConn.Close()

	wsConn.WriteMessage(websocket.TextMessage, []byte(`{ "action": "snapsh`))

	wsConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, _ := wsConn.ReadMessage()
	if !strings.Contains(string(msg), "Invalid JSON") && !strings.Contains(string(msg), "error") {
		t.Errorf("Expected error message for bad JSON, got: %s", msg)
	}
}
