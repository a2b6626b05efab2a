package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jwkim-dev/tickstream/cmd/gateway/internal/gateway"
	"github.com/jwkim-dev/tickstream/cmd/gateway/internal/hub"
	"github.com/jwkim-dev/tickstream/cmd/gateway/internal/repository"
	"github.com/jwkim-dev/tickstream/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := config.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	repo := repository.NewRedisStore(rdb)

	// Dependency Injection: Hub depends on the Repository Interface
	wsHub := hub.NewHub(repo, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}

		client := gateway.NewClient(conn, wsHub, logger)
		client.Start()
	})

	// One-shot snapshot surface for clients that want initial state over
	// plain HTTP before (or instead of) attaching to the live stream.
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "missing symbol", http.StatusBadRequest)
			return
		}

		entries, err := wsHub.SnapshotFor(r.Context(), symbol)
		if err != nil {
			logger.Error("Snapshot read failed", zap.String("symbol", symbol), zap.Error(err))
			http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
			return
		}

		raw := make([]json.RawMessage, 0, len(entries))
		for _, e := range entries {
			raw = append(raw, json.RawMessage(e))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(raw)
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	go func() {
		logger.Info("Gateway Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	srv.Shutdown(context.Background())
	repo.Close()
	logger.Info("Shutdown Complete")
}
