package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"broadcast-coordinator/internal/coordinator"
	"broadcast-coordinator/internal/liveness"
	"broadcast-coordinator/internal/platform/config"
	"broadcast-coordinator/internal/platform/logger"
	"broadcast-coordinator/internal/platform/metrics"
	"broadcast-coordinator/internal/relay"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	segmentDir := config.GetEnv("SEGMENT_DIR", "./segments")
	playlistFile := config.GetEnv("PLAYLIST_FILE", segmentDir+"/live.m3u8")
	freshnessWindow := config.GetEnvDuration("FRESHNESS_WINDOW", liveness.DefaultFreshnessWindow)
	gatewayURL := config.GetEnv("GATEWAY_URL", "http://127.0.0.1:9997")
	gatewayTimeout := config.GetEnvDuration("GATEWAY_TIMEOUT", liveness.DefaultGatewayTimeout)
	streamPath := config.GetEnv("STREAM_PATH", "live")
	defaultTitle := config.GetEnv("DEFAULT_TITLE", "Live Broadcast")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	met := metrics.New()
	coord := coordinator.New(logger.Component(log, "coordinator"), met, defaultTitle, "/segments/live.m3u8")
	probe := liveness.New(liveness.Config{
		PlaylistPath:    playlistFile,
		FreshnessWindow: freshnessWindow,
		GatewayURL:      gatewayURL,
		StreamPath:      streamPath,
		GatewayTimeout:  gatewayTimeout,
	}, logger.Component(log, "liveness"))
	h := coordinator.NewHandler(coord, probe, logger.Component(log, "handler"), defaultTitle)

	rl := relay.New(gatewayURL, &http.Client{Timeout: gatewayTimeout}, logger.Component(log, "relay"))
	rl.OnError = met.IncRelayErrors

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetConnections(coord.Registry().Size()) }).ServeHTTP(w, r)
	})
	r.Get("/ws", h.ServeWS)
	r.Get("/api/status", h.Status)
	r.Handle("/api/whep/*", http.StripPrefix("/api/whep", rl))
	r.Handle("/segments/*", http.StripPrefix("/segments/", http.FileServer(http.Dir(segmentDir))))

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"segment_dir", segmentDir,
		"gateway_url", gatewayURL,
		"stream_path", streamPath,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	coord.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
