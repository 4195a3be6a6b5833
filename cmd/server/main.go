package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-recorder/internal/platform/config"
	"hls-recorder/internal/platform/logger"
	"hls-recorder/internal/platform/metrics"
	"hls-recorder/internal/recorder"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	cfg := recorder.Config{
		CacheDir:       config.GetEnv("CACHE_DIR", "cache"),
		ClipDir:        config.GetEnv("CLIP_DIR", "clips"),
		StatusInterval: config.GetEnvDuration("STATUS_POLL_INTERVAL", 10*time.Second),
		LiveInterval:   config.GetEnvDuration("LIVE_POLL_INTERVAL", time.Second),
		NotifyStart:    config.GetEnvBool("NOTIFY_LIVE_START", true),
		NotifyEnd:      config.GetEnvBool("NOTIFY_LIVE_END", true),
	}

	client := recorder.NewHTTPStreamClient(
		config.GetEnv("API_BASE", "http://localhost:9000"),
		config.GetEnv("COOKIES", ""),
	)
	store := recorder.NewMemoryArchiveStore()
	bus := recorder.NewMemoryBus()
	transcoder := recorder.NewFFmpegTranscoder(config.GetEnv("FFMPEG_PATH", "ffmpeg"), log)
	if err := transcoder.Available(); err != nil {
		log.Warn("ffmpeg unavailable, clip extraction will fail", "error", err)
	}
	met := metrics.New()

	mgr := recorder.NewManager(cfg, recorder.Deps{
		Client:     client,
		Store:      store,
		Notifier:   recorder.LogNotifier{Log: log},
		Events:     bus,
		Transcoder: transcoder,
		Metrics:    met,
		Log:        log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		log.Error("manager start failed", "error", err)
		os.Exit(1)
	}
	for _, roomID := range config.GetEnvUint64List("ROOMS") {
		if _, err := mgr.Watch(ctx, roomID); err != nil {
			log.Warn("watch room failed", "room_id", roomID, "error", err)
		}
	}

	h := recorder.NewHandler(mgr, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() { met.SetLiveSessions(mgr.LiveSessionCount()) }).ServeHTTP(w, req)
	})
	h.Routes(r)

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
		"cache_dir", cfg.CacheDir,
		"rooms", mgr.Rooms(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	cancel()
	mgr.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
