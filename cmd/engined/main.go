package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/deadhop/engine/internal/config"
	"github.com/deadhop/engine/internal/handler"
	"github.com/deadhop/engine/internal/service/assistant"
	"github.com/deadhop/engine/internal/session"
	"github.com/deadhop/engine/internal/store/history"
	"github.com/deadhop/engine/internal/store/profiles"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	profileStore, err := profiles.New(cfg.Store.ProfilesPath)
	if err != nil {
		log.Fatalf("failed to open profile store: %v", err)
	}

	hist, err := history.Open(cfg.Store.HistoryPath)
	if err != nil {
		log.Printf("warning: failed to open message archive: %v", err)
		log.Println("continuing without history or log export")
		hist = nil
	} else {
		defer hist.Close()
	}

	var assistantSvc *assistant.Service
	if cfg.Assistant.Enabled() {
		assistantSvc, err = assistant.NewService(ctx, cfg.Assistant)
		if err != nil {
			log.Printf("warning: failed to initialize assistant: %v", err)
			log.Println("continuing without assistant functionality")
		} else {
			log.Println("assistant service initialized")
		}
	} else {
		log.Println("assistant credentials not configured, skipping assistant setup")
	}

	engine := session.NewEngine(hist)
	defer engine.CloseAll()

	router := handler.NewRouter(engine, profileStore, hist, assistantSvc)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("deadhop engine listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
