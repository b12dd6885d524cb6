package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/uticket/printd/internal/api"
	"github.com/uticket/printd/internal/config"
	"github.com/uticket/printd/internal/history"
	"github.com/uticket/printd/internal/notify"
	"github.com/uticket/printd/internal/render"
	"github.com/uticket/printd/internal/transport"
)

const shutdownGrace = 10 * time.Second

func main() {
	var configPath string

	flags := pflag.NewFlagSet("printd", pflag.ExitOnError)
	flags.StringVarP(&configPath, "config", "c", "config.yaml", "Path to the service configuration file")
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	settings, err := config.LoadSettings(cfg.Settings.Path)
	if err != nil {
		log.Fatalf("Failed to load printer settings: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer store.Close()

	pruner := history.NewPruner(store, cfg.History.RetentionDays)
	pruner.Start()
	defer pruner.Stop()

	fonts, err := render.DefaultFonts()
	if err != nil {
		log.Fatalf("Failed to load fonts: %v", err)
	}

	latex := render.NewLatexEngine(fonts, render.LatexOptions{
		Compiler:  cfg.Render.Compiler,
		Installer: cfg.Render.Installer,
		Converter: cfg.Render.Converter,
	})
	renderer := render.NewRenderer(fonts, latex)

	dispatcher := transport.NewDispatcher(
		transport.NewLAN(settings),
		transport.NewCloud(settings),
	)

	notifier := notify.New(cfg.Webhook.URL)
	runner := api.NewRunner(renderer, dispatcher, store, notifier)

	auth, err := api.NewAuthMiddleware(store)
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	handler := api.NewHandler(runner, settings, cfg.Settings.Path, store)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, auth),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("printd listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}

	// Let in-flight print jobs land before closing the store.
	runner.Wait()
	log.Println("Stopped")
}
