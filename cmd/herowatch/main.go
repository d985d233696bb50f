package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"herowatch/config"
	"herowatch/internal/api"
	"herowatch/internal/hero"
	"herowatch/internal/logging"
	"herowatch/internal/poller"
	"herowatch/internal/storage/sqlite"
)

const (
	shutdownTimeout   = 10 * time.Second
	defaultConfigPath = "config.json"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	flag.Parse()

	// Load configuration
	log.Println("Loading configuration...")
	var cfg *config.Config
	var err error

	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
	}

	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Logging.Format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})

	// Initialize database
	log.Printf("Initializing SQLite database at %s...", cfg.Database.Path)
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Load the stored credential
	creds, err := db.GetCredentials(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds == nil || creds.RefreshToken == "" {
		return fmt.Errorf("no refresh token stored - run hero-login first")
	}

	// Initialize Hero API client and refresh coordinator
	log.Println("Initializing Hero cloud client...")
	client := hero.NewClient(hero.ClientConfig{
		BaseURL:   cfg.Hero.BaseURL,
		TokenURL:  cfg.Hero.TokenURL,
		ClientID:  cfg.Hero.ClientID,
		AccountID: creds.AccountID,
	}, creds.RefreshToken, logger)
	coordinator := hero.NewCoordinator(client, db, logger)

	// Start the refresh poller
	log.Println("Starting refresh poller...")
	interval := time.Duration(cfg.Hero.ScanIntervalSeconds) * time.Second
	refreshPoller := poller.New(coordinator, interval, logger)
	go refreshPoller.Start()

	// Initialize REST API
	log.Println("Initializing REST API server...")
	router := api.NewRouter(api.RouterConfig{
		Coordinator: coordinator,
		Client:      client,
		Poller:      refreshPoller,
		Store:       db,
		APIKey:      cfg.Security.APIKey,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s:%d...", cfg.Server.Host, cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Printf("Received signal: %v. Starting graceful shutdown...", sig)

		// Stop poller
		log.Println("Stopping poller...")
		refreshPoller.Stop()

		// Shutdown HTTP server
		log.Println("Shutting down HTTP server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		log.Println("Graceful shutdown complete")
	}

	return nil
}
