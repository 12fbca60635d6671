package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yegors/whse-session/internal/api"
	"github.com/yegors/whse-session/internal/backend"
	"github.com/yegors/whse-session/internal/config"
	"github.com/yegors/whse-session/internal/storage/sqlite"
	"github.com/yegors/whse-session/internal/uiconfig"
	"github.com/yegors/whse-session/internal/websocket"
	"github.com/yegors/whse-session/internal/whse"
	"github.com/yegors/whse-session/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting whse session server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	db, err := sqlite.Open(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to open SQLite database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	sessionStorage, err := sqlite.NewSessionStorage(db, log)
	if err != nil {
		log.Error("Failed to create session storage", logger.Error(err))
		os.Exit(1)
	}

	warehouseStorage, err := sqlite.NewWarehouseStorage(db, log)
	if err != nil {
		log.Error("Failed to create warehouse storage", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed bin configuration from the optional YAML file
	if cfg.Warehouses.BinsFile != "" {
		warehouses, err := config.LoadWarehouses(cfg.Warehouses.BinsFile)
		if err != nil {
			log.Error("Failed to load warehouses file", logger.Error(err), logger.String("path", cfg.Warehouses.BinsFile))
			os.Exit(1)
		}
		for i := range warehouses {
			if err := warehouseStorage.SaveWarehouse(ctx, &warehouses[i]); err != nil {
				log.Error("Failed to save warehouse", logger.Error(err), logger.String("whse_id", warehouses[i].ID))
				os.Exit(1)
			}
		}
		log.Info("Imported warehouse bin configuration", logger.Int("warehouses", len(warehouses)))
	}

	backendClient, err := backend.NewClient(cfg.Backend.BaseURL, cfg.RequestTimeout(), log)
	if err != nil {
		log.Error("Failed to create backend client", logger.Error(err))
		os.Exit(1)
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	registry := uiconfig.NewRegistry(wsServer, log)
	wsServer.SetMessageHandler(registry)

	go wsServer.Run()

	vocabulary, err := cfg.Vocabulary()
	if err != nil {
		log.Error("Invalid status phrases", logger.Error(err))
		os.Exit(1)
	}

	sessionService := whse.NewService(
		sessionStorage,
		warehouseStorage,
		backendClient,
		registry,
		cfg.PagesFor(),
		whse.NewPhraseClassifier(vocabulary),
		log,
	)

	router := api.NewRouter(sessionService, registry, sessionStorage, wsServer, cfg, log)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	handler := router.Routes()
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Stopping WebSocket server...")
	wsServer.Stop()

	log.Info("Server fully stopped")
}
