package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hostfold/internal/adapter"
	"hostfold/internal/config"
	"hostfold/internal/handler"
	"hostfold/internal/hub"
	"hostfold/internal/repository/sqlite"
	"hostfold/internal/service"
	"hostfold/internal/watcher"
)

func main() {
	// Command line flags override the config file
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting hostfold server...")

	var (
		cfg  *config.Config
		from string
		err  error
	)
	if *configPath != "" {
		cfg, from, err = config.LoadFromPath(*configPath)
	} else {
		cfg, from, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if from != "" {
		log.Printf("Config loaded from %s", from)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Storage
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	// Event bus feeding the SSE hub
	eventBus := service.NewEventBus()
	sseHub := hub.New()
	go sseHub.Run()

	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for event := range eventChan {
			sseHub.Broadcast(event)
		}
	}()

	// Services
	hostSvc := service.NewHostService(repo, eventBus)
	deviceSvc := service.NewDeviceService(repo, eventBus)
	conflictSvc := service.NewConflictService(repo, eventBus)
	correlateSvc := service.NewCorrelationService(repo, eventBus, cfg.Scoring)
	importSvc := service.NewImportService(repo, eventBus)

	// Background record sources
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if cfg.Watch.Dir != "" {
		w := watcher.New(cfg.Watch.Dir, func(path string) {
			records, err := adapter.ParseRecordsFile(path)
			if err != nil {
				log.Printf("Failed to parse %s: %v", path, err)
				return
			}
			result, err := importSvc.ImportRecords(bgCtx, records)
			if err != nil {
				log.Printf("Failed to import %s: %v", path, err)
				return
			}
			log.Printf("Imported %s: %d created, %d updated, %d skipped",
				path, result.Created, result.Updated, result.Skipped)
		})
		go func() {
			if err := w.Watch(bgCtx); err != nil && err != context.Canceled {
				log.Printf("Watcher stopped: %v", err)
			}
		}()
	}

	if len(cfg.Nmap.Targets) > 0 {
		opts := []adapter.NmapOption{
			adapter.WithServiceDetection(cfg.Nmap.ServiceDetection),
			adapter.WithOSDetection(cfg.Nmap.OSDetection),
		}
		if cfg.Nmap.PortRange != "" {
			opts = append(opts, adapter.WithPortRange(cfg.Nmap.PortRange))
		}
		scanner := adapter.NewNmapScanner(cfg.Nmap.Targets, opts...)
		go func() {
			records, err := scanner.Scan(bgCtx)
			if err != nil {
				log.Printf("Initial scan failed: %v", err)
				return
			}
			result, err := importSvc.ImportRecords(bgCtx, records)
			if err != nil {
				log.Printf("Failed to import scan results: %v", err)
				return
			}
			log.Printf("Initial scan imported: %d created, %d updated", result.Created, result.Updated)
		}()
	}

	// HTTP API
	mux := http.NewServeMux()
	apiHandler := handler.New(hostSvc, deviceSvc, conflictSvc, correlateSvc, importSvc)
	apiHandler.Register(mux)
	mux.Handle("GET /events", sseHub)

	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
