package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rbaird/canteen/internal/catalog"
	"github.com/rbaird/canteen/internal/database"
	"github.com/rbaird/canteen/internal/logging"
	"github.com/rbaird/canteen/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("CANTEEN_LOG_LEVEL"), os.Getenv("CANTEEN_LOG_FORMAT"))

	port := os.Getenv("CANTEEN_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("CANTEEN_DB_PATH")
	if dbPath == "" {
		dbPath = "canteen.db"
	}

	catalogCfg := catalog.Config{
		BaseURL:      os.Getenv("CANTEEN_CATALOG_URL"),
		Realm:        os.Getenv("CANTEEN_CATALOG_REALM"),
		MultigroupID: os.Getenv("CANTEEN_CATALOG_MULTIGROUP"),
	}
	if catalogCfg.BaseURL == "" {
		catalogCfg.BaseURL = "https://api.compassdigital.org"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, catalogCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the state from the persisted city selection before the first
	// client connects.
	go srv.Orchestrator().RefreshBuildings(ctx)

	// Expired rate-limit windows accumulate slowly; sweep them hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Canteen running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
