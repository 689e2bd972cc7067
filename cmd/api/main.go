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

	user "MediMate_V1.0/internal/User"
	"MediMate_V1.0/internal/admin"
	"MediMate_V1.0/internal/auth"
	"MediMate_V1.0/internal/database"
	"MediMate_V1.0/internal/openaiservice"
	"MediMate_V1.0/internal/overpass"
	"MediMate_V1.0/internal/server"
	"MediMate_V1.0/internal/transcript"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	// Initialize the database connection first so every package that
	// depends on the pool sees an initialized service.
	dbService := database.NewService()
	defer dbService.Close() // Ensure the database connection is closed on exit.

	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Fatal error: could not ensure database schema: %v", err)
	}

	// Chat transcripts live in a local Badger store next to the binary
	// unless TRANSCRIPT_DB_DIR points elsewhere.
	transcriptDir := os.Getenv("TRANSCRIPT_DB_DIR")
	if transcriptDir == "" {
		transcriptDir = "data/transcripts"
	}
	transcripts, err := transcript.Open(transcriptDir)
	if err != nil {
		log.Fatalf("Fatal error: could not open transcript store: %v", err)
	}
	defer transcripts.Close()

	if err := auth.InitAuth(dbService.Accounts()); err != nil {
		log.Fatalf("Fatal error: could not initialize authentication: %v", err)
	}

	aiService := openaiservice.NewService(
		dbService.Documents(),
		openaiservice.NewClientFromEnv(),
		transcripts,
		openaiservice.ConfigFromEnv(),
	)

	user.Init(dbService.Documents(), aiService, transcripts, &overpass.Client{})
	admin.InitAdminPackage(dbService)

	apiServer := server.NewServer(dbService)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, done)

	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")
}
