package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tallysync/handlers"
	"tallysync/internal/api"
	"tallysync/internal/store"
	"tallysync/internal/types/syncstate"
	"tallysync/middleware"
	"tallysync/services"
)

var (
	localStore       *store.Store
	syncService      *services.SyncService
	migrationService *services.MigrationService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	apiURL := os.Getenv("TALLY_API_URL")
	if apiURL == "" {
		log.Fatal("TALLY_API_URL environment variable is not set")
	}

	dataDir := os.Getenv("TALLY_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal("Failed to create data directory:", err)
	}

	var err error
	localStore, err = store.Open(filepath.Join(dataDir, "tallysync.db"))
	if err != nil {
		log.Fatal("Failed to open local store:", err)
	}
	log.Printf("Local store ready at %s", dataDir)

	client := api.NewClient(apiURL, tokenProvider(), nil)

	syncService, err = services.NewSyncService(client, localStore)
	if err != nil {
		log.Fatal("Failed to initialize sync service:", err)
	}
	migrationService = services.NewMigrationService(client)

	syncService.OnStateChange = func(st syncstate.State) {
		log.Printf("Sync state: %s (queued=%d)", st.Status, st.QueuedCount)
	}

	services.RegisterMetrics()
	middleware.InitPrometheus()
}

// tokenProvider reads the bearer token lazily on every request so a
// sign-in (or token rotation) that happens while the agent is running
// is picked up without a restart. TALLY_TOKEN_FILE wins over the static
// TALLY_API_TOKEN variable.
func tokenProvider() api.TokenProvider {
	return func() string {
		if path := os.Getenv("TALLY_TOKEN_FILE"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return ""
			}
			return strings.TrimSpace(string(data))
		}
		return os.Getenv("TALLY_API_TOKEN")
	}
}

func main() {
	defer func() {
		log.Println("Closing local store...")
		localStore.Close()
	}()

	syncHandler := handlers.NewSyncHandler(syncService)
	migrationHandler := handlers.NewMigrationHandler(migrationService, syncService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "tallysync-agent"}`))
	}).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/status", syncHandler.GetStatus).Methods("GET")
	v1.HandleFunc("/refresh", syncHandler.Refresh).Methods("POST")
	v1.HandleFunc("/sync", syncHandler.SyncQueuedWrites).Methods("POST")

	v1.HandleFunc("/challenges", syncHandler.GetChallenges).Methods("GET")
	v1.HandleFunc("/challenges", syncHandler.CreateChallenge).Methods("POST")
	v1.HandleFunc("/challenges/{id}", syncHandler.UpdateChallenge).Methods("PATCH")
	v1.HandleFunc("/challenges/{id}", syncHandler.DeleteChallenge).Methods("DELETE")
	v1.HandleFunc("/challenges/{id}/stats", syncHandler.GetChallengeStats).Methods("GET")

	v1.HandleFunc("/entries", syncHandler.GetEntries).Methods("GET")
	v1.HandleFunc("/entries", syncHandler.CreateEntry).Methods("POST")
	v1.HandleFunc("/entries/{id}", syncHandler.DeleteEntry).Methods("DELETE")

	v1.HandleFunc("/stats/dashboard", syncHandler.GetDashboardStats).Methods("GET")

	v1.HandleFunc("/public-challenges", syncHandler.GetPublicChallenges).Methods("GET")
	v1.HandleFunc("/followed", syncHandler.GetFollowed).Methods("GET")
	v1.HandleFunc("/followed", syncHandler.Follow).Methods("POST")
	v1.HandleFunc("/followed/{id}", syncHandler.Unfollow).Methods("DELETE")

	v1.HandleFunc("/export", migrationHandler.Export).Methods("GET")
	v1.HandleFunc("/import/migrate", migrationHandler.Migrate).Methods("POST")
	v1.HandleFunc("/migration/check", migrationHandler.CheckMigrationState).Methods("GET")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "7600"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting sync agent on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
