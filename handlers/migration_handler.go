package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
	"tallysync/services"
)

type MigrationHandler struct {
	migrationService *services.MigrationService
	syncService      *services.SyncService
}

func NewMigrationHandler(migrationService *services.MigrationService, syncService *services.SyncService) *MigrationHandler {
	return &MigrationHandler{
		migrationService: migrationService,
		syncService:      syncService,
	}
}

type migrateRequest struct {
	Challenges []challenge.Challenge `json:"challenges"`
	Entries    []entry.Entry         `json:"entries"`
	Strategy   services.Strategy     `json:"strategy"`
}

// Migrate imports a local dataset into the cloud account. With an empty
// request body the locally cached dataset is migrated instead, and the
// local cache is cleared once the import succeeds so the cloud copy
// becomes the single source of truth.
func (h *MigrationHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()

	var req migrateRequest
	fromLocalCache := false
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Challenges, req.Entries = h.syncService.LocalDataset()
		fromLocalCache = true
	}
	if req.Strategy == "" {
		req.Strategy = services.StrategySkip
	}

	result, err := h.migrationService.Migrate(ctx, req.Challenges, req.Entries, req.Strategy)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	if result.Success && fromLocalCache {
		if err := h.syncService.ClearLocalData(ctx); err != nil {
			log.Printf("Migration succeeded but local cache cleanup failed: %v", err)
		}
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *MigrationHandler) CheckMigrationState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	localChallenges, localEntries := h.syncService.LocalDataset()

	check, err := h.migrationService.Check(ctx, localChallenges, localEntries)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, check)
}

func (h *MigrationHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	snapshot, err := h.migrationService.Export(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, snapshot)
}
