package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tallysync/internal/api"
	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
	"tallysync/internal/validation"
	"tallysync/services"

	"github.com/gorilla/mux"
)

type SyncHandler struct {
	syncService *services.SyncService
}

func NewSyncHandler(syncService *services.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.syncService.State())
}

func (h *SyncHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	activeOnly := r.URL.Query().Get("activeOnly") == "true"

	if err := h.syncService.Refresh(ctx, activeOnly); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.syncService.State())
}

func (h *SyncHandler) SyncQueuedWrites(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if err := h.syncService.SyncQueuedWrites(ctx); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.syncService.State())
}

func (h *SyncHandler) GetChallenges(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.syncService.Challenges())
}

func (h *SyncHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req challenge.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.syncService.CreateChallenge(ctx, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *SyncHandler) UpdateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	var req challenge.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.syncService.UpdateChallenge(ctx, id, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *SyncHandler) DeleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	if err := h.syncService.DeleteChallenge(ctx, id); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.syncService.State())
}

func (h *SyncHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	entries := h.syncService.Entries()

	if challengeID := r.URL.Query().Get("challengeId"); challengeID != "" {
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.ChallengeID == challengeID {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	respondWithJSON(w, http.StatusOK, entries)
}

func (h *SyncHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req entry.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.syncService.CreateEntry(ctx, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *SyncHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	if err := h.syncService.DeleteEntry(ctx, id); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.syncService.State())
}

func (h *SyncHandler) GetChallengeStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	challengeStats, err := h.syncService.ChallengeStats(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Challenge not found")
		return
	}

	respondWithJSON(w, http.StatusOK, challengeStats)
}

func (h *SyncHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.syncService.DashboardStats())
}

func (h *SyncHandler) GetPublicChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	public, err := h.syncService.ListPublicChallenges(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, public)
}

func (h *SyncHandler) GetFollowed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	follows, err := h.syncService.ListFollowed(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, follows)
}

func (h *SyncHandler) Follow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var body struct {
		ChallengeID string `json:"challengeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.ChallengeID == "" {
		respondWithError(w, http.StatusBadRequest, "challengeId is required")
		return
	}

	if err := h.syncService.Follow(ctx, body.ChallengeID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, h.syncService.State())
}

func (h *SyncHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	followID := mux.Vars(r)["id"]
	challengeID := r.URL.Query().Get("challengeId")

	if err := h.syncService.Unfollow(ctx, followID, challengeID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, h.syncService.State())
}

// respondWithServiceError translates service-layer failures into HTTP
// statuses: local validation is the caller's fault, auth failures need a
// new token, and anything the upstream API or network caused is a bad
// gateway rather than a fault of this process.
func respondWithServiceError(w http.ResponseWriter, err error) {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		respondWithError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	if api.IsAuthError(err) {
		respondWithError(w, http.StatusUnauthorized, "Not authorized with the cloud API")
		return
	}
	if api.IsNotFound(err) {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) || errors.Is(err, api.ErrNoToken) {
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondWithError(w, http.StatusInternalServerError, err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
