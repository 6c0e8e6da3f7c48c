package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"tallysync/internal/api"
	"tallysync/internal/store"
	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
	"tallysync/internal/types/followed"
)

// fakeBackend is an in-memory stand-in for the cloud API. Flipping
// down simulates lost connectivity: every request answers 503, which
// the client treats as recoverable.
type fakeBackend struct {
	mu         sync.Mutex
	down       bool
	nextID     int
	challenges map[string]challenge.Challenge
	entries    map[string]entry.Entry
	follows    map[string]followed.Followed

	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		challenges: make(map[string]challenge.Challenge),
		entries:    make(map[string]entry.Entry),
		follows:    make(map[string]followed.Followed),
	}

	r := mux.NewRouter()
	r.Use(b.availability)
	r.HandleFunc("/challenges", b.listChallenges).Methods("GET")
	r.HandleFunc("/challenges", b.createChallenge).Methods("POST")
	r.HandleFunc("/challenges/{id}", b.updateChallenge).Methods("PATCH")
	r.HandleFunc("/challenges/{id}", b.deleteChallenge).Methods("DELETE")
	r.HandleFunc("/entries", b.listEntries).Methods("GET")
	r.HandleFunc("/entries", b.createEntry).Methods("POST")
	r.HandleFunc("/entries/{id}", b.deleteEntry).Methods("DELETE")
	r.HandleFunc("/followed", b.listFollowed).Methods("GET")
	r.HandleFunc("/followed", b.follow).Methods("POST")
	r.HandleFunc("/followed/{id}", b.unfollow).Methods("DELETE")
	r.HandleFunc("/public/challenges", b.listPublic).Methods("GET")
	r.HandleFunc("/export", b.export).Methods("POST")

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) setDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

func (b *fakeBackend) availability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		down := b.down
		b.mu.Unlock()
		if down {
			http.Error(w, `{"error": "service unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *fakeBackend) id(prefix string) string {
	b.nextID++
	return fmt.Sprintf("%s-%d", prefix, b.nextID)
}

func (b *fakeBackend) listChallenges(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]challenge.Challenge, 0, len(b.challenges))
	for _, c := range b.challenges {
		out = append(out, c)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req challenge.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	b.mu.Lock()
	c := challenge.Challenge{
		ID:            b.id("srv-ch"),
		UserID:        "u-1",
		Name:          req.Name,
		Target:        req.Target,
		TimeframeType: req.TimeframeType,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Color:         req.Color,
		Icon:          req.Icon,
		IsPublic:      req.IsPublic,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	b.challenges[c.ID] = c
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, c)
}

func (b *fakeBackend) updateChallenge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req challenge.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.challenges[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such challenge"})
		return
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Target != nil {
		c.Target = *req.Target
	}
	if req.IsPublic != nil {
		c.IsPublic = *req.IsPublic
	}
	if req.IsArchived != nil {
		c.IsArchived = *req.IsArchived
	}
	c.UpdatedAt = time.Now().UTC()
	b.challenges[id] = c
	writeJSON(w, http.StatusOK, c)
}

func (b *fakeBackend) deleteChallenge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.challenges[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such challenge"})
		return
	}
	delete(b.challenges, id)
	for eid, e := range b.entries {
		if e.ChallengeID == id {
			delete(b.entries, eid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) listEntries(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]entry.Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entry.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.challenges[req.ChallengeID]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown challenge " + req.ChallengeID})
		return
	}
	e := entry.Entry{
		ID:          b.id("srv-en"),
		UserID:      "u-1",
		ChallengeID: req.ChallengeID,
		Date:        req.Date,
		Count:       req.Count,
		Note:        req.Note,
		Feeling:     req.Feeling,
		Sets:        req.Sets,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	b.entries[e.ID] = e
	writeJSON(w, http.StatusCreated, e)
}

func (b *fakeBackend) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such entry"})
		return
	}
	delete(b.entries, id)
	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) listFollowed(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]followed.Followed, 0, len(b.follows))
	for _, f := range b.follows {
		out = append(out, f)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) follow(w http.ResponseWriter, r *http.Request) {
	var req followed.FollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range b.follows {
		if f.ChallengeID == req.ChallengeID {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "already followed"})
			return
		}
	}
	f := followed.Followed{
		ID:          b.id("srv-fo"),
		UserID:      "u-1",
		ChallengeID: req.ChallengeID,
		FollowedAt:  time.Now().UTC(),
	}
	b.follows[f.ID] = f
	writeJSON(w, http.StatusCreated, f)
}

func (b *fakeBackend) unfollow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.follows[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such follow"})
		return
	}
	delete(b.follows, id)
	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) listPublic(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]followed.PublicChallenge, 0)
	for _, c := range b.challenges {
		if c.IsPublic {
			out = append(out, followed.PublicChallenge{Challenge: c, OwnerUsername: "owner", FollowerCount: 1})
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) export(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	snap := api.ExportSnapshot{ExportedAt: time.Now().UTC()}
	for _, c := range b.challenges {
		snap.Challenges = append(snap.Challenges, c)
	}
	for _, e := range b.entries {
		snap.Entries = append(snap.Entries, e)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, snap)
}

func (b *fakeBackend) challengeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.challenges)
}

func (b *fakeBackend) entryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func newTestClient(b *fakeBackend) *api.Client {
	return api.NewClient(b.server.URL, func() string { return "test-token" }, b.server.Client())
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestSyncService(t *testing.T, b *fakeBackend, st *store.Store) *SyncService {
	t.Helper()
	svc, err := NewSyncService(newTestClient(b), st)
	require.NoError(t, err)
	return svc
}
