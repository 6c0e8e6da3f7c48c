package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tallysync/internal/api"
	"tallysync/internal/queue"
	"tallysync/internal/stats"
	"tallysync/internal/store"
	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
	"tallysync/internal/types/followed"
	"tallysync/internal/types/syncstate"
	"tallysync/internal/validation"
)

// SyncService is the sync coordinator: the only writer to the local
// store and the pending write queue. Intents are sent straight to the
// backend when it answers; when it does not, they are queued and the
// cache is updated optimistically so the caller sees the action without
// waiting on network. Refresh, queue drain, and migration never run
// concurrently on one instance.
type SyncService struct {
	client *api.Client
	store  *store.Store

	// opMu serializes refresh, drain, and clear. A second caller waits
	// behind the one in flight rather than racing it on the queue.
	opMu sync.Mutex

	mu         sync.RWMutex
	challenges []challenge.Challenge
	entries    []entry.Entry
	q          queue.Queue
	state      syncstate.State

	// idRemap collects local-uuid -> server-id discoveries during one
	// drain pass, so a queued entry create can follow its challenge's
	// freshly assigned identifier within the same pass.
	idRemap map[string]string

	// OnStateChange, when set before first use, is invoked after every
	// state transition. It runs without internal locks held and must
	// not call back into the service.
	OnStateChange func(syncstate.State)

	now func() time.Time
}

// NewSyncService loads the cached collections and the pending queue
// from the local store. First launch (nothing persisted) behaves like
// an empty server.
func NewSyncService(client *api.Client, st *store.Store) (*SyncService, error) {
	ctx := context.Background()
	challenges, err := st.LoadChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached challenges: %w", err)
	}
	entries, err := st.LoadEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached entries: %w", err)
	}
	q, err := st.LoadQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending queue: %w", err)
	}

	s := &SyncService{
		client:     client,
		store:      st,
		challenges: challenges,
		entries:    entries,
		q:          q,
		state:      syncstate.Idle(q.Len()),
		now:        time.Now,
	}
	queueLength.Set(float64(q.Len()))
	return s, nil
}

// State returns the current UI-facing sync projection.
func (s *SyncService) State() syncstate.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Challenges returns the visible cached challenges. Records deleted
// optimistically but not yet acknowledged are hidden.
func (s *SyncService) Challenges() []challenge.Challenge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]challenge.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		if c.State != syncstate.RecordPendingDelete {
			out = append(out, c)
		}
	}
	return out
}

// Entries returns the visible cached entries. Entries whose challenge
// is pending deletion are hidden along with it.
func (s *SyncService) Entries() []entry.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hidden := make(map[string]bool)
	for _, c := range s.challenges {
		if c.State == syncstate.RecordPendingDelete {
			hidden[c.ID] = true
		}
	}
	out := make([]entry.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.State != syncstate.RecordPendingDelete && !hidden[e.ChallengeID] {
			out = append(out, e)
		}
	}
	return out
}

// ChallengeStats recomputes the derived stats for one challenge.
func (s *SyncService) ChallengeStats(id string) (stats.ChallengeStats, error) {
	var target *challenge.Challenge
	for _, c := range s.Challenges() {
		if c.ID == id {
			c := c
			target = &c
			break
		}
	}
	if target == nil {
		return stats.ChallengeStats{}, validation.Errorf("challengeId", "unknown challenge %q", id)
	}
	own := make([]entry.Entry, 0)
	for _, e := range s.Entries() {
		if e.ChallengeID == id {
			own = append(own, e)
		}
	}
	return stats.Calculate(*target, own, s.now().UTC()), nil
}

// DashboardStats recomputes the aggregate dashboard.
func (s *SyncService) DashboardStats() stats.DashboardStats {
	return stats.CalculateDashboard(s.Challenges(), s.Entries(), s.now().UTC())
}

// Refresh pulls challenges and entries from the backend and merges them
// over the local cache. On failure the cache is left untouched, the
// error is retained for display, and pending work stays visible.
func (s *SyncService) Refresh(ctx context.Context, activeOnly bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.refreshLocked(ctx, activeOnly)
}

func (s *SyncService) refreshLocked(ctx context.Context, activeOnly bool) error {
	s.setState(syncstate.State{Status: syncstate.StatusSyncing, QueuedCount: s.queueLen()})

	serverChallenges, err := s.client.ListChallenges(ctx, activeOnly)
	if err != nil {
		return s.failRefresh(err)
	}
	serverEntries, err := s.client.ListEntries(ctx, "", "")
	if err != nil {
		return s.failRefresh(err)
	}

	s.mu.Lock()
	s.challenges = mergeChallenges(s.challenges, serverChallenges)
	s.entries = mergeEntries(s.entries, serverEntries)
	challenges, entries := s.challenges, s.entries
	s.mu.Unlock()

	if err := s.store.SaveChallenges(ctx, challenges); err != nil {
		return s.fail(err)
	}
	if err := s.store.SaveEntries(ctx, entries); err != nil {
		return s.fail(err)
	}

	refreshesTotal.WithLabelValues("ok").Inc()
	s.setState(syncstate.Synced(s.queueLen()))
	return nil
}

func (s *SyncService) failRefresh(err error) error {
	refreshesTotal.WithLabelValues("error").Inc()
	if api.IsAuthError(err) {
		return s.fail(err)
	}
	st := syncstate.Idle(s.queueLen())
	st.LastError = err.Error()
	s.setState(st)
	return err
}

func (s *SyncService) fail(err error) error {
	s.setState(syncstate.State{
		Status:      syncstate.StatusFailed,
		QueuedCount: s.queueLen(),
		LastError:   err.Error(),
	})
	return err
}

// CreateChallenge validates the request, then either creates the
// challenge remotely or queues the write and inserts an optimistic
// placeholder with a locally generated identifier.
func (s *SyncService) CreateChallenge(ctx context.Context, req *challenge.CreateRequest) (challenge.Challenge, error) {
	if err := req.Validate(); err != nil {
		return challenge.Challenge{}, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	created, err := s.client.CreateChallenge(ctx, req)
	if err == nil {
		c := *created
		c.State = syncstate.RecordConfirmed
		s.upsertChallenge(c)
		if err := s.persistChallenges(ctx); err != nil {
			return c, err
		}
		s.setState(syncstate.Synced(s.queueLen()))
		return c, nil
	}
	if api.IsAuthError(err) {
		return challenge.Challenge{}, s.fail(err)
	}
	if !api.Retryable(err) {
		return challenge.Challenge{}, err
	}

	// Offline path: pin the window now so a replay after a month or
	// year boundary keeps the window the user saw.
	now := s.now().UTC()
	queued := *req
	queued.StartDate, queued.EndDate = challenge.ResolveWindow(req.TimeframeType, req.StartDate, req.EndDate, now)

	c := challenge.Challenge{
		ID:            uuid.New().String(),
		Name:          queued.Name,
		Target:        queued.Target,
		TimeframeType: queued.TimeframeType,
		StartDate:     queued.StartDate,
		EndDate:       queued.EndDate,
		Color:         queued.Color,
		Icon:          queued.Icon,
		IsPublic:      queued.IsPublic,
		CreatedAt:     now,
		UpdatedAt:     now,
		State:         syncstate.RecordPendingCreate,
	}
	w := queue.NewWrite(queue.KindCreateChallenge)
	w.Challenge = &queued
	w.LocalID = c.ID

	s.upsertChallenge(c)
	s.appendWrite(w)
	if err := s.persistChallenges(ctx); err != nil {
		return c, err
	}
	if err := s.persistQueue(ctx); err != nil {
		return c, err
	}
	s.setState(syncstate.Idle(s.queueLen()))
	return c, nil
}

// CreateEntry validates the request against the device clock and the
// cached challenge list, then creates remotely or queues with an
// optimistic placeholder. The locally visible totals include the
// placeholder immediately.
func (s *SyncService) CreateEntry(ctx context.Context, req *entry.CreateRequest) (entry.Entry, error) {
	if err := req.Validate(s.now().UTC()); err != nil {
		return entry.Entry{}, err
	}
	if !s.hasChallenge(req.ChallengeID) {
		return entry.Entry{}, validation.Errorf("challengeId", "unknown challenge %q", req.ChallengeID)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	created, err := s.client.CreateEntry(ctx, req)
	if err == nil {
		e := *created
		e.State = syncstate.RecordConfirmed
		s.upsertEntry(e)
		if err := s.persistEntries(ctx); err != nil {
			return e, err
		}
		s.setState(syncstate.Synced(s.queueLen()))
		return e, nil
	}
	if api.IsAuthError(err) {
		return entry.Entry{}, s.fail(err)
	}
	if !api.Retryable(err) {
		return entry.Entry{}, err
	}

	now := s.now().UTC()
	e := entry.Entry{
		ID:          uuid.New().String(),
		ChallengeID: req.ChallengeID,
		Date:        req.Date,
		Count:       req.Count,
		Note:        req.Note,
		Feeling:     req.Feeling,
		Sets:        req.Sets,
		CreatedAt:   now,
		UpdatedAt:   now,
		State:       syncstate.RecordPendingCreate,
	}
	w := queue.NewWrite(queue.KindCreateEntry)
	reqCopy := *req
	w.Entry = &reqCopy
	w.LocalID = e.ID

	s.upsertEntry(e)
	s.appendWrite(w)
	if err := s.persistEntries(ctx); err != nil {
		return e, err
	}
	if err := s.persistQueue(ctx); err != nil {
		return e, err
	}
	s.setState(syncstate.Idle(s.queueLen()))
	return e, nil
}

// UpdateChallenge applies a partial update directly. Updates are never
// queued: a stale rename or target change replayed days later would
// silently overwrite edits made elsewhere, so the backend has to be
// reachable.
func (s *SyncService) UpdateChallenge(ctx context.Context, id string, req *challenge.UpdateRequest) (challenge.Challenge, error) {
	if err := req.Validate(); err != nil {
		return challenge.Challenge{}, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	updated, err := s.client.UpdateChallenge(ctx, id, req)
	if err != nil {
		if api.IsAuthError(err) {
			return challenge.Challenge{}, s.fail(err)
		}
		return challenge.Challenge{}, err
	}
	c := *updated
	c.State = syncstate.RecordConfirmed
	s.upsertChallenge(c)
	if err := s.persistChallenges(ctx); err != nil {
		return c, err
	}
	s.setState(syncstate.Synced(s.queueLen()))
	return c, nil
}

// DeleteEntry removes one entry. An entry that never reached the server
// is cancelled locally together with its queued create; a confirmed
// entry is deleted remotely.
func (s *SyncService) DeleteEntry(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	var target *entry.Entry
	for i := range s.entries {
		if s.entries[i].ID == id {
			target = &s.entries[i]
			break
		}
	}
	s.mu.RUnlock()
	if target == nil {
		return validation.Errorf("entryId", "unknown entry %q", id)
	}

	if target.State == syncstate.RecordPendingCreate {
		s.mu.Lock()
		entries := make([]entry.Entry, 0, len(s.entries))
		for _, e := range s.entries {
			if e.ID != id {
				entries = append(entries, e)
			}
		}
		s.entries = entries
		q := make(queue.Queue, 0, len(s.q))
		for _, w := range s.q {
			if w.Kind == queue.KindCreateEntry && w.LocalID == id {
				continue
			}
			q = append(q, w)
		}
		s.q = q
		queueLength.Set(float64(len(q)))
		s.mu.Unlock()
		if err := s.persistAll(ctx); err != nil {
			return err
		}
		s.setState(syncstate.Idle(s.queueLen()))
		return nil
	}

	err := s.client.DeleteEntry(ctx, id)
	if err != nil && !api.IsNotFound(err) {
		if api.IsAuthError(err) {
			return s.fail(err)
		}
		return err
	}
	s.mu.Lock()
	entries := make([]entry.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ID != id {
			entries = append(entries, e)
		}
	}
	s.entries = entries
	s.mu.Unlock()
	if err := s.persistEntries(ctx); err != nil {
		return err
	}
	s.setState(syncstate.Synced(s.queueLen()))
	return nil
}

// DeleteChallenge removes a challenge and its entries. A challenge that
// never reached the server is cancelled locally, together with any
// queued writes that reference it; anything else is deleted remotely or
// marked pending-delete and queued.
func (s *SyncService) DeleteChallenge(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	var target *challenge.Challenge
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			target = &s.challenges[i]
			break
		}
	}
	s.mu.RUnlock()
	if target == nil {
		return validation.Errorf("challengeId", "unknown challenge %q", id)
	}

	if target.State == syncstate.RecordPendingCreate {
		s.cancelLocalChallenge(id)
		if err := s.persistAll(ctx); err != nil {
			return err
		}
		s.setState(syncstate.Idle(s.queueLen()))
		return nil
	}

	err := s.client.DeleteChallenge(ctx, id)
	if err == nil || api.IsNotFound(err) {
		s.dropChallenge(id)
		if err := s.persistAll(ctx); err != nil {
			return err
		}
		s.setState(syncstate.Synced(s.queueLen()))
		return nil
	}
	if api.IsAuthError(err) {
		return s.fail(err)
	}
	if !api.Retryable(err) {
		return err
	}

	s.markChallengePendingDelete(id)
	w := queue.NewWrite(queue.KindDeleteChallenge)
	w.ChallengeID = id
	s.appendWrite(w)
	if err := s.persistAll(ctx); err != nil {
		return err
	}
	s.setState(syncstate.Idle(s.queueLen()))
	return nil
}

// Follow follows a public challenge, queueing the intent when the
// backend is unreachable.
func (s *SyncService) Follow(ctx context.Context, challengeID string) error {
	if challengeID == "" {
		return validation.Errorf("challengeId", "must not be empty")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	_, err := s.client.Follow(ctx, challengeID)
	if err == nil {
		s.setState(syncstate.Synced(s.queueLen()))
		return nil
	}
	if api.IsAuthError(err) {
		return s.fail(err)
	}
	if !api.Retryable(err) {
		return err
	}

	w := queue.NewWrite(queue.KindFollow)
	w.ChallengeID = challengeID
	s.appendWrite(w)
	if err := s.persistQueue(ctx); err != nil {
		return err
	}
	s.setState(syncstate.Idle(s.queueLen()))
	return nil
}

// Unfollow removes a follow record. The challenge id rides along so the
// queued write stays replayable on its own.
func (s *SyncService) Unfollow(ctx context.Context, followID, challengeID string) error {
	if followID == "" {
		return validation.Errorf("followId", "must not be empty")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.client.Unfollow(ctx, followID)
	if err == nil || api.IsNotFound(err) {
		s.setState(syncstate.Synced(s.queueLen()))
		return nil
	}
	if api.IsAuthError(err) {
		return s.fail(err)
	}
	if !api.Retryable(err) {
		return err
	}

	w := queue.NewWrite(queue.KindUnfollow)
	w.FollowID = followID
	w.ChallengeID = challengeID
	s.appendWrite(w)
	if err := s.persistQueue(ctx); err != nil {
		return err
	}
	s.setState(syncstate.Idle(s.queueLen()))
	return nil
}

// SyncQueuedWrites drains the pending queue in order, then performs an
// unconditional refresh to reconcile authoritative state and pick up
// server-assigned identifiers. Called by the reachability collaborator
// when connectivity returns.
func (s *SyncService) SyncQueuedWrites(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.queueLen() == 0 {
		s.setState(syncstate.State{Status: syncstate.StatusUpToDate})
		return nil
	}

	s.setState(syncstate.State{Status: syncstate.StatusSyncing, QueuedCount: s.queueLen()})

	s.idRemap = make(map[string]string)
	s.mu.RLock()
	pending := s.q
	s.mu.RUnlock()

	remaining, synced, drainErr := pending.Drain(func(w queue.Write) error {
		return s.applyWrite(ctx, w)
	})
	s.idRemap = nil

	s.mu.Lock()
	s.q = remaining
	s.mu.Unlock()
	syncedWritesTotal.Add(float64(synced))
	drainFailuresTotal.Add(float64(remaining.Len()))
	if err := s.persistAll(ctx); err != nil {
		return s.fail(err)
	}

	refreshErr := s.refreshLocked(ctx, false)
	if drainErr != nil {
		return s.fail(drainErr)
	}
	if refreshErr != nil {
		return s.fail(refreshErr)
	}
	return nil
}

// ClearLocalData wipes the cache and queue (logout path).
func (s *SyncService) ClearLocalData(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.challenges = []challenge.Challenge{}
	s.entries = []entry.Entry{}
	s.q = queue.Queue{}
	s.mu.Unlock()
	s.setState(syncstate.Idle(0))
	return nil
}

// LocalDataset exposes the cached collections for migration.
func (s *SyncService) LocalDataset() ([]challenge.Challenge, []entry.Entry) {
	return s.Challenges(), s.Entries()
}

// ListPublicChallenges is a passthrough to the discovery feed.
func (s *SyncService) ListPublicChallenges(ctx context.Context) ([]followed.PublicChallenge, error) {
	return s.client.ListPublicChallenges(ctx)
}

// ListFollowed is a passthrough to the follow list.
func (s *SyncService) ListFollowed(ctx context.Context) ([]followed.Followed, error) {
	return s.client.ListFollowed(ctx)
}

// applyWrite replays one queued write against the backend. It returns
// nil only when the write is acknowledged (or provably already
// applied), which is what allows drain to remove it.
func (s *SyncService) applyWrite(ctx context.Context, w queue.Write) error {
	switch w.Kind {
	case queue.KindCreateChallenge:
		created, err := s.client.CreateChallenge(ctx, w.Challenge)
		if err != nil {
			return err
		}
		s.confirmChallenge(w.LocalID, created)
		return nil

	case queue.KindCreateEntry:
		req := *w.Entry
		if serverID, ok := s.idRemap[req.ChallengeID]; ok {
			req.ChallengeID = serverID
		}
		created, err := s.client.CreateEntry(ctx, &req)
		if err != nil {
			return err
		}
		s.confirmEntry(w.LocalID, created)
		return nil

	case queue.KindDeleteChallenge:
		err := s.client.DeleteChallenge(ctx, w.ChallengeID)
		if err != nil && !api.IsNotFound(err) {
			return err
		}
		s.dropChallenge(w.ChallengeID)
		return nil

	case queue.KindFollow:
		_, err := s.client.Follow(ctx, w.ChallengeID)
		if err != nil && !api.IsConflict(err) {
			return err
		}
		return nil

	case queue.KindUnfollow:
		err := s.client.Unfollow(ctx, w.FollowID)
		if err != nil && !api.IsNotFound(err) {
			return err
		}
		return nil

	default:
		// Unknown kinds come from a newer build's queue; leave them.
		return fmt.Errorf("unknown queued write kind %q", w.Kind)
	}
}

// confirmChallenge swaps an optimistic placeholder for the
// server-confirmed record and rewires every cached entry that pointed
// at the placeholder identifier.
func (s *SyncService) confirmChallenge(localID string, server *challenge.Challenge) {
	c := *server
	c.State = syncstate.RecordConfirmed

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]challenge.Challenge, 0, len(s.challenges))
	for _, existing := range s.challenges {
		if existing.ID != localID && existing.ID != c.ID {
			out = append(out, existing)
		}
	}
	s.challenges = append(out, c)
	for i := range s.entries {
		if s.entries[i].ChallengeID == localID {
			s.entries[i].ChallengeID = c.ID
		}
	}
	if s.idRemap != nil {
		s.idRemap[localID] = c.ID
	}
}

func (s *SyncService) confirmEntry(localID string, server *entry.Entry) {
	e := *server
	e.State = syncstate.RecordConfirmed

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entry.Entry, 0, len(s.entries))
	for _, existing := range s.entries {
		if existing.ID != localID && existing.ID != e.ID {
			out = append(out, existing)
		}
	}
	s.entries = append(out, e)
}

// cancelLocalChallenge erases a never-synced challenge: the record, its
// entries, and every queued write that would have created them.
func (s *SyncService) cancelLocalChallenge(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenges := make([]challenge.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		if c.ID != id {
			challenges = append(challenges, c)
		}
	}
	s.challenges = challenges

	entries := make([]entry.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ChallengeID != id {
			entries = append(entries, e)
		}
	}
	s.entries = entries

	q := make(queue.Queue, 0, len(s.q))
	for _, w := range s.q {
		if w.LocalID == id {
			continue
		}
		if w.Kind == queue.KindCreateEntry && w.Entry != nil && w.Entry.ChallengeID == id {
			continue
		}
		q = append(q, w)
	}
	s.q = q
	queueLength.Set(float64(len(q)))
}

func (s *SyncService) dropChallenge(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenges := make([]challenge.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		if c.ID != id {
			challenges = append(challenges, c)
		}
	}
	s.challenges = challenges

	entries := make([]entry.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ChallengeID != id {
			entries = append(entries, e)
		}
	}
	s.entries = entries
}

func (s *SyncService) markChallengePendingDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			s.challenges[i].State = syncstate.RecordPendingDelete
			return
		}
	}
}

func (s *SyncService) hasChallenge(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.challenges {
		if c.ID == id && c.State != syncstate.RecordPendingDelete {
			return true
		}
	}
	return false
}

func (s *SyncService) upsertChallenge(c challenge.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.challenges {
		if s.challenges[i].ID == c.ID {
			s.challenges[i] = c
			return
		}
	}
	s.challenges = append(s.challenges, c)
}

func (s *SyncService) upsertEntry(e entry.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == e.ID {
			s.entries[i] = e
			return
		}
	}
	s.entries = append(s.entries, e)
}

func (s *SyncService) appendWrite(w queue.Write) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q = s.q.Enqueue(w)
	queueLength.Set(float64(len(s.q)))
}

func (s *SyncService) queueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.q)
}

func (s *SyncService) persistChallenges(ctx context.Context) error {
	s.mu.RLock()
	challenges := s.challenges
	s.mu.RUnlock()
	return s.store.SaveChallenges(ctx, challenges)
}

func (s *SyncService) persistEntries(ctx context.Context) error {
	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()
	return s.store.SaveEntries(ctx, entries)
}

func (s *SyncService) persistQueue(ctx context.Context) error {
	s.mu.RLock()
	q := s.q
	s.mu.RUnlock()
	queueLength.Set(float64(q.Len()))
	return s.store.SaveQueue(ctx, q)
}

func (s *SyncService) persistAll(ctx context.Context) error {
	if err := s.persistChallenges(ctx); err != nil {
		return err
	}
	if err := s.persistEntries(ctx); err != nil {
		return err
	}
	return s.persistQueue(ctx)
}

func (s *SyncService) setState(st syncstate.State) {
	s.mu.Lock()
	s.state = st
	notify := s.OnStateChange
	s.mu.Unlock()
	if notify != nil {
		notify(st)
	}
}

// mergeChallenges is the deterministic union of the cached and server
// collections: server wins on conflicting fields, local wins only for
// records still pending acknowledgment. Confirmed local records absent
// from the server were deleted elsewhere and drop out.
func mergeChallenges(local, server []challenge.Challenge) []challenge.Challenge {
	localByID := make(map[string]challenge.Challenge, len(local))
	for _, c := range local {
		localByID[c.ID] = c
	}
	seen := make(map[string]bool, len(server))
	out := make([]challenge.Challenge, 0, len(server)+4)
	for _, sc := range server {
		seen[sc.ID] = true
		if lc, ok := localByID[sc.ID]; ok && lc.State == syncstate.RecordPendingDelete {
			// Delete not yet acknowledged; keep hiding the record.
			out = append(out, lc)
			continue
		}
		sc.State = syncstate.RecordConfirmed
		out = append(out, sc)
	}
	for _, lc := range local {
		if !seen[lc.ID] && lc.State == syncstate.RecordPendingCreate {
			out = append(out, lc)
		}
	}
	return out
}

func mergeEntries(local, server []entry.Entry) []entry.Entry {
	localByID := make(map[string]entry.Entry, len(local))
	for _, e := range local {
		localByID[e.ID] = e
	}
	seen := make(map[string]bool, len(server))
	out := make([]entry.Entry, 0, len(server)+4)
	for _, se := range server {
		seen[se.ID] = true
		if le, ok := localByID[se.ID]; ok && le.State == syncstate.RecordPendingDelete {
			out = append(out, le)
			continue
		}
		se.State = syncstate.RecordConfirmed
		out = append(out, se)
	}
	for _, le := range local {
		if !seen[le.ID] && le.State == syncstate.RecordPendingCreate {
			out = append(out, le)
		}
	}
	return out
}
