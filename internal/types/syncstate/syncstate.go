package syncstate

// Status is the UI-facing projection of the coordinator's sync position.
type Status string

const (
	StatusOffline  Status = "offline"
	StatusQueued   Status = "queued"
	StatusSyncing  Status = "syncing"
	StatusUpToDate Status = "upToDate"
	StatusFailed   Status = "failed"
)

// State is derived from queue length and the last operation outcome.
// It is never persisted as source of truth.
type State struct {
	Status      Status `json:"status"`
	QueuedCount int    `json:"queuedCount,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// Idle returns the resting state for a queue of n pending writes.
func Idle(n int) State {
	if n > 0 {
		return State{Status: StatusQueued, QueuedCount: n}
	}
	return State{Status: StatusOffline}
}

// Synced returns the resting state after a successful refresh.
func Synced(n int) State {
	if n > 0 {
		return State{Status: StatusQueued, QueuedCount: n}
	}
	return State{Status: StatusUpToDate}
}

// RecordState tags a cached record's position in the optimistic
// lifecycle: created locally but unacknowledged, deleted locally but
// unacknowledged, or confirmed by the server.
type RecordState string

const (
	RecordConfirmed     RecordState = "confirmed"
	RecordPendingCreate RecordState = "pendingCreate"
	RecordPendingDelete RecordState = "pendingDelete"
)
