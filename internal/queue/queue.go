// Package queue implements the ordered list of not-yet-acknowledged
// mutations recorded while the backend is unreachable. The queue is
// owned and persisted by the sync coordinator; a write leaves the queue
// only once the remote API acknowledges it.
package queue

import (
	"time"

	"github.com/google/uuid"

	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
)

type Kind string

const (
	KindCreateChallenge Kind = "createChallenge"
	KindCreateEntry     Kind = "createEntry"
	KindDeleteChallenge Kind = "deleteChallenge"
	KindFollow          Kind = "follow"
	KindUnfollow        Kind = "unfollow"
)

// Write is a tagged variant over the replayable mutations. Exactly one
// payload field matching Kind is set, and it carries everything needed
// to replay the call verbatim against the remote API.
type Write struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	Challenge   *challenge.CreateRequest `json:"challenge,omitempty"`
	Entry       *entry.CreateRequest     `json:"entry,omitempty"`
	ChallengeID string                   `json:"challengeId,omitempty"`
	FollowID    string                   `json:"followId,omitempty"`

	// LocalID is the optimistic placeholder record this write will
	// confirm, for createChallenge and createEntry kinds.
	LocalID string `json:"localId,omitempty"`

	QueuedAt time.Time `json:"queuedAt"`
	Attempts int       `json:"attempts"`
}

func NewWrite(kind Kind) Write {
	return Write{ID: uuid.New().String(), Kind: kind, QueuedAt: time.Now().UTC()}
}

// Queue is a FIFO list of pending writes.
type Queue []Write

func (q Queue) Enqueue(w Write) Queue {
	return append(q, w)
}

func (q Queue) Len() int {
	return len(q)
}

// Drain attempts every queued write in original order. Writes that
// succeed are removed; writes that fail stay, in their original
// relative order, with their attempt counter bumped. One failure never
// stops later independent writes from being attempted in the same
// pass, so a failed challenge creation cannot block an unrelated
// queued entry. Draining an empty queue is a no-op, which makes
// repeated drains idempotent: an acknowledged write is gone and can
// never be replayed.
func (q Queue) Drain(apply func(Write) error) (remaining Queue, synced int, firstErr error) {
	remaining = make(Queue, 0, len(q))
	for _, w := range q {
		if err := apply(w); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			w.Attempts++
			remaining = append(remaining, w)
			continue
		}
		synced++
	}
	return remaining, synced, firstErr
}

// Remove returns the queue without the write carrying the given id.
func (q Queue) Remove(id string) Queue {
	out := make(Queue, 0, len(q))
	for _, w := range q {
		if w.ID != id {
			out = append(out, w)
		}
	}
	return out
}
