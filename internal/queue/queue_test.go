package queue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallysync/internal/types/challenge"
)

func newCreateWrite(name string) Write {
	w := NewWrite(KindCreateChallenge)
	w.Challenge = &challenge.CreateRequest{Name: name, Target: 100, TimeframeType: challenge.TimeframeYear}
	return w
}

func TestEnqueuePreservesOrder(t *testing.T) {
	var q Queue
	q = q.Enqueue(newCreateWrite("first"))
	q = q.Enqueue(newCreateWrite("second"))
	q = q.Enqueue(newCreateWrite("third"))

	require.Equal(t, 3, q.Len())
	assert.Equal(t, "first", q[0].Challenge.Name)
	assert.Equal(t, "second", q[1].Challenge.Name)
	assert.Equal(t, "third", q[2].Challenge.Name)
}

func TestNewWriteAssignsIdentity(t *testing.T) {
	a := NewWrite(KindCreateEntry)
	b := NewWrite(KindCreateEntry)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.QueuedAt.IsZero())
}

func TestDrainAllSucceed(t *testing.T) {
	var q Queue
	q = q.Enqueue(newCreateWrite("a"))
	q = q.Enqueue(newCreateWrite("b"))

	var applied []string
	remaining, synced, firstErr := q.Drain(func(w Write) error {
		applied = append(applied, w.Challenge.Name)
		return nil
	})

	require.NoError(t, firstErr)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 0, remaining.Len())
	assert.Equal(t, []string{"a", "b"}, applied)
}

func TestDrainPartialFailureIsolated(t *testing.T) {
	var q Queue
	q = q.Enqueue(newCreateWrite("a"))
	q = q.Enqueue(newCreateWrite("b"))
	q = q.Enqueue(newCreateWrite("c"))

	boom := errors.New("server exploded")
	var applied []string
	remaining, synced, firstErr := q.Drain(func(w Write) error {
		applied = append(applied, w.Challenge.Name)
		if w.Challenge.Name == "b" {
			return boom
		}
		return nil
	})

	// One failure must not block the writes behind it.
	assert.Equal(t, []string{"a", "b", "c"}, applied)
	assert.Equal(t, 2, synced)
	require.Equal(t, 1, remaining.Len())
	assert.Equal(t, "b", remaining[0].Challenge.Name)
	assert.Equal(t, 1, remaining[0].Attempts)
	assert.ErrorIs(t, firstErr, boom)
}

func TestDrainSecondPassRetriesOnlyFailures(t *testing.T) {
	var q Queue
	q = q.Enqueue(newCreateWrite("a"))
	q = q.Enqueue(newCreateWrite("b"))

	remaining, _, _ := q.Drain(func(w Write) error {
		if w.Challenge.Name == "a" {
			return errors.New("transient")
		}
		return nil
	})
	require.Equal(t, 1, remaining.Len())

	// Retry succeeds; the already-synced write is not re-applied.
	var applied []string
	remaining, synced, firstErr := remaining.Drain(func(w Write) error {
		applied = append(applied, w.Challenge.Name)
		return nil
	})

	require.NoError(t, firstErr)
	assert.Equal(t, 1, synced)
	assert.Equal(t, 0, remaining.Len())
	assert.Equal(t, []string{"a"}, applied)
}

func TestDrainEmptyQueue(t *testing.T) {
	var q Queue
	remaining, synced, firstErr := q.Drain(func(w Write) error {
		t.Fatal("apply should not be called")
		return nil
	})

	require.NoError(t, firstErr)
	assert.Equal(t, 0, synced)
	assert.Equal(t, 0, remaining.Len())
}

func TestRemove(t *testing.T) {
	var q Queue
	w1 := newCreateWrite("a")
	w2 := newCreateWrite("b")
	q = q.Enqueue(w1)
	q = q.Enqueue(w2)

	q = q.Remove(w1.ID)

	require.Equal(t, 1, q.Len())
	assert.Equal(t, w2.ID, q[0].ID)

	// Removing an unknown id is a no-op.
	q = q.Remove("nope")
	assert.Equal(t, 1, q.Len())
}
