package entry

import (
	"time"

	"tallysync/internal/types/challenge"
	"tallysync/internal/types/syncstate"
	"tallysync/internal/validation"
)

// Feeling is the perceived-effort classification attached to an entry.
type Feeling string

const (
	FeelingVeryEasy Feeling = "very-easy"
	FeelingEasy     Feeling = "easy"
	FeelingModerate Feeling = "moderate"
	FeelingHard     Feeling = "hard"
	FeelingVeryHard Feeling = "very-hard"
)

// Set is one block of reps inside an entry.
type Set struct {
	Reps int `json:"reps"`
}

type Entry struct {
	ID          string                `json:"id"`
	UserID      string                `json:"userId"`
	ChallengeID string                `json:"challengeId"`
	Date        string                `json:"date"`
	Count       int                   `json:"count"`
	Note        string                `json:"note,omitempty"`
	Feeling     Feeling               `json:"feeling,omitempty"`
	Sets        []Set                 `json:"sets,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	State       syncstate.RecordState `json:"state,omitempty"`
}

// Pending reports whether the record still awaits server acknowledgment.
func (e Entry) Pending() bool {
	return e.State == syncstate.RecordPendingCreate || e.State == syncstate.RecordPendingDelete
}

type CreateRequest struct {
	ChallengeID string  `json:"challengeId"`
	Date        string  `json:"date"`
	Count       int     `json:"count"`
	Note        string  `json:"note,omitempty"`
	Feeling     Feeling `json:"feeling,omitempty"`
	Sets        []Set   `json:"sets,omitempty"`
}

// Validate rejects malformed entries before they touch the queue or the
// network. today is the device's current calendar day; entries may not
// be dated after it.
func (r *CreateRequest) Validate(today time.Time) error {
	if r.ChallengeID == "" {
		return validation.Errorf("challengeId", "must not be empty")
	}
	if r.Count <= 0 {
		return validation.Errorf("count", "must be positive, got %d", r.Count)
	}
	day, err := time.Parse(challenge.DateLayout, r.Date)
	if err != nil {
		return validation.Errorf("date", "expected %s, got %q", challenge.DateLayout, r.Date)
	}
	cutoff := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if day.After(cutoff) {
		return validation.Errorf("date", "%s is in the future", r.Date)
	}
	switch r.Feeling {
	case "", FeelingVeryEasy, FeelingEasy, FeelingModerate, FeelingHard, FeelingVeryHard:
	default:
		return validation.Errorf("feeling", "unknown feeling %q", r.Feeling)
	}
	if len(r.Sets) > 0 {
		sum := 0
		for i, set := range r.Sets {
			if set.Reps <= 0 {
				return validation.Errorf("sets", "set %d must have positive reps", i)
			}
			sum += set.Reps
		}
		if sum != r.Count {
			return validation.Errorf("sets", "reps sum %d does not match count %d", sum, r.Count)
		}
	}
	return nil
}
