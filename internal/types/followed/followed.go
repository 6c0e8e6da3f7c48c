package followed

import (
	"time"

	"tallysync/internal/types/challenge"
)

// Followed joins a follower to a public challenge. At most one record
// exists per (user, challenge) pair; the server enforces that a
// non-public challenge can only be followed by its owner.
type Followed struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ChallengeID string    `json:"challengeId"`
	FollowedAt  time.Time `json:"followedAt"`
}

// PublicChallenge is a challenge as seen on the public discovery feed.
type PublicChallenge struct {
	challenge.Challenge
	OwnerUsername string `json:"ownerUsername,omitempty"`
	FollowerCount int    `json:"followerCount"`
}

type FollowRequest struct {
	ChallengeID string `json:"challengeId"`
}
