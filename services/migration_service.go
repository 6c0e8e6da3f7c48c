package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"tallysync/internal/api"
	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
)

// Strategy is the caller's choice when the cloud account already holds
// data: replace it wholesale, or back off and let the merge dialog
// decide.
type Strategy string

const (
	StrategyReplace Strategy = "replace"
	StrategySkip    Strategy = "skip"
)

type MigrationResult struct {
	Success            bool              `json:"success"`
	ChallengesImported int               `json:"challengesImported"`
	EntriesImported    int               `json:"entriesImported"`
	EntriesSkipped     int               `json:"entriesSkipped"`
	IDMapping          map[string]string `json:"idMapping"`
}

// MigrationCheck describes what exists locally and in the cloud, so the
// surrounding app can decide whether to prompt before migrating.
type MigrationCheck struct {
	HasLocalData        bool `json:"hasLocalData"`
	LocalChallengeCount int  `json:"localChallengeCount"`
	LocalEntryCount     int  `json:"localEntryCount"`
	HasCloudData        bool `json:"hasCloudData"`
	CloudChallengeCount int  `json:"cloudChallengeCount"`
}

// MigrationService performs the one-shot import of a local-only,
// UUID-keyed dataset into an authenticated cloud account, remapping
// every cross-reference to server-issued identifiers. The mapping runs
// on this side of the wire so the caller gets the full UUID -> serverId
// table back and can reconcile anything else that held the old ids.
type MigrationService struct {
	client *api.Client

	// One migration at a time per instance.
	mu sync.Mutex
}

func NewMigrationService(client *api.Client) *MigrationService {
	return &MigrationService{client: client}
}

// Check counts local and cloud records ahead of a migration prompt.
func (s *MigrationService) Check(ctx context.Context, localChallenges []challenge.Challenge, localEntries []entry.Entry) (*MigrationCheck, error) {
	existing, err := s.client.ListChallenges(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect cloud data: %w", err)
	}
	return &MigrationCheck{
		HasLocalData:        len(localChallenges) > 0 || len(localEntries) > 0,
		LocalChallengeCount: len(localChallenges),
		LocalEntryCount:     len(localEntries),
		HasCloudData:        len(existing) > 0,
		CloudChallengeCount: len(existing),
	}, nil
}

// Migrate imports the local dataset. With StrategySkip and a non-empty
// cloud account it fails fast without mutating anything. With
// StrategyReplace the account's challenges, entries and follow records
// are removed first; this is full replacement, not a record-level
// merge. Entries whose challenge was not part of the import are skipped
// and counted, never partially written, so the resulting cloud dataset
// cannot contain a dangling challenge reference.
func (s *MigrationService) Migrate(ctx context.Context, localChallenges []challenge.Challenge, localEntries []entry.Entry, strategy Strategy) (*MigrationResult, error) {
	switch strategy {
	case StrategyReplace, StrategySkip:
	default:
		return nil, fmt.Errorf("unknown migration strategy %q", strategy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.client.ListChallenges(ctx, false)
	if err != nil {
		migrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to inspect cloud data: %w", err)
	}
	if len(existing) > 0 {
		if strategy == StrategySkip {
			migrationsTotal.WithLabelValues("skipped").Inc()
			return &MigrationResult{Success: false, IDMapping: map[string]string{}}, nil
		}
		if err := s.clearCloudData(ctx, existing); err != nil {
			migrationsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	result := &MigrationResult{IDMapping: make(map[string]string, len(localChallenges)+len(localEntries))}

	for _, lc := range localChallenges {
		req := &challenge.CreateRequest{
			Name:          lc.Name,
			Target:        lc.Target,
			TimeframeType: lc.TimeframeType,
			StartDate:     lc.StartDate,
			EndDate:       lc.EndDate,
			Color:         lc.Color,
			Icon:          lc.Icon,
			IsPublic:      lc.IsPublic,
		}
		created, err := s.client.CreateChallenge(ctx, req)
		if err != nil {
			migrationsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to import challenge %q: %w", lc.Name, err)
		}
		result.IDMapping[lc.ID] = created.ID
		result.ChallengesImported++
	}

	for _, le := range localEntries {
		serverID, ok := result.IDMapping[le.ChallengeID]
		if !ok {
			// Orphaned reference: the challenge was not part of this
			// import. Counted, not fatal.
			log.Printf("Skipping entry %s: challenge %s not in import", le.ID, le.ChallengeID)
			result.EntriesSkipped++
			continue
		}
		req := &entry.CreateRequest{
			ChallengeID: serverID,
			Date:        le.Date,
			Count:       le.Count,
			Note:        le.Note,
			Feeling:     le.Feeling,
			Sets:        le.Sets,
		}
		created, err := s.client.CreateEntry(ctx, req)
		if err != nil {
			migrationsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to import entry for %s: %w", le.Date, err)
		}
		result.IDMapping[le.ID] = created.ID
		result.EntriesImported++
	}

	result.Success = true
	migrationsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// Export fetches the full remote dataset snapshot for backup/download.
func (s *MigrationService) Export(ctx context.Context) (*api.ExportSnapshot, error) {
	return s.client.Export(ctx)
}

func (s *MigrationService) clearCloudData(ctx context.Context, existing []challenge.Challenge) error {
	follows, err := s.client.ListFollowed(ctx)
	if err != nil {
		return fmt.Errorf("failed to list follow records: %w", err)
	}
	for _, f := range follows {
		if err := s.client.Unfollow(ctx, f.ID); err != nil && !api.IsNotFound(err) {
			return fmt.Errorf("failed to remove follow record %s: %w", f.ID, err)
		}
	}
	// Deleting a challenge cascades to its entries server-side.
	for _, c := range existing {
		if err := s.client.DeleteChallenge(ctx, c.ID); err != nil && !api.IsNotFound(err) {
			return fmt.Errorf("failed to remove cloud challenge %s: %w", c.ID, err)
		}
	}
	return nil
}
