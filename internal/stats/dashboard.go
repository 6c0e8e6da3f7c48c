package stats

import (
	"time"

	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
)

// DayRecord is a dated count superlative annotated with the challenge
// it belongs to.
type DayRecord struct {
	Date          string `json:"date"`
	Count         int    `json:"count"`
	ChallengeName string `json:"challengeName,omitempty"`
}

type SetRecord struct {
	Date          string `json:"date"`
	Reps          int    `json:"reps"`
	ChallengeName string `json:"challengeName,omitempty"`
}

type AverageRecord struct {
	Value         float64 `json:"value"`
	ChallengeName string  `json:"challengeName,omitempty"`
}

type ActiveDaysRecord struct {
	Days          int    `json:"days"`
	ChallengeName string `json:"challengeName,omitempty"`
}

// DashboardStats aggregates personal records across every challenge.
type DashboardStats struct {
	TotalMarks          int               `json:"totalMarks"`
	TodayTotal          int               `json:"todayTotal"`
	BestStreak          int               `json:"bestStreak"`
	AheadChallenges     int               `json:"aheadChallenges"`
	BestSingleDay       *DayRecord        `json:"bestSingleDay,omitempty"`
	BiggestSingleEntry  *DayRecord        `json:"biggestSingleEntry,omitempty"`
	MaxRepsInSet        *SetRecord        `json:"maxRepsInSet,omitempty"`
	HighestDailyAverage *AverageRecord    `json:"highestDailyAverage,omitempty"`
	MostActiveDays      *ActiveDaysRecord `json:"mostActiveDays,omitempty"`
}

// CalculateDashboard derives the aggregate dashboard as of today.
// Entries referencing no known challenge still count toward the raw
// totals but are excluded from per-challenge superlatives.
func CalculateDashboard(challenges []challenge.Challenge, entries []entry.Entry, today time.Time) DashboardStats {
	day := truncate(today)
	todayKey := day.Format(challenge.DateLayout)

	nameByID := make(map[string]string, len(challenges))
	for _, c := range challenges {
		nameByID[c.ID] = c.Name
	}

	out := DashboardStats{}
	for _, e := range entries {
		out.TotalMarks += e.Count
		if e.Date == todayKey {
			out.TodayTotal += e.Count
		}
	}

	// Per-(challenge, date) totals for the best single day.
	type dayKey struct{ challengeID, date string }
	dayTotals := make(map[dayKey]int)
	for _, e := range entries {
		if _, ok := nameByID[e.ChallengeID]; !ok {
			continue
		}
		dayTotals[dayKey{e.ChallengeID, e.Date}] += e.Count
	}
	for key, count := range dayTotals {
		better := out.BestSingleDay == nil ||
			count > out.BestSingleDay.Count ||
			(count == out.BestSingleDay.Count && key.date < out.BestSingleDay.Date)
		if better {
			out.BestSingleDay = &DayRecord{Date: key.date, Count: count, ChallengeName: nameByID[key.challengeID]}
		}
	}

	for _, e := range entries {
		name, ok := nameByID[e.ChallengeID]
		if !ok {
			continue
		}
		if out.BiggestSingleEntry == nil || e.Count > out.BiggestSingleEntry.Count {
			out.BiggestSingleEntry = &DayRecord{Date: e.Date, Count: e.Count, ChallengeName: name}
		}
		for _, set := range e.Sets {
			if out.MaxRepsInSet == nil || set.Reps > out.MaxRepsInSet.Reps {
				out.MaxRepsInSet = &SetRecord{Date: e.Date, Reps: set.Reps, ChallengeName: name}
			}
		}
	}

	byChallenge := make(map[string][]entry.Entry, len(challenges))
	for _, e := range entries {
		byChallenge[e.ChallengeID] = append(byChallenge[e.ChallengeID], e)
	}
	for _, c := range challenges {
		cs := Calculate(c, byChallenge[c.ID], day)
		if cs.LongestStreak > out.BestStreak {
			out.BestStreak = cs.LongestStreak
		}
		if cs.PaceStatus == PaceAhead {
			out.AheadChallenges++
		}
		if cs.DaysActive > 0 {
			if out.HighestDailyAverage == nil || cs.DailyAverage > out.HighestDailyAverage.Value {
				out.HighestDailyAverage = &AverageRecord{Value: cs.DailyAverage, ChallengeName: c.Name}
			}
			if out.MostActiveDays == nil || cs.DaysActive > out.MostActiveDays.Days {
				out.MostActiveDays = &ActiveDaysRecord{Days: cs.DaysActive, ChallengeName: c.Name}
			}
		}
	}

	return out
}
