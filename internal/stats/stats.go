// Package stats derives streak, pace, and progress signals from a
// challenge definition and its raw entry log. Every function is a pure
// transform over (challenge, entries, today): same input, same output,
// no clock reads and no side effects.
package stats

import (
	"sort"
	"time"

	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
)

type PaceStatus string

const (
	PaceAhead  PaceStatus = "ahead"
	PaceOnPace PaceStatus = "onPace"
	PaceBehind PaceStatus = "behind"
)

// paceTolerance keeps the classification from flapping at exact
// equality of actual and expected progress.
const paceTolerance = 0.5

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type ChallengeStats struct {
	ChallengeID    string     `json:"challengeId"`
	Total          int        `json:"total"`
	Remaining      int        `json:"remaining"`
	TotalDays      int        `json:"totalDays"`
	DaysElapsed    int        `json:"daysElapsed"`
	DaysRemaining  int        `json:"daysRemaining"`
	RequiredPerDay float64    `json:"requiredPerDay"`
	PaceStatus     PaceStatus `json:"paceStatus"`
	PaceOffset     float64    `json:"paceOffset"`
	CurrentStreak  int        `json:"currentStreak"`
	LongestStreak  int        `json:"longestStreak"`
	BestDay        *DayCount  `json:"bestDay,omitempty"`
	DailyAverage   float64    `json:"dailyAverage"`
	DaysActive     int        `json:"daysActive"`
}

// Calculate derives the full per-challenge stats as of today.
func Calculate(c challenge.Challenge, entries []entry.Entry, today time.Time) ChallengeStats {
	day := truncate(today)
	start, end := Window(c, day)

	total := 0
	for _, e := range entries {
		total += e.Count
	}
	remaining := c.Target - total
	if remaining < 0 {
		remaining = 0
	}

	totalDays := daysBetween(start, end) + 1
	if totalDays < 1 {
		totalDays = 1
	}
	elapsed := daysBetween(start, day) + 1
	if elapsed < 1 {
		elapsed = 1
	}
	if elapsed > totalDays {
		elapsed = totalDays
	}
	daysLeft := daysBetween(day, end)
	if daysLeft < 0 {
		daysLeft = 0
	}

	totals := DailyTotals(entries)
	status, offset := Pace(c.Target, total, elapsed, totalDays)

	var average float64
	if len(totals) > 0 {
		average = float64(total) / float64(len(totals))
	}

	return ChallengeStats{
		ChallengeID:    c.ID,
		Total:          total,
		Remaining:      remaining,
		TotalDays:      totalDays,
		DaysElapsed:    elapsed,
		DaysRemaining:  daysLeft,
		RequiredPerDay: RequiredPerDay(remaining, daysLeft),
		PaceStatus:     status,
		PaceOffset:     offset,
		CurrentStreak:  CurrentStreak(totals, day, end),
		LongestStreak:  LongestStreak(totals),
		BestDay:        bestDay(totals),
		DailyAverage:   average,
		DaysActive:     len(totals),
	}
}

// DailyTotals groups entries by calendar date, summing counts per date.
func DailyTotals(entries []entry.Entry) map[string]int {
	totals := make(map[string]int, len(entries))
	for _, e := range entries {
		totals[e.Date] += e.Count
	}
	return totals
}

// CurrentStreak walks backward day by day from today (or the challenge
// end date, if already past) and counts consecutive active days. A day
// with any positive total is active; the first missing day ends the
// walk. Today itself gets grace: an empty today does not break a streak
// that is still alive through yesterday, since the day is not over.
func CurrentStreak(totals map[string]int, today, end time.Time) int {
	if len(totals) == 0 {
		return 0
	}
	cursor := today
	if end.Before(today) {
		cursor = end
	}
	if totals[cursor.Format(challenge.DateLayout)] <= 0 && cursor.Equal(today) {
		cursor = cursor.AddDate(0, 0, -1)
	}
	streak := 0
	for totals[cursor.Format(challenge.DateLayout)] > 0 {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}

// LongestStreak scans the active dates in ascending order; a run
// continues only when the next active date is exactly one calendar day
// after the previous one.
func LongestStreak(totals map[string]int) int {
	if len(totals) == 0 {
		return 0
	}
	days := make([]time.Time, 0, len(totals))
	for date, count := range totals {
		if count <= 0 {
			continue
		}
		day, err := time.Parse(challenge.DateLayout, date)
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 0, 0
	for i, day := range days {
		if i > 0 && daysBetween(days[i-1], day) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// Pace classifies actual against expected linear progress.
// expected = target * daysElapsed / totalDays, with daysElapsed already
// clamped to [1, totalDays] by the caller.
func Pace(target, actual, daysElapsed, totalDays int) (PaceStatus, float64) {
	expected := float64(target) * float64(daysElapsed) / float64(totalDays)
	offset := float64(actual) - expected
	switch {
	case offset > paceTolerance:
		return PaceAhead, offset
	case offset < -paceTolerance:
		return PaceBehind, offset
	default:
		return PaceOnPace, offset
	}
}

// RequiredPerDay is remaining/daysLeft, or the full remainder once the
// deadline has arrived.
func RequiredPerDay(remaining, daysLeft int) float64 {
	if daysLeft > 0 {
		return float64(remaining) / float64(daysLeft)
	}
	return float64(remaining)
}

// Window resolves the [start, end] day window a challenge is scored
// against: explicit dates when present, otherwise derived from the
// timeframe classification anchored to today.
func Window(c challenge.Challenge, today time.Time) (time.Time, time.Time) {
	start, startErr := time.Parse(challenge.DateLayout, c.StartDate)
	end, endErr := time.Parse(challenge.DateLayout, c.EndDate)
	if startErr == nil && endErr == nil {
		return start, end
	}
	switch c.TimeframeType {
	case challenge.TimeframeMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(0, 1, -1)
	default:
		return time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(today.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	}
}

func bestDay(totals map[string]int) *DayCount {
	var best *DayCount
	for date, count := range totals {
		if best == nil || count > best.Count || (count == best.Count && date < best.Date) {
			best = &DayCount{Date: date, Count: count}
		}
	}
	return best
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(truncate(b).Sub(truncate(a)) / (24 * time.Hour))
}
