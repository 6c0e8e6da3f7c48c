package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
)

func day(date string) time.Time {
	t, err := time.Parse(challenge.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return t
}

func tenDayChallenge(target int) challenge.Challenge {
	return challenge.Challenge{
		ID:            "ch-1",
		Name:          "100 pushups",
		Target:        target,
		TimeframeType: challenge.TimeframeCustom,
		StartDate:     "2026-01-01",
		EndDate:       "2026-01-10",
	}
}

func entriesOn(counts map[string]int) []entry.Entry {
	var out []entry.Entry
	for date, count := range counts {
		out = append(out, entry.Entry{ID: "e-" + date, ChallengeID: "ch-1", Date: date, Count: count})
	}
	return out
}

func TestDailyTotalsSumsSameDay(t *testing.T) {
	entries := []entry.Entry{
		{Date: "2026-01-01", Count: 10},
		{Date: "2026-01-01", Count: 5},
		{Date: "2026-01-02", Count: 7},
	}

	totals := DailyTotals(entries)

	assert.Equal(t, 15, totals["2026-01-01"])
	assert.Equal(t, 7, totals["2026-01-02"])
	assert.Len(t, totals, 2)
}

func TestCurrentStreakCountsBackFromToday(t *testing.T) {
	totals := map[string]int{
		"2026-01-01": 5,
		"2026-01-02": 5,
		"2026-01-03": 5,
		"2026-01-05": 5,
	}

	// Jan 4 is the gap: today's run is just Jan 5.
	assert.Equal(t, 1, CurrentStreak(totals, day("2026-01-05"), day("2026-01-10")))

	// Back on Jan 3 the run was three days long.
	assert.Equal(t, 3, CurrentStreak(totals, day("2026-01-03"), day("2026-01-10")))
}

func TestCurrentStreakTodayGrace(t *testing.T) {
	totals := map[string]int{
		"2026-01-04": 5,
		"2026-01-05": 5,
	}

	// No entry yet today; the streak through yesterday still stands.
	assert.Equal(t, 2, CurrentStreak(totals, day("2026-01-06"), day("2026-01-10")))

	// Two empty days do break it.
	assert.Equal(t, 0, CurrentStreak(totals, day("2026-01-07"), day("2026-01-10")))
}

func TestCurrentStreakClampsToChallengeEnd(t *testing.T) {
	totals := map[string]int{
		"2026-01-09": 5,
		"2026-01-10": 5,
	}

	// Challenge ended Jan 10; days after the end are not misses.
	assert.Equal(t, 2, CurrentStreak(totals, day("2026-01-20"), day("2026-01-10")))
}

func TestCurrentStreakEmpty(t *testing.T) {
	assert.Equal(t, 0, CurrentStreak(map[string]int{}, day("2026-01-05"), day("2026-01-10")))
}

func TestLongestStreak(t *testing.T) {
	totals := map[string]int{
		"2026-01-01": 5,
		"2026-01-02": 5,
		"2026-01-03": 5,
		"2026-01-05": 5,
		"2026-01-06": 5,
	}

	assert.Equal(t, 3, LongestStreak(totals))
}

func TestLongestStreakIgnoresZeroDays(t *testing.T) {
	totals := map[string]int{
		"2026-01-01": 5,
		"2026-01-02": 0,
		"2026-01-03": 5,
	}

	assert.Equal(t, 1, LongestStreak(totals))
}

func TestPaceClassification(t *testing.T) {
	// Day 5 of a 10-day, target-100 challenge: expected 50.
	status, offset := Pace(100, 55, 5, 10)
	assert.Equal(t, PaceAhead, status)
	assert.InDelta(t, 5.0, offset, 0.001)

	status, offset = Pace(100, 50, 5, 10)
	assert.Equal(t, PaceOnPace, status)
	assert.InDelta(t, 0.0, offset, 0.001)

	status, offset = Pace(100, 44, 5, 10)
	assert.Equal(t, PaceBehind, status)
	assert.InDelta(t, -6.0, offset, 0.001)
}

func TestPaceToleranceBoundary(t *testing.T) {
	// Half a unit off is still on pace; beyond that it tips.
	status, _ := Pace(100, 51, 5, 10)
	assert.Equal(t, PaceAhead, status)

	status, _ = Pace(10, 5, 5, 10)
	assert.Equal(t, PaceOnPace, status)
}

func TestRequiredPerDay(t *testing.T) {
	assert.InDelta(t, 9.0, RequiredPerDay(45, 5), 0.001)
	// Deadline passed: everything left is due now.
	assert.InDelta(t, 45.0, RequiredPerDay(45, 0), 0.001)
	assert.InDelta(t, 0.0, RequiredPerDay(0, 0), 0.001)
}

func TestWindowExplicitDatesWin(t *testing.T) {
	c := tenDayChallenge(100)
	start, end := Window(c, day("2026-06-15"))

	assert.Equal(t, day("2026-01-01"), start)
	assert.Equal(t, day("2026-01-10"), end)
}

func TestWindowDerivedFromTimeframe(t *testing.T) {
	yearly := challenge.Challenge{TimeframeType: challenge.TimeframeYear}
	start, end := Window(yearly, day("2026-06-15"))
	assert.Equal(t, day("2026-01-01"), start)
	assert.Equal(t, day("2026-12-31"), end)

	monthly := challenge.Challenge{TimeframeType: challenge.TimeframeMonth}
	start, end = Window(monthly, day("2026-02-10"))
	assert.Equal(t, day("2026-02-01"), start)
	assert.Equal(t, day("2026-02-28"), end)
}

func TestCalculateMidChallenge(t *testing.T) {
	c := tenDayChallenge(100)
	entries := entriesOn(map[string]int{
		"2026-01-01": 10,
		"2026-01-02": 10,
		"2026-01-03": 15,
		"2026-01-05": 20,
	})

	s := Calculate(c, entries, day("2026-01-05"))

	assert.Equal(t, "ch-1", s.ChallengeID)
	assert.Equal(t, 55, s.Total)
	assert.Equal(t, 45, s.Remaining)
	assert.Equal(t, 10, s.TotalDays)
	assert.Equal(t, 5, s.DaysElapsed)
	assert.Equal(t, 5, s.DaysRemaining)
	assert.InDelta(t, 9.0, s.RequiredPerDay, 0.001)
	assert.Equal(t, PaceAhead, s.PaceStatus)
	assert.InDelta(t, 5.0, s.PaceOffset, 0.001)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)
	require.NotNil(t, s.BestDay)
	assert.Equal(t, "2026-01-05", s.BestDay.Date)
	assert.Equal(t, 20, s.BestDay.Count)
	assert.InDelta(t, 13.75, s.DailyAverage, 0.001)
	assert.Equal(t, 4, s.DaysActive)
}

func TestCalculateOverTarget(t *testing.T) {
	c := tenDayChallenge(30)
	entries := entriesOn(map[string]int{"2026-01-01": 50})

	s := Calculate(c, entries, day("2026-01-02"))

	assert.Equal(t, 50, s.Total)
	assert.Equal(t, 0, s.Remaining)
	assert.InDelta(t, 0.0, s.RequiredPerDay, 0.001)
	assert.Equal(t, PaceAhead, s.PaceStatus)
}

func TestCalculateAfterChallengeEnd(t *testing.T) {
	c := tenDayChallenge(100)
	entries := entriesOn(map[string]int{"2026-01-10": 10})

	s := Calculate(c, entries, day("2026-02-01"))

	assert.Equal(t, 10, s.TotalDays)
	assert.Equal(t, 10, s.DaysElapsed)
	assert.Equal(t, 0, s.DaysRemaining)
	assert.Equal(t, 1, s.CurrentStreak)
}

func TestCalculateNoEntries(t *testing.T) {
	c := tenDayChallenge(100)

	s := Calculate(c, nil, day("2026-01-01"))

	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 100, s.Remaining)
	assert.Equal(t, 0, s.CurrentStreak)
	assert.Equal(t, 0, s.LongestStreak)
	assert.Nil(t, s.BestDay)
	assert.InDelta(t, 0.0, s.DailyAverage, 0.001)
}

func TestBestDayTieBreaksOnEarlierDate(t *testing.T) {
	c := tenDayChallenge(100)
	entries := entriesOn(map[string]int{
		"2026-01-02": 20,
		"2026-01-04": 20,
	})

	s := Calculate(c, entries, day("2026-01-05"))

	require.NotNil(t, s.BestDay)
	assert.Equal(t, "2026-01-02", s.BestDay.Date)
}
