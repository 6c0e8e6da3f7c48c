package challenge

import (
	"time"

	"tallysync/internal/types/syncstate"
	"tallysync/internal/validation"
)

// DateLayout is the calendar-day wire format used for entry dates and
// challenge windows. Days carry no time component.
const DateLayout = "2006-01-02"

type TimeframeType string

const (
	TimeframeYear   TimeframeType = "year"
	TimeframeMonth  TimeframeType = "month"
	TimeframeCustom TimeframeType = "custom"
)

type Challenge struct {
	ID            string                `json:"id"`
	UserID        string                `json:"userId"`
	Name          string                `json:"name"`
	Target        int                   `json:"target"`
	TimeframeType TimeframeType         `json:"timeframeType"`
	StartDate     string                `json:"startDate,omitempty"`
	EndDate       string                `json:"endDate,omitempty"`
	Color         string                `json:"color"`
	Icon          string                `json:"icon"`
	IsPublic      bool                  `json:"isPublic"`
	IsArchived    bool                  `json:"isArchived"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
	State         syncstate.RecordState `json:"state,omitempty"`
}

// Pending reports whether the record still awaits server acknowledgment.
func (c Challenge) Pending() bool {
	return c.State == syncstate.RecordPendingCreate || c.State == syncstate.RecordPendingDelete
}

type CreateRequest struct {
	Name          string        `json:"name"`
	Target        int           `json:"target"`
	TimeframeType TimeframeType `json:"timeframeType"`
	StartDate     string        `json:"startDate,omitempty"`
	EndDate       string        `json:"endDate,omitempty"`
	Color         string        `json:"color,omitempty"`
	Icon          string        `json:"icon,omitempty"`
	IsPublic      bool          `json:"isPublic"`
}

func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return validation.Errorf("name", "must not be empty")
	}
	if r.Target <= 0 {
		return validation.Errorf("target", "must be positive, got %d", r.Target)
	}
	switch r.TimeframeType {
	case TimeframeYear, TimeframeMonth:
	case TimeframeCustom:
		if r.StartDate == "" || r.EndDate == "" {
			return validation.Errorf("timeframeType", "custom timeframe requires startDate and endDate")
		}
	default:
		return validation.Errorf("timeframeType", "unknown timeframe %q", r.TimeframeType)
	}
	var start, end time.Time
	if r.StartDate != "" {
		var err error
		if start, err = time.Parse(DateLayout, r.StartDate); err != nil {
			return validation.Errorf("startDate", "expected %s, got %q", DateLayout, r.StartDate)
		}
	}
	if r.EndDate != "" {
		var err error
		if end, err = time.Parse(DateLayout, r.EndDate); err != nil {
			return validation.Errorf("endDate", "expected %s, got %q", DateLayout, r.EndDate)
		}
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return validation.Errorf("startDate", "must not be after endDate")
	}
	return nil
}

// UpdateRequest carries a partial challenge update; nil fields are left
// unchanged by the server.
type UpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Target     *int    `json:"target,omitempty"`
	Color      *string `json:"color,omitempty"`
	Icon       *string `json:"icon,omitempty"`
	IsPublic   *bool   `json:"isPublic,omitempty"`
	IsArchived *bool   `json:"isArchived,omitempty"`
}

func (r *UpdateRequest) Validate() error {
	if r.Target != nil && *r.Target <= 0 {
		return validation.Errorf("target", "must be positive, got %d", *r.Target)
	}
	if r.Name != nil && *r.Name == "" {
		return validation.Errorf("name", "must not be empty")
	}
	return nil
}

// ResolveWindow materializes the [start, end] window for a new
// challenge. Year and month timeframes are anchored to now; custom
// timeframes keep the explicit dates.
func ResolveWindow(tf TimeframeType, startDate, endDate string, now time.Time) (string, string) {
	switch tf {
	case TimeframeCustom:
		return startDate, endDate
	case TimeframeMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		return first.Format(DateLayout), last.Format(DateLayout)
	default: // year
		first := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		last := time.Date(now.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
		return first.Format(DateLayout), last.Format(DateLayout)
	}
}
