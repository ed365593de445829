package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LayoutSchedule maps a time/day window to a content assignment with a
// priority. Either TargetClientID or TargetGroup may be set; both empty
// means the schedule applies to every unit.
type LayoutSchedule struct {
	BaseModel

	Name string `json:"name" db:"name"`

	TargetClientID string `json:"targetClientId,omitempty" db:"target_client_id"`
	TargetGroup    string `json:"targetGroup,omitempty" db:"target_group"`

	ContentID string `json:"contentId" db:"content_id"`

	// StartTime and EndTime are "HH:MM" in the coordinator's local day.
	// EndTime < StartTime means the window wraps past midnight.
	StartTime string `json:"startTime" db:"start_time"`
	EndTime   string `json:"endTime" db:"end_time"`

	// DaysOfWeek is "*" or a comma-separated list of weekday numbers,
	// Sunday = 0.
	DaysOfWeek string `json:"daysOfWeek" db:"days_of_week"`

	Priority int  `json:"priority" db:"priority"`
	Active   bool `json:"active" db:"active"`

	ValidFrom  *time.Time `json:"validFrom,omitempty" db:"valid_from"`
	ValidUntil *time.Time `json:"validUntil,omitempty" db:"valid_until"`
}

// MatchesDay reports whether the schedule covers the given weekday
func (s *LayoutSchedule) MatchesDay(day time.Weekday) bool {
	if s.DaysOfWeek == "" || s.DaysOfWeek == "*" {
		return true
	}
	for _, part := range strings.Split(s.DaysOfWeek, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if n == int(day) {
			return true
		}
	}
	return false
}

// ContainsTime reports whether the instant's time-of-day falls inside the
// schedule window, honoring midnight wrap
func (s *LayoutSchedule) ContainsTime(at time.Time) bool {
	start, err := parseMinutes(s.StartTime)
	if err != nil {
		return false
	}
	end, err := parseMinutes(s.EndTime)
	if err != nil {
		return false
	}

	now := at.Hour()*60 + at.Minute()

	if end < start {
		// Window wraps past midnight
		return now >= start || now <= end
	}
	return now >= start && now <= end
}

// InValidityRange reports whether the instant is within
// [ValidFrom, ValidUntil]
func (s *LayoutSchedule) InValidityRange(at time.Time) bool {
	if s.ValidFrom != nil && at.Before(*s.ValidFrom) {
		return false
	}
	if s.ValidUntil != nil && at.After(*s.ValidUntil) {
		return false
	}
	return true
}

// Targets reports whether the schedule applies to the given client or group
func (s *LayoutSchedule) Targets(clientID, group string) bool {
	if s.TargetClientID != "" {
		return s.TargetClientID == clientID
	}
	if s.TargetGroup != "" {
		return s.TargetGroup == group
	}
	return true
}

func parseMinutes(hm string) (int, error) {
	parts := strings.SplitN(hm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", hm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", hm)
	}
	return h*60 + m, nil
}
