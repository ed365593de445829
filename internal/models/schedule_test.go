package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, min int) time.Time {
	// 2026-01-05 is a Monday
	return time.Date(2026, 1, 5, hour, min, 0, 0, time.UTC)
}

func TestScheduleContainsTime(t *testing.T) {
	s := &LayoutSchedule{StartTime: "09:00", EndTime: "17:00"}

	assert.True(t, s.ContainsTime(at(9, 0)))
	assert.True(t, s.ContainsTime(at(12, 30)))
	assert.True(t, s.ContainsTime(at(17, 0)))
	assert.False(t, s.ContainsTime(at(8, 59)))
	assert.False(t, s.ContainsTime(at(17, 1)))
}

func TestScheduleContainsTimeMidnightWrap(t *testing.T) {
	s := &LayoutSchedule{StartTime: "22:00", EndTime: "02:00"}

	assert.True(t, s.ContainsTime(at(23, 30)))
	assert.True(t, s.ContainsTime(at(1, 0)))
	assert.True(t, s.ContainsTime(at(22, 0)))
	assert.True(t, s.ContainsTime(at(2, 0)))
	assert.False(t, s.ContainsTime(at(12, 0)))
	assert.False(t, s.ContainsTime(at(21, 59)))
}

func TestScheduleContainsTimeInvalid(t *testing.T) {
	s := &LayoutSchedule{StartTime: "25:00", EndTime: "17:00"}
	assert.False(t, s.ContainsTime(at(12, 0)))
}

func TestScheduleMatchesDay(t *testing.T) {
	wildcard := &LayoutSchedule{DaysOfWeek: "*"}
	assert.True(t, wildcard.MatchesDay(time.Sunday))
	assert.True(t, wildcard.MatchesDay(time.Wednesday))

	weekdays := &LayoutSchedule{DaysOfWeek: "1,2,3,4,5"}
	assert.True(t, weekdays.MatchesDay(time.Monday))
	assert.False(t, weekdays.MatchesDay(time.Sunday))
	assert.False(t, weekdays.MatchesDay(time.Saturday))

	empty := &LayoutSchedule{DaysOfWeek: ""}
	assert.True(t, empty.MatchesDay(time.Friday))
}

func TestScheduleTargets(t *testing.T) {
	toClient := &LayoutSchedule{TargetClientID: "c1"}
	assert.True(t, toClient.Targets("c1", "lobby"))
	assert.False(t, toClient.Targets("c2", "lobby"))

	toGroup := &LayoutSchedule{TargetGroup: "lobby"}
	assert.True(t, toGroup.Targets("c1", "lobby"))
	assert.False(t, toGroup.Targets("c1", "cafe"))

	everyone := &LayoutSchedule{}
	assert.True(t, everyone.Targets("c1", ""))
}

func TestScheduleValidityRange(t *testing.T) {
	from := at(0, 0)
	until := at(23, 59)
	s := &LayoutSchedule{ValidFrom: &from, ValidUntil: &until}

	assert.True(t, s.InValidityRange(at(12, 0)))
	assert.False(t, s.InValidityRange(from.Add(-time.Hour)))
	assert.False(t, s.InValidityRange(until.Add(time.Hour)))

	open := &LayoutSchedule{}
	assert.True(t, open.InValidityRange(at(12, 0)))
}
