package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockPair(in, out string) (*time.Time, *time.Time) {
	day := "2025-06-10T"
	ci, _ := time.Parse(time.RFC3339, day+in+":00Z")
	co, _ := time.Parse(time.RFC3339, day+out+":00Z")
	return &ci, &co
}

func TestComputeWorkHours(t *testing.T) {
	tests := []struct {
		name         string
		in, out      string
		breakMinutes int
		want         float64
		clamped      bool
	}{
		{"full day", "09:00", "18:00", 60, 8, false},
		{"no break", "09:00", "17:00", 0, 8, false},
		{"half hour granularity", "09:00", "17:30", 30, 8, false},
		{"rounds to two decimals", "09:00", "17:10", 0, 8.17, false},
		{"break exceeds duration", "09:00", "09:30", 60, 0, true},
		{"clock out before clock in", "18:00", "09:00", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := clockPair(tt.in, tt.out)
			got, clamped := ComputeWorkHours(in, out, tt.breakMinutes)
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 0.001)
			assert.Equal(t, tt.clamped, clamped)
		})
	}
}

func TestComputeWorkHoursIncomplete(t *testing.T) {
	in, _ := clockPair("09:00", "18:00")

	got, clamped := ComputeWorkHours(in, nil, 0)
	assert.Nil(t, got)
	assert.False(t, clamped)

	got, clamped = ComputeWorkHours(nil, nil, 0)
	assert.Nil(t, got)
	assert.False(t, clamped)
}

func TestApplicationStatusTransitions(t *testing.T) {
	assert.True(t, ApplicationStatusPending.CanTransition(ApplicationStatusApproved))
	assert.True(t, ApplicationStatusPending.CanTransition(ApplicationStatusCancelled))
	assert.False(t, ApplicationStatusApproved.CanTransition(ApplicationStatusRejected))
	assert.False(t, ApplicationStatusPending.CanTransition(ApplicationStatus("archived")))
	assert.False(t, ApplicationStatusRejected.CanTransition(ApplicationStatusPending))
}

func TestShiftCapacityHelpers(t *testing.T) {
	shift := Shift{Capacity: 3, ConfirmedCount: 2}
	assert.True(t, shift.HasCapacity())
	assert.Equal(t, 1, shift.RemainingCapacity())

	shift.ConfirmedCount = 3
	assert.False(t, shift.HasCapacity())

	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	shift.Date = day
	assert.False(t, shift.ClosedAt(day.Add(23*time.Hour)))
	assert.True(t, shift.ClosedAt(day.AddDate(0, 0, 1)))
}
