package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{2 * time.Hour, "02:00:00"},
		{2*time.Hour - time.Second, "01:59:59"},
		{90 * time.Second, "00:01:30"},
		{1500 * time.Millisecond, "00:00:02"},
		{time.Millisecond, "00:00:01"},
		{0, "00:00:00"},
		{-5 * time.Second, "00:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCountdown(tt.in), "FormatCountdown(%v)", tt.in)
	}
}

func TestLoginAttemptState_BlockedAndExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	s := &LoginAttemptState{FailedAttempts: 6, BlockedUntil: &until}

	assert.True(t, s.IsBlocked(now))
	assert.False(t, s.Expired(now))
	assert.False(t, s.IsBlocked(until))
	assert.True(t, s.Expired(until))

	var nilState *LoginAttemptState
	assert.False(t, nilState.IsBlocked(now))
	assert.False(t, (&LoginAttemptState{FailedAttempts: 2}).Expired(now))
}

func TestSummarizeTreatments_NextAppointmentIgnoresPast(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)
	inFive := now.Add(5 * 24 * time.Hour)

	treatments := []Treatment{
		{TreatmentDate: now.Add(-72 * time.Hour), FollowUpDate: &inFive},
		{TreatmentDate: now.Add(-48 * time.Hour), FollowUpDate: &yesterday},
		{TreatmentDate: yesterday, FollowUpDate: &tomorrow},
	}

	stats := SummarizeTreatments(treatments, now)

	assert.Equal(t, 3, stats.TreatmentCount)
	require.NotNil(t, stats.NextAppointment)
	assert.True(t, stats.NextAppointment.Equal(tomorrow))
	require.NotNil(t, stats.LastVisit)
	assert.True(t, stats.LastVisit.Equal(yesterday))
}

func TestSummarizeTreatments_FutureTreatmentIsNotLastVisit(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	stats := SummarizeTreatments([]Treatment{{TreatmentDate: now.Add(time.Hour)}}, now)

	assert.Equal(t, 1, stats.TreatmentCount)
	assert.Nil(t, stats.LastVisit)
	assert.Nil(t, stats.NextAppointment)
}

func TestSummarizeTreatments_NoTreatments(t *testing.T) {
	stats := SummarizeTreatments(nil, time.Now())

	assert.Equal(t, 0, stats.TreatmentCount)
	assert.Nil(t, stats.LastVisit)
	assert.Nil(t, stats.NextAppointment)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 30, 61)
	assert.Equal(t, Pagination{Current: 2, Limit: 30, Pages: 3, Total: 61, HasNext: true, HasPrev: true}, p)

	beyond := NewPagination(9, 30, 61)
	assert.Equal(t, 3, beyond.Pages)
	assert.False(t, beyond.HasNext)
	assert.True(t, beyond.HasPrev)

	empty := NewPagination(1, 30, 0)
	assert.Equal(t, 0, empty.Pages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}

func TestClientQuery_Offset(t *testing.T) {
	q := DefaultClientQuery()
	assert.Equal(t, 0, q.Offset())
	q.Page = 3
	assert.Equal(t, 60, q.Offset())
}

func TestClientQuery_OffsetSaturates(t *testing.T) {
	q := DefaultClientQuery()
	q.Page = 400000000000000000
	assert.Equal(t, math.MaxInt, q.Offset())

	q.Limit = MaxPageSize
	q.Page = math.MaxInt
	assert.Equal(t, math.MaxInt, q.Offset())
}
