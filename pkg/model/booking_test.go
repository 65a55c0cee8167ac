package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingIsPending(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		pending bool
	}{
		{"explicit pending", StatusPending, true},
		{"unset status", "", true},
		{"paid is terminal", StatusPaid, false},
		{"failed is terminal", StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{Status: tt.status}
			assert.Equal(t, tt.pending, b.IsPending())
		})
	}
}

func TestBookingPatchIsEmpty(t *testing.T) {
	empty := &BookingPatch{}
	assert.True(t, empty.IsEmpty())

	status := StatusPaid
	assert.False(t, (&BookingPatch{Status: &status}).IsEmpty())

	now := time.Now()
	assert.False(t, (&BookingPatch{VerifiedAt: &now}).IsEmpty())
}

func TestDurationLabel(t *testing.T) {
	assert.Equal(t, "1 Day", DurationLabel(DurationDay))
	assert.Equal(t, "1 Week", DurationLabel(DurationWeek))
	assert.Equal(t, "1 Day", DurationLabel("something-else"))
}

func TestEventPriceFor(t *testing.T) {
	event := &Event{
		ID:    "1",
		Title: "Trade Fair",
		StallTypes: []StallType{
			{ID: "food", Name: "Food Stall", DailyPrice: 6000, WeeklyPrice: 25000},
		},
	}

	assert.Equal(t, int64(6000), event.PriceFor("food", DurationDay))
	assert.Equal(t, int64(25000), event.PriceFor("food", DurationWeek))
	assert.Equal(t, int64(0), event.PriceFor("missing", DurationDay))

	st, ok := event.StallType("food")
	assert.True(t, ok)
	assert.Equal(t, "Food Stall", st.Name)

	_, ok = event.StallType("missing")
	assert.False(t, ok)
}

func TestListScopes(t *testing.T) {
	assert.Equal(t, "vendor-1", ScopeOwn("vendor-1").UserID)
	assert.Empty(t, ScopeAll().UserID)
}
