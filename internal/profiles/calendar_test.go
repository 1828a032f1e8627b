package profiles_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VYBRANDMEDIA/nannygo/internal/events"
	"github.com/VYBRANDMEDIA/nannygo/internal/jobs"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
)

func TestAvailableDates(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	nanny := f.onboard(t, "nanny", "Utrecht")
	other := f.onboard(t, "nanny", "Utrecht")
	parent := f.onboard(t, "parent", "Utrecht")

	stored, err := f.svc.SetAvailableDates(ctx, nanny.ID, nanny.ID, []string{"2025-03-12", "2025-03-09", "2025-03-12", "2025-04-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-09", "2025-03-12", "2025-04-01"}, stored)

	upcoming, err := f.svc.ListAvailableDates(ctx, nanny.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-12", "2025-04-01"}, upcoming, "past dates are not listed")

	tooMany := make([]string, 0, 367)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 367; i++ {
		tooMany = append(tooMany, start.AddDate(0, 0, i).Format("2006-01-02"))
	}

	tests := []struct {
		name   string
		caller int64
		target int64
		dates  []string
		code   domainerr.Code
	}{
		{"parent", parent.ID, nanny.ID, nil, domainerr.CodeForbidden},
		{"other nanny", other.ID, nanny.ID, nil, domainerr.CodeForbidden},
		{"unknown nanny", nanny.ID, 9999, nil, domainerr.CodeNotFound},
		{"not a date", nanny.ID, nanny.ID, []string{"12-03-2025"}, domainerr.CodeInvalidInput},
		{"impossible date", nanny.ID, nanny.ID, []string{"2025-02-30"}, domainerr.CodeInvalidInput},
		{"more than a year", nanny.ID, nanny.ID, tooMany, domainerr.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SetAvailableDates(ctx, tt.caller, tt.target, tt.dates)
			assertCode(t, err, tt.code)
		})
	}

	// rejected writes leave the calendar alone
	upcoming, err = f.svc.ListAvailableDates(ctx, nanny.ID)
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)

	_, err = f.svc.SetAvailableDates(ctx, nanny.ID, nanny.ID, nil)
	require.NoError(t, err)
	upcoming, err = f.svc.ListAvailableDates(ctx, nanny.ID)
	require.NoError(t, err)
	assert.NotNil(t, upcoming)
	assert.Empty(t, upcoming)

	_, err = f.svc.ListAvailableDates(ctx, parent.ID)
	assertCode(t, err, domainerr.CodeNotFound)
}

func TestLogContact(t *testing.T) {
	f := newFixture(t)
	day1 := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	f.now = day1
	ctx := context.Background()
	nanny := f.onboard(t, "nanny", "Utrecht")
	parent := f.onboard(t, "parent", "Utrecht")

	logged, err := f.svc.LogContact(ctx, parent.ID, nanny.ID, "call")
	require.NoError(t, err)
	assert.True(t, logged)

	logged, err = f.svc.LogContact(ctx, parent.ID, nanny.ID, "whatsapp")
	require.NoError(t, err)
	assert.False(t, logged, "one contact per parent, nanny and day")

	f.now = day1.Add(20 * time.Hour)
	logged, err = f.svc.LogContact(ctx, parent.ID, nanny.ID, "email")
	require.NoError(t, err)
	assert.True(t, logged)

	var notified []events.Notification
	for _, j := range f.queue.all() {
		if j.typ == jobs.TypeNotifyContact {
			notified = append(notified, j.payload)
		}
	}
	require.Len(t, notified, 2)
	assert.Equal(t, events.TypeContactRequested, notified[0].Type)
	assert.Equal(t, []int64{nanny.ID}, notified[0].Recipients)
	assert.Equal(t, "call", notified[0].Status)

	tests := []struct {
		name   string
		caller int64
		target int64
		typ    string
		code   domainerr.Code
	}{
		{"unknown type", parent.ID, nanny.ID, "pigeon", domainerr.CodeInvalidInput},
		{"nanny caller", nanny.ID, nanny.ID, "call", domainerr.CodeForbidden},
		{"unknown nanny", parent.ID, 9999, "call", domainerr.CodeNotFound},
		{"parent as target", parent.ID, parent.ID, "call", domainerr.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.LogContact(ctx, tt.caller, tt.target, tt.typ)
			assertCode(t, err, tt.code)
		})
	}
}

func TestContactStats(t *testing.T) {
	f := newFixture(t)
	day1 := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	nanny := f.onboard(t, "nanny", "Utrecht")

	for i := 0; i < 3; i++ {
		parent := f.onboard(t, "parent", "Utrecht")
		f.now = day1.AddDate(0, 0, i)
		_, err := f.svc.LogContact(ctx, parent.ID, nanny.ID, "call")
		require.NoError(t, err)
	}

	tests := []struct {
		at   time.Time
		want int
	}{
		{day1.AddDate(0, 0, 2), 3},
		{day1.Add(30*24*time.Hour + time.Hour), 2},
		{day1.AddDate(0, 0, 40), 0},
	}
	for _, tt := range tests {
		t.Run(tt.at.Format(time.DateOnly), func(t *testing.T) {
			f.now = tt.at
			stats, err := f.svc.ContactStats(ctx, nanny.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stats.Count)
			assert.Equal(t, tt.at.Add(-30*24*time.Hour), stats.Since)
		})
	}

	parent := f.onboard(t, "parent", "Utrecht")
	_, err := f.svc.ContactStats(ctx, parent.ID)
	assertCode(t, err, domainerr.CodeForbidden)
}
