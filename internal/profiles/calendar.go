package profiles

import (
	"context"
	"sort"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

// maxCalendarDates bounds one calendar write to a year of days.
const maxCalendarDates = 366

// SetAvailableDates replaces the owner's per-date availability calendar and
// returns the stored dates, deduplicated and sorted. The calendar is
// informational; search visibility only follows is_available.
func (s *Service) SetAvailableDates(ctx context.Context, callerProfileID, nannyProfileID int64, dates []string) ([]string, error) {
	n, err := s.store.GetNanny(ctx, nannyProfileID)
	if err != nil {
		return nil, s.unavailable(ctx, "get nanny", err)
	}
	if n == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "nanny profile not found")
	}
	if n.ProfileID != callerProfileID {
		return nil, domainerr.New(domainerr.CodeForbidden, "only the owner may change the calendar")
	}

	seen := make(map[string]struct{}, len(dates))
	clean := make([]string, 0, len(dates))
	for _, raw := range dates {
		d, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return nil, domainerr.New(domainerr.CodeInvalidInput, "dates must be formatted as YYYY-MM-DD: "+raw)
		}
		day := d.Format(models.DateLayout)
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		clean = append(clean, day)
	}
	if len(clean) > maxCalendarDates {
		return nil, domainerr.New(domainerr.CodeInvalidInput, "too many calendar dates")
	}
	sort.Strings(clean)

	if err := s.store.ReplaceAvailableDates(ctx, nannyProfileID, clean); err != nil {
		return nil, s.unavailable(ctx, "replace calendar", err)
	}
	return clean, nil
}

// ListAvailableDates returns the nanny's calendar from today (UTC) onwards.
func (s *Service) ListAvailableDates(ctx context.Context, nannyProfileID int64) ([]string, error) {
	n, err := s.store.GetNanny(ctx, nannyProfileID)
	if err != nil {
		return nil, s.unavailable(ctx, "get nanny", err)
	}
	if n == nil {
		return nil, domainerr.New(domainerr.CodeNotFound, "nanny profile not found")
	}
	out, err := s.store.ListAvailableDates(ctx, nannyProfileID, s.today())
	if err != nil {
		return nil, s.unavailable(ctx, "list calendar", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (s *Service) today() string {
	return s.now().UTC().Format(models.DateLayout)
}
