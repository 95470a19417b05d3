package availability

import (
	"sort"

	"fleetops/internal/dateutil"
	"fleetops/internal/models"
)

// DaySetsIntersect reports whether two day sets share at least one day.
// This single primitive subsumes range/range, range/single and
// single/list overlap tests.
func DaySetsIntersect(a, b dateutil.DaySet) bool {
	return a.Intersects(b)
}

// FindConflict scans existing reservations for the first blocking entry
// that overlaps the candidate day set. Entries are sorted by start day
// ascending before scanning so the reported conflict is deterministic
// regardless of store return order. Entries whose id equals excludeID
// are skipped (self-exclusion when editing).
func FindConflict(
	candidate dateutil.DaySet,
	resType models.ResourceType,
	resKey string,
	existing []models.Reservation,
	excludeID string,
) *models.Conflict {
	if len(candidate) == 0 {
		return nil
	}

	type entry struct {
		res   *models.Reservation
		days  dateutil.DaySet
		start string
	}
	entries := make([]entry, 0, len(existing))
	for i := range existing {
		res := &existing[i]
		if excludeID != "" && res.ID == excludeID {
			continue
		}
		if !res.Blocking() {
			continue
		}
		days, err := res.Days()
		if err != nil || len(days) == 0 {
			continue
		}
		start, _ := days.Bounds()
		entries = append(entries, entry{res: res, days: days, start: start})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].start != entries[j].start {
			return entries[i].start < entries[j].start
		}
		return entries[i].res.ID < entries[j].res.ID
	})

	for _, e := range entries {
		if !candidate.Intersects(e.days) {
			continue
		}
		min, max := e.days.Bounds()
		return &models.Conflict{
			ResourceType:  resType,
			ResourceKey:   resKey,
			ConflictingID: e.res.ID,
			Kind:          e.res.Kind,
			WindowStart:   min,
			WindowEnd:     max,
			Status:        e.res.Status,
			Label:         conflictLabel(e.res),
		}
	}
	return nil
}

// conflictLabel picks the most useful human label for a conflict row.
func conflictLabel(res *models.Reservation) string {
	switch res.Kind {
	case models.KindMaintenanceBooking:
		if res.Provider != "" {
			return res.Provider
		}
		return string(res.MaintType)
	case models.KindJobBooking:
		if res.Title != "" {
			return res.Title
		}
		return res.Client
	case models.KindHoliday:
		return res.Client
	}
	return ""
}
