// Package availability decides whether a candidate reservation can be
// placed without double-booking a vehicle, equipment item or employee.
package availability

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"fleetops/internal/dateutil"
	"fleetops/internal/models"
)

// Store is the document-store collaborator the engine reads from.
type Store interface {
	// ListReservations returns reservations of the given kind that
	// reference the resource. Cancelled records are included; the
	// engine filters by status policy itself.
	ListReservations(ctx context.Context, kind models.ReservationKind, resType models.ResourceType, resourceKey string) ([]models.Reservation, error)

	// ResourceExists reports whether a resource key resolves to a known
	// vehicle, equipment item or employee.
	ResourceExists(ctx context.Context, resType models.ResourceType, resourceKey string) (bool, error)
}

// Candidate is a reservation about to be saved.
type Candidate struct {
	Kind          models.ReservationKind `json:"kind"`
	Status        string                 `json:"status"`
	Resources     []models.ResourceRef   `json:"resources"`
	Window        dateutil.Window        `json:"window"`
	ExcludeSelfID string                 `json:"exclude_self_id,omitempty"`
}

// Result is the engine's verdict. UnknownResources lists candidate keys
// that resolve to no known resource; they cannot be checked and are
// surfaced as warnings rather than silently ignored.
type Result struct {
	Available        bool             `json:"available"`
	Conflict         *models.Conflict `json:"conflict,omitempty"`
	UnknownResources []string         `json:"unknown_resources,omitempty"`
}

// Engine orchestrates per-resource conflict checks against the store.
// A store failure always fails closed: the caller gets an error, never
// a false "available".
type Engine struct {
	store Store
	log   *zerolog.Logger
}

// NewEngine creates a conflict engine.
func NewEngine(store Store, logger *zerolog.Logger) *Engine {
	return &Engine{store: store, log: logger}
}

// checkSource names one collection a resource is validated against.
type checkSource struct {
	kind    models.ReservationKind
	resType models.ResourceType
}

// sourcesFor returns the collections a candidate resource must clear.
// Job bookings are checked against other job bookings on every resource
// type, maintenance bookings on vehicles and holidays on employees.
// Equipment has no maintenance or holiday concept.
func sourcesFor(kind models.ReservationKind, resType models.ResourceType) []checkSource {
	switch kind {
	case models.KindJobBooking:
		switch resType {
		case models.ResourceVehicle:
			return []checkSource{
				{models.KindJobBooking, resType},
				{models.KindMaintenanceBooking, resType},
			}
		case models.ResourceEquipment:
			return []checkSource{{models.KindJobBooking, resType}}
		case models.ResourceEmployee:
			return []checkSource{
				{models.KindJobBooking, resType},
				{models.KindHoliday, resType},
			}
		}
	case models.KindMaintenanceBooking:
		if resType == models.ResourceVehicle {
			return []checkSource{
				{models.KindMaintenanceBooking, resType},
				{models.KindJobBooking, resType},
			}
		}
	case models.KindHoliday:
		if resType == models.ResourceEmployee {
			return []checkSource{
				{models.KindHoliday, resType},
				{models.KindJobBooking, resType},
			}
		}
	}
	return nil
}

// Check evaluates the candidate against every relevant collection and
// returns the first conflict found, or available=true.
func (e *Engine) Check(ctx context.Context, c Candidate) (*Result, error) {
	days, err := dateutil.NormalizeWindow(c.Window)
	if err != nil {
		return nil, err
	}

	result := &Result{Available: true}

	// A reservation with no dates cannot clash with anything.
	if len(days) == 0 {
		return result, nil
	}

	for _, ref := range c.Resources {
		key := dateutil.NormalizeResourceKey(ref.Key)
		if key == "" {
			continue
		}

		known, err := e.store.ResourceExists(ctx, ref.Type, key)
		if err != nil {
			return nil, fmt.Errorf("resolve %s %q: %w", ref.Type, key, err)
		}
		if !known {
			e.log.Warn().
				Str("resource_type", string(ref.Type)).
				Str("resource_key", key).
				Msg("candidate references unknown resource; skipping check")
			result.UnknownResources = append(result.UnknownResources, key)
			continue
		}

		for _, src := range sourcesFor(c.Kind, ref.Type) {
			existing, err := e.store.ListReservations(ctx, src.kind, src.resType, key)
			if err != nil {
				return nil, fmt.Errorf("list %s for %s %q: %w", src.kind, ref.Type, key, err)
			}

			if conflict := FindConflict(days, ref.Type, key, existing, c.ExcludeSelfID); conflict != nil {
				e.log.Info().
					Str("resource_type", string(ref.Type)).
					Str("resource_key", key).
					Str("conflicting_id", conflict.ConflictingID).
					Str("window", conflict.WindowStart+".."+conflict.WindowEnd).
					Str("status", conflict.Status).
					Msg("conflict detected")
				result.Available = false
				result.Conflict = conflict
				return result, nil
			}
		}
	}

	return result, nil
}
