// Package service orchestrates reservations: availability checks,
// enforced writes, maintenance date propagation and domain events.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"fleetops/internal/availability"
	"fleetops/internal/cache"
	"fleetops/internal/database"
	"fleetops/internal/events"
	"fleetops/internal/maintenance"
	"fleetops/internal/metrics"
	"fleetops/internal/models"
	"fleetops/internal/policy"
)

// Store is the persistence surface the service drives.
type Store interface {
	availability.Store

	TryReserve(ctx context.Context, res *models.Reservation, check database.ConflictCheck, apply database.TxApply) (*availability.Result, error)
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	DeleteReservation(ctx context.Context, id string, apply database.TxApply) error
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
}

// Propagator mirrors maintenance bookings onto vehicle records. The
// vehicle store passed per call is transaction-scoped, so the vehicle
// patch commits or aborts with the booking write.
type Propagator interface {
	Apply(ctx context.Context, vehicles maintenance.VehicleStore, booking *models.Reservation, prevStatus string) error
	ApplyDelete(ctx context.Context, vehicles maintenance.VehicleStore, booking *models.Reservation) error
}

// ReservationService is the application-level entry point used by the
// HTTP API.
type ReservationService struct {
	store      Store
	engine     *availability.Engine
	propagator Propagator
	bus        *events.Bus
	cache      *cache.AvailabilityCache
	log        *zerolog.Logger
}

func NewReservationService(
	store Store,
	engine *availability.Engine,
	propagator Propagator,
	bus *events.Bus,
	availCache *cache.AvailabilityCache,
	log *zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		store:      store,
		engine:     engine,
		propagator: propagator,
		bus:        bus,
		cache:      availCache,
		log:        log,
	}
}

// CheckAvailability runs the advisory conflict check. Results may be
// served from cache; the write path never trusts them.
func (s *ReservationService) CheckAvailability(ctx context.Context, c availability.Candidate) (*availability.Result, error) {
	key := cache.Key(c)
	if result, ok := s.cache.Get(ctx, key); ok {
		return result, nil
	}

	result, err := s.engine.Check(ctx, c)
	if err != nil {
		return nil, err
	}

	if result.Available {
		metrics.IncAvailabilityCheck("available")
	} else {
		metrics.IncAvailabilityCheck("conflict")
		metrics.IncConflictDetected(string(c.Kind))
		s.bus.PublishJSON(events.TypeConflictDetected, result.Conflict)
	}

	s.cache.Set(ctx, key, result)
	return result, nil
}

// CreateReservation saves a new reservation, enforcing conflict-freedom
// inside the write transaction for blocking candidates. Maintenance
// propagation runs in the same transaction, so the booking and the
// vehicle summary commit or abort together.
func (s *ReservationService) CreateReservation(ctx context.Context, res *models.Reservation) (*availability.Result, error) {
	res.ID = ""
	if err := s.ensureVehicleResource(ctx, res); err != nil {
		return nil, err
	}

	result, err := s.store.TryReserve(ctx, res, s.conflictCheck(res), s.propagation(res, ""))
	if err != nil {
		return result, err
	}

	metrics.IncReservationCreated(string(res.Kind))
	s.bus.PublishJSON(events.TypeReservationCreated, res)
	s.cache.InvalidateResources(ctx, res.Resources)

	s.log.Info().
		Str("id", res.ID).
		Str("kind", string(res.Kind)).
		Str("status", res.Status).
		Msg("Reservation created")
	return result, nil
}

// UpdateReservation rewrites an existing reservation with the same
// conflict enforcement as creation.
func (s *ReservationService) UpdateReservation(ctx context.Context, res *models.Reservation) (*availability.Result, error) {
	prev, err := s.store.GetReservation(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVehicleResource(ctx, res); err != nil {
		return nil, err
	}

	result, err := s.store.TryReserve(ctx, res, s.conflictCheck(res), s.propagation(res, prev.Status))
	if err != nil {
		return result, err
	}

	s.bus.PublishJSON(events.TypeReservationUpdated, res)
	s.cache.InvalidateResources(ctx, prev.Resources)
	s.cache.InvalidateResources(ctx, res.Resources)
	return result, nil
}

// UpdateStatus transitions a reservation's status. Moving into a
// blocking status re-validates conflicts; completing or cancelling a
// maintenance booking propagates onto the vehicle record.
func (s *ReservationService) UpdateStatus(ctx context.Context, id, status string) (*models.Reservation, *availability.Result, error) {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	prevStatus := res.Status
	res.Status = status
	if err := s.ensureVehicleResource(ctx, res); err != nil {
		return res, nil, err
	}

	result, err := s.store.TryReserve(ctx, res, s.conflictCheck(res), s.propagation(res, prevStatus))
	if err != nil {
		return res, result, err
	}

	switch {
	case res.Kind == models.KindMaintenanceBooking && completed(status) && !completed(prevStatus):
		metrics.IncMaintenanceCompleted(string(res.MaintType))
		s.bus.PublishJSON(events.TypeMaintenanceCompleted, res)
	case !res.Blocking() && prevStatus != status:
		s.bus.PublishJSON(events.TypeReservationCancelled, res)
	default:
		s.bus.PublishJSON(events.TypeReservationUpdated, res)
	}
	s.cache.InvalidateResources(ctx, res.Resources)

	s.log.Info().
		Str("id", res.ID).
		Str("from", prevStatus).
		Str("to", status).
		Msg("Reservation status updated")
	return res, result, nil
}

// DeleteReservation removes a reservation and clears any vehicle
// summary still linked to it.
func (s *ReservationService) DeleteReservation(ctx context.Context, id string) error {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return err
	}

	err = s.store.DeleteReservation(ctx, id, func(ctx context.Context, tx database.Txn) error {
		return s.propagator.ApplyDelete(ctx, tx, res)
	})
	if err != nil {
		return err
	}

	s.bus.PublishJSON(events.TypeReservationDeleted, res)
	if res.Kind == models.KindMaintenanceBooking {
		s.bus.PublishJSON(events.TypeSummaryCleared, res)
	}
	s.cache.InvalidateResources(ctx, res.Resources)
	return nil
}

func completed(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), policy.MaintenanceCompleted)
}

// GetReservation fetches one reservation.
func (s *ReservationService) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

// ensureVehicleResource derives the vehicle resource ref for a
// maintenance booking from its VehicleID, so the booking always joins
// conflict detection on the vehicle even when the caller sent no
// resources.
func (s *ReservationService) ensureVehicleResource(ctx context.Context, res *models.Reservation) error {
	if res.Kind != models.KindMaintenanceBooking || res.VehicleID == "" {
		return nil
	}
	for _, ref := range res.Resources {
		if ref.Type == models.ResourceVehicle {
			return nil
		}
	}

	vehicle, err := s.store.GetVehicle(ctx, res.VehicleID)
	if err != nil {
		return fmt.Errorf("resolve vehicle %s: %w", res.VehicleID, err)
	}
	res.Resources = append(res.Resources, models.ResourceRef{
		Type: models.ResourceVehicle,
		Key:  vehicle.Registration,
	})
	return nil
}

// propagation binds the maintenance propagator to the write
// transaction's vehicle store.
func (s *ReservationService) propagation(res *models.Reservation, prevStatus string) database.TxApply {
	return func(ctx context.Context, tx database.Txn) error {
		return s.propagator.Apply(ctx, tx, res, prevStatus)
	}
}

// conflictCheck builds the in-transaction re-validation for a write.
// Non-blocking candidates never conflict, so they pass through.
func (s *ReservationService) conflictCheck(res *models.Reservation) database.ConflictCheck {
	return func(ctx context.Context, store availability.Store) (*availability.Result, error) {
		if !res.Blocking() {
			if _, err := res.Days(); err != nil {
				return nil, fmt.Errorf("invalid window: %w", err)
			}
			return &availability.Result{Available: true}, nil
		}

		engine := availability.NewEngine(store, s.log)
		return engine.Check(ctx, availability.Candidate{
			Kind:          res.Kind,
			Status:        res.Status,
			Resources:     res.Resources,
			Window:        res.Window,
			ExcludeSelfID: res.ID,
		})
	}
}
