// Package maintenance keeps vehicle due dates and maintenance summary
// blocks consistent with the maintenance-booking lifecycle.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fleetops/internal/dateutil"
	"fleetops/internal/models"
	"fleetops/internal/policy"
)

// ErrPartialWrite marks a failed vehicle-side write while propagating a
// booking transition. Callers run propagation over the reservation
// transaction, so the booking write aborts together with it; the log
// entry carries the intended patch for diagnosis.
var ErrPartialWrite = errors.New("vehicle summary write failed during booking write")

// VehicleStore is the document-store collaborator for vehicle records.
// The service passes the transaction-scoped store so vehicle patches
// commit with the booking they mirror.
type VehicleStore interface {
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *models.Vehicle) error
}

// Propagator applies maintenance-booking lifecycle transitions to the
// owning vehicle record.
//
// State machine per booking: Requested -> Booked -> Completed, with
// * -> Cancelled. Completed and Cancelled are terminal: no further date
// math happens once a booking has completed, and a cancelled booking's
// dates are irrelevant going forward.
type Propagator struct {
	log *zerolog.Logger
	now func() time.Time
}

// NewPropagator creates a propagator.
func NewPropagator(logger *zerolog.Logger) *Propagator {
	return &Propagator{
		log: logger,
		now: time.Now,
	}
}

// Apply reflects a created or updated maintenance booking on its
// vehicle. prevStatus is the booking's status before this save; it is
// empty on create.
func (p *Propagator) Apply(ctx context.Context, vehicles VehicleStore, booking *models.Reservation, prevStatus string) error {
	if booking.Kind != models.KindMaintenanceBooking || booking.VehicleID == "" {
		return nil
	}

	switch {
	case isCompleted(booking.Status):
		if isCompleted(prevStatus) {
			// Already propagated; Completed is terminal.
			return nil
		}
		return p.complete(ctx, vehicles, booking)
	case !policy.IsBlockingMaintenanceStatus(booking.Status):
		return p.cancel(ctx, vehicles, booking)
	default:
		return p.refreshSummary(ctx, vehicles, booking)
	}
}

// ApplyDelete clears the vehicle's summary block for the booking's
// maintenance type, but only while the vehicle still points at the
// deleted booking. A summary already superseded by a newer booking is
// left untouched, so repeated deletes are no-ops.
func (p *Propagator) ApplyDelete(ctx context.Context, vehicles VehicleStore, booking *models.Reservation) error {
	if booking.Kind != models.KindMaintenanceBooking || booking.VehicleID == "" {
		return nil
	}

	vehicle, err := vehicles.GetVehicle(ctx, booking.VehicleID)
	if err != nil {
		return fmt.Errorf("get vehicle %s: %w", booking.VehicleID, err)
	}

	if vehicle.Summary(booking.MaintType).LinkedBookingID != booking.ID {
		return nil
	}

	vehicle.SetSummary(booking.MaintType, models.MaintenanceSummary{})
	if err := p.writeVehicle(ctx, vehicles, booking, vehicle, "clear summary"); err != nil {
		return err
	}

	p.log.Info().
		Str("booking_id", booking.ID).
		Str("vehicle_id", vehicle.ID).
		Str("maint_type", string(booking.MaintType)).
		Msg("maintenance summary cleared after booking delete")
	return nil
}

// refreshSummary mirrors a live (non-terminal) booking onto the vehicle.
func (p *Propagator) refreshSummary(ctx context.Context, vehicles VehicleStore, booking *models.Reservation) error {
	vehicle, err := vehicles.GetVehicle(ctx, booking.VehicleID)
	if err != nil {
		return fmt.Errorf("get vehicle %s: %w", booking.VehicleID, err)
	}

	summary := models.MaintenanceSummary{
		BookedStatus:    booking.Status,
		BookedOn:        dateutil.FormatDay(p.now()),
		Provider:        booking.Provider,
		BookingRef:      booking.BookingRef,
		Location:        booking.Location,
		Cost:            booking.Cost,
		Notes:           booking.Notes,
		LinkedBookingID: booking.ID,
	}
	switch booking.Window.Mode {
	case dateutil.WindowSingle:
		summary.AppointmentDate = booking.Window.Date
	case dateutil.WindowRange:
		summary.StartDate = booking.Window.Start
		summary.EndDate = booking.Window.End
	}

	vehicle.SetSummary(booking.MaintType, summary)
	return p.writeVehicle(ctx, vehicles, booking, vehicle, "refresh summary")
}

// complete records the finished work: last-done becomes the completion
// date, next-due is completion plus the vehicle's frequency interval,
// and the now-historical summary block is cleared.
func (p *Propagator) complete(ctx context.Context, vehicles VehicleStore, booking *models.Reservation) error {
	vehicle, err := vehicles.GetVehicle(ctx, booking.VehicleID)
	if err != nil {
		return fmt.Errorf("get vehicle %s: %w", booking.VehicleID, err)
	}

	completed := booking.CompletionDate()
	if completed == "" {
		return fmt.Errorf("maintenance booking %s has no completion date", booking.ID)
	}

	nextDue := ""
	if freq := vehicle.FreqWeeks(booking.MaintType); freq > 0 {
		nextDue, err = dateutil.AddWeeks(completed, freq)
		if err != nil {
			return fmt.Errorf("compute next due from %q: %w", completed, err)
		}
	}

	if booking.MaintType == models.MaintenanceService {
		vehicle.LastService = completed
		vehicle.NextService = nextDue
	} else {
		vehicle.LastMOT = completed
		vehicle.NextMOT = nextDue
	}
	vehicle.SetSummary(booking.MaintType, models.MaintenanceSummary{})

	if err := p.writeVehicle(ctx, vehicles, booking, vehicle, "record completion"); err != nil {
		return err
	}

	p.log.Info().
		Str("booking_id", booking.ID).
		Str("vehicle_id", vehicle.ID).
		Str("maint_type", string(booking.MaintType)).
		Str("completed", completed).
		Str("next_due", nextDue).
		Msg("maintenance completion propagated")
	return nil
}

// cancel marks the summary as cancelled without clearing it, keeping
// the last scheduling context visible until a newer booking overwrites
// it.
func (p *Propagator) cancel(ctx context.Context, vehicles VehicleStore, booking *models.Reservation) error {
	vehicle, err := vehicles.GetVehicle(ctx, booking.VehicleID)
	if err != nil {
		return fmt.Errorf("get vehicle %s: %w", booking.VehicleID, err)
	}

	summary := vehicle.Summary(booking.MaintType)
	summary.BookedStatus = policy.MaintenanceCancelled
	vehicle.SetSummary(booking.MaintType, summary)
	return p.writeVehicle(ctx, vehicles, booking, vehicle, "mark cancelled")
}

// writeVehicle persists the vehicle patch, logging the intended state
// on failure before the caller's transaction rolls back.
func (p *Propagator) writeVehicle(ctx context.Context, vehicles VehicleStore, booking *models.Reservation, vehicle *models.Vehicle, action string) error {
	if err := vehicles.UpdateVehicle(ctx, vehicle); err != nil {
		p.log.Error().Err(err).
			Str("action", action).
			Str("booking_id", booking.ID).
			Str("vehicle_id", vehicle.ID).
			Str("maint_type", string(booking.MaintType)).
			Interface("intended_summary", vehicle.Summary(booking.MaintType)).
			Msg("vehicle write failed; aborting booking write")
		return fmt.Errorf("%w: %v", ErrPartialWrite, err)
	}
	return nil
}

func isCompleted(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), policy.MaintenanceCompleted)
}
