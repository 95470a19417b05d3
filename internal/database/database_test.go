package database

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"fleetops/internal/availability"
	"fleetops/internal/dateutil"
	"fleetops/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "fleetops_test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedVehicle(t *testing.T, db *DB, registration string) *models.Vehicle {
	t.Helper()
	v := &models.Vehicle{Registration: registration, Name: "Ford Transit", MOTFreqWeeks: 52, ServiceFreqWeeks: 26}
	require.NoError(t, db.CreateVehicle(context.Background(), v))
	return v
}

func TestReservationRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedVehicle(t, db, "kx67 abc")

	res := &models.Reservation{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Title:  "Night shoot",
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "KX67 ABC"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-01", End: "2024-03-03"},
	}
	require.NoError(t, db.CreateReservation(ctx, res))
	require.NotEmpty(t, res.ID)

	got, err := db.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Status, got.Status)
	assert.Equal(t, res.Title, got.Title)
	assert.Equal(t, res.Window, got.Window)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "kx67 abc", got.Resources[0].Key)

	listed, err := db.ListReservations(ctx, models.KindJobBooking, models.ResourceVehicle, "kx67  ABC")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, res.ID, listed[0].ID)

	// No match for a different resource.
	listed, err = db.ListReservations(ctx, models.KindJobBooking, models.ResourceVehicle, "other van")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestUpdateReservationRewritesDays(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	res := &models.Reservation{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceEquipment, Key: "genny"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-01", End: "2024-03-05"},
	}
	require.NoError(t, db.CreateReservation(ctx, res))

	res.Window = dateutil.Window{Mode: dateutil.WindowSingle, Date: "2024-03-10"}
	require.NoError(t, db.UpdateReservation(ctx, res))

	listed, err := db.ListReservationsInRange(ctx, "2024-03-01", "2024-03-05")
	require.NoError(t, err)
	assert.Empty(t, listed, "old day rows must be gone after update")

	listed, err = db.ListReservationsInRange(ctx, "2024-03-10", "2024-03-10")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestDeleteReservation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	res := &models.Reservation{
		Kind:   models.KindHoliday,
		Status: "Requested",
		Resources: []models.ResourceRef{
			{Type: models.ResourceEmployee, Key: "alex doyle"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowSingle, Date: "2024-04-01"},
	}
	require.NoError(t, db.CreateReservation(ctx, res))
	require.NoError(t, db.DeleteReservation(ctx, res.ID, nil))

	_, err := db.GetReservation(ctx, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, db.DeleteReservation(ctx, res.ID, nil), ErrNotFound)
}

func TestTryReserveEnforcesConflicts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	seedVehicle(t, db, "kx67 abc")

	reserve := func(res *models.Reservation) (*availability.Result, error) {
		return db.TryReserve(ctx, res, func(ctx context.Context, store availability.Store) (*availability.Result, error) {
			engine := availability.NewEngine(store, &logger)
			return engine.Check(ctx, availability.Candidate{
				Kind:          res.Kind,
				Status:        res.Status,
				Resources:     res.Resources,
				Window:        res.Window,
				ExcludeSelfID: res.ID,
			})
		}, nil)
	}

	first := &models.Reservation{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "KX67 ABC"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-01", End: "2024-03-03"},
	}
	result, err := reserve(first)
	require.NoError(t, err)
	assert.True(t, result.Available)

	// Overlapping candidate must be rejected and rolled back.
	second := &models.Reservation{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "kx67 abc"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-03", End: "2024-03-05"},
	}
	result, err = reserve(second)
	assert.ErrorIs(t, err, ErrConflict)
	require.NotNil(t, result)
	require.NotNil(t, result.Conflict)
	assert.Equal(t, first.ID, result.Conflict.ConflictingID)

	_, err = db.GetReservation(ctx, second.ID)
	assert.ErrorIs(t, err, ErrNotFound, "conflicting write must not persist")

	// Non-overlapping candidate goes through.
	third := &models.Reservation{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "kx67 abc"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-04", End: "2024-03-06"},
	}
	result, err = reserve(third)
	require.NoError(t, err)
	assert.True(t, result.Available)
}

func TestTryReserveCommitsVehicleWriteWithBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	vehicle := seedVehicle(t, db, "kx67 abc")

	alwaysAvailable := func(ctx context.Context, store availability.Store) (*availability.Result, error) {
		return &availability.Result{Available: true}, nil
	}

	booking := &models.Reservation{
		Kind:      models.KindMaintenanceBooking,
		Status:    "Booked",
		MaintType: models.MaintenanceMOT,
		VehicleID: vehicle.ID,
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "kx67 abc"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowSingle, Date: "2024-05-01"},
	}

	_, err := db.TryReserve(ctx, booking, alwaysAvailable, func(ctx context.Context, tx Txn) error {
		v, err := tx.GetVehicle(ctx, vehicle.ID)
		if err != nil {
			return err
		}
		v.MOTSummary = models.MaintenanceSummary{BookedStatus: "Booked", LinkedBookingID: booking.ID}
		return tx.UpdateVehicle(ctx, v)
	})
	require.NoError(t, err)

	reloaded, err := db.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, reloaded.MOTSummary.LinkedBookingID)
}

func TestTryReserveRollsBackBookingWhenApplyFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	vehicle := seedVehicle(t, db, "kx67 abc")

	alwaysAvailable := func(ctx context.Context, store availability.Store) (*availability.Result, error) {
		return &availability.Result{Available: true}, nil
	}

	booking := &models.Reservation{
		Kind:      models.KindMaintenanceBooking,
		Status:    "Booked",
		MaintType: models.MaintenanceMOT,
		VehicleID: vehicle.ID,
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "kx67 abc"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowSingle, Date: "2024-05-01"},
	}

	vehicleWriteFailed := errors.New("vehicle write failed")
	_, err := db.TryReserve(ctx, booking, alwaysAvailable, func(ctx context.Context, tx Txn) error {
		return vehicleWriteFailed
	})
	assert.ErrorIs(t, err, vehicleWriteFailed)

	// The booking write must roll back with the failed vehicle write.
	_, err = db.GetReservation(ctx, booking.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	reloaded, err := db.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.MOTSummary.Empty())
}

func TestVehicleRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	v := seedVehicle(t, db, "KX67 ABC")

	got, err := db.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Registration, got.Registration)
	assert.Equal(t, 52, got.MOTFreqWeeks)
	assert.True(t, got.MOTSummary.Empty())

	got.LastMOT = "2024-05-01"
	got.NextMOT = "2025-04-30"
	got.MOTSummary = models.MaintenanceSummary{BookedStatus: "Booked", LinkedBookingID: "b1"}
	require.NoError(t, db.UpdateVehicle(ctx, got))

	reloaded, err := db.GetVehicleByRegistration(ctx, " kx67  abc ")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", reloaded.LastMOT)
	assert.Equal(t, "b1", reloaded.MOTSummary.LinkedBookingID)

	// A registration stored with doubled internal whitespace resolves
	// by its normalized key.
	require.NoError(t, db.CreateVehicle(ctx, &models.Vehicle{Registration: "LM19  XYZ"}))
	spaced, err := db.GetVehicleByRegistration(ctx, "lm19 xyz")
	require.NoError(t, err)
	assert.Equal(t, "LM19  XYZ", spaced.Registration)

	_, err = db.GetVehicle(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResourceExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedVehicle(t, db, "kx67 abc")
	require.NoError(t, db.CreateEmployee(ctx, &models.Employee{Name: "Alex Doyle", Role: "Driver"}))
	require.NoError(t, db.CreateEquipment(ctx, &models.Equipment{Name: "Genny 6kVA"}))

	// Doubled internal whitespace in the stored registration must still
	// resolve through the normalized key.
	require.NoError(t, db.CreateVehicle(ctx, &models.Vehicle{Registration: "LM19  XYZ", Name: "Luton Van"}))

	tests := []struct {
		resType models.ResourceType
		key     string
		want    bool
	}{
		{models.ResourceVehicle, "KX67  ABC", true},
		{models.ResourceVehicle, "lm19 xyz", true},
		{models.ResourceVehicle, "luton  van", true},
		{models.ResourceVehicle, "ford transit", true}, // display name
		{models.ResourceVehicle, "ghost van", false},
		{models.ResourceEmployee, "alex doyle", true},
		{models.ResourceEmployee, "sam smith", false},
		{models.ResourceEquipment, "genny 6kva", true},
		{models.ResourceEquipment, "crane", false},
	}

	for _, tt := range tests {
		got, err := db.ResourceExists(ctx, tt.resType, tt.key)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %q", tt.resType, tt.key)
	}
}
