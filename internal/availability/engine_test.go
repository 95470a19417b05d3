package availability

import (
	"context"
	"errors"
	"io"
	"testing"

	"fleetops/internal/dateutil"
	"fleetops/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListReservations(ctx context.Context, kind models.ReservationKind, resType models.ResourceType, key string) ([]models.Reservation, error) {
	args := m.Called(ctx, kind, resType, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockStore) ResourceExists(ctx context.Context, resType models.ResourceType, key string) (bool, error) {
	args := m.Called(ctx, resType, key)
	return args.Bool(0), args.Error(1)
}

func newTestEngine(store Store) *Engine {
	logger := zerolog.New(io.Discard)
	return NewEngine(store, &logger)
}

func TestCheckVehicleOverlapWithJobBooking(t *testing.T) {
	store := new(mockStore)
	engine := newTestEngine(store)
	ctx := context.Background()

	existing := []models.Reservation{
		{
			ID:     "b1",
			Kind:   models.KindJobBooking,
			Status: "Confirmed",
			Resources: []models.ResourceRef{
				{Type: models.ResourceVehicle, Key: "ford transit"},
			},
			Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-01", End: "2024-03-03"},
		},
	}

	store.On("ResourceExists", ctx, models.ResourceVehicle, "ford transit").Return(true, nil)
	store.On("ListReservations", ctx, models.KindJobBooking, models.ResourceVehicle, "ford transit").Return(existing, nil)

	result, err := engine.Check(ctx, Candidate{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "Ford Transit"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-03", End: "2024-03-05"},
	})
	require.NoError(t, err)
	assert.False(t, result.Available)
	require.NotNil(t, result.Conflict)
	assert.Equal(t, "b1", result.Conflict.ConflictingID)
	assert.Equal(t, "2024-03-01", result.Conflict.WindowStart)
	assert.Equal(t, "2024-03-03", result.Conflict.WindowEnd)
	store.AssertExpectations(t)
}

func TestCheckVehicleNoOverlap(t *testing.T) {
	store := new(mockStore)
	engine := newTestEngine(store)
	ctx := context.Background()

	existing := []models.Reservation{
		{
			ID:     "b1",
			Kind:   models.KindJobBooking,
			Status: "Confirmed",
			Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-01", End: "2024-03-03"},
		},
	}

	store.On("ResourceExists", ctx, models.ResourceVehicle, "ford transit").Return(true, nil)
	store.On("ListReservations", ctx, models.KindJobBooking, models.ResourceVehicle, "ford transit").Return(existing, nil)
	store.On("ListReservations", ctx, models.KindMaintenanceBooking, models.ResourceVehicle, "ford transit").Return([]models.Reservation{}, nil)

	result, err := engine.Check(ctx, Candidate{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "ford transit"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-04", End: "2024-03-06"},
	})
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Nil(t, result.Conflict)
	store.AssertExpectations(t)
}

func TestCheckEmployeeBlockedByRequestedHoliday(t *testing.T) {
	store := new(mockStore)
	engine := newTestEngine(store)
	ctx := context.Background()

	holidays := []models.Reservation{
		{
			ID:     "h1",
			Kind:   models.KindHoliday,
			Status: "Requested",
			Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-04-01", End: "2024-04-02"},
		},
	}

	store.On("ResourceExists", ctx, models.ResourceEmployee, "alex doyle").Return(true, nil)
	store.On("ListReservations", ctx, models.KindJobBooking, models.ResourceEmployee, "alex doyle").Return([]models.Reservation{}, nil)
	store.On("ListReservations", ctx, models.KindHoliday, models.ResourceEmployee, "alex doyle").Return(holidays, nil)

	result, err := engine.Check(ctx, Candidate{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceEmployee, Key: "Alex Doyle"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowSingle, Date: "2024-04-02"},
	})
	require.NoError(t, err)
	assert.False(t, result.Available)
	require.NotNil(t, result.Conflict)
	assert.Equal(t, "h1", result.Conflict.ConflictingID)
	assert.Equal(t, models.KindHoliday, result.Conflict.Kind)
	store.AssertExpectations(t)
}

func TestCheckEquipmentOnlyAgainstJobBookings(t *testing.T) {
	store := new(mockStore)
	engine := newTestEngine(store)
	ctx := context.Background()

	store.On("ResourceExists", ctx, models.ResourceEquipment, "genny 6kva").Return(true, nil)
	store.On("ListReservations", ctx, models.KindJobBooking, models.ResourceEquipment, "genny 6kva").Return([]models.Reservation{}, nil)

	result, err := engine.Check(ctx, Candidate{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceEquipment, Key: "Genny 6kVA"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowSingle, Date: "2024-04-02"},
	})
	require.NoError(t, err)
	assert.True(t, result.Available)

	// No maintenance or holiday lookups for equipment.
	store.AssertNotCalled(t, "ListReservations", ctx, models.KindMaintenanceBooking, models.ResourceEquipment, "genny 6kva")
	store.AssertNotCalled(t, "ListReservations", ctx, models.KindHoliday, models.ResourceEquipment, "genny 6kva")
}

func TestCheckUnknownResourceIsWarningNotConflict(t *testing.T) {
	store := new(mockStore)
	engine := newTestEngine(store)
	ctx := context.Background()

	store.On("ResourceExists", ctx, models.ResourceVehicle, "ghost van").Return(false, nil)

	result, err := engine.Check(ctx, Candidate{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "Ghost Van"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowSingle, Date: "2024-04-02"},
	})
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, []string{"ghost van"}, result.UnknownResources)
	store.AssertNotCalled(t, "ListReservations", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckFailsClosedOnStoreError(t *testing.T) {
	store := new(mockStore)
	engine := newTestEngine(store)
	ctx := context.Background()

	store.On("ResourceExists", ctx, models.ResourceVehicle, "ford transit").Return(true, nil)
	store.On("ListReservations", ctx, models.KindJobBooking, models.ResourceVehicle, "ford transit").
		Return(nil, errors.New("store unavailable"))

	result, err := engine.Check(ctx, Candidate{
		Kind:   models.KindJobBooking,
		Status: "Confirmed",
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "ford transit"},
		},
		Window: dateutil.Window{Mode: dateutil.WindowSingle, Date: "2024-04-02"},
	})
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestCheckDatelessCandidateIsAvailable(t *testing.T) {
	store := new(mockStore)
	engine := newTestEngine(store)

	result, err := engine.Check(context.Background(), Candidate{
		Kind:   models.KindJobBooking,
		Status: "Enquiry",
		Resources: []models.ResourceRef{
			{Type: models.ResourceVehicle, Key: "ford transit"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Available)
	store.AssertNotCalled(t, "ListReservations", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckInvalidRange(t *testing.T) {
	store := new(mockStore)
	engine := newTestEngine(store)

	_, err := engine.Check(context.Background(), Candidate{
		Kind:   models.KindJobBooking,
		Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-05", End: "2024-03-01"},
	})
	assert.ErrorIs(t, err, dateutil.ErrInvalidRange)
}
