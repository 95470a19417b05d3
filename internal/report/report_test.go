package report

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fleetops/internal/dateutil"
	"fleetops/internal/models"
)

type stubSource struct {
	reservations []models.Reservation
	vehicles     []models.Vehicle
}

func (s *stubSource) ListReservationsInRange(ctx context.Context, start, end string) ([]models.Reservation, error) {
	return s.reservations, nil
}

func (s *stubSource) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	return s.vehicles, nil
}

func TestScheduleWorkbook(t *testing.T) {
	source := &stubSource{
		reservations: []models.Reservation{
			{
				ID:     "r1",
				Kind:   models.KindJobBooking,
				Status: "Confirmed",
				Title:  "Night shoot",
				Client: "Acme",
				Resources: []models.ResourceRef{
					{Type: models.ResourceVehicle, Key: "kx67 abc"},
				},
				Window: dateutil.Window{Mode: dateutil.WindowRange, Start: "2024-03-01", End: "2024-03-03"},
			},
			{
				ID:        "r2",
				Kind:      models.KindMaintenanceBooking,
				Status:    "Booked",
				MaintType: models.MaintenanceMOT,
				Provider:  "Kwik Fit",
				Window:    dateutil.Window{Mode: dateutil.WindowSingle, Date: "2024-03-05"},
			},
		},
		vehicles: []models.Vehicle{
			{Registration: "kx67 abc", Name: "Ford Transit", NextMOT: "2025-04-30"},
		},
	}

	logger := zerolog.New(io.Discard)
	gen := NewGenerator(source, &logger)

	var buf bytes.Buffer
	require.NoError(t, gen.Schedule(context.Background(), "2024-03-01", "2024-03-31", &buf))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()

	assert.ElementsMatch(t, []string{"Schedule", "Fleet"}, file.GetSheetList())

	rows, err := file.GetRows("Schedule")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "r1", rows[1][0])
	assert.Equal(t, "2024-03-01", rows[1][3])
	assert.Equal(t, "2024-03-03", rows[1][4])
	assert.Equal(t, "vehicle:kx67 abc", rows[1][5])
	assert.Equal(t, "MOT / Kwik Fit", rows[2][8])

	fleet, err := file.GetRows("Fleet")
	require.NoError(t, err)
	require.Len(t, fleet, 2)
	assert.Equal(t, "kx67 abc", fleet[1][0])
	assert.Equal(t, "2025-04-30", fleet[1][3])
}
