// Package report builds xlsx schedule exports for a date range.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"fleetops/internal/models"
)

// Source provides the data behind a schedule report.
type Source interface {
	ListReservationsInRange(ctx context.Context, start, end string) ([]models.Reservation, error)
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
}

// Generator renders schedule workbooks.
type Generator struct {
	source Source
	log    *zerolog.Logger
}

func NewGenerator(source Source, log *zerolog.Logger) *Generator {
	return &Generator{source: source, log: log}
}

var scheduleColumns = []string{
	"ID", "Kind", "Status", "Start", "End", "Resources", "Title", "Client", "Details",
}

var fleetColumns = []string{
	"Registration", "Name", "Last MOT", "Next MOT", "Last Service", "Next Service", "MOT Booked", "Service Booked",
}

// Schedule writes a workbook covering [start, end] to w.
func (g *Generator) Schedule(ctx context.Context, start, end string, w io.Writer) error {
	reservations, err := g.source.ListReservationsInRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	vehicles, err := g.source.ListVehicles(ctx)
	if err != nil {
		return fmt.Errorf("load vehicles: %w", err)
	}

	wb := newWorkbook()
	defer wb.close()

	if err := wb.addSheet("Schedule"); err != nil {
		return err
	}
	if err := wb.writeHeader(scheduleColumns); err != nil {
		return err
	}
	for _, res := range reservations {
		days, _ := res.Days()
		first, last := days.Bounds()
		if err := wb.writeRow([]interface{}{
			res.ID, string(res.Kind), res.Status, first, last,
			resourceList(res), res.Title, res.Client, detailText(res),
		}); err != nil {
			return err
		}
	}

	if err := wb.addSheet("Fleet"); err != nil {
		return err
	}
	if err := wb.writeHeader(fleetColumns); err != nil {
		return err
	}
	for i := range vehicles {
		v := &vehicles[i]
		if err := wb.writeRow([]interface{}{
			v.Registration, v.Name, v.LastMOT, v.NextMOT, v.LastService, v.NextService,
			v.MOTSummary.BookedStatus, v.ServiceSummary.BookedStatus,
		}); err != nil {
			return err
		}
	}

	g.log.Info().
		Str("start", start).
		Str("end", end).
		Int("reservations", len(reservations)).
		Int("vehicles", len(vehicles)).
		Msg("Schedule report generated")

	return wb.save(w)
}

func resourceList(res models.Reservation) string {
	parts := make([]string, 0, len(res.Resources))
	for _, ref := range res.Resources {
		parts = append(parts, fmt.Sprintf("%s:%s", ref.Type, ref.Key))
	}
	return strings.Join(parts, "; ")
}

func detailText(res models.Reservation) string {
	if res.Kind != models.KindMaintenanceBooking {
		return res.Notes
	}
	parts := []string{string(res.MaintType)}
	if res.Provider != "" {
		parts = append(parts, res.Provider)
	}
	if res.BookingRef != "" {
		parts = append(parts, res.BookingRef)
	}
	return strings.Join(parts, " / ")
}
