// Package reminders watches vehicle maintenance due dates and nudges
// the manager chat before they lapse.
package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fleetops/internal/dateutil"
	"fleetops/internal/metrics"
	"fleetops/internal/models"
	"fleetops/internal/policy"
)

// VehicleSource lists the fleet to scan for due maintenance.
type VehicleSource interface {
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
}

// Notifier delivers a reminder message.
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
}

// Config controls the daily schedule and lookahead window.
type Config struct {
	DailyHour     int
	LeadWeeks     int
	CheckInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		DailyHour:     8,
		LeadWeeks:     4,
		CheckInterval: time.Minute,
	}
}

// Service runs the daily maintenance-due scan.
type Service struct {
	config   Config
	vehicles VehicleSource
	notifier Notifier
	log      *zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastRunDate string
}

func NewService(config Config, vehicles VehicleSource, notifier Notifier, log *zerolog.Logger) *Service {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if config.LeadWeeks <= 0 {
		config.LeadWeeks = 4
	}
	return &Service{
		config:   config,
		vehicles: vehicles,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Start runs the scheduler loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.log.Info().
		Int("daily_hour", s.config.DailyHour).
		Int("lead_weeks", s.config.LeadWeeks).
		Msg("Reminder scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Reminder scheduler stopped")
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

func (s *Service) checkAndRun(ctx context.Context) {
	now := s.now()
	today := dateutil.FormatDay(now)

	s.mu.Lock()
	alreadyRan := s.lastRunDate == today
	s.mu.Unlock()

	if alreadyRan || now.Hour() != s.config.DailyHour {
		return
	}

	s.mu.Lock()
	s.lastRunDate = today
	s.mu.Unlock()

	s.RunNow(ctx)
}

// RunNow scans the fleet and sends one reminder per due maintenance
// entry. Already-booked entries are skipped.
func (s *Service) RunNow(ctx context.Context) {
	vehicles, err := s.vehicles.ListVehicles(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list vehicles for reminders")
		return
	}

	today := dateutil.FormatDay(s.now())
	horizon, err := dateutil.AddDays(today, s.config.LeadWeeks*7)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to compute reminder horizon")
		return
	}

	sent := 0
	for i := range vehicles {
		v := &vehicles[i]
		for _, due := range s.dueEntries(v, today, horizon) {
			if err := s.notifier.SendMessage(ctx, due); err != nil {
				s.log.Error().Err(err).Str("vehicle", v.Registration).Msg("Failed to send reminder")
				continue
			}
			metrics.IncReminderSent()
			sent++
		}
	}

	s.log.Info().
		Int("vehicles", len(vehicles)).
		Int("reminders_sent", sent).
		Str("horizon", horizon).
		Msg("Maintenance reminder scan finished")
}

func (s *Service) dueEntries(v *models.Vehicle, today, horizon string) []string {
	var due []string
	for _, mt := range []models.MaintenanceType{models.MaintenanceMOT, models.MaintenanceService} {
		nextDue := v.NextMOT
		if mt == models.MaintenanceService {
			nextDue = v.NextService
		}
		summary := v.Summary(mt)
		if nextDue == "" || nextDue > horizon {
			continue
		}
		// A live booking already covers this entry.
		if summary.BookedStatus != "" && policy.IsBlockingMaintenanceStatus(summary.BookedStatus) {
			continue
		}
		label := fmt.Sprintf("%s due %s", mt, nextDue)
		if nextDue < today {
			label = fmt.Sprintf("%s OVERDUE since %s", mt, nextDue)
		}
		due = append(due, fmt.Sprintf("%s (%s): %s", v.Registration, v.Name, label))
	}
	return due
}
