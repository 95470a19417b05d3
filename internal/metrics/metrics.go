package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetops",
			Name:      "availability_checks_total",
			Help:      "Count of availability checks by outcome.",
		},
		[]string{"outcome"},
	)

	conflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetops",
			Name:      "conflicts_detected_total",
			Help:      "Count of conflicts detected by candidate kind.",
		},
		[]string{"kind"},
	)

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetops",
			Name:      "reservations_created_total",
			Help:      "Count of reservations created by kind.",
		},
		[]string{"kind"},
	)

	maintenanceCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetops",
			Name:      "maintenance_completed_total",
			Help:      "Count of maintenance bookings completed by type.",
		},
		[]string{"maint_type"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetops",
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetops",
			Name:      "reminders_sent_total",
			Help:      "Count of maintenance-due reminders sent.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityChecks,
			conflictsDetected,
			reservationsCreated,
			maintenanceCompleted,
			httpRequests,
			remindersSent,
		)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncAvailabilityCheck(outcome string) {
	availabilityChecks.WithLabelValues(outcome).Inc()
}

func IncConflictDetected(kind string) {
	conflictsDetected.WithLabelValues(kind).Inc()
}

func IncReservationCreated(kind string) {
	reservationsCreated.WithLabelValues(kind).Inc()
}

func IncMaintenanceCompleted(maintType string) {
	maintenanceCompleted.WithLabelValues(maintType).Inc()
}

func IncReminderSent() {
	remindersSent.Inc()
}
