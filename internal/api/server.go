// Package api exposes the reservation engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"fleetops/internal/models"
	"fleetops/internal/report"
	"fleetops/internal/service"
)

// VehicleStore is the fleet lookup surface used by the vehicle handlers.
type VehicleStore interface {
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	GetVehicleByRegistration(ctx context.Context, registration string) (*models.Vehicle, error)
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
}

// HTTPServer serves the reservation API.
type HTTPServer struct {
	service  *service.ReservationService
	vehicles VehicleStore
	reports  *report.Generator
	apiKey   string
	log      *zerolog.Logger
	server   *http.Server
}

// NewHTTPServer wires up routes and middleware.
func NewHTTPServer(
	port int,
	apiKey string,
	svc *service.ReservationService,
	vehicles VehicleStore,
	reports *report.Generator,
	log *zerolog.Logger,
) *HTTPServer {
	s := &HTTPServer{
		service:  svc,
		vehicles: vehicles,
		reports:  reports,
		apiKey:   apiKey,
		log:      log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/availability/check", s.requireAPIKey(s.handleCheckAvailability))
	mux.HandleFunc("/api/reservations", s.requireAPIKey(s.handleReservations))
	mux.HandleFunc("/api/reservations/", s.requireAPIKey(s.handleReservationByID))
	mux.HandleFunc("/api/vehicles", s.requireAPIKey(s.handleVehicles))
	mux.HandleFunc("/api/vehicles/", s.requireAPIKey(s.handleVehicleByID))
	mux.HandleFunc("/api/reports/schedule", s.requireAPIKey(s.handleScheduleReport))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the configured root handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving requests until Shutdown.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("API server listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requireAPIKey rejects requests without the configured X-Api-Key
// header. An empty configured key disables the check.
func (s *HTTPServer) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-Api-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
