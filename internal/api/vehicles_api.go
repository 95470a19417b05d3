package api

import (
	"errors"
	"net/http"
	"strings"

	"fleetops/internal/database"
	"fleetops/internal/dateutil"
	"fleetops/internal/metrics"
)

// handleVehicles lists the fleet.
// GET /api/vehicles
func (s *HTTPServer) handleVehicles(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("vehicles")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	vehicles, err := s.vehicles.ListVehicles(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list vehicles")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles})
}

// handleVehicleByID fetches one vehicle by id or registration.
// GET /api/vehicles/{id}
func (s *HTTPServer) handleVehicleByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("vehicle_get")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/vehicles/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "vehicle id is required")
		return
	}

	vehicle, err := s.vehicles.GetVehicle(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		vehicle, err = s.vehicles.GetVehicleByRegistration(r.Context(), id)
	}
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("failed to get vehicle")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// handleScheduleReport streams an xlsx schedule export.
// GET /api/reports/schedule?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *HTTPServer) handleScheduleReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule_report")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "start and end are required")
		return
	}
	if _, err := dateutil.ParseDay(start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid start format; expected YYYY-MM-DD")
		return
	}
	if _, err := dateutil.ParseDay(end); err != nil {
		writeError(w, http.StatusBadRequest, "invalid end format; expected YYYY-MM-DD")
		return
	}
	if start > end {
		writeError(w, http.StatusBadRequest, "start must be before or equal to end")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule_`+start+`_`+end+`.xlsx"`)
	if err := s.reports.Schedule(r.Context(), start, end, w); err != nil {
		s.log.Error().Err(err).Msg("failed to generate schedule report")
	}
}
