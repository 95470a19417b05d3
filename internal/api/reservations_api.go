package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fleetops/internal/availability"
	"fleetops/internal/database"
	"fleetops/internal/dateutil"
	"fleetops/internal/metrics"
	"fleetops/internal/models"
)

// CheckResponse is the body for POST /api/availability/check.
type CheckResponse struct {
	Available        bool             `json:"available"`
	Conflict         *models.Conflict `json:"conflict,omitempty"`
	UnknownResources []string         `json:"unknown_resources,omitempty"`
}

// ReservationResponse is the body for reservation writes.
type ReservationResponse struct {
	Reservation      *models.Reservation `json:"reservation,omitempty"`
	Conflict         *models.Conflict    `json:"conflict,omitempty"`
	UnknownResources []string            `json:"unknown_resources,omitempty"`
	Error            string              `json:"error,omitempty"`
}

// StatusRequest is the body for POST /api/reservations/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// maxCheckDays caps the advisory check window.
const maxCheckDays = 90

// handleCheckAvailability runs the advisory conflict check.
// POST /api/availability/check
func (s *HTTPServer) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_check")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var candidate availability.Candidate
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&candidate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if days, err := dateutil.NormalizeWindow(candidate.Window); err == nil && len(days) > maxCheckDays {
		writeError(w, http.StatusBadRequest, "window too large; maximum 90 days")
		return
	}

	result, err := s.service.CheckAvailability(r.Context(), candidate)
	if err != nil {
		s.writeCheckError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CheckResponse{
		Available:        result.Available,
		Conflict:         result.Conflict,
		UnknownResources: result.UnknownResources,
	})
}

// handleReservations creates a reservation.
// POST /api/reservations
func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var res models.Reservation
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateReservation(&res); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.CreateReservation(r.Context(), &res)
	if err != nil {
		s.writeReservationError(w, result, err)
		return
	}

	writeJSON(w, http.StatusCreated, ReservationResponse{
		Reservation:      &res,
		UnknownResources: result.UnknownResources,
	})
}

// handleReservationByID routes /api/reservations/{id} and
// /api/reservations/{id}/status.
func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/reservations/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == "" {
		writeError(w, http.StatusBadRequest, "reservation id is required")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/status"); ok {
		s.handleReservationStatus(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetReservation(w, r, rest)
	case http.MethodPatch, http.MethodPut:
		s.handleUpdateReservation(w, r, rest)
	case http.MethodDelete:
		s.handleDeleteReservation(w, r, rest)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request, id string) {
	metrics.IncHTTP("reservation_get")
	res, err := s.service.GetReservation(r.Context(), id)
	if err != nil {
		s.writeReservationError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleUpdateReservation(w http.ResponseWriter, r *http.Request, id string) {
	metrics.IncHTTP("reservation_update")

	var res models.Reservation
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res.ID = id
	if err := validateReservation(&res); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.UpdateReservation(r.Context(), &res)
	if err != nil {
		s.writeReservationError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, ReservationResponse{
		Reservation:      &res,
		UnknownResources: result.UnknownResources,
	})
}

func (s *HTTPServer) handleReservationStatus(w http.ResponseWriter, r *http.Request, id string) {
	metrics.IncHTTP("reservation_status")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req StatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	res, result, err := s.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeReservationError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, ReservationResponse{
		Reservation:      res,
		UnknownResources: result.UnknownResources,
	})
}

func (s *HTTPServer) handleDeleteReservation(w http.ResponseWriter, r *http.Request, id string) {
	metrics.IncHTTP("reservation_delete")
	if err := s.service.DeleteReservation(r.Context(), id); err != nil {
		s.writeReservationError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func validateReservation(res *models.Reservation) error {
	switch res.Kind {
	case models.KindJobBooking, models.KindMaintenanceBooking, models.KindHoliday:
	default:
		return errors.New("kind must be JOB_BOOKING, MAINTENANCE_BOOKING or HOLIDAY")
	}
	if res.Kind == models.KindMaintenanceBooking && res.VehicleID == "" {
		return errors.New("vehicle_id is required for maintenance bookings")
	}
	return nil
}

func (s *HTTPServer) writeCheckError(w http.ResponseWriter, err error) {
	if errors.Is(err, dateutil.ErrInvalidRange) || errors.Is(err, dateutil.ErrInvalidDay) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Error().Err(err).Msg("availability check failed")
	writeError(w, http.StatusInternalServerError, "availability check failed")
}

func (s *HTTPServer) writeReservationError(w http.ResponseWriter, result *availability.Result, err error) {
	switch {
	case errors.Is(err, database.ErrConflict):
		resp := ReservationResponse{Error: "reservation conflicts with an existing reservation"}
		if result != nil {
			resp.Conflict = result.Conflict
			resp.UnknownResources = result.UnknownResources
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, dateutil.ErrInvalidRange), errors.Is(err, dateutil.ErrInvalidDay):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("reservation request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
