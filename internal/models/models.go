// Package models defines the reservation and fleet records shared
// across the service.
package models

import (
	"time"

	"fleetops/internal/dateutil"
	"fleetops/internal/policy"
)

// ReservationKind discriminates the three reservation families.
type ReservationKind string

const (
	KindJobBooking         ReservationKind = "JOB_BOOKING"
	KindMaintenanceBooking ReservationKind = "MAINTENANCE_BOOKING"
	KindHoliday            ReservationKind = "HOLIDAY"
)

// ResourceType identifies what a reservation holds.
type ResourceType string

const (
	ResourceVehicle   ResourceType = "vehicle"
	ResourceEquipment ResourceType = "equipment"
	ResourceEmployee  ResourceType = "employee"
)

// MaintenanceType selects which due-date pair on the vehicle a
// maintenance booking drives.
type MaintenanceType string

const (
	MaintenanceMOT     MaintenanceType = "MOT"
	MaintenanceService MaintenanceType = "Service"
)

// ResourceRef points a reservation at a bookable resource.
// Key is stored as entered; comparisons always go through
// dateutil.NormalizeResourceKey.
type ResourceRef struct {
	Type ResourceType `json:"type"`
	Key  string       `json:"key"`
}

// Reservation is the unified record for job bookings, maintenance
// bookings and holidays.
type Reservation struct {
	ID        string          `json:"id"`
	Kind      ReservationKind `json:"kind"`
	Status    string          `json:"status"`
	Resources []ResourceRef   `json:"resources"`
	Window    dateutil.Window `json:"window"`

	// Job booking fields.
	Title  string `json:"title,omitempty"`
	Client string `json:"client,omitempty"`

	// Maintenance booking fields.
	MaintType  MaintenanceType `json:"maint_type,omitempty"`
	VehicleID  string          `json:"vehicle_id,omitempty"`
	Provider   string          `json:"provider,omitempty"`
	BookingRef string          `json:"booking_ref,omitempty"`
	Location   string          `json:"location,omitempty"`
	Cost       string          `json:"cost,omitempty"`
	Notes      string          `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Days expands the reservation window into its day set.
func (r *Reservation) Days() (dateutil.DaySet, error) {
	return dateutil.NormalizeWindow(r.Window)
}

// Blocking reports whether the reservation counts toward resource
// unavailability, per the kind-specific status policy. A reservation
// with no dates never blocks.
func (r *Reservation) Blocking() bool {
	days, err := r.Days()
	if err != nil || len(days) == 0 {
		return false
	}
	switch r.Kind {
	case KindJobBooking:
		return policy.IsBlockingJobStatus(r.Status)
	case KindMaintenanceBooking:
		return policy.IsBlockingMaintenanceStatus(r.Status)
	case KindHoliday:
		return policy.IsBlockingHolidayStatus(r.Status)
	}
	return false
}

// References reports whether the reservation holds the given resource,
// comparing normalized keys.
func (r *Reservation) References(resType ResourceType, key string) bool {
	norm := dateutil.NormalizeResourceKey(key)
	for _, ref := range r.Resources {
		if ref.Type == resType && dateutil.NormalizeResourceKey(ref.Key) == norm {
			return true
		}
	}
	return false
}

// ResourceKeys returns the normalized keys of the given type.
func (r *Reservation) ResourceKeys(resType ResourceType) []string {
	var keys []string
	for _, ref := range r.Resources {
		if ref.Type == resType {
			keys = append(keys, dateutil.NormalizeResourceKey(ref.Key))
		}
	}
	return keys
}

// CompletionDate is the date maintenance work is considered finished:
// the appointment day for single-day bookings, otherwise the range end
// (falling back to the range start when no end was recorded).
func (r *Reservation) CompletionDate() string {
	switch r.Window.Mode {
	case dateutil.WindowSingle:
		return r.Window.Date
	case dateutil.WindowRange:
		if r.Window.End != "" {
			return r.Window.End
		}
		return r.Window.Start
	case dateutil.WindowList:
		days, err := r.Days()
		if err != nil {
			return ""
		}
		_, max := days.Bounds()
		return max
	}
	return ""
}

// Conflict describes the first blocking reservation that overlaps a
// candidate on a shared resource.
type Conflict struct {
	ResourceType  ResourceType    `json:"resource_type"`
	ResourceKey   string          `json:"resource_key"`
	ConflictingID string          `json:"conflicting_id"`
	Kind          ReservationKind `json:"kind"`
	WindowStart   string          `json:"window_start"`
	WindowEnd     string          `json:"window_end"`
	Status        string          `json:"status"`
	Label         string          `json:"label,omitempty"`
}

// MaintenanceSummary is the denormalized "current maintenance state"
// block kept on a vehicle, mirroring its latest maintenance booking.
type MaintenanceSummary struct {
	BookedStatus    string `json:"booked_status,omitempty"`
	BookedOn        string `json:"booked_on,omitempty"`
	AppointmentDate string `json:"appointment_date,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	Provider        string `json:"provider,omitempty"`
	BookingRef      string `json:"booking_ref,omitempty"`
	Location        string `json:"location,omitempty"`
	Cost            string `json:"cost,omitempty"`
	Notes           string `json:"notes,omitempty"`
	LinkedBookingID string `json:"linked_booking_id,omitempty"`
}

// Empty reports whether every summary field is clear.
func (s MaintenanceSummary) Empty() bool {
	return s == MaintenanceSummary{}
}

// Vehicle is the fleet record relevant to availability and maintenance
// propagation.
type Vehicle struct {
	ID           string `json:"id"`
	Registration string `json:"registration"`
	Name         string `json:"name"`

	MOTFreqWeeks     int `json:"mot_freq_weeks"`
	ServiceFreqWeeks int `json:"service_freq_weeks"`

	LastMOT     string `json:"last_mot,omitempty"`
	NextMOT     string `json:"next_mot,omitempty"`
	LastService string `json:"last_service,omitempty"`
	NextService string `json:"next_service,omitempty"`

	MOTSummary     MaintenanceSummary `json:"mot_summary"`
	ServiceSummary MaintenanceSummary `json:"service_summary"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary returns the summary block for the given maintenance type.
func (v *Vehicle) Summary(mt MaintenanceType) MaintenanceSummary {
	if mt == MaintenanceService {
		return v.ServiceSummary
	}
	return v.MOTSummary
}

// SetSummary replaces the summary block for the given maintenance type.
func (v *Vehicle) SetSummary(mt MaintenanceType, s MaintenanceSummary) {
	if mt == MaintenanceService {
		v.ServiceSummary = s
		return
	}
	v.MOTSummary = s
}

// FreqWeeks returns the recurrence interval for the given maintenance
// type; zero means the interval is unset and no next-due can be derived.
func (v *Vehicle) FreqWeeks(mt MaintenanceType) int {
	if mt == MaintenanceService {
		return v.ServiceFreqWeeks
	}
	return v.MOTFreqWeeks
}

// Employee is a bookable crew member.
type Employee struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Equipment is a bookable equipment item.
type Equipment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
