// Package policy classifies reservation statuses as blocking or
// non-blocking for availability purposes. All predicates are pure and
// safe for concurrent use.
package policy

import "strings"

// Job booking statuses that count toward resource unavailability.
// Enquiry, Cancelled and the rest are visible elsewhere but never block.
const (
	StatusConfirmed    = "Confirmed"
	StatusFirstPencil  = "First Pencil"
	StatusSecondPencil = "Second Pencil"
	StatusEnquiry      = "Enquiry"
	StatusCancelled    = "Cancelled"
)

// Maintenance booking lifecycle statuses.
const (
	MaintenanceRequested = "Requested"
	MaintenanceBooked    = "Booked"
	MaintenanceCompleted = "Completed"
	MaintenanceCancelled = "Cancelled"
)

// Holiday statuses.
const (
	HolidayRequested = "Requested"
	HolidayApproved  = "Approved"
	HolidayDeclined  = "Declined"
)

var blockingJobStatuses = []string{
	StatusConfirmed,
	StatusFirstPencil,
	StatusSecondPencil,
}

// normalize trims, lower-cases and collapses internal whitespace so that
// "  First   Pencil " and "first pencil" compare equal.
func normalize(status string) string {
	return strings.Join(strings.Fields(strings.ToLower(status)), " ")
}

// IsBlockingJobStatus reports whether a job booking status makes its
// reservation count against availability.
func IsBlockingJobStatus(status string) bool {
	norm := normalize(status)
	for _, s := range blockingJobStatuses {
		if norm == normalize(s) {
			return true
		}
	}
	return false
}

// IsBlockingMaintenanceStatus reports whether a maintenance booking
// blocks its vehicle. Anything that reads as cancelled or declined does
// not; everything else does.
func IsBlockingMaintenanceStatus(status string) bool {
	norm := normalize(status)
	return !strings.Contains(norm, "cancel") && !strings.Contains(norm, "declin")
}

// IsBlockingHolidayStatus reports whether a holiday blocks its employee.
// Only a declined holiday frees the employee; requested and pending
// holidays block so crew cannot be double-booked before approval.
func IsBlockingHolidayStatus(status string) bool {
	return normalize(status) != normalize(HolidayDeclined)
}

// IsTerminalMaintenanceStatus reports whether a maintenance booking has
// reached a state after which no further date propagation happens.
func IsTerminalMaintenanceStatus(status string) bool {
	norm := normalize(status)
	return norm == normalize(MaintenanceCompleted) || strings.Contains(norm, "cancel")
}
