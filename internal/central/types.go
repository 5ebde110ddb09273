package central

import (
	"fmt"
	"time"
)

// RosterEntry is one staff member as the central backend publishes them.
type RosterEntry struct {
	ID        string    `json:"name"` // Frappe document id
	StaffName string    `json:"staff_name"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"modified"`
}

// Active reports whether the staff member should appear on kiosk rosters.
func (e *RosterEntry) Active() bool {
	return e.Status == "" || e.Status == "Active"
}

// AttendancePayload is one attendance record in the central wire format.
type AttendancePayload struct {
	StaffID  string  `json:"staff_id"`
	Day      string  `json:"date"`
	CheckIn  string  `json:"check_in"`
	CheckOut string  `json:"check_out,omitempty"`
	Hours    float64 `json:"hours_worked,omitempty"`
}

// APIError is a response the central backend rejected. Unlike transport
// failures these records should not be retried verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("central backend rejected request: status %d: %s", e.StatusCode, e.Message)
}
