package store

import (
	"time"
)

// Staff represents a registered staff member on this terminal.
type Staff struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CentralID string    `json:"central_id,omitempty"` // Staff document id in the central backend, empty until linked
	Encoding  []float32 `json:"-"`                    // Face encoding; nil for manual-only staff
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEncoding reports whether the staff member can be recognized by face.
func (s *Staff) HasEncoding() bool {
	return len(s.Encoding) > 0
}

// AttendanceRecord is one staff member's attendance for one calendar day.
// A record is "open" while CheckOut is nil. There is never more than one
// record per (staff, day) pair.
type AttendanceRecord struct {
	ID        int64      `json:"id"`
	StaffID   int64      `json:"staff_id"`
	Day       string     `json:"day"` // YYYY-MM-DD
	CheckIn   time.Time  `json:"check_in"`
	CheckOut  *time.Time `json:"check_out,omitempty"`
	Synced    bool       `json:"synced"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Open reports whether the record is still an open shift.
func (r *AttendanceRecord) Open() bool {
	return r.CheckOut == nil
}

// Hours returns the worked hours, zero while the shift is open.
func (r *AttendanceRecord) Hours() float64 {
	if r.CheckOut == nil {
		return 0
	}
	return r.CheckOut.Sub(r.CheckIn).Hours()
}

// DayOf formats a timestamp as the calendar day key used by attendance rows.
func DayOf(t time.Time) string {
	return t.Format("2006-01-02")
}
