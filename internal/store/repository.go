package store

import (
	"context"
	"time"
)

// StaffRepository manages the local staff roster and their face encodings.
type StaffRepository interface {
	// CreateStaff inserts a new staff member and fills in ID and timestamps.
	// Returns ErrDuplicateCentralID when the central id is already taken.
	CreateStaff(ctx context.Context, staff *Staff) error

	// GetStaff returns one staff member or ErrNotFound.
	GetStaff(ctx context.Context, id int64) (*Staff, error)

	// GetStaffByCentralID looks a staff member up by their central backend id.
	GetStaffByCentralID(ctx context.Context, centralID string) (*Staff, error)

	// ListStaff returns the whole roster ordered by name.
	ListStaff(ctx context.Context) ([]Staff, error)

	// ListStaffWithEncodings returns only staff members that can be
	// recognized by face.
	ListStaffWithEncodings(ctx context.Context) ([]Staff, error)

	// UpdateStaff updates name and central id. Returns ErrNotFound when the
	// row does not exist.
	UpdateStaff(ctx context.Context, staff *Staff) error

	// UpdateStaffEncoding replaces the stored face encoding and queues it
	// for the next encoding push.
	UpdateStaffEncoding(ctx context.Context, id int64, encoding []float32) error

	// ListStaffWithUnsyncedEncodings returns staff whose encoding has not
	// been pushed to the central backend yet.
	ListStaffWithUnsyncedEncodings(ctx context.Context) ([]Staff, error)

	// MarkEncodingSynced flags a staff member's encoding as pushed.
	MarkEncodingSynced(ctx context.Context, id int64) error

	// UpsertStaffByCentralID inserts or updates a roster row keyed by
	// central id. Existing encodings survive the update.
	UpsertStaffByCentralID(ctx context.Context, staff *Staff) error

	// DeleteStaff removes a staff member. Without cascade it returns
	// ErrStaffHasAttendance when attendance history exists.
	DeleteStaff(ctx context.Context, id int64, cascade bool) error
}

// AttendanceRepository manages attendance records and the sync outbox.
type AttendanceRepository interface {
	// CheckIn opens a shift for the staff member. At most one attendance
	// record exists per staff member per day; a second check-in the same
	// day returns ErrAlreadyCheckedIn, even when the first shift is
	// already closed.
	CheckIn(ctx context.Context, staffID int64, at time.Time) (*AttendanceRecord, error)

	// CheckOut closes the staff member's open shift. Returns ErrNoOpenShift
	// when there is nothing to close.
	CheckOut(ctx context.Context, staffID int64, at time.Time) (*AttendanceRecord, error)

	// GetAttendance returns the record for one staff member and day, or
	// ErrNotFound.
	GetAttendance(ctx context.Context, staffID int64, day string) (*AttendanceRecord, error)

	// ListAttendanceByDay returns every record for one calendar day.
	ListAttendanceByDay(ctx context.Context, day string) ([]AttendanceRecord, error)

	// ListAttendanceByStaff returns a staff member's records, newest first.
	ListAttendanceByStaff(ctx context.Context, staffID int64, limit int) ([]AttendanceRecord, error)

	// ListOpenShifts returns all records without a check-out.
	ListOpenShifts(ctx context.Context) ([]AttendanceRecord, error)

	// CloseDay force-closes every open shift for the given day and returns
	// the records it closed.
	CloseDay(ctx context.Context, day string, at time.Time) ([]AttendanceRecord, error)

	// ListUnsynced returns records not yet pushed to the central backend,
	// oldest first. Both open and closed shifts are eligible.
	ListUnsynced(ctx context.Context, limit int) ([]AttendanceRecord, error)

	// MarkSynced flags records as pushed. A later check-out clears the flag
	// again so the closed shift is re-pushed.
	MarkSynced(ctx context.Context, ids []int64) error
}

// Repository is the full persistence surface of the kiosk.
type Repository interface {
	StaffRepository
	AttendanceRepository

	Ping(ctx context.Context) error
	Close() error
}
