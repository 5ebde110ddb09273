package store

import "errors"

var (
	// ErrNotFound is returned when a staff member or attendance record
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyCheckedIn is returned when a check-in is attempted for a
	// staff member who already has an attendance record for the day.
	ErrAlreadyCheckedIn = errors.New("already checked in today")

	// ErrNoOpenShift is returned when a check-out is attempted without an
	// open shift.
	ErrNoOpenShift = errors.New("no open shift")

	// ErrShiftStillOpen is returned when a check-in is attempted while a
	// shift from an earlier day is still open. Close-day clears it.
	ErrShiftStillOpen = errors.New("a shift from an earlier day is still open")

	// ErrStaffHasAttendance is returned when deleting a staff member who
	// still has attendance history and cascade deletes are disabled.
	ErrStaffHasAttendance = errors.New("staff member has attendance records")

	// ErrDuplicateCentralID is returned when creating or updating a staff
	// member with a central id already linked to another row.
	ErrDuplicateCentralID = errors.New("central id already linked")
)
