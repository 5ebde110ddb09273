package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/lib/pq"
)

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

// openShiftIndex guards the one-open-shift-per-staff invariant across days.
const openShiftIndex = "attendance_open_shift_idx"

// defaultUnsyncedLimit bounds one outbox batch when the caller does not.
const defaultUnsyncedLimit = 500

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}

// CheckIn opens a shift. The (staff_id, day) unique constraint makes a second
// check-in the same day a no-op insert, which we surface as ErrAlreadyCheckedIn.
// An open shift left over from an earlier day trips the open-shift index
// instead of the ON CONFLICT arbiter and comes back as ErrShiftStillOpen.
func (s *Store) CheckIn(ctx context.Context, staffID int64, at time.Time) (*store.AttendanceRecord, error) {
	day := store.DayOf(at)

	record := &store.AttendanceRecord{
		StaffID: staffID,
		Day:     day,
		CheckIn: at,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO attendance (staff_id, day, check_in)
		VALUES ($1, $2, $3)
		ON CONFLICT (staff_id, day) DO NOTHING
		RETURNING id, updated_at
	`, staffID, day, at).Scan(&record.ID, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAlreadyCheckedIn
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err, openShiftIndex) {
			return nil, store.ErrShiftStillOpen
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return record, nil
}

// CheckOut closes the open shift. The shift is marked unsynced again so the
// completed record gets pushed even when the check-in already was.
func (s *Store) CheckOut(ctx context.Context, staffID int64, at time.Time) (*store.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE attendance
		SET check_out = $2, synced = FALSE, updated_at = NOW()
		WHERE staff_id = $1 AND check_out IS NULL
		RETURNING id, staff_id, day, check_in, check_out, synced, updated_at
	`, staffID, at)

	record, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoOpenShift
		}
		return nil, err
	}
	return record, nil
}

// GetAttendance returns the record for one staff member and day.
func (s *Store) GetAttendance(ctx context.Context, staffID int64, day string) (*store.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, staff_id, day, check_in, check_out, synced, updated_at
		FROM attendance
		WHERE staff_id = $1 AND day = $2
	`, staffID, day)

	record, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListAttendanceByDay returns every record for one calendar day.
func (s *Store) ListAttendanceByDay(ctx context.Context, day string) ([]store.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, staff_id, day, check_in, check_out, synced, updated_at
		FROM attendance
		WHERE day = $1
		ORDER BY check_in, id
	`, day)
	if err != nil {
		return nil, fmt.Errorf("query attendance by day: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRows(rows)
}

// ListAttendanceByStaff returns a staff member's records, newest first.
func (s *Store) ListAttendanceByStaff(ctx context.Context, staffID int64, limit int) ([]store.AttendanceRecord, error) {
	if limit <= 0 {
		limit = defaultUnsyncedLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, staff_id, day, check_in, check_out, synced, updated_at
		FROM attendance
		WHERE staff_id = $1
		ORDER BY day DESC
		LIMIT $2
	`, staffID, limit)
	if err != nil {
		return nil, fmt.Errorf("query attendance by staff: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRows(rows)
}

// ListOpenShifts returns all records without a check-out.
func (s *Store) ListOpenShifts(ctx context.Context) ([]store.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, staff_id, day, check_in, check_out, synced, updated_at
		FROM attendance
		WHERE check_out IS NULL
		ORDER BY check_in, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query open shifts: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRows(rows)
}

// CloseDay force-closes every open shift for the given day.
func (s *Store) CloseDay(ctx context.Context, day string, at time.Time) ([]store.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE attendance
		SET check_out = $2, synced = FALSE, updated_at = NOW()
		WHERE day = $1 AND check_out IS NULL
		RETURNING id, staff_id, day, check_in, check_out, synced, updated_at
	`, day, at)
	if err != nil {
		return nil, fmt.Errorf("close day: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRows(rows)
}

// ListUnsynced returns pending outbox records, oldest first.
func (s *Store) ListUnsynced(ctx context.Context, limit int) ([]store.AttendanceRecord, error) {
	if limit <= 0 {
		limit = defaultUnsyncedLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, staff_id, day, check_in, check_out, synced, updated_at
		FROM attendance
		WHERE NOT synced
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsynced attendance: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRows(rows)
}

// MarkSynced flags records as pushed to the central backend.
func (s *Store) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := s.pool.Exec(ctx, `
		UPDATE attendance
		SET synced = TRUE
		WHERE id = ANY($1)
	`, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark attendance synced: %w", err)
	}
	return nil
}

// scanAttendance scans a single attendance row.
func scanAttendance(scanner interface{ Scan(...any) error }) (*store.AttendanceRecord, error) {
	var record store.AttendanceRecord
	var day time.Time
	var checkOut sql.NullTime

	err := scanner.Scan(
		&record.ID,
		&record.StaffID,
		&day,
		&record.CheckIn,
		&checkOut,
		&record.Synced,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan attendance: %w", err)
	}

	record.Day = store.DayOf(day)
	if checkOut.Valid {
		t := checkOut.Time
		record.CheckOut = &t
	}
	return &record, nil
}

func scanAttendanceRows(rows *sql.Rows) ([]store.AttendanceRecord, error) {
	var result []store.AttendanceRecord
	for rows.Next() {
		record, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return result, nil
}
