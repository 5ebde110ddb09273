package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// nullVector scans a nullable pgvector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

// encodingArg converts a staff encoding to an insert parameter, NULL when unset.
func encodingArg(encoding []float32) any {
	if len(encoding) == 0 {
		return nil
	}
	return pgvector.NewVector(encoding)
}

func isAnyUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// CreateStaff inserts a new staff member and fills in ID and timestamps.
func (s *Store) CreateStaff(ctx context.Context, staff *store.Staff) error {
	var centralID sql.NullString
	if staff.CentralID != "" {
		centralID = sql.NullString{String: staff.CentralID, Valid: true}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO staff (name, central_id, encoding)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, staff.Name, centralID, encodingArg(staff.Encoding)).
		Scan(&staff.ID, &staff.CreatedAt, &staff.UpdatedAt)
	if err != nil {
		if isAnyUniqueViolation(err) {
			return store.ErrDuplicateCentralID
		}
		return fmt.Errorf("insert staff: %w", err)
	}
	return nil
}

// GetStaff returns one staff member or store.ErrNotFound.
func (s *Store) GetStaff(ctx context.Context, id int64) (*store.Staff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, central_id, encoding, created_at, updated_at
		FROM staff
		WHERE id = $1
	`, id)

	staff, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return staff, nil
}

// GetStaffByCentralID looks a staff member up by their central backend id.
func (s *Store) GetStaffByCentralID(ctx context.Context, centralID string) (*store.Staff, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, central_id, encoding, created_at, updated_at
		FROM staff
		WHERE central_id = $1
	`, centralID)

	staff, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return staff, nil
}

// ListStaff returns the whole roster ordered by name.
func (s *Store) ListStaff(ctx context.Context) ([]store.Staff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, central_id, encoding, created_at, updated_at
		FROM staff
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query staff: %w", err)
	}
	defer rows.Close()

	return scanStaffRows(rows)
}

// ListStaffWithEncodings returns only staff members that can be recognized.
func (s *Store) ListStaffWithEncodings(ctx context.Context) ([]store.Staff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, central_id, encoding, created_at, updated_at
		FROM staff
		WHERE encoding IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query staff with encodings: %w", err)
	}
	defer rows.Close()

	return scanStaffRows(rows)
}

// UpdateStaff updates name and central id.
func (s *Store) UpdateStaff(ctx context.Context, staff *store.Staff) error {
	var centralID sql.NullString
	if staff.CentralID != "" {
		centralID = sql.NullString{String: staff.CentralID, Valid: true}
	}

	err := s.pool.QueryRow(ctx, `
		UPDATE staff
		SET name = $1, central_id = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`, staff.Name, centralID, staff.ID).Scan(&staff.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if isAnyUniqueViolation(err) {
			return store.ErrDuplicateCentralID
		}
		return fmt.Errorf("update staff: %w", err)
	}
	return nil
}

// UpdateStaffEncoding replaces the stored face encoding. The row goes back
// into the encoding push queue.
func (s *Store) UpdateStaffEncoding(ctx context.Context, id int64, encoding []float32) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE staff
		SET encoding = $1, encoding_synced = FALSE, updated_at = NOW()
		WHERE id = $2
	`, encodingArg(encoding), id)
	if err != nil {
		return fmt.Errorf("update staff encoding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update staff encoding: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListStaffWithUnsyncedEncodings returns staff whose encoding still needs to
// be pushed to the central backend.
func (s *Store) ListStaffWithUnsyncedEncodings(ctx context.Context) ([]store.Staff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, central_id, encoding, created_at, updated_at
		FROM staff
		WHERE encoding IS NOT NULL AND NOT encoding_synced
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query unsynced encodings: %w", err)
	}
	defer rows.Close()

	return scanStaffRows(rows)
}

// MarkEncodingSynced flags a staff member's encoding as pushed.
func (s *Store) MarkEncodingSynced(ctx context.Context, id int64) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE staff
		SET encoding_synced = TRUE
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark encoding synced: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark encoding synced: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpsertStaffByCentralID inserts or updates a roster row keyed by central id.
// The stored face encoding is left untouched on update.
func (s *Store) UpsertStaffByCentralID(ctx context.Context, staff *store.Staff) error {
	if staff.CentralID == "" {
		return errors.New("central id is required for upsert")
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO staff (name, central_id)
		VALUES ($1, $2)
		ON CONFLICT (central_id) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, staff.Name, staff.CentralID).
		Scan(&staff.ID, &staff.CreatedAt, &staff.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert staff: %w", err)
	}
	return nil
}

// DeleteStaff removes a staff member. Without cascade the delete is refused
// while attendance history exists.
func (s *Store) DeleteStaff(ctx context.Context, id int64, cascade bool) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if cascade {
		if _, err := tx.ExecContext(ctx, "DELETE FROM attendance WHERE staff_id = $1", id); err != nil {
			return fmt.Errorf("delete attendance history: %w", err)
		}
	} else {
		var count int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendance WHERE staff_id = $1", id).Scan(&count)
		if err != nil {
			return fmt.Errorf("count attendance history: %w", err)
		}
		if count > 0 {
			return store.ErrStaffHasAttendance
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM staff WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// scanStaff scans a single staff row.
func scanStaff(scanner interface{ Scan(...any) error }) (*store.Staff, error) {
	var staff store.Staff
	var centralID sql.NullString
	var encoding nullVector

	err := scanner.Scan(
		&staff.ID,
		&staff.Name,
		&centralID,
		&encoding,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan staff: %w", err)
	}

	if centralID.Valid {
		staff.CentralID = centralID.String
	}
	if encoding.valid {
		staff.Encoding = encoding.vec.Slice()
	}
	return &staff, nil
}

func scanStaffRows(rows *sql.Rows) ([]store.Staff, error) {
	var result []store.Staff
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *staff)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staff: %w", err)
	}
	return result, nil
}
