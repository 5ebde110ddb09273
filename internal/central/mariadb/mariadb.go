// Package mariadb reads the central roster straight from the backend's
// MariaDB when the HTTP API is down for maintenance.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/facekiosk/facekiosk/internal/central"
	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// FetchRoster reads the staff roster from the backend's document table.
// Only the fields the kiosk needs are selected.
func (p *Pool) FetchRoster(ctx context.Context) ([]central.RosterEntry, error) {
	query := "SELECT name, staff_name, status, modified FROM `tabRestaurant Staff` ORDER BY name"

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query staff roster: %w", err)
	}
	defer rows.Close()

	var roster []central.RosterEntry
	for rows.Next() {
		var entry central.RosterEntry
		var modified sql.NullTime
		if err := rows.Scan(&entry.ID, &entry.StaffName, &entry.Status, &modified); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		if modified.Valid {
			entry.UpdatedAt = modified.Time
		}
		roster = append(roster, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster rows: %w", err)
	}
	return roster, nil
}
