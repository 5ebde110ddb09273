// Package bridge keeps the kiosk and the central backend in sync: it pushes
// the attendance outbox up and pulls roster changes down on a schedule.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/facekiosk/facekiosk/internal/central"
	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
)

// outboxBatch bounds one push run.
const outboxBatch = 500

// Backend is the central side of the sync.
type Backend interface {
	FetchRoster(ctx context.Context) ([]central.RosterEntry, error)
	PushAttendance(ctx context.Context, payload central.AttendancePayload) error
	PushEncoding(ctx context.Context, staffID string, encoding []float32) error
}

// Report summarizes one sync run.
type Report struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Pushed     int           `json:"pushed"`
	Rejected   int           `json:"rejected"`
	Skipped    int           `json:"skipped"` // Records for staff not linked to the central backend
	RosterSeen int           `json:"roster_seen"`
	Upserts    int           `json:"upserts"`
	Linked     int           `json:"linked"`
	Encodings  int           `json:"encodings"` // Face encodings pushed
	Errors     []string      `json:"errors,omitempty"`
}

// Bridge runs the periodic sync.
type Bridge struct {
	repo     store.Repository
	backend  Backend
	interval time.Duration

	// onRoster is called with the recognizable staff after every pull so
	// the matcher can refresh its snapshot.
	onRoster func([]store.Staff)

	mu         sync.RWMutex
	lastReport *Report
}

// New creates a Bridge. onRoster may be nil.
func New(repo store.Repository, backend Backend, interval time.Duration, onRoster func([]store.Staff)) *Bridge {
	return &Bridge{
		repo:     repo,
		backend:  backend,
		interval: interval,
		onRoster: onRoster,
	}
}

// LastReport returns the most recent sync report, nil before the first run.
func (b *Bridge) LastReport() *Report {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastReport
}

// Start schedules periodic sync runs. The returned stop function blocks
// until the scheduler has shut down.
func (b *Bridge) Start(ctx context.Context) func() {
	scheduler := gocron.NewScheduler(time.UTC)

	if _, err := scheduler.Every(b.interval).Do(func() {
		report, err := b.RunOnce(ctx)
		if err != nil {
			log.Printf("sync run failed: %v", err)
			return
		}
		log.Printf("sync run %s: pushed=%d rejected=%d upserts=%d in %s",
			report.ID, report.Pushed, report.Rejected, report.Upserts, report.Duration)
	}); err != nil {
		log.Printf("could not schedule sync: %v", err)
	}

	scheduler.StartAsync()
	return scheduler.Stop
}

// RunOnce pushes the outbox and pulls the roster. A push failure does not
// prevent the pull; every record that was not acknowledged stays in the
// outbox for the next run.
func (b *Bridge) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}

	if err := b.pushOutbox(ctx, report); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("push: %v", err))
	}
	if err := b.pullRoster(ctx, report); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("pull: %v", err))
	}
	// After the pull so freshly linked staff get their encoding up in the
	// same run.
	if err := b.pushEncodings(ctx, report); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("encodings: %v", err))
	}

	report.Duration = time.Since(report.StartedAt)

	b.mu.Lock()
	b.lastReport = report
	b.mu.Unlock()

	if len(report.Errors) > 0 {
		return report, fmt.Errorf("sync finished with errors: %v", report.Errors)
	}
	return report, nil
}

// pushOutbox uploads pending attendance records. Only acknowledged records
// are marked synced; a transport failure aborts the batch and leaves the
// rest queued.
func (b *Bridge) pushOutbox(ctx context.Context, report *Report) error {
	pending, err := b.repo.ListUnsynced(ctx, outboxBatch)
	if err != nil {
		return fmt.Errorf("list outbox: %w", err)
	}

	var acked []int64
	for _, rec := range pending {
		staff, err := b.repo.GetStaff(ctx, rec.StaffID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %v", rec.ID, err))
			continue
		}
		if staff.CentralID == "" {
			// Not linked yet; the roster pull may link them later.
			report.Skipped++
			continue
		}

		err = b.backend.PushAttendance(ctx, buildPayload(staff, &rec))
		if errors.Is(err, central.ErrUnavailable) {
			// Backend is down, stop hammering it. Everything unacked
			// stays in the outbox.
			if markErr := b.repo.MarkSynced(ctx, acked); markErr != nil {
				return fmt.Errorf("mark synced: %w", markErr)
			}
			report.Pushed = len(acked)
			return err
		}

		var apiErr *central.APIError
		if errors.As(err, &apiErr) {
			report.Rejected++
			report.Errors = append(report.Errors, fmt.Sprintf("record %d rejected: %s", rec.ID, apiErr.Message))
			continue
		}
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %v", rec.ID, err))
			continue
		}

		acked = append(acked, rec.ID)
	}

	if err := b.repo.MarkSynced(ctx, acked); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	report.Pushed = len(acked)
	return nil
}

func buildPayload(staff *store.Staff, rec *store.AttendanceRecord) central.AttendancePayload {
	payload := central.AttendancePayload{
		StaffID: staff.CentralID,
		Day:     rec.Day,
		CheckIn: rec.CheckIn.UTC().Format(time.RFC3339),
	}
	if rec.CheckOut != nil {
		payload.CheckOut = rec.CheckOut.UTC().Format(time.RFC3339)
		payload.Hours = rec.Hours()
	}
	return payload
}

// pushEncodings uploads enrolled face encodings that the central backend has
// not seen yet. Unlinked staff wait until a roster pull links them.
func (b *Bridge) pushEncodings(ctx context.Context, report *Report) error {
	pending, err := b.repo.ListStaffWithUnsyncedEncodings(ctx)
	if err != nil {
		return fmt.Errorf("list unsynced encodings: %w", err)
	}

	for i := range pending {
		staff := &pending[i]
		if staff.CentralID == "" {
			continue
		}

		err := b.backend.PushEncoding(ctx, staff.CentralID, staff.Encoding)
		if errors.Is(err, central.ErrUnavailable) {
			return err
		}
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("encoding %s: %v", staff.CentralID, err))
			continue
		}

		if err := b.repo.MarkEncodingSynced(ctx, staff.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("encoding %s: %v", staff.CentralID, err))
			continue
		}
		report.Encodings++
	}
	return nil
}

// pullRoster applies central roster changes locally. Central wins on newer
// updated_at; entries without a local row are first matched to unlinked
// staff by normalized name, then created.
func (b *Bridge) pullRoster(ctx context.Context, report *Report) error {
	roster, err := b.backend.FetchRoster(ctx)
	if err != nil {
		return fmt.Errorf("fetch roster: %w", err)
	}
	report.RosterSeen = len(roster)

	local, err := b.repo.ListStaff(ctx)
	if err != nil {
		return fmt.Errorf("list local staff: %w", err)
	}

	unlinkedByName := make(map[string]*store.Staff)
	for i := range local {
		if local[i].CentralID == "" {
			unlinkedByName[central.NormalizeStaffName(local[i].Name)] = &local[i]
		}
	}

	for i := range roster {
		entry := &roster[i]
		if !entry.Active() {
			continue
		}

		existing, err := b.repo.GetStaffByCentralID(ctx, entry.ID)
		if err == nil {
			if entry.UpdatedAt.After(existing.UpdatedAt) && existing.Name != entry.StaffName {
				existing.Name = entry.StaffName
				if err := b.repo.UpdateStaff(ctx, existing); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("update %s: %v", entry.ID, err))
					continue
				}
				report.Upserts++
			}
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			report.Errors = append(report.Errors, fmt.Sprintf("lookup %s: %v", entry.ID, err))
			continue
		}

		// Link an unlinked local enrollment by name before creating a
		// duplicate row.
		if match, ok := unlinkedByName[central.NormalizeStaffName(entry.StaffName)]; ok {
			match.CentralID = entry.ID
			if err := b.repo.UpdateStaff(ctx, match); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("link %s: %v", entry.ID, err))
				continue
			}
			delete(unlinkedByName, central.NormalizeStaffName(entry.StaffName))
			report.Linked++
			continue
		}

		created := &store.Staff{Name: entry.StaffName, CentralID: entry.ID}
		if err := b.repo.UpsertStaffByCentralID(ctx, created); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("upsert %s: %v", entry.ID, err))
			continue
		}
		report.Upserts++
	}

	if b.onRoster != nil {
		recognizable, err := b.repo.ListStaffWithEncodings(ctx)
		if err != nil {
			return fmt.Errorf("refresh roster snapshot: %w", err)
		}
		b.onRoster(recognizable)
	}
	return nil
}
