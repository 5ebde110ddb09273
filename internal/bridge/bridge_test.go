package bridge

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/facekiosk/facekiosk/internal/central"
	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/facekiosk/facekiosk/internal/store/mock"
)

// fakeBackend scripts the central side of a sync run.
type fakeBackend struct {
	roster    []central.RosterEntry
	rosterErr error

	pushErrs []error // Consumed per push call, nil once exhausted
	pushed   []central.AttendancePayload

	encodingErr error
	encodings   map[string][]float32
}

func (f *fakeBackend) FetchRoster(ctx context.Context) ([]central.RosterEntry, error) {
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return f.roster, nil
}

func (f *fakeBackend) PushAttendance(ctx context.Context, payload central.AttendancePayload) error {
	var err error
	if len(f.pushErrs) > 0 {
		err = f.pushErrs[0]
		f.pushErrs = f.pushErrs[1:]
	}
	if err == nil {
		f.pushed = append(f.pushed, payload)
	}
	return err
}

func (f *fakeBackend) PushEncoding(ctx context.Context, staffID string, encoding []float32) error {
	if f.encodingErr != nil {
		return f.encodingErr
	}
	if f.encodings == nil {
		f.encodings = make(map[string][]float32)
	}
	f.encodings[staffID] = encoding
	return nil
}

func seedLinkedStaffWithShift(t *testing.T, db *mock.MockStore) store.Staff {
	t.Helper()

	staff := db.AddStaff(store.Staff{Name: "Alice", CentralID: "HR-EMP-0001"})
	at := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	if _, err := db.CheckIn(context.Background(), staff.ID, at); err != nil {
		t.Fatalf("failed to seed check-in: %v", err)
	}
	if _, err := db.CheckOut(context.Background(), staff.ID, at.Add(8*time.Hour)); err != nil {
		t.Fatalf("failed to seed check-out: %v", err)
	}
	return staff
}

func TestRunOnce_PushesOutbox(t *testing.T) {
	db := mock.NewMockStore()
	seedLinkedStaffWithShift(t, db)
	backend := &fakeBackend{}

	b := New(db, backend, time.Minute, nil)
	report, err := b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if report.Pushed != 1 {
		t.Errorf("expected 1 pushed record, got %d", report.Pushed)
	}
	if len(backend.pushed) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(backend.pushed))
	}

	payload := backend.pushed[0]
	if payload.StaffID != "HR-EMP-0001" {
		t.Errorf("expected central staff id, got %s", payload.StaffID)
	}
	if payload.Hours != 8 {
		t.Errorf("expected 8 hours, got %.1f", payload.Hours)
	}

	pending, _ := db.ListUnsynced(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("outbox should be empty after ack, got %d records", len(pending))
	}
}

func TestRunOnce_OutageKeepsOutbox(t *testing.T) {
	db := mock.NewMockStore()
	seedLinkedStaffWithShift(t, db)
	backend := &fakeBackend{pushErrs: []error{central.ErrUnavailable}}

	b := New(db, backend, time.Minute, nil)
	report, err := b.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected sync error during outage")
	}
	if report.Pushed != 0 {
		t.Errorf("expected 0 pushed records, got %d", report.Pushed)
	}

	pending, _ := db.ListUnsynced(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("record must survive the outage, got %d pending", len(pending))
	}

	// Next run succeeds and the record is delivered exactly once.
	report, err = b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("retry sync failed: %v", err)
	}
	if report.Pushed != 1 {
		t.Errorf("expected 1 pushed record on retry, got %d", report.Pushed)
	}
	if len(backend.pushed) != 1 {
		t.Errorf("expected exactly one delivery, got %d", len(backend.pushed))
	}
}

func TestRunOnce_RejectionDoesNotBlockOthers(t *testing.T) {
	db := mock.NewMockStore()
	alice := db.AddStaff(store.Staff{Name: "Alice", CentralID: "HR-EMP-0001"})
	bob := db.AddStaff(store.Staff{Name: "Bob", CentralID: "HR-EMP-0002"})

	at := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	for _, id := range []int64{alice.ID, bob.ID} {
		if _, err := db.CheckIn(context.Background(), id, at); err != nil {
			t.Fatalf("failed to seed check-in: %v", err)
		}
	}

	backend := &fakeBackend{
		pushErrs: []error{&central.APIError{StatusCode: http.StatusOK, Message: "unknown staff"}},
	}

	b := New(db, backend, time.Minute, nil)
	report, err := b.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected sync to report the rejection")
	}

	if report.Rejected != 1 {
		t.Errorf("expected 1 rejected record, got %d", report.Rejected)
	}
	if report.Pushed != 1 {
		t.Errorf("rejection must not block the next record, pushed=%d", report.Pushed)
	}
}

func TestRunOnce_UnlinkedStaffSkipped(t *testing.T) {
	db := mock.NewMockStore()
	local := db.AddStaff(store.Staff{Name: "Local Only"})
	if _, err := db.CheckIn(context.Background(), local.ID, time.Now()); err != nil {
		t.Fatalf("failed to seed check-in: %v", err)
	}

	backend := &fakeBackend{}
	b := New(db, backend, time.Minute, nil)

	report, err := b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", report.Skipped)
	}
	if len(backend.pushed) != 0 {
		t.Errorf("unlinked staff must not be pushed, got %d payloads", len(backend.pushed))
	}
}

func TestRunOnce_PullCreatesAndRenames(t *testing.T) {
	db := mock.NewMockStore()
	existing := db.AddStaff(store.Staff{
		Name: "Old Name", CentralID: "HR-EMP-0001",
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	backend := &fakeBackend{roster: []central.RosterEntry{
		{ID: "HR-EMP-0001", StaffName: "New Name", Status: "Active",
			UpdatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "HR-EMP-0002", StaffName: "Fresh Hire", Status: "Active"},
		{ID: "HR-EMP-0003", StaffName: "Gone", Status: "Left"},
	}}

	b := New(db, backend, time.Minute, nil)
	report, err := b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	got, _ := db.GetStaff(context.Background(), existing.ID)
	if got.Name != "New Name" {
		t.Errorf("newer central name must win, got %q", got.Name)
	}

	if _, err := db.GetStaffByCentralID(context.Background(), "HR-EMP-0002"); err != nil {
		t.Errorf("fresh hire not created: %v", err)
	}
	if _, err := db.GetStaffByCentralID(context.Background(), "HR-EMP-0003"); err == nil {
		t.Error("inactive staff must not be created")
	}
	if report.Upserts != 2 {
		t.Errorf("expected 2 upserts, got %d", report.Upserts)
	}
}

func TestRunOnce_PullKeepsNewerLocalName(t *testing.T) {
	db := mock.NewMockStore()
	existing := db.AddStaff(store.Staff{
		Name: "Locally Corrected", CentralID: "HR-EMP-0001",
		UpdatedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	})

	backend := &fakeBackend{roster: []central.RosterEntry{
		{ID: "HR-EMP-0001", StaffName: "Stale Name", Status: "Active",
			UpdatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
	}}

	b := New(db, backend, time.Minute, nil)
	if _, err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	got, _ := db.GetStaff(context.Background(), existing.ID)
	if got.Name != "Locally Corrected" {
		t.Errorf("older central name must lose, got %q", got.Name)
	}
}

func TestRunOnce_PullLinksByNormalizedName(t *testing.T) {
	db := mock.NewMockStore()
	local := db.AddStaff(store.Staff{Name: "Jiří Dvořák"})

	backend := &fakeBackend{roster: []central.RosterEntry{
		{ID: "HR-EMP-0009", StaffName: "jiri-dvorak", Status: "Active"},
	}}

	b := New(db, backend, time.Minute, nil)
	report, err := b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if report.Linked != 1 {
		t.Errorf("expected 1 linked staff, got %d", report.Linked)
	}
	got, _ := db.GetStaff(context.Background(), local.ID)
	if got.CentralID != "HR-EMP-0009" {
		t.Errorf("local enrollment not linked, central id %q", got.CentralID)
	}

	staff, _ := db.ListStaff(context.Background())
	if len(staff) != 1 {
		t.Errorf("linking must not create a duplicate row, got %d staff", len(staff))
	}
}

func TestRunOnce_PushesEncodings(t *testing.T) {
	db := mock.NewMockStore()
	linked := db.AddStaff(store.Staff{Name: "Alice", CentralID: "HR-EMP-0001"})
	db.AddStaff(store.Staff{Name: "Unlinked"})

	encoding := make([]float32, 128)
	encoding[0] = 0.5
	if err := db.UpdateStaffEncoding(context.Background(), linked.ID, encoding); err != nil {
		t.Fatalf("failed to seed encoding: %v", err)
	}

	backend := &fakeBackend{}
	b := New(db, backend, time.Minute, nil)

	report, err := b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Encodings != 1 {
		t.Errorf("expected 1 encoding pushed, got %d", report.Encodings)
	}
	if got := backend.encodings["HR-EMP-0001"]; len(got) != 128 || got[0] != 0.5 {
		t.Errorf("unexpected encoding payload %v", got)
	}

	// Second run must not re-push.
	report, err = b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if report.Encodings != 0 {
		t.Errorf("expected no re-push, got %d", report.Encodings)
	}
}

func TestRunOnce_EncodingPushWaitsForLink(t *testing.T) {
	db := mock.NewMockStore()
	local := db.AddStaff(store.Staff{Name: "Jiří Dvořák"})
	if err := db.UpdateStaffEncoding(context.Background(), local.ID, make([]float32, 128)); err != nil {
		t.Fatalf("failed to seed encoding: %v", err)
	}

	// First run: no central row, nothing to push.
	backend := &fakeBackend{}
	b := New(db, backend, time.Minute, nil)
	report, err := b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Encodings != 0 {
		t.Errorf("unlinked encoding must not be pushed, got %d", report.Encodings)
	}

	// Central learns about them; the pull links and the same run pushes.
	backend.roster = []central.RosterEntry{
		{ID: "HR-EMP-0009", StaffName: "jiri-dvorak", Status: "Active"},
	}
	report, err = b.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Linked != 1 || report.Encodings != 1 {
		t.Errorf("expected link followed by encoding push, linked=%d encodings=%d",
			report.Linked, report.Encodings)
	}
}

func TestRunOnce_RosterRefreshCallback(t *testing.T) {
	db := mock.NewMockStore()
	db.AddStaff(store.Staff{Name: "Alice", CentralID: "HR-EMP-0001", Encoding: make([]float32, 128)})
	db.AddStaff(store.Staff{Name: "Manual Only"})

	var snapshot []store.Staff
	backend := &fakeBackend{}
	b := New(db, backend, time.Minute, func(staff []store.Staff) { snapshot = staff })

	if _, err := b.RunOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 recognizable staff in snapshot, got %d", len(snapshot))
	}
	if snapshot[0].Name != "Alice" {
		t.Errorf("unexpected snapshot member %q", snapshot[0].Name)
	}
}
