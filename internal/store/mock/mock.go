// Package mock provides an in-memory implementation of the store interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/facekiosk/facekiosk/internal/store"
)

// MockStore is an in-memory store.Repository.
type MockStore struct {
	mu              sync.RWMutex
	staff           map[int64]*store.Staff
	attendance      map[int64]*store.AttendanceRecord
	encodingSynced  map[int64]bool
	staffSeq        int64
	attSeq          int64

	// Error injection
	CreateStaffError   error
	GetStaffError      error
	ListStaffError     error
	UpdateStaffError   error
	DeleteStaffError   error
	CheckInError       error
	CheckOutError      error
	ListUnsyncedError  error
	MarkSyncedError    error
	CloseDayError      error
	ListOpenError      error
	GetAttendanceError error
	PingError          error

	// Track calls
	MarkSyncedCalls [][]int64
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		staff:          make(map[int64]*store.Staff),
		attendance:     make(map[int64]*store.AttendanceRecord),
		encodingSynced: make(map[int64]bool),
	}
}

// AddStaff seeds a staff member, assigning an ID if missing.
func (m *MockStore) AddStaff(staff store.Staff) store.Staff {
	m.mu.Lock()
	defer m.mu.Unlock()
	if staff.ID == 0 {
		m.staffSeq++
		staff.ID = m.staffSeq
	} else if staff.ID > m.staffSeq {
		m.staffSeq = staff.ID
	}
	m.staff[staff.ID] = &staff
	return staff
}

// AddAttendance seeds an attendance record, assigning an ID if missing.
func (m *MockStore) AddAttendance(rec store.AttendanceRecord) store.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		m.attSeq++
		rec.ID = m.attSeq
	} else if rec.ID > m.attSeq {
		m.attSeq = rec.ID
	}
	m.attendance[rec.ID] = &rec
	return rec
}

func (m *MockStore) CreateStaff(ctx context.Context, staff *store.Staff) error {
	if m.CreateStaffError != nil {
		return m.CreateStaffError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if staff.CentralID != "" {
		for _, s := range m.staff {
			if s.CentralID == staff.CentralID {
				return store.ErrDuplicateCentralID
			}
		}
	}
	m.staffSeq++
	staff.ID = m.staffSeq
	now := time.Now()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	cp := *staff
	m.staff[staff.ID] = &cp
	return nil
}

func (m *MockStore) GetStaff(ctx context.Context, id int64) (*store.Staff, error) {
	if m.GetStaffError != nil {
		return nil, m.GetStaffError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.staff[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockStore) GetStaffByCentralID(ctx context.Context, centralID string) (*store.Staff, error) {
	if m.GetStaffError != nil {
		return nil, m.GetStaffError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.staff {
		if s.CentralID != "" && s.CentralID == centralID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) ListStaff(ctx context.Context) ([]store.Staff, error) {
	if m.ListStaffError != nil {
		return nil, m.ListStaffError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.Staff
	for _, s := range m.staff {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MockStore) ListStaffWithEncodings(ctx context.Context) ([]store.Staff, error) {
	if m.ListStaffError != nil {
		return nil, m.ListStaffError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.Staff
	for _, s := range m.staff {
		if s.HasEncoding() {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockStore) UpdateStaff(ctx context.Context, staff *store.Staff) error {
	if m.UpdateStaffError != nil {
		return m.UpdateStaffError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.staff[staff.ID]
	if !ok {
		return store.ErrNotFound
	}
	if staff.CentralID != "" {
		for id, s := range m.staff {
			if id != staff.ID && s.CentralID == staff.CentralID {
				return store.ErrDuplicateCentralID
			}
		}
	}
	existing.Name = staff.Name
	existing.CentralID = staff.CentralID
	existing.UpdatedAt = time.Now()
	staff.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *MockStore) UpdateStaffEncoding(ctx context.Context, id int64, encoding []float32) error {
	if m.UpdateStaffError != nil {
		return m.UpdateStaffError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok {
		return store.ErrNotFound
	}
	s.Encoding = encoding
	s.UpdatedAt = time.Now()
	m.encodingSynced[id] = false
	return nil
}

func (m *MockStore) ListStaffWithUnsyncedEncodings(ctx context.Context) ([]store.Staff, error) {
	if m.ListStaffError != nil {
		return nil, m.ListStaffError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.Staff
	for _, s := range m.staff {
		if s.HasEncoding() && !m.encodingSynced[s.ID] {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockStore) MarkEncodingSynced(ctx context.Context, id int64) error {
	if m.UpdateStaffError != nil {
		return m.UpdateStaffError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.staff[id]; !ok {
		return store.ErrNotFound
	}
	m.encodingSynced[id] = true
	return nil
}

func (m *MockStore) UpsertStaffByCentralID(ctx context.Context, staff *store.Staff) error {
	if m.UpdateStaffError != nil {
		return m.UpdateStaffError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.staff {
		if s.CentralID != "" && s.CentralID == staff.CentralID {
			s.Name = staff.Name
			s.UpdatedAt = time.Now()
			staff.ID = s.ID
			staff.CreatedAt = s.CreatedAt
			staff.UpdatedAt = s.UpdatedAt
			return nil
		}
	}
	m.staffSeq++
	staff.ID = m.staffSeq
	now := time.Now()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	cp := *staff
	m.staff[staff.ID] = &cp
	return nil
}

func (m *MockStore) DeleteStaff(ctx context.Context, id int64, cascade bool) error {
	if m.DeleteStaffError != nil {
		return m.DeleteStaffError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.staff[id]; !ok {
		return store.ErrNotFound
	}
	var recordIDs []int64
	for recID, rec := range m.attendance {
		if rec.StaffID == id {
			recordIDs = append(recordIDs, recID)
		}
	}
	if len(recordIDs) > 0 && !cascade {
		return store.ErrStaffHasAttendance
	}
	for _, recID := range recordIDs {
		delete(m.attendance, recID)
	}
	delete(m.staff, id)
	delete(m.encodingSynced, id)
	return nil
}

func (m *MockStore) CheckIn(ctx context.Context, staffID int64, at time.Time) (*store.AttendanceRecord, error) {
	if m.CheckInError != nil {
		return nil, m.CheckInError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.staff[staffID]; !ok {
		return nil, store.ErrNotFound
	}
	day := store.DayOf(at)
	for _, rec := range m.attendance {
		if rec.StaffID == staffID && rec.Day == day {
			return nil, store.ErrAlreadyCheckedIn
		}
	}
	for _, rec := range m.attendance {
		if rec.StaffID == staffID && rec.CheckOut == nil {
			return nil, store.ErrShiftStillOpen
		}
	}
	m.attSeq++
	rec := &store.AttendanceRecord{
		ID:        m.attSeq,
		StaffID:   staffID,
		Day:       day,
		CheckIn:   at,
		UpdatedAt: at,
	}
	m.attendance[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

func (m *MockStore) CheckOut(ctx context.Context, staffID int64, at time.Time) (*store.AttendanceRecord, error) {
	if m.CheckOutError != nil {
		return nil, m.CheckOutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.attendance {
		if rec.StaffID == staffID && rec.CheckOut == nil {
			t := at
			rec.CheckOut = &t
			rec.Synced = false
			rec.UpdatedAt = at
			cp := *rec
			return &cp, nil
		}
	}
	return nil, store.ErrNoOpenShift
}

func (m *MockStore) GetAttendance(ctx context.Context, staffID int64, day string) (*store.AttendanceRecord, error) {
	if m.GetAttendanceError != nil {
		return nil, m.GetAttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.attendance {
		if rec.StaffID == staffID && rec.Day == day {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) ListAttendanceByDay(ctx context.Context, day string) ([]store.AttendanceRecord, error) {
	if m.GetAttendanceError != nil {
		return nil, m.GetAttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.Day == day {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CheckIn.Before(result[j].CheckIn) })
	return result, nil
}

func (m *MockStore) ListAttendanceByStaff(ctx context.Context, staffID int64, limit int) ([]store.AttendanceRecord, error) {
	if m.GetAttendanceError != nil {
		return nil, m.GetAttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.StaffID == staffID {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day > result[j].Day })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockStore) ListOpenShifts(ctx context.Context) ([]store.AttendanceRecord, error) {
	if m.ListOpenError != nil {
		return nil, m.ListOpenError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.CheckOut == nil {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CheckIn.Before(result[j].CheckIn) })
	return result, nil
}

func (m *MockStore) CloseDay(ctx context.Context, day string, at time.Time) ([]store.AttendanceRecord, error) {
	if m.CloseDayError != nil {
		return nil, m.CloseDayError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []store.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.Day == day && rec.CheckOut == nil {
			t := at
			rec.CheckOut = &t
			rec.Synced = false
			rec.UpdatedAt = at
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockStore) ListUnsynced(ctx context.Context, limit int) ([]store.AttendanceRecord, error) {
	if m.ListUnsyncedError != nil {
		return nil, m.ListUnsyncedError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.AttendanceRecord
	for _, rec := range m.attendance {
		if !rec.Synced {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockStore) MarkSynced(ctx context.Context, ids []int64) error {
	if m.MarkSyncedError != nil {
		return m.MarkSyncedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkSyncedCalls = append(m.MarkSyncedCalls, ids)
	for _, id := range ids {
		if rec, ok := m.attendance[id]; ok {
			rec.Synced = true
		}
	}
	return nil
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingError
}

func (m *MockStore) Close() error {
	return nil
}

// Verify interface compliance.
var _ store.Repository = (*MockStore)(nil)
