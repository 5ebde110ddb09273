package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/facekiosk/facekiosk/internal/embedding"
	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/facekiosk/facekiosk/internal/store/mock"
)

func TestStaffList(t *testing.T) {
	db := mock.NewMockStore()
	db.AddStaff(store.Staff{Name: "Alice", Encoding: make([]float32, 128)})
	db.AddStaff(store.Staff{Name: "Bob"})

	h := NewStaffHandler(db, &fakeEncoder{}, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	assertContentType(t, rec, "application/json")

	var resp []staffResponse
	parseJSONResponse(t, rec, &resp)
	if len(resp) != 2 {
		t.Fatalf("expected 2 staff, got %d", len(resp))
	}
	if !resp[0].HasEncoding {
		t.Error("expected Alice to report an encoding")
	}
	if resp[1].HasEncoding {
		t.Error("expected Bob to report no encoding")
	}
}

func TestStaffCreate(t *testing.T) {
	db := mock.NewMockStore()
	h := NewStaffHandler(db, &fakeEncoder{}, false, nil)

	body := strings.NewReader(`{"name": "  Alice  ", "central_id": "HR-EMP-0001"}`)
	req := httptest.NewRequest(http.MethodPost, "/staff", body)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assertStatusCode(t, rec, http.StatusCreated)

	var resp staffResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Name != "Alice" {
		t.Errorf("expected trimmed name, got %q", resp.Name)
	}
	if resp.ID == 0 {
		t.Error("expected an assigned id")
	}
}

func TestStaffCreate_MissingName(t *testing.T) {
	h := NewStaffHandler(mock.NewMockStore(), &fakeEncoder{}, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/staff", strings.NewReader(`{"name": "  "}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertErrorKind(t, rec, "invalid_request")
}

func TestStaffCreate_DuplicateCentralID(t *testing.T) {
	db := mock.NewMockStore()
	db.AddStaff(store.Staff{Name: "Alice", CentralID: "HR-EMP-0001"})
	h := NewStaffHandler(db, &fakeEncoder{}, false, nil)

	body := strings.NewReader(`{"name": "Impostor", "central_id": "HR-EMP-0001"}`)
	req := httptest.NewRequest(http.MethodPost, "/staff", body)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assertStatusCode(t, rec, http.StatusConflict)
	assertErrorKind(t, rec, "duplicate_central_id")
}

func TestStaffGet_NotFound(t *testing.T) {
	h := NewStaffHandler(mock.NewMockStore(), &fakeEncoder{}, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/staff/42", nil)
	req = requestWithChiParams(req, map[string]string{"id": "42"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
	assertErrorKind(t, rec, "not_found")
}

func TestStaffGet_InvalidID(t *testing.T) {
	h := NewStaffHandler(mock.NewMockStore(), &fakeEncoder{}, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/staff/banana", nil)
	req = requestWithChiParams(req, map[string]string{"id": "banana"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestStaffUpdate(t *testing.T) {
	db := mock.NewMockStore()
	staff := db.AddStaff(store.Staff{Name: "Old Name"})
	h := NewStaffHandler(db, &fakeEncoder{}, false, nil)

	body := strings.NewReader(`{"name": "New Name"}`)
	req := httptest.NewRequest(http.MethodPut, "/staff/1", body)
	req = requestWithChiParams(req, map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	got, _ := db.GetStaff(req.Context(), staff.ID)
	if got.Name != "New Name" {
		t.Errorf("expected renamed staff, got %q", got.Name)
	}
}

func TestStaffDelete_BlockedByAttendance(t *testing.T) {
	db := mock.NewMockStore()
	staff := db.AddStaff(store.Staff{Name: "Alice"})
	db.AddAttendance(store.AttendanceRecord{StaffID: staff.ID, Day: "2026-08-23"})

	h := NewStaffHandler(db, &fakeEncoder{}, false, nil)

	req := httptest.NewRequest(http.MethodDelete, "/staff/1", nil)
	req = requestWithChiParams(req, map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assertStatusCode(t, rec, http.StatusConflict)
	assertErrorKind(t, rec, "staff_has_attendance")
}

func TestStaffDelete_Cascade(t *testing.T) {
	db := mock.NewMockStore()
	staff := db.AddStaff(store.Staff{Name: "Alice"})
	db.AddAttendance(store.AttendanceRecord{StaffID: staff.ID, Day: "2026-08-23"})

	refreshed := false
	h := NewStaffHandler(db, &fakeEncoder{}, false, func() { refreshed = true })

	req := httptest.NewRequest(http.MethodDelete, "/staff/1?cascade=true", nil)
	req = requestWithChiParams(req, map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	if !refreshed {
		t.Error("expected roster refresh after delete")
	}
	if _, err := db.GetStaff(req.Context(), staff.ID); err == nil {
		t.Error("expected staff row gone")
	}
}

func TestStaffEnroll(t *testing.T) {
	db := mock.NewMockStore()
	staff := db.AddStaff(store.Staff{Name: "Alice"})

	encoding := make([]float32, 128)
	encoding[0] = 0.5
	refreshed := false
	h := NewStaffHandler(db, &fakeEncoder{encoding: encoding}, false, func() { refreshed = true })

	req := httptest.NewRequest(http.MethodPost, "/staff/1/encoding", bytes.NewReader([]byte("jpeg-bytes")))
	req = requestWithChiParams(req, map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	if !refreshed {
		t.Error("expected roster refresh after enrollment")
	}

	got, _ := db.GetStaff(req.Context(), staff.ID)
	if !got.HasEncoding() {
		t.Error("expected encoding stored")
	}
}

func TestStaffEnroll_MultipleFaces(t *testing.T) {
	db := mock.NewMockStore()
	db.AddStaff(store.Staff{Name: "Alice"})

	h := NewStaffHandler(db, &fakeEncoder{err: embedding.ErrMultipleFaces}, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/staff/1/encoding", bytes.NewReader([]byte("jpeg-bytes")))
	req = requestWithChiParams(req, map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)

	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
	assertErrorKind(t, rec, "multiple_faces")
}

func TestStaffEnroll_EmptyBody(t *testing.T) {
	db := mock.NewMockStore()
	db.AddStaff(store.Staff{Name: "Alice"})

	h := NewStaffHandler(db, &fakeEncoder{}, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/staff/1/encoding", nil)
	req = requestWithChiParams(req, map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}
