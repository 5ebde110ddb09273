package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/facekiosk/facekiosk/internal/store"
)

// defaultStaffHistoryLimit bounds GET /staff/{id}/attendance without a limit.
const defaultStaffHistoryLimit = 30

// AttendanceHandler handles manual attendance requests. The kiosk operator
// uses these when recognition is not an option (injury, camera outage).
type AttendanceHandler struct {
	repo store.AttendanceRepository
	now  func() time.Time
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(repo store.AttendanceRepository) *AttendanceHandler {
	return &AttendanceHandler{repo: repo, now: time.Now}
}

type attendanceRequest struct {
	StaffID int64 `json:"staff_id"`
}

// CheckIn handles POST /attendance/check-in requests.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StaffID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "staff_id is required")
		return
	}

	record, err := h.repo.CheckIn(r.Context(), req.StaffID, h.now())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

// CheckOut handles POST /attendance/check-out requests.
func (h *AttendanceHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StaffID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "staff_id is required")
		return
	}

	record, err := h.repo.CheckOut(r.Context(), req.StaffID, h.now())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// ListByDay handles GET /attendance requests. The day query parameter
// defaults to today.
func (h *AttendanceHandler) ListByDay(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		day = store.DayOf(h.now())
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "day must be YYYY-MM-DD")
		return
	}

	records, err := h.repo.ListAttendanceByDay(r.Context(), day)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// ListByStaff handles GET /staff/{id}/attendance requests.
func (h *AttendanceHandler) ListByStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := staffID(w, r)
	if !ok {
		return
	}

	limit := defaultStaffHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.repo.ListAttendanceByStaff(r.Context(), id, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// ListOpen handles GET /attendance/open requests.
func (h *AttendanceHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.ListOpenShifts(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

type closeDayRequest struct {
	Day string `json:"day"`
}

type closeDayResponse struct {
	Day    string                   `json:"day"`
	Closed []store.AttendanceRecord `json:"closed"`
}

// CloseDay handles POST /attendance/close-day requests: every shift still
// open for the day gets force-closed. The day defaults to today.
func (h *AttendanceHandler) CloseDay(w http.ResponseWriter, r *http.Request) {
	var req closeDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	day := req.Day
	if day == "" {
		day = store.DayOf(h.now())
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "day must be YYYY-MM-DD")
		return
	}

	closed, err := h.repo.CloseDay(r.Context(), day, h.now())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if closed == nil {
		closed = []store.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, closeDayResponse{Day: day, Closed: closed})
}
