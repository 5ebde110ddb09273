package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxEnrollBytes caps the photo size accepted for enrollment.
const maxEnrollBytes = 8 << 20

// StaffHandler handles staff management requests.
type StaffHandler struct {
	repo    store.StaffRepository
	encoder Encoder

	// cascadeDefault deletes attendance history together with the staff
	// row without requiring ?cascade=true on every request.
	cascadeDefault bool

	// onRosterChange notifies the recognizer that enrollments changed.
	onRosterChange func()
}

// NewStaffHandler creates a staff handler. onRosterChange may be nil.
func NewStaffHandler(repo store.StaffRepository, encoder Encoder, cascadeDefault bool, onRosterChange func()) *StaffHandler {
	return &StaffHandler{repo: repo, encoder: encoder, cascadeDefault: cascadeDefault, onRosterChange: onRosterChange}
}

type staffResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CentralID   string `json:"central_id,omitempty"`
	HasEncoding bool   `json:"has_encoding"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toStaffResponse(s *store.Staff) staffResponse {
	return staffResponse{
		ID:          s.ID,
		Name:        s.Name,
		CentralID:   s.CentralID,
		HasEncoding: s.HasEncoding(),
		CreatedAt:   s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type staffRequest struct {
	Name      string `json:"name"`
	CentralID string `json:"central_id"`
}

// List handles GET /staff requests.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	staff, err := h.repo.ListStaff(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	resp := make([]staffResponse, 0, len(staff))
	for i := range staff {
		resp = append(resp, toStaffResponse(&staff[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Create handles POST /staff requests.
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	staff := &store.Staff{Name: strings.TrimSpace(req.Name), CentralID: req.CentralID}
	if err := h.repo.CreateStaff(r.Context(), staff); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toStaffResponse(staff))
}

// Get handles GET /staff/{id} requests.
func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := staffID(w, r)
	if !ok {
		return
	}

	staff, err := h.repo.GetStaff(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toStaffResponse(staff))
}

// Update handles PUT /staff/{id} requests.
func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := staffID(w, r)
	if !ok {
		return
	}

	var req staffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	staff, err := h.repo.GetStaff(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	staff.Name = strings.TrimSpace(req.Name)
	staff.CentralID = req.CentralID
	if err := h.repo.UpdateStaff(r.Context(), staff); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toStaffResponse(staff))
}

// Delete handles DELETE /staff/{id} requests. Attendance history blocks the
// delete unless ?cascade=true is given.
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := staffID(w, r)
	if !ok {
		return
	}

	cascade := h.cascadeDefault || r.URL.Query().Get("cascade") == "true"
	if err := h.repo.DeleteStaff(r.Context(), id, cascade); err != nil {
		respondStoreError(w, err)
		return
	}
	if h.onRosterChange != nil {
		h.onRosterChange()
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Enroll handles POST /staff/{id}/encoding requests. The body is the raw
// enrollment photo; exactly one face must be visible.
func (h *StaffHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	id, ok := staffID(w, r)
	if !ok {
		return
	}

	if _, err := h.repo.GetStaff(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}

	photo, err := io.ReadAll(io.LimitReader(r.Body, maxEnrollBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read photo")
		return
	}
	if len(photo) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "photo body is empty")
		return
	}

	encoding, err := h.encoder.EncodeOne(r.Context(), photo)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if err := h.repo.UpdateStaffEncoding(r.Context(), id, encoding); err != nil {
		respondStoreError(w, err)
		return
	}
	if h.onRosterChange != nil {
		h.onRosterChange()
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "enrolled"})
}

// staffID parses the {id} route parameter. It writes the error response
// itself and reports success through the second return value.
func staffID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid staff id")
		return 0, false
	}
	return id, true
}
