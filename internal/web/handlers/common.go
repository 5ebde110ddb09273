// Package handlers contains the HTTP handlers for the kiosk API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/facekiosk/facekiosk/internal/embedding"
	"github.com/facekiosk/facekiosk/internal/matcher"
	"github.com/facekiosk/facekiosk/internal/store"
)

// Encoder turns a camera frame into a face encoding.
type Encoder interface {
	EncodeOne(ctx context.Context, frame []byte) ([]float32, error)
}

// Recognizer matches an encoding against the staff roster.
type Recognizer interface {
	Match(encoding []float32) (*matcher.Match, error)
}

// errorResponse is the JSON error envelope. Kind is a stable machine-readable
// tag; Message is for humans.
type errorResponse struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("could not encode response: %v", err)
	}
}

// respondError writes a JSON error response with a kind tag.
func respondError(w http.ResponseWriter, status int, kind, message string) {
	var resp errorResponse
	resp.Error.Kind = kind
	resp.Error.Message = message
	respondJSON(w, status, resp)
}

// respondStoreError maps store and recognition errors onto HTTP status codes.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrAlreadyCheckedIn):
		respondError(w, http.StatusConflict, "already_checked_in", err.Error())
	case errors.Is(err, store.ErrNoOpenShift):
		respondError(w, http.StatusConflict, "no_open_shift", err.Error())
	case errors.Is(err, store.ErrShiftStillOpen):
		respondError(w, http.StatusConflict, "shift_still_open",
			"a shift from an earlier day is still open, close it first")
	case errors.Is(err, store.ErrStaffHasAttendance):
		respondError(w, http.StatusConflict, "staff_has_attendance", err.Error())
	case errors.Is(err, store.ErrDuplicateCentralID):
		respondError(w, http.StatusConflict, "duplicate_central_id", err.Error())
	case errors.Is(err, matcher.ErrNoMatch):
		respondError(w, http.StatusNotFound, "no_match", err.Error())
	case errors.Is(err, embedding.ErrNoFace):
		respondError(w, http.StatusUnprocessableEntity, "no_face", err.Error())
	case errors.Is(err, embedding.ErrMultipleFaces):
		respondError(w, http.StatusUnprocessableEntity, "multiple_faces", err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// HealthCheck handles GET /health requests.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
