package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/facekiosk/facekiosk/internal/matcher"
	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/facekiosk/facekiosk/internal/terminal"
)

// RecognizeHandler handles one-shot recognition requests: a photo comes in,
// the matched staff member is checked in or out, and the outcome goes back.
// This is the same flow the camera loop runs, driven by an explicit upload.
type RecognizeHandler struct {
	encoder    Encoder
	recognizer Recognizer
	att        store.AttendanceRepository
	events     *terminal.EventBroadcaster
	minShift   time.Duration
	now        func() time.Time
}

// NewRecognizeHandler creates a recognition handler. events may be nil.
func NewRecognizeHandler(encoder Encoder, recognizer Recognizer, att store.AttendanceRepository, events *terminal.EventBroadcaster, minShift time.Duration) *RecognizeHandler {
	return &RecognizeHandler{
		encoder:    encoder,
		recognizer: recognizer,
		att:        att,
		events:     events,
		minShift:   minShift,
		now:        time.Now,
	}
}

type recognizeResponse struct {
	Action   string                  `json:"action"`
	StaffID  int64                   `json:"staff_id"`
	Name     string                  `json:"name"`
	Distance float64                 `json:"distance"`
	Record   *store.AttendanceRecord `json:"record,omitempty"`
}

// Recognize handles POST /recognize requests. The body is the raw photo.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	photo, err := io.ReadAll(io.LimitReader(r.Body, maxEnrollBytes))
	if err != nil || len(photo) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "photo body is empty")
		return
	}

	encoding, err := h.encoder.EncodeOne(r.Context(), photo)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	match, err := h.recognizer.Match(encoding)
	if err != nil {
		if errors.Is(err, matcher.ErrNoMatch) && h.events != nil {
			h.events.SendEvent(terminal.Event{
				Type:    terminal.EventNoMatch,
				Message: "face not recognized",
				At:      h.now(),
			})
		}
		respondStoreError(w, err)
		return
	}

	now := h.now()
	action, record, err := terminal.Transition(r.Context(), h.att, match.Staff.ID, now, h.minShift)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if h.events != nil {
		h.events.SendEvent(terminal.Event{
			Type:     string(action),
			StaffID:  match.Staff.ID,
			Name:     match.Staff.Name,
			Message:  terminal.ActionMessage(action, record, h.minShift, now),
			Distance: match.Distance,
			At:       now,
		})
	}

	respondJSON(w, http.StatusOK, recognizeResponse{
		Action:   string(action),
		StaffID:  match.Staff.ID,
		Name:     match.Staff.Name,
		Distance: match.Distance,
		Record:   record,
	})
}
