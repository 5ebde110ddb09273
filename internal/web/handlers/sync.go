package handlers

import (
	"log"
	"net/http"

	"github.com/facekiosk/facekiosk/internal/bridge"
)

// SyncHandler triggers and inspects central backend sync runs.
type SyncHandler struct {
	bridge *bridge.Bridge
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(b *bridge.Bridge) *SyncHandler {
	return &SyncHandler{bridge: b}
}

// Trigger handles POST /sync requests by running one sync immediately.
// A partial failure still returns the report; the records that were not
// acknowledged stay queued for the next run.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.bridge == nil {
		respondError(w, http.StatusServiceUnavailable, "sync_disabled", "central backend is not configured")
		return
	}
	report, err := h.bridge.RunOnce(r.Context())
	if err != nil {
		log.Printf("manual sync finished with errors: %v", err)
		respondJSON(w, http.StatusBadGateway, report)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// LastReport handles GET /sync/status requests.
func (h *SyncHandler) LastReport(w http.ResponseWriter, r *http.Request) {
	if h.bridge == nil {
		respondError(w, http.StatusServiceUnavailable, "sync_disabled", "central backend is not configured")
		return
	}
	report := h.bridge.LastReport()
	if report == nil {
		respondError(w, http.StatusNotFound, "not_found", "no sync has run yet")
		return
	}
	respondJSON(w, http.StatusOK, report)
}
