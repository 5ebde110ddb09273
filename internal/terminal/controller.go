// Package terminal runs the kiosk capture loop: grab a frame, encode the
// face, match it against the roster and toggle the day's attendance.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/facekiosk/facekiosk/internal/config"
	"github.com/facekiosk/facekiosk/internal/embedding"
	"github.com/facekiosk/facekiosk/internal/matcher"
	"github.com/facekiosk/facekiosk/internal/store"
	"github.com/google/uuid"
)

// Action is the attendance outcome of one recognized face.
type Action string

const (
	ActionCheckIn         Action = EventCheckIn
	ActionCheckOut        Action = EventCheckOut
	ActionCheckoutBlocked Action = EventCheckoutBlocked
	ActionAlreadyDone     Action = EventAlreadyDone
)

// FrameSource captures one camera frame as JPEG bytes.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Encoder turns a frame into the encoding of the single face it contains.
type Encoder interface {
	EncodeOne(ctx context.Context, frame []byte) ([]float32, error)
}

// Recognizer matches a live encoding against the roster.
type Recognizer interface {
	Match(encoding []float32) (*matcher.Match, error)
}

// Transition applies the daily attendance toggle for one recognized staff
// member. First sighting of the day checks in; a sighting after at least
// minShift of work checks out; anything earlier is blocked; a completed
// record stays closed for the rest of the day.
func Transition(
	ctx context.Context, att store.AttendanceRepository,
	staffID int64, now time.Time, minShift time.Duration,
) (Action, *store.AttendanceRecord, error) {
	record, err := att.GetAttendance(ctx, staffID, store.DayOf(now))
	if errors.Is(err, store.ErrNotFound) {
		record, err = att.CheckIn(ctx, staffID, now)
		if errors.Is(err, store.ErrAlreadyCheckedIn) {
			// Lost a race with another terminal; re-read and fall through.
			record, err = att.GetAttendance(ctx, staffID, store.DayOf(now))
			if err != nil {
				return "", nil, err
			}
		} else if err != nil {
			return "", nil, err
		} else {
			return ActionCheckIn, record, nil
		}
	} else if err != nil {
		return "", nil, err
	}

	if !record.Open() {
		return ActionAlreadyDone, record, nil
	}

	if now.Sub(record.CheckIn) < minShift {
		return ActionCheckoutBlocked, record, nil
	}

	record, err = att.CheckOut(ctx, staffID, now)
	if errors.Is(err, store.ErrNoOpenShift) {
		// Closed between the read and the update.
		record, err = att.GetAttendance(ctx, staffID, store.DayOf(now))
		if err != nil {
			return "", nil, err
		}
		return ActionAlreadyDone, record, nil
	}
	if err != nil {
		return "", nil, err
	}
	return ActionCheckOut, record, nil
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Frames          int64 `json:"frames"`
	FacesMatched    int64 `json:"faces_matched"`
	NoMatch         int64 `json:"no_match"`
	CaptureFailures int64 `json:"capture_failures"`
	Cooldowns       int64 `json:"cooldowns"`
}

// Status is the public terminal state.
type Status struct {
	RunID       string    `json:"run_id"`
	Running     bool      `json:"running"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
	RosterSize  int       `json:"roster_size"`
	Listeners   int       `json:"listeners"`
	Stats       Stats     `json:"stats"`
}

// Controller drives the capture loop.
type Controller struct {
	frames     FrameSource
	encoder    Encoder
	recognizer Recognizer
	att        store.AttendanceRepository
	events     *EventBroadcaster

	interval time.Duration
	cooldown time.Duration
	minShift time.Duration

	now func() time.Time

	mu          sync.Mutex
	runID       string
	running     bool
	startedAt   time.Time
	lastEventAt time.Time
	lastSeen    map[int64]time.Time
	stats       Stats

	rosterSize func() int
}

// NewController wires the capture loop dependencies.
func NewController(
	cfg *config.TerminalConfig,
	frames FrameSource,
	encoder Encoder,
	recognizer Recognizer,
	att store.AttendanceRepository,
	events *EventBroadcaster,
) *Controller {
	return &Controller{
		frames:     frames,
		encoder:    encoder,
		recognizer: recognizer,
		att:        att,
		events:     events,
		interval:   cfg.Interval,
		cooldown:   cfg.Cooldown,
		minShift:   cfg.MinShift,
		now:        time.Now,
		lastSeen:   make(map[int64]time.Time),
	}
}

// SetRosterSizeFunc lets the status endpoint report the live roster size.
func (c *Controller) SetRosterSizeFunc(f func() int) {
	c.rosterSize = f
}

// Events returns the terminal event broadcaster.
func (c *Controller) Events() *EventBroadcaster {
	return c.events
}

// Run drives the capture loop until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.runID = uuid.NewString()
	c.running = true
	c.startedAt = c.now()
	c.mu.Unlock()

	log.Printf("terminal loop started (run %s, interval %s)", c.runID, c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			log.Printf("terminal loop stopped (run %s)", c.runID)
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick processes one camera frame.
func (c *Controller) Tick(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	c.stats.Frames++
	c.pruneCooldowns(now)
	c.mu.Unlock()

	frame, err := c.frames.Capture(ctx)
	if err != nil {
		c.mu.Lock()
		c.stats.CaptureFailures++
		c.mu.Unlock()
		c.broadcast(Event{Type: EventError, Message: fmt.Sprintf("capture failed: %v", err), At: now})
		return
	}

	encoding, err := c.encoder.EncodeOne(ctx, frame)
	if errors.Is(err, embedding.ErrNoFace) {
		// Nobody in front of the camera, the usual case.
		return
	}
	if errors.Is(err, embedding.ErrMultipleFaces) {
		c.broadcast(Event{Type: EventError, Message: "multiple faces in frame, one person at a time", At: now})
		return
	}
	if err != nil {
		c.broadcast(Event{Type: EventError, Message: fmt.Sprintf("encoding failed: %v", err), At: now})
		return
	}

	match, err := c.recognizer.Match(encoding)
	if errors.Is(err, matcher.ErrNoMatch) {
		c.mu.Lock()
		c.stats.NoMatch++
		c.mu.Unlock()
		c.broadcast(Event{Type: EventNoMatch, Message: "face not recognized", At: now})
		return
	}
	if err != nil {
		c.broadcast(Event{Type: EventError, Message: fmt.Sprintf("matching failed: %v", err), At: now})
		return
	}

	if c.inCooldown(match.Staff.ID, now) {
		return
	}

	c.mu.Lock()
	c.stats.FacesMatched++
	c.mu.Unlock()

	action, record, err := Transition(ctx, c.att, match.Staff.ID, now, c.minShift)
	if err != nil {
		c.broadcast(Event{
			Type: EventError, StaffID: match.Staff.ID, Name: match.Staff.Name,
			Message: fmt.Sprintf("attendance update failed: %v", err), At: now,
		})
		return
	}

	c.broadcast(Event{
		Type:     string(action),
		StaffID:  match.Staff.ID,
		Name:     match.Staff.Name,
		Message:  ActionMessage(action, record, c.minShift, now),
		Distance: match.Distance,
		At:       now,
	})
}

// inCooldown records the sighting and reports whether the staff member was
// already seen within the cooldown window.
func (c *Controller) inCooldown(staffID int64, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastSeen[staffID]; ok && now.Sub(last) < c.cooldown {
		c.stats.Cooldowns++
		return true
	}
	c.lastSeen[staffID] = now
	return false
}

// pruneCooldowns drops expired entries. Caller holds the lock.
func (c *Controller) pruneCooldowns(now time.Time) {
	for id, last := range c.lastSeen {
		if now.Sub(last) >= c.cooldown {
			delete(c.lastSeen, id)
		}
	}
}

func (c *Controller) broadcast(event Event) {
	c.mu.Lock()
	c.lastEventAt = event.At
	c.mu.Unlock()
	c.events.SendEvent(event)
}

// ActionMessage is the kiosk display text for an attendance action. The
// capture loop and the manual recognize endpoint share it so the display
// reads the same either way.
func ActionMessage(action Action, record *store.AttendanceRecord, minShift time.Duration, now time.Time) string {
	switch action {
	case ActionCheckIn:
		return "checked in, have a good shift"
	case ActionCheckOut:
		return fmt.Sprintf("checked out after %.1f hours", record.Hours())
	case ActionCheckoutBlocked:
		remaining := minShift - now.Sub(record.CheckIn)
		return fmt.Sprintf("checkout blocked, %s of minimum shift remaining", remaining.Round(time.Minute))
	case ActionAlreadyDone:
		return "attendance already completed for today"
	}
	return ""
}

// Status returns a snapshot of the terminal state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		RunID:       c.runID,
		Running:     c.running,
		StartedAt:   c.startedAt,
		LastEventAt: c.lastEventAt,
		Listeners:   c.events.ListenerCount(),
		Stats:       c.stats,
	}
	if c.rosterSize != nil {
		status.RosterSize = c.rosterSize()
	}
	return status
}
