package notify

import (
	"fmt"
	"time"

	"tripviz/internal/model"
)

type Type string

const (
	TypeMatch     Type = "match"
	TypeCompleted Type = "completed"
)

const (
	DefaultTTL      = 8 * time.Second
	DefaultCapacity = 5
)

// tripIDPreview is how much of a trip id is quoted in notification details.
const tripIDPreview = 12

type Notification struct {
	ID        int64      `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Type      Type       `json:"type"`
	Trip      model.Trip `json:"trip"`
	Message   string     `json:"message"`
	Details   string     `json:"details"`
}

// Expired reports whether n has outlived ttl at now.
func (n Notification) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(n.Timestamp) >= ttl
}

// Engine turns consecutive trip snapshots into match and completion
// notifications and keeps the most recent few visible until they expire or
// are dismissed. Not safe for concurrent use.
type Engine struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time

	lastID    int64
	previous  map[string]model.Status // trip id -> status in the previous snapshot
	visible   []Notification          // newest first
	listeners []func(Notification)
}

func NewEngine(ttl time.Duration, capacity int, now func() time.Time) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		ttl:      ttl,
		capacity: capacity,
		now:      now,
		previous: make(map[string]model.Status),
	}
}

// OnNotify registers fn to be called for every notification as it is created.
func (e *Engine) OnNotify(fn func(Notification)) {
	e.listeners = append(e.listeners, fn)
}

// Observe diffs trips against the previous snapshot and returns the
// notifications it created, oldest first.
//
// A trip yields a match when its id was absent from the previous snapshot and
// it is scheduled or active. It yields a completion when it is completed now,
// was present before, and was not completed before; a trip first seen already
// completed produces nothing.
func (e *Engine) Observe(trips []model.Trip) []Notification {
	var created []Notification
	for _, t := range trips {
		if _, seen := e.previous[t.TripID]; seen || !t.Status.Live() {
			continue
		}
		created = append(created, e.emit(TypeMatch, t,
			fmt.Sprintf("Match found! Driver %s will pick up %d rider(s) at %s", t.DriverID, len(t.RiderIDs), t.OriginStation),
			fmt.Sprintf("Trip %s → %s", preview(t.TripID), t.Destination),
		))
	}
	for _, t := range trips {
		if t.Status != model.StatusCompleted {
			continue
		}
		prev, seen := e.previous[t.TripID]
		if !seen || prev == model.StatusCompleted {
			continue
		}
		created = append(created, e.emit(TypeCompleted, t,
			fmt.Sprintf("Trip completed! Driver %s finished trip to %s", t.DriverID, t.Destination),
			fmt.Sprintf("Trip %s completed", preview(t.TripID)),
		))
	}

	current := make(map[string]model.Status, len(trips))
	for _, t := range trips {
		current[t.TripID] = t.Status
	}
	e.previous = current
	return created
}

// Sweep removes notifications older than the TTL and returns how many were removed.
func (e *Engine) Sweep(now time.Time) int {
	kept := e.visible[:0]
	for _, n := range e.visible {
		if !n.Expired(now, e.ttl) {
			kept = append(kept, n)
		}
	}
	removed := len(e.visible) - len(kept)
	clear(e.visible[len(kept):])
	e.visible = kept
	return removed
}

// Dismiss removes the notification with the given id. Removal is final.
func (e *Engine) Dismiss(id int64) bool {
	for i, n := range e.visible {
		if n.ID == id {
			e.visible = append(e.visible[:i], e.visible[i+1:]...)
			return true
		}
	}
	return false
}

// Visible returns a copy of the current notifications, newest first.
func (e *Engine) Visible() []Notification {
	return append([]Notification(nil), e.visible...)
}

func (e *Engine) emit(typ Type, t model.Trip, message, details string) Notification {
	e.lastID++
	n := Notification{
		ID:        e.lastID,
		Timestamp: e.now(),
		Type:      typ,
		Trip:      t,
		Message:   message,
		Details:   details,
	}
	visible := make([]Notification, 0, e.capacity)
	visible = append(visible, n)
	visible = append(visible, e.visible[:min(len(e.visible), e.capacity-1)]...)
	e.visible = visible

	for _, fn := range e.listeners {
		fn(n)
	}
	return n
}

// preview shortens id to its first tripIDPreview runes.
func preview(id string) string {
	r := []rune(id)
	if len(r) <= tripIDPreview {
		return id
	}
	return string(r[:tripIDPreview]) + "..."
}
