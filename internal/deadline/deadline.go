// Package deadline computes how much of a phase's countdown is left. The
// countdown is anchored to a persisted start instant so reloading the page
// never hands out extra time.
package deadline

import (
	"context"
	"fmt"
	"time"

	"github.com/adonhq/assessment-backend/internal/model"
)

// DefaultDuration is the time allowed for every phase.
const DefaultDuration = 300 * time.Second

// AnchorStore persists one start instant per (examination, phase).
type AnchorStore interface {
	// SetIfAbsent stores at unless an anchor exists, and returns whichever
	// anchor is stored afterwards.
	SetIfAbsent(ctx context.Context, examinationID string, phase model.Phase, at time.Time) (time.Time, error)
	// Get returns the anchor and whether one exists.
	Get(ctx context.Context, examinationID string, phase model.Phase) (time.Time, bool, error)
	Delete(ctx context.Context, examinationID string, phase model.Phase) error
}

// Remaining returns max(duration - elapsed, 0) where elapsed is counted in
// whole seconds. An anchor in the future never yields more than duration.
func Remaining(now, anchor time.Time, duration time.Duration) time.Duration {
	elapsed := now.Sub(anchor).Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	left := duration - elapsed
	if left < 0 {
		return 0
	}
	return left
}

// Status is a snapshot of one phase's countdown.
type Status struct {
	StartedAt        time.Time `json:"started_at"`
	DurationSeconds  int       `json:"duration_seconds"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Expired          bool      `json:"expired"`
}

// Tracker reads and writes anchors through an AnchorStore.
type Tracker struct {
	store    AnchorStore
	duration time.Duration
	now      func() time.Time
}

// NewTracker creates a Tracker. A non-positive duration falls back to
// DefaultDuration and a nil clock to time.Now.
func NewTracker(store AnchorStore, duration time.Duration, now func() time.Time) *Tracker {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, duration: duration, now: now}
}

// Duration is the per-phase time limit.
func (t *Tracker) Duration() time.Duration { return t.duration }

// Observe returns the countdown, creating the anchor at the current instant
// when the phase has never been observed.
func (t *Tracker) Observe(ctx context.Context, examinationID string, phase model.Phase) (*Status, error) {
	now := t.now()
	anchor, err := t.store.SetIfAbsent(ctx, examinationID, phase, now)
	if err != nil {
		return nil, fmt.Errorf("anchor phase %d: %w", phase, err)
	}
	return t.status(now, anchor), nil
}

// Peek returns the countdown without creating an anchor.
func (t *Tracker) Peek(ctx context.Context, examinationID string, phase model.Phase) (*Status, bool, error) {
	anchor, ok, err := t.store.Get(ctx, examinationID, phase)
	if err != nil {
		return nil, false, fmt.Errorf("read anchor phase %d: %w", phase, err)
	}
	if !ok {
		return nil, false, nil
	}
	return t.status(t.now(), anchor), true, nil
}

// Clear drops the anchor once the phase is submitted.
func (t *Tracker) Clear(ctx context.Context, examinationID string, phase model.Phase) error {
	if err := t.store.Delete(ctx, examinationID, phase); err != nil {
		return fmt.Errorf("clear anchor phase %d: %w", phase, err)
	}
	return nil
}

func (t *Tracker) status(now, anchor time.Time) *Status {
	left := Remaining(now, anchor, t.duration)
	return &Status{
		StartedAt:        anchor,
		DurationSeconds:  int(t.duration / time.Second),
		RemainingSeconds: int(left / time.Second),
		Expired:          left == 0,
	}
}
