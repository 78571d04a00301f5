// Package alert is the single user-facing error surface: a message, one or
// two choices, and a timer that moves focus to the dismiss control.
package alert

import (
	"sync"
	"time"
)

type Kind string

const (
	PastMax      Kind = "past-max"
	BeforeMin    Kind = "before-min"
	NoEvents     Kind = "no-events"
	ZoneMismatch Kind = "zone-mismatch"
)

// FocusDelay is how long an alert waits before focusing its dismiss control.
const FocusDelay = 6500 * time.Millisecond

// Choice is one button on an alert.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Alert is a recoverable condition shown to the user.
type Alert struct {
	Kind    Kind     `json:"kind"`
	Message string   `json:"message"`
	Choices []Choice `json:"choices"`
}

// DismissChoice is the default single "OK" control.
var DismissChoice = Choice{ID: "ok", Label: "OK"}

// Box holds at most one visible alert.
type Box struct {
	mu      sync.Mutex
	current *Alert
	focused bool
	timer   *time.Timer
	gen     int
	delay   time.Duration
	onFocus func()
}

// NewBox returns an empty box. onFocus, if set, runs when the focus timer fires.
func NewBox(onFocus func()) *Box {
	return &Box{delay: FocusDelay, onFocus: onFocus}
}

// Show replaces any visible alert and restarts the focus timer.
func (b *Box) Show(a Alert) {
	if len(a.Choices) == 0 {
		a.Choices = []Choice{DismissChoice}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	b.current = &a
	b.focused = false
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.delay, func() { b.focus(gen) })
}

// focus ignores timers that belong to an alert already replaced.
func (b *Box) focus(gen int) {
	b.mu.Lock()
	if b.current == nil || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.focused = true
	cb := b.onFocus
	b.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Current returns the visible alert, if any.
func (b *Box) Current() (Alert, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Alert{}, false
	}
	return *b.current, true
}

// Focused reports whether the dismiss control has received focus.
func (b *Box) Focused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focused
}

// Dismiss clears the alert and its timer, returning what was shown.
func (b *Box) Dismiss() (Alert, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	if b.current == nil {
		return Alert{}, false
	}
	a := *b.current
	b.current = nil
	b.focused = false
	return a, true
}

func (b *Box) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
