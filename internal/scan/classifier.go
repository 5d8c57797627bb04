// Package scan classifies a live keystroke stream as scanner burst or
// human typing and parses completed scan payloads into identity fields.
//
// Keyboard-wedge scanners emit their decoded payload as keystrokes that
// are indistinguishable from typing at the OS level; the only reliable
// signal is inter-key timing. The classifier is a small state machine
// driven synchronously from each input event and must never block.
package scan

import (
	"strings"
	"time"
)

// Timing thresholds. These are tuned against real scanner behavior and
// frozen: loosening burstThreshold swallows fast typists, tightening it
// drops scanner keystrokes into form fields.
const (
	// burstThreshold is the maximum inter-key delay within a scan burst.
	burstThreshold = 25 * time.Millisecond
	// resetThreshold is the idle gap after which buffered input is stale.
	resetThreshold = 200 * time.Millisecond
)

// Key identifies a named, non-printable key.
type Key int

const (
	KeyRune Key = iota // printable character, see KeyEvent.Rune
	KeyEnter
	KeyTab
	KeyEscape
	KeyOther // navigation and everything else
)

// KeyEvent is one keystroke as delivered by the input source.
type KeyEvent struct {
	Key  Key
	Rune rune // valid when Key == KeyRune
	When time.Time

	// Modifier flags; chorded keys are never part of a scan.
	Alt  bool
	Ctrl bool
	Meta bool

	// EditableFocus reports whether an editable field currently has
	// input focus.
	EditableFocus bool
}

// ActionKind tells the caller what to do with the event just processed.
type ActionKind int

const (
	// ActionPassThrough: deliver the key to the focused field as usual.
	ActionPassThrough ActionKind = iota
	// ActionBuffered: the key was intercepted into the scan buffer.
	ActionBuffered
	// ActionIgnored: the event is not ours and not a field's either.
	ActionIgnored
	// ActionCleared: the buffer was discarded without emitting a scan.
	ActionCleared
	// ActionCompleted: a scan finished; Raw and Scan are populated.
	ActionCompleted
)

// Action is the classifier's verdict on a single event.
type Action struct {
	Kind ActionKind
	Raw  string // completed payload, trimmed
	Scan Parsed // parsed fields, valid when Kind == ActionCompleted
}

// Classifier accumulates scanner bursts out of a keystroke stream.
// It is not safe for concurrent use; drive it from the single input
// event loop that owns it.
type Classifier struct {
	buffer    []rune
	lastEvent time.Time

	// onScan, when set, is invoked synchronously for each completed scan.
	onScan func(raw string, parsed Parsed)
}

// NewClassifier returns a classifier in the idle state.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// OnScan registers a callback fired on each completed scan, in addition
// to the returned Action.
func (c *Classifier) OnScan(fn func(raw string, parsed Parsed)) {
	c.onScan = fn
}

// Buffer returns the currently buffered characters.
func (c *Classifier) Buffer() string {
	return string(c.buffer)
}

// Reset discards any buffered input and returns to idle.
func (c *Classifier) Reset() {
	c.buffer = c.buffer[:0]
}

// Feed processes one key event and returns the resulting action.
func (c *Classifier) Feed(ev KeyEvent) Action {
	delta := ev.When.Sub(c.lastEvent)
	if c.lastEvent.IsZero() {
		delta = resetThreshold + time.Second
	}
	c.lastEvent = ev.When

	// Stale buffer: the burst ended without a terminator.
	if delta > resetThreshold && len(c.buffer) > 0 {
		c.Reset()
	}

	// Chorded keys are shortcuts, never scan content.
	if ev.Alt || ev.Ctrl || ev.Meta {
		if ev.EditableFocus {
			return Action{Kind: ActionPassThrough}
		}
		return Action{Kind: ActionIgnored}
	}

	likelyScan := delta < burstThreshold || len(c.buffer) > 0

	switch ev.Key {
	case KeyEscape:
		c.Reset()
		return Action{Kind: ActionCleared}

	case KeyEnter:
		if len(c.buffer) == 0 {
			// Left to normal form handling.
			if ev.EditableFocus {
				return Action{Kind: ActionPassThrough}
			}
			return Action{Kind: ActionIgnored}
		}
		return c.complete()

	case KeyTab:
		if likelyScan {
			c.buffer = append(c.buffer, '\t')
			return Action{Kind: ActionBuffered}
		}
		if ev.EditableFocus {
			return Action{Kind: ActionPassThrough}
		}
		return Action{Kind: ActionIgnored}

	case KeyRune:
		if ev.EditableFocus {
			// Inside a field only burst-speed keys are intercepted; a
			// lone key after a pause is typing, and any stale buffer
			// must not swallow it.
			if delta < burstThreshold {
				c.buffer = append(c.buffer, ev.Rune)
				return Action{Kind: ActionBuffered}
			}
			if len(c.buffer) > 0 {
				c.Reset()
			}
			return Action{Kind: ActionPassThrough}
		}
		// Outside a field a printable key always buffers.
		c.buffer = append(c.buffer, ev.Rune)
		return Action{Kind: ActionBuffered}

	default:
		// Editing and navigation keys (Backspace, arrows) belong to
		// the focused field. They never disrupt the buffer either way.
		if ev.EditableFocus {
			return Action{Kind: ActionPassThrough}
		}
		return Action{Kind: ActionIgnored}
	}
}

// complete drains the buffer through the field parser.
func (c *Classifier) complete() Action {
	raw := string(c.buffer)
	c.Reset()

	parsed := Parse(raw)
	act := Action{Kind: ActionCompleted, Raw: strings.TrimSpace(raw), Scan: parsed}
	if c.onScan != nil {
		c.onScan(act.Raw, parsed)
	}
	return act
}
