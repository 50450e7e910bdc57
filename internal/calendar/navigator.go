package calendar

import (
	"errors"
	"sync"
)

// MaxRecent bounds the recently viewed list.
const MaxRecent = 7

const (
	WarnFutureDate = "You can't select future dates."
	InfoToday      = "Showing today's picture."
)

var ErrInvalidDelta = errors.New("navigation step must be -1 or +1")

// State is an immutable view of the navigator.
type State struct {
	Cursor         Date
	Recent         []Date
	HistoryVisible bool
}

// Outcome tells the caller whether the cursor moved and what to tell the user.
type Outcome struct {
	Changed bool
	Cursor  Date
	Warning string
	Info    string
}

// Navigator tracks the selected day and never lets it pass today.
type Navigator struct {
	clock Clock

	mu    sync.Mutex
	state State
}

func NewNavigator(clock Clock) *Navigator {
	if clock == nil {
		clock = LocalClock{}
	}
	return &Navigator{
		clock: clock,
		state: State{Cursor: clock.Today()},
	}
}

// State returns a copy safe to keep.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return copyState(n.state)
}

func (n *Navigator) Cursor() Date {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Cursor
}

func (n *Navigator) Today() Date { return n.clock.Today() }

// Navigate steps one day back (-1) or forward (+1).
func (n *Navigator) Navigate(delta int) (Outcome, error) {
	if delta != -1 && delta != 1 {
		return Outcome{}, ErrInvalidDelta
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	today := n.clock.Today()
	cursor := n.state.Cursor
	target := cursor.AddDays(delta)

	if target.After(today) {
		if cursor == today {
			return Outcome{Cursor: cursor, Warning: WarnFutureDate}, nil
		}
		// cursor drifted past today (clock moved backwards); pull it back
		n.setCursor(today)
		return Outcome{Changed: true, Cursor: today, Warning: WarnFutureDate}, nil
	}

	n.setCursor(target)
	return Outcome{Changed: true, Cursor: target}, nil
}

// GoToToday jumps to today unless already there.
func (n *Navigator) GoToToday() Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()

	today := n.clock.Today()
	if n.state.Cursor == today {
		return Outcome{Cursor: today}
	}
	n.setCursor(today)
	return Outcome{Changed: true, Cursor: today, Info: InfoToday}
}

// Select moves the cursor to d, as chosen from a picker or the history list.
func (n *Navigator) Select(d Date) Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()

	if d.After(n.clock.Today()) {
		return Outcome{Cursor: n.state.Cursor, Warning: WarnFutureDate}
	}
	if d == n.state.Cursor {
		return Outcome{Cursor: d}
	}
	n.setCursor(d)
	return Outcome{Changed: true, Cursor: d}
}

// Record notes that the provider returned a picture for d.
func (n *Navigator) Record(d Date) {
	n.mu.Lock()
	defer n.mu.Unlock()

	recent := make([]Date, 0, MaxRecent)
	recent = append(recent, d)
	for _, r := range n.state.Recent {
		if r != d && len(recent) < MaxRecent {
			recent = append(recent, r)
		}
	}

	next := copyState(n.state)
	next.Recent = recent
	n.state = next
}

// RecentAt returns the i-th (zero based) recently viewed day.
func (n *Navigator) RecentAt(i int) (Date, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i < 0 || i >= len(n.state.Recent) {
		return Date{}, false
	}
	return n.state.Recent[i], true
}

func (n *Navigator) ToggleHistory() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := copyState(n.state)
	next.HistoryVisible = !next.HistoryVisible
	n.state = next
	return next.HistoryVisible
}

func (n *Navigator) setCursor(d Date) {
	next := copyState(n.state)
	next.Cursor = d
	n.state = next
}

func copyState(s State) State {
	out := s
	out.Recent = append([]Date(nil), s.Recent...)
	return out
}
