package engine

import "time"

type entryState uint8

const (
	stateDisplayed entryState = iota
	stateInFlight
)

type ledgerEntry struct {
	state      entryState
	insertedAt time.Time
}

// Verdict is the outcome of an admission check.
type Verdict uint8

const (
	// Admitted means the id was new and is now displayed.
	Admitted Verdict = iota
	// SuppressedEcho means the id was sent by this client within the grace window.
	SuppressedEcho
	// SuppressedDuplicate means the id was already displayed.
	SuppressedDuplicate
)

func (v Verdict) String() string {
	switch v {
	case Admitted:
		return "admitted"
	case SuppressedEcho:
		return "echo"
	case SuppressedDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Ledger tracks which message ids the active group view has rendered.
//
// Every id is either displayed or in-flight. In-flight ids were sent by this
// client and are also displayed; they fall back to plain displayed once the
// grace window has passed. Demotion is lazy, on lookup or sweep. Ledger is
// owned by the engine loop and is not safe for concurrent use.
type Ledger struct {
	entries map[string]ledgerEntry
	grace   time.Duration
	now     func() time.Time
}

func NewLedger(grace time.Duration, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{entries: make(map[string]ledgerEntry), grace: grace, now: now}
}

// Admit runs the admission check for id, inserting it as displayed when new.
func (l *Ledger) Admit(id string) Verdict {
	e, ok := l.lookup(id)
	switch {
	case !ok:
		l.entries[id] = ledgerEntry{state: stateDisplayed, insertedAt: l.now()}
		return Admitted
	case e.state == stateInFlight:
		return SuppressedEcho
	default:
		return SuppressedDuplicate
	}
}

// MarkSent records a locally sent id as in-flight (and so displayed).
func (l *Ledger) MarkSent(id string) {
	l.Sweep()
	l.entries[id] = ledgerEntry{state: stateInFlight, insertedAt: l.now()}
}

// InFlight counts ids still inside their grace window.
func (l *Ledger) InFlight() int {
	n := 0
	for id := range l.entries {
		if e, _ := l.lookup(id); e.state == stateInFlight {
			n++
		}
	}
	return n
}

// Sweep demotes every in-flight entry whose grace window has passed.
func (l *Ledger) Sweep() {
	now := l.now()
	for id, e := range l.entries {
		if e.state == stateInFlight && now.Sub(e.insertedAt) >= l.grace {
			l.entries[id] = ledgerEntry{state: stateDisplayed, insertedAt: e.insertedAt}
		}
	}
}

// Reset forgets every id.
func (l *Ledger) Reset() {
	clear(l.entries)
}

// Len counts every id rendered in this session.
func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) lookup(id string) (ledgerEntry, bool) {
	e, ok := l.entries[id]
	if !ok {
		return e, false
	}
	if e.state == stateInFlight && l.now().Sub(e.insertedAt) >= l.grace {
		e.state = stateDisplayed
		l.entries[id] = e
	}
	return e, true
}
