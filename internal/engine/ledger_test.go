package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestLedger_AdmitOnce(t *testing.T) {
	l := NewLedger(2*time.Second, newFakeClock().Now)

	assert.Equal(t, Admitted, l.Admit("m1"))
	assert.Equal(t, SuppressedDuplicate, l.Admit("m1"))
	assert.Equal(t, SuppressedDuplicate, l.Admit("m1"))
	assert.Equal(t, Admitted, l.Admit("m2"))
	assert.Equal(t, 2, l.Len())
}

func TestLedger_SentIdSuppressesEchoThenStaysDisplayed(t *testing.T) {
	clock := newFakeClock()
	l := NewLedger(2*time.Second, clock.Now)

	l.MarkSent("m1")
	assert.Equal(t, 1, l.InFlight())
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, SuppressedEcho, l.Admit("m1"))
	assert.Equal(t, SuppressedEcho, l.Admit("m1"))

	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, l.InFlight())
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, SuppressedDuplicate, l.Admit("m1"), "late redelivery is still suppressed")
}

func TestLedger_SweepDemotesExpiredOnly(t *testing.T) {
	clock := newFakeClock()
	l := NewLedger(time.Second, clock.Now)

	l.MarkSent("old")
	clock.Advance(1500 * time.Millisecond)
	l.MarkSent("new")

	assert.Equal(t, stateDisplayed, l.entries["old"].state, "MarkSent sweeps expired entries")
	assert.Equal(t, stateInFlight, l.entries["new"].state)
}

func TestLedger_Reset(t *testing.T) {
	l := NewLedger(time.Second, nil)
	l.Admit("a")
	l.MarkSent("b")

	l.Reset()

	assert.Equal(t, 0, l.Len())
	assert.Equal(t, Admitted, l.Admit("a"))
	assert.Equal(t, Admitted, l.Admit("b"))
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "admitted", Admitted.String())
	assert.Equal(t, "echo", SuppressedEcho.String())
	assert.Equal(t, "duplicate", SuppressedDuplicate.String())
	assert.Equal(t, "unknown", Verdict(42).String())
}
