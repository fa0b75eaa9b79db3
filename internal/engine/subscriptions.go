package engine

import (
	"github.com/dmitrijs2005/groupsync/internal/store"
)

type slot uint8

const (
	slotMessages slot = iota
	slotGroups
	slotCount
)

func (s slot) String() string {
	if s == slotMessages {
		return "messages"
	}
	return "groups"
}

// Subscriptions holds at most one live handle per slot. Installing into an
// occupied slot cancels the old handle first.
type Subscriptions struct {
	handles [slotCount]store.Subscription
}

func (s *Subscriptions) Install(sl slot, sub store.Subscription) {
	s.Cancel(sl)
	s.handles[sl] = sub
}

func (s *Subscriptions) Cancel(sl slot) {
	if h := s.handles[sl]; h != nil {
		s.handles[sl] = nil
		h.Cancel()
	}
}

func (s *Subscriptions) CancelAll() {
	for sl := slot(0); sl < slotCount; sl++ {
		s.Cancel(sl)
	}
}

func (s *Subscriptions) Active(sl slot) bool {
	return s.handles[sl] != nil
}
