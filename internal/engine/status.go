package engine

// Status is a snapshot of the session as seen from the loop.
type Status struct {
	ActiveGroupID string
	MessagesLive  bool
	GroupListLive bool
	// Displayed counts ids rendered in the current group; InFlight those
	// of them still inside the echo grace window.
	Displayed int
	InFlight  int
	Groups    int
}

// Status reports subscription and ledger state.
func (e *Engine) Status() *Pending[Status] {
	p := newPending[Status]()
	return submit(e, p, func() {
		st := Status{
			MessagesLive:  e.subs.Active(slotMessages),
			GroupListLive: e.subs.Active(slotGroups),
			Displayed:     e.ledger.Len(),
			InFlight:      e.ledger.InFlight(),
			Groups:        e.directory.Len(),
		}
		if e.active != nil {
			st.ActiveGroupID = e.active.ID
		}
		p.resolve(st, nil)
	})
}
