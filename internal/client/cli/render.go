package cli

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/groupsync/internal/engine"
)

// render runs on the engine loop.
func (a *App) render(ev engine.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e := ev.(type) {
	case engine.GroupListUpdated:
		a.groups = e.Groups

	case engine.GroupSelected:
		g := e.Group
		a.active = &g
		fmt.Fprintf(a.out, "\n== %s ==\n", g.Name)
		if g.Description != "" {
			fmt.Fprintln(a.out, g.Description)
		}

	case engine.GroupDeselected:
		if a.active != nil && a.active.ID == e.GroupID {
			a.active = nil
		}

	case engine.EmptyState:
		fmt.Fprintln(a.out, "No messages yet. Say hello!")

	case engine.MessageAdmitted:
		fmt.Fprintln(a.out, formatMessage(e.Message))

	case engine.ErrorOccurred:
		fmt.Fprintf(a.out, "\n! %s: %s: %v\n", e.Kind, e.Context, e.Err)
	}
}

func formatMessage(m engine.Message) string {
	line := fmt.Sprintf("[%s] %s: %s", time.UnixMilli(m.Timestamp).Format("15:04:05"), m.UserID, m.Text)
	if m.BlockchainVerified {
		line += " (signed)"
	}
	return line
}

func formatGroup(i int, g engine.GroupView) string {
	line := fmt.Sprintf("%2d. %s  %s", i+1, g.Name, g.ID)
	switch {
	case g.Partial:
		line += "  (loading)"
	case g.IsOwner:
		line += "  (owner)"
	}
	if g.HasPassword() {
		line += "  [locked]"
	}
	if g.BlockchainVerified {
		line += "  [verified]"
	}
	return line
}
