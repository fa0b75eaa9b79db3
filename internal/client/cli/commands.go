package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/engine"
	"github.com/dmitrijs2005/groupsync/internal/identity"
)

func wait[T any](ctx context.Context, p *engine.Pending[T]) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return p.Wait(ctx)
}

// describe turns an engine error into a line for the user.
func describe(err error) string {
	switch engine.KindOf(err) {
	case engine.KindPasswordRequired:
		return "this group is password protected"
	case engine.KindInvalidPassword:
		return "wrong password"
	case engine.KindNotFound:
		return "group not found"
	case engine.KindNoActiveGroup:
		return "open a group first (select <id>)"
	case engine.KindSuperseded:
		return "replaced by a newer request"
	case engine.KindStoreUnavailable:
		return "store unavailable, try again: " + err.Error()
	}
	return err.Error()
}

// resolveGroup accepts a group id or a 1-based position in the last
// listing.
func (a *App) resolveGroup(arg string) string {
	if n, err := strconv.Atoi(arg); err == nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		if n >= 1 && n <= len(a.groups) {
			return a.groups[n-1].ID
		}
	}
	return arg
}

func (a *App) Groups(ctx context.Context) error {
	groups, err := wait(ctx, a.engine.LoadGroups())
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.groups = groups
	if len(groups) == 0 {
		fmt.Fprintln(a.out, "You are not in any group yet. Use 'create' or 'join <id>'.")
		return nil
	}
	fmt.Fprintln(a.out, "Your groups:")
	for i, g := range groups {
		fmt.Fprintln(a.out, formatGroup(i, g))
	}
	return nil
}

func (a *App) Create(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Group name", a.out)
	if err != nil {
		return err
	}
	description, err := GetSimpleText(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}

	req := engine.CreateGroupRequest{Name: name, Description: description}

	protect, err := Confirm(a.reader, "Protect with a password?", a.out)
	if err != nil {
		return err
	}
	if protect {
		pw, err := GetPassword(a.out, "Group password")
		if err != nil {
			return err
		}
		req.Password = string(pw)
		wipe(pw)
	}

	if _, ok := a.attestor.Address(); ok {
		if req.RequestVerification, err = Confirm(a.reader, "Sign and verify with your wallet?", a.out); err != nil {
			return err
		}
	}

	g, err := wait(ctx, a.engine.CreateGroup(req))
	if err != nil {
		return err
	}
	a.printf("Created %q with id %s\n", g.Name, g.ID)
	return nil
}

func (a *App) Join(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.Wrap(engine.ErrInvalidInput, "usage: join <id>")
	}
	id := args[0]

	g, err := wait(ctx, a.engine.JoinGroup(id, ""))
	if errors.Is(err, engine.ErrPasswordRequired) {
		pw, perr := GetPassword(a.out, "Group password")
		if perr != nil {
			return perr
		}
		g, err = wait(ctx, a.engine.JoinGroup(id, string(pw)))
		wipe(pw)
	}
	if err != nil {
		return err
	}
	a.printf("Joined %q\n", g.Name)
	return nil
}

func (a *App) Select(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.Wrap(engine.ErrInvalidInput, "usage: select <id|#>")
	}
	g, err := wait(ctx, a.engine.SelectGroup(a.resolveGroup(args[0])))
	if err != nil {
		return err
	}
	n, err := wait(ctx, a.engine.MemberCount(g.ID))
	if err != nil {
		return err
	}
	a.printf("%d member(s) in %s\n", n, g.Name)
	return nil
}

func (a *App) Send(ctx context.Context, text string) error {
	_, err := wait(ctx, a.engine.SendMessage(text))
	return err
}

func (a *App) Members(ctx context.Context, args []string) error {
	var id string
	switch len(args) {
	case 0:
		a.mu.Lock()
		if a.active != nil {
			id = a.active.ID
		}
		a.mu.Unlock()
		if id == "" {
			return engine.ErrNoActiveGroup
		}
	case 1:
		id = a.resolveGroup(args[0])
	default:
		return errors.Wrap(engine.ErrInvalidInput, "usage: members [id|#]")
	}

	members, err := wait(ctx, a.engine.Members(id))
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, "%d member(s):\n", len(members))
	for _, m := range members {
		line := fmt.Sprintf("  %s (%s)", m.Username, m.Role)
		if m.WalletAddress != "" && m.WalletAddress != identity.NoAddress {
			line += " " + m.WalletAddress
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func (a *App) Back(ctx context.Context) error {
	_, err := wait(ctx, a.engine.Deselect())
	return err
}

func (a *App) Status(ctx context.Context) error {
	addr, ok := a.attestor.Address()
	if !ok {
		addr = "none"
	}
	st, err := wait(ctx, a.engine.Status())
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, "user: %s\nbackend: %s\nmode: %s\nwallet: %s\n", a.config.UserID, a.config.Backend, a.mode, addr)
	if a.active != nil {
		fmt.Fprintf(a.out, "group: %s (%s)\n", a.active.Name, a.active.ID)
	}
	fmt.Fprintf(a.out, "groups known: %d, list %s\n", st.Groups, liveness(st.GroupListLive))
	if st.ActiveGroupID != "" {
		fmt.Fprintf(a.out, "messages %s, shown: %d, sending: %d\n", liveness(st.MessagesLive), st.Displayed, st.InFlight)
	}
	return nil
}

func liveness(live bool) string {
	if live {
		return "live"
	}
	return "not subscribed"
}

func (a *App) Logout(ctx context.Context) error {
	_, err := wait(ctx, a.engine.Logout())
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.active = nil
	a.groups = nil
	a.mu.Unlock()
	return nil
}

// compile-time check
var _ execIface = (*App)(nil)
