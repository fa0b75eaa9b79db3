package engine

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/cryptox"
	"github.com/dmitrijs2005/groupsync/internal/identity"
	"github.com/dmitrijs2005/groupsync/internal/store"
)

type CreateGroupRequest struct {
	Name        string
	Description string
	// Password protects the group when non-empty.
	Password string
	// RequestVerification asks for a signed verification record. It only
	// takes effect when the attestor has an identity.
	RequestVerification bool
}

// CreateGroup persists a new group owned by the local user. The group is
// added to the directory before the writes complete.
func (e *Engine) CreateGroup(req CreateGroupRequest) *Pending[Group] {
	p := newPending[Group]()
	return submit(e, p, func() { e.createGroup(req, p) })
}

func (e *Engine) createGroup(req CreateGroupRequest, p *Pending[Group]) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		p.reject(errors.Wrap(ErrInvalidInput, "group name is empty"))
		return
	}

	g := Group{
		ID:            newID(),
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		CreatorID:     e.cfg.UserID,
		CreatedAt:     e.nowMillis(),
		WalletAddress: identity.NoAddress,
		Signature:     identity.NoSignature,
	}
	if req.Password != "" {
		digest := cryptox.PasswordDigest(req.Password)
		g.PasswordHash = &digest
	}
	if req.RequestVerification {
		if addr, ok := e.attestor.Address(); ok {
			g.WalletAddress, g.Signature, g.BlockchainVerified = identity.Attest(e.attestor, groupPayload(g, addr))
		}
	}

	owner := Membership{
		Username:      e.cfg.UserID,
		Role:          RoleOwner,
		JoinedAt:      g.CreatedAt,
		WalletAddress: g.WalletAddress,
	}
	ptr := GroupPointer{Name: g.Name, CreatedAt: g.CreatedAt, IsOwner: true}

	e.directory.Upsert(GroupView{Group: g, IsOwner: true})
	e.render(GroupListUpdated{Groups: e.directory.List()})
	e.log.Info(e.ctx, "creating group", "group_id", g.ID, "verified", g.BlockchainVerified)

	go func() {
		err := e.putAll("create group "+g.ID,
			write{groupPath(g.ID), g},
			write{memberPath(g.ID, e.cfg.UserID), owner},
			write{userGroupPath(e.cfg.UserID, g.ID), ptr},
		)
		if err != nil {
			p.resolve(g, err)
			return
		}
		p.resolve(g, nil)
		e.recordGroupVerification(g)
	}()
}

// JoinGroup adds the local user to groupID. password is checked against the
// stored digest when the group has one. Joining twice rewrites the same
// membership.
func (e *Engine) JoinGroup(groupID, password string) *Pending[Group] {
	p := newPending[Group]()
	if err := validID(groupID); err != nil {
		p.reject(err)
		return p
	}
	return submit(e, p, func() {
		e.store.Once(e.ctx, groupPath(groupID), func(n store.Node, err error) {
			postOp(e, p, func() { e.onJoinFetched(groupID, password, n, err, p) })
		})
	})
}

func (e *Engine) onJoinFetched(groupID, password string, n store.Node, err error, p *Pending[Group]) {
	if err != nil {
		p.reject(unavailable(err, "fetch group "+groupID))
		return
	}
	if !n.Exists() {
		p.reject(errors.Wrapf(ErrNotFound, "group %s", groupID))
		return
	}
	var g Group
	if err := n.Decode(&g); err != nil {
		p.reject(errors.Mark(err, ErrNotFound))
		return
	}
	g.ID = groupID

	if g.HasPassword() {
		if password == "" {
			p.reject(ErrPasswordRequired)
			return
		}
		if !cryptox.VerifyPassword(password, *g.PasswordHash) {
			e.log.Info(e.ctx, "join rejected", "group_id", groupID, "reason", "invalid password")
			p.reject(ErrInvalidPassword)
			return
		}
	}

	e.store.Once(e.ctx, memberPath(groupID, e.cfg.UserID), func(n store.Node, err error) {
		postOp(e, p, func() { e.completeJoin(g, n, err, p) })
	})
}

func (e *Engine) completeJoin(g Group, existing store.Node, err error, p *Pending[Group]) {
	if err != nil {
		p.reject(unavailable(err, "fetch membership"))
		return
	}

	var m Membership
	if !existing.Exists() || existing.Decode(&m) != nil {
		addr, ok := e.attestor.Address()
		if !ok {
			addr = identity.NoAddress
		}
		m = Membership{Username: e.cfg.UserID, Role: RoleMember, JoinedAt: e.nowMillis(), WalletAddress: addr}
	}
	isOwner := m.Role == RoleOwner
	ptr := GroupPointer{Name: g.Name, CreatedAt: g.CreatedAt, IsOwner: isOwner}

	e.directory.Upsert(GroupView{Group: g, IsOwner: isOwner})
	e.render(GroupListUpdated{Groups: e.directory.List()})

	go func() {
		err := e.putAll("join group "+g.ID,
			write{memberPath(g.ID, e.cfg.UserID), m},
			write{userGroupPath(e.cfg.UserID, g.ID), ptr},
		)
		p.resolve(g, err)
	}()
}

// LoadGroups enumerates the user's groups, then keeps the list live. Each
// pointer is shown at once and upgraded when its full record arrives.
func (e *Engine) LoadGroups() *Pending[[]GroupView] {
	p := newPending[[]GroupView]()
	return submit(e, p, func() { e.loadGroups(p) })
}

func (e *Engine) loadGroups(p *Pending[[]GroupView]) {
	e.resetGroupList()
	gen := e.groupsGen
	e.loadP = p

	e.store.Map(e.ctx, userGroupsPath(e.cfg.UserID),
		func(n store.Node) {
			e.post(scopeGroups, gen, func() { e.onPointer(gen, n) })
		},
		func(err error) {
			e.post(scopeGroups, gen, func() { e.onPointersLoaded(gen, err) })
		},
	)
}

func (e *Engine) resetGroupList() {
	e.subs.Cancel(slotGroups)
	e.groupsGen++
	e.groupsLoaded = false
	clear(e.fetching)
	if e.loadP != nil {
		e.loadP.reject(ErrSuperseded)
		e.loadP = nil
	}
}

func (e *Engine) onPointer(gen uint64, n store.Node) {
	if !n.Exists() {
		return
	}
	var ptr GroupPointer
	if err := n.Decode(&ptr); err != nil {
		e.log.Warn(e.ctx, "skipping malformed group pointer", "path", n.Path.String(), "error", err)
		return
	}
	gid := n.Key()

	changed := e.directory.Upsert(GroupView{
		Group:   Group{ID: gid, Name: ptr.Name, CreatedAt: ptr.CreatedAt},
		IsOwner: ptr.IsOwner,
		Partial: true,
	})
	if cur, _ := e.directory.Get(gid); cur.Partial && !e.fetching[gid] {
		e.fetching[gid] = true
		e.fetchFullGroup(gen, gid, true)
	}
	if changed && e.groupsLoaded {
		e.render(GroupListUpdated{Groups: e.directory.List()})
	}
}

// fetchFullGroup loads the record behind a pointer. A miss is retried once
// after RefetchDelay when retry is set, since the record may replicate
// later than the pointer.
func (e *Engine) fetchFullGroup(gen uint64, gid string, retry bool) {
	e.store.Once(e.ctx, groupPath(gid), func(n store.Node, err error) {
		e.post(scopeGroups, gen, func() { e.onFullGroup(gen, gid, n, err, retry) })
	})
}

func (e *Engine) onFullGroup(gen uint64, gid string, n store.Node, err error, retry bool) {
	if err != nil || !n.Exists() {
		e.log.Debug(e.ctx, "full group record unavailable, keeping pointer", "group_id", gid, "error", err, "retry", retry)
		if !retry {
			delete(e.fetching, gid)
			return
		}
		time.AfterFunc(e.cfg.RefetchDelay, func() {
			e.post(scopeGroups, gen, func() {
				if cur, ok := e.directory.Get(gid); ok && cur.Partial {
					e.fetchFullGroup(gen, gid, false)
					return
				}
				delete(e.fetching, gid)
			})
		})
		return
	}
	delete(e.fetching, gid)
	var g Group
	if err := n.Decode(&g); err != nil {
		e.log.Warn(e.ctx, "skipping malformed group", "group_id", gid, "error", err)
		return
	}
	g.ID = gid
	cur, _ := e.directory.Get(gid)
	e.directory.Upsert(GroupView{Group: g, IsOwner: cur.IsOwner})
	if e.groupsLoaded {
		e.render(GroupListUpdated{Groups: e.directory.List()})
	}
}

func (e *Engine) onPointersLoaded(gen uint64, err error) {
	p := e.loadP
	e.loadP = nil
	e.groupsLoaded = true

	groups := e.directory.List()
	e.render(GroupListUpdated{Groups: groups})
	if p != nil {
		if err != nil {
			p.reject(unavailable(err, "load groups"))
		} else {
			p.resolve(groups, nil)
		}
	}

	e.subscribe(slotGroups, gen, userGroupsPath(e.cfg.UserID), func(n store.Node) {
		e.post(scopeGroups, gen, func() { e.onPointer(gen, n) })
	})
}

// Members lists the memberships of groupID.
func (e *Engine) Members(groupID string) *Pending[[]Membership] {
	p := newPending[[]Membership]()
	if err := validID(groupID); err != nil {
		p.reject(err)
		return p
	}
	return submit(e, p, func() {
		var out []Membership
		e.store.Map(e.ctx, membersPath(groupID),
			func(n store.Node) {
				e.post(scopeNone, 0, func() {
					var m Membership
					if err := n.Decode(&m); err != nil {
						return
					}
					if m.Username == "" {
						m.Username = n.Key()
					}
					out = append(out, m)
				})
			},
			func(err error) {
				postOp(e, p, func() {
					if err != nil {
						p.reject(unavailable(err, "list members"))
						return
					}
					p.resolve(out, nil)
				})
			},
		)
	})
}

// MemberCount counts the memberships of groupID.
func (e *Engine) MemberCount(groupID string) *Pending[int] {
	members := e.Members(groupID)
	p := newPending[int]()
	go func() {
		select {
		case <-members.Done():
			p.resolve(len(members.val), members.err)
		case <-e.ctx.Done():
			p.reject(ErrClosed)
		}
	}()
	return p
}

// Logout tears down every subscription, clears the directory and records
// the logout time.
func (e *Engine) Logout() *Pending[struct{}] {
	p := newPending[struct{}]()
	return submit(e, p, func() {
		e.endSession()
		e.resetGroupList()
		e.directory.Reset()
		e.render(GroupListUpdated{})

		at := e.nowMillis()
		go func() {
			if err := e.store.Put(e.ctx, lastLogoutPath(e.cfg.UserID), at); err != nil {
				p.reject(unavailable(err, "record logout"))
				return
			}
			p.resolve(struct{}{}, nil)
		}()
	})
}

type write struct {
	path  store.Path
	value any
}

// putAll writes in order and stops at the first failure.
func (e *Engine) putAll(op string, writes ...write) error {
	for _, w := range writes {
		if err := e.store.Put(e.ctx, w.path, w.value); err != nil {
			e.log.Warn(e.ctx, "write failed", "op", op, "path", w.path.String(), "error", err)
			return unavailable(err, op)
		}
	}
	return nil
}
