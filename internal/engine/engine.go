// Package engine reconciles local writes, replicated writes and live change
// notifications into one deduplicated view of the active group's messages
// and the user's groups.
//
// All state is owned by a single loop goroutine started with Run. Public
// operations and store callbacks are queued onto that loop, so nothing
// inside the engine needs locking. Operations return a Pending result
// immediately.
package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/identity"
	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/store"
)

// DefaultEchoGrace is how long a sent id stays in-flight.
const DefaultEchoGrace = 2 * time.Second

const defaultRefetchDelay = 3 * time.Second

type Config struct {
	// UserID identifies the local user in memberships, pointers and messages.
	UserID string
	// EchoGrace is the in-flight window for sent messages.
	EchoGrace time.Duration
	// RefetchDelay is how long a group shown from its pointer waits before
	// its full record is fetched a second time.
	RefetchDelay time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Engine struct {
	cfg      Config
	store    store.Store
	attestor identity.Attestor
	renderer Renderer
	log      logging.Logger
	now      func() time.Time

	q      *queue
	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned state below.
	ledger    *Ledger
	subs      Subscriptions
	directory *Directory

	active   *Group
	admitted int
	msgGen   uint64
	selectP  *Pending[Group]

	groupsGen    uint64
	groupsLoaded bool
	loadP        *Pending[[]GroupView]
	// fetching holds groups whose full record is being fetched or awaits
	// its refetch.
	fetching map[string]bool
}

func New(st store.Store, attestor identity.Attestor, renderer Renderer, log logging.Logger, cfg Config) (*Engine, error) {
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, errors.Wrap(ErrInvalidInput, "user id is required")
	}
	if strings.Contains(cfg.UserID, "/") {
		return nil, errors.Wrap(ErrInvalidInput, "user id must not contain '/'")
	}
	if cfg.EchoGrace <= 0 {
		cfg.EchoGrace = DefaultEchoGrace
	}
	if cfg.RefetchDelay <= 0 {
		cfg.RefetchDelay = defaultRefetchDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if attestor == nil {
		attestor = identity.None{}
	}
	if renderer == nil {
		renderer = RenderFunc(func(Event) {})
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:       cfg,
		store:     st,
		attestor:  attestor,
		renderer:  renderer,
		log:       log.With("module", "engine", "user", cfg.UserID),
		now:       cfg.Now,
		q:         newQueue(),
		ctx:       ctx,
		cancel:    cancel,
		ledger:    NewLedger(cfg.EchoGrace, cfg.Now),
		directory: NewDirectory(),
		fetching:  make(map[string]bool),
	}, nil
}

// Run processes queued work until ctx is done, then tears down every
// subscription and fails whatever is still queued with ErrClosed.
func (e *Engine) Run(ctx context.Context) error {
	defer e.shutdown()

	for {
		for _, t := range e.q.drain() {
			e.exec(t)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-e.ctx.Done():
			return nil
		case <-e.q.wake:
		}
	}
}

// Close stops a running loop.
func (e *Engine) Close() {
	e.cancel()
}

func (e *Engine) shutdown() {
	e.cancel()
	for _, t := range e.q.close() {
		if t.abort != nil {
			t.abort(ErrClosed)
		}
	}
	e.subs.CancelAll()
	e.msgGen++
	e.groupsGen++
	if e.selectP != nil {
		e.selectP.reject(ErrClosed)
		e.selectP = nil
	}
	if e.loadP != nil {
		e.loadP.reject(ErrClosed)
		e.loadP = nil
	}
	e.log.Info(e.ctx, "engine stopped")
}

func (e *Engine) exec(t task) {
	if t.abort != nil && e.ctx.Err() != nil {
		t.abort(ErrClosed)
		return
	}
	switch t.scope {
	case scopeMessages:
		if t.gen != e.msgGen {
			e.log.Debug(e.ctx, "dropping stale message task", "task_gen", t.gen, "gen", e.msgGen)
			return
		}
	case scopeGroups:
		if t.gen != e.groupsGen {
			e.log.Debug(e.ctx, "dropping stale group list task", "task_gen", t.gen, "gen", e.groupsGen)
			return
		}
	}
	t.fn()
}

// post queues fn from any goroutine. It reports false once the engine has stopped.
func (e *Engine) post(sc scope, gen uint64, fn func()) bool {
	return e.q.push(task{scope: sc, gen: gen, fn: fn})
}

// submit queues a public operation; abort fails its pending result if the
// engine stops first.
func submit[T any](e *Engine, p *Pending[T], fn func()) *Pending[T] {
	postOp(e, p, fn)
	return p
}

// postOp queues a later step of the operation behind p. p fails with
// ErrClosed if the engine stops before the step runs.
func postOp[T any](e *Engine, p *Pending[T], fn func()) {
	if !e.q.push(task{fn: fn, abort: p.reject}) {
		p.reject(ErrClosed)
	}
}

func (e *Engine) render(ev Event) {
	e.renderer.Render(ev)
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

// SelectGroup makes groupID the active group: it tears down the previous
// session, loads existing messages and subscribes to new ones.
func (e *Engine) SelectGroup(groupID string) *Pending[Group] {
	p := newPending[Group]()
	if err := validID(groupID); err != nil {
		p.reject(err)
		return p
	}
	return submit(e, p, func() { e.selectGroup(groupID, p) })
}

// Deselect leaves the active group, if any.
func (e *Engine) Deselect() *Pending[struct{}] {
	p := newPending[struct{}]()
	return submit(e, p, func() {
		e.endSession()
		p.resolve(struct{}{}, nil)
	})
}

// SendMessage shows text immediately in the active group and persists it.
// The pending result fails with ErrStoreUnavailable if the write fails; the
// message stays on screen either way.
func (e *Engine) SendMessage(text string) *Pending[Message] {
	p := newPending[Message]()
	return submit(e, p, func() { e.sendMessage(text, p) })
}

// ActiveGroup reports the selected group. It is safe to call from any
// goroutine but answers from the loop.
func (e *Engine) ActiveGroup() *Pending[*Group] {
	p := newPending[*Group]()
	return submit(e, p, func() {
		if e.active == nil {
			p.resolve(nil, nil)
			return
		}
		g := *e.active
		p.resolve(&g, nil)
	})
}

// endSession cancels the message subscription, clears the ledger and moves
// to a new generation so queued work for the old group is dropped.
func (e *Engine) endSession() {
	e.subs.Cancel(slotMessages)
	e.ledger.Reset()
	e.msgGen++
	e.admitted = 0

	if e.selectP != nil {
		e.selectP.reject(ErrSuperseded)
		e.selectP = nil
	}
	if e.active != nil {
		prev := e.active.ID
		e.active = nil
		e.render(GroupDeselected{GroupID: prev})
	}
}

func (e *Engine) selectGroup(groupID string, p *Pending[Group]) {
	e.endSession()
	gen := e.msgGen
	e.selectP = p

	e.store.Once(e.ctx, groupPath(groupID), func(n store.Node, err error) {
		e.post(scopeMessages, gen, func() { e.onGroupFetched(groupID, gen, n, err) })
	})
}

func (e *Engine) onGroupFetched(groupID string, gen uint64, n store.Node, err error) {
	p := e.selectP
	e.selectP = nil
	if p == nil {
		p = newPending[Group]()
	}

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

	e.active = &g
	e.log.Info(e.ctx, "group selected", "group_id", groupID, "generation", gen)
	e.render(GroupSelected{Group: g})
	p.resolve(g, nil)

	var initial []store.Node
	e.store.Map(e.ctx, messagesPath(groupID),
		func(n store.Node) {
			e.post(scopeMessages, gen, func() { initial = append(initial, n) })
		},
		func(err error) {
			e.post(scopeMessages, gen, func() { e.onInitialMessages(groupID, gen, initial, err) })
		},
	)
}

func (e *Engine) onInitialMessages(groupID string, gen uint64, nodes []store.Node, err error) {
	if err != nil {
		e.log.Warn(e.ctx, "initial message load failed", "group_id", groupID, "error", err)
		e.render(ErrorOccurred{Kind: KindStoreUnavailable, Context: "load messages", Err: unavailable(err, "load messages")})
	}

	msgs := make([]Message, 0, len(nodes))
	for _, n := range nodes {
		if m, ok := e.decodeMessage(groupID, n); ok {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	for _, m := range msgs {
		e.admit(m)
	}
	if e.admitted == 0 {
		e.render(EmptyState{GroupID: groupID})
	}

	e.subscribe(slotMessages, gen, messagesPath(groupID), func(n store.Node) {
		e.post(scopeMessages, gen, func() { e.onLiveMessage(groupID, n) })
	})
}

// subscribe opens a live subscription off the loop and installs it when it
// is ready, unless the slot's generation moved on in the meantime.
func (e *Engine) subscribe(sl slot, gen uint64, path store.Path, fn store.Handler) {
	go func() {
		sub, err := e.store.On(e.ctx, path, fn)
		ok := e.post(scopeNone, 0, func() {
			current := e.msgGen
			if sl == slotGroups {
				current = e.groupsGen
			}
			if gen != current {
				if sub != nil {
					sub.Cancel()
				}
				return
			}
			if err != nil {
				e.log.Warn(e.ctx, "subscribe failed", "slot", sl.String(), "path", path.String(), "error", err)
				e.render(ErrorOccurred{Kind: storeKind(err), Context: "subscribe " + sl.String(), Err: err})
				return
			}
			e.subs.Install(sl, sub)
		})
		if !ok && sub != nil {
			sub.Cancel()
		}
	}()
}

func (e *Engine) onLiveMessage(groupID string, n store.Node) {
	if e.active == nil || e.active.ID != groupID {
		return
	}
	if m, ok := e.decodeMessage(groupID, n); ok {
		e.admit(m)
	}
}

func (e *Engine) decodeMessage(groupID string, n store.Node) (Message, bool) {
	if !n.Exists() {
		return Message{}, false
	}
	var m Message
	if err := n.Decode(&m); err != nil {
		e.log.Warn(e.ctx, "skipping malformed message", "path", n.Path.String(), "error", err)
		return Message{}, false
	}
	// The path key is the message identity.
	m.ID = n.Key()
	m.GroupID = groupID
	return m, true
}

// admit applies the admission check and renders newly admitted messages.
func (e *Engine) admit(m Message) {
	switch v := e.ledger.Admit(m.ID); v {
	case Admitted:
		e.admitted++
		e.render(MessageAdmitted{GroupID: m.GroupID, Message: m})
	default:
		e.log.Debug(e.ctx, "notification suppressed", "message_id", m.ID, "reason", v.String())
	}
}

func (e *Engine) sendMessage(text string, p *Pending[Message]) {
	text = strings.TrimSpace(text)
	if text == "" {
		p.reject(errors.Wrap(ErrInvalidInput, "message text is empty"))
		return
	}
	if e.active == nil {
		p.reject(ErrNoActiveGroup)
		return
	}

	g := *e.active
	m := Message{
		ID:        newID(),
		GroupID:   g.ID,
		UserID:    e.cfg.UserID,
		Text:      text,
		Timestamp: e.nowMillis(),
	}
	m.AttestationAddress, m.Attestation, m.BlockchainVerified = identity.Attest(e.attestor, messagePayload(m))

	// The ledger entry must exist before the put so an early echo is suppressed.
	e.ledger.MarkSent(m.ID)
	e.admitted++
	e.render(MessageAdmitted{GroupID: g.ID, Message: m, Local: true})

	go func() {
		if err := e.store.Put(e.ctx, messagePath(g.ID, m.ID), m); err != nil {
			werr := unavailable(err, "deliver message "+m.ID)
			e.log.Warn(e.ctx, "message not delivered", "group_id", g.ID, "message_id", m.ID, "error", err)
			e.post(scopeNone, 0, func() {
				e.render(ErrorOccurred{Kind: KindStoreUnavailable, Context: "send message " + m.ID, Err: werr})
			})
			p.resolve(m, werr)
			return
		}
		p.resolve(m, nil)
		e.recordMessageAttestation(m)
	}()
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.Wrap(ErrInvalidInput, "group id is empty")
	}
	if strings.Contains(id, "/") {
		return errors.Wrapf(ErrInvalidInput, "group id %q contains '/'", id)
	}
	return nil
}
