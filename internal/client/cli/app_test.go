package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/groupsync/internal/client/config"
	"github.com/dmitrijs2005/groupsync/internal/cryptox"
	"github.com/dmitrijs2005/groupsync/internal/engine"
	"github.com/dmitrijs2005/groupsync/internal/identity"
	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/dmitrijs2005/groupsync/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is written from the engine loop and the REPL at once.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(user string) *config.Config {
	var c config.Config
	c.LoadDefaults()
	c.UserID = user
	return &c
}

// runScript feeds script to a fresh App over st and returns its output.
func runScript(t *testing.T, st store.Store, user, script string) string {
	t.Helper()
	out := &syncBuffer{}
	app, err := newApp(testConfig(user), st, identity.None{}, logging.Nop{}, rdr(script), out)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, app.Run(ctx))
	return out.String()
}

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	var mu sync.Mutex
	readPassword = func(int) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		require.NotEmpty(t, answers, "unexpected password prompt")
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
}

func TestApp_CreateSelectSend(t *testing.T) {
	st := memstore.New()

	out := runScript(t, st, "alice", strings.Join([]string{
		"create",
		"Team",
		"Our team",
		"n",
		"groups",
		"select 1",
		"send hello world",
		"members",
		"status",
		"back",
		"exit",
	}, "\n")+"\n")

	assert.Contains(t, out, "You are not in any group yet")
	assert.Contains(t, out, `Created "Team" with id`)
	assert.Contains(t, out, " 1. Team")
	assert.Contains(t, out, "(owner)")
	assert.Contains(t, out, "== Team ==")
	assert.Contains(t, out, "Our team")
	assert.Contains(t, out, "alice: hello world")
	assert.Contains(t, out, "1 member(s) in Team")
	assert.Contains(t, out, "1 member(s):")
	assert.Contains(t, out, "alice (owner)")
	assert.Contains(t, out, "group: Team")
	assert.Contains(t, out, "wallet: none")
	assert.Contains(t, out, "groups known: 1")
	assert.Contains(t, out, "shown: 1")
	assert.Contains(t, out, "Bye!")

	assert.Len(t, st.Children(store.NewPath("users", "alice", "groups")), 1)
}

func TestApp_SendWithoutGroup(t *testing.T) {
	out := runScript(t, memstore.New(), "alice", "send hi\nexit\n")
	assert.Contains(t, out, "Error: open a group first")
}

func seedLockedGroup(t *testing.T, st store.Store, id, password string) {
	t.Helper()
	digest := cryptox.PasswordDigest(password)
	require.NoError(t, st.Put(context.Background(), store.NewPath("groups", id), engine.Group{
		ID:           id,
		Name:         "Locked",
		PasswordHash: &digest,
		CreatorID:    "owner",
		CreatedAt:    time.Now().UnixMilli(),
	}))
}

func TestApp_JoinAsksForPassword(t *testing.T) {
	st := memstore.New()
	seedLockedGroup(t, st, "g1", "pw")
	stubPasswords(t, "wrong", "pw")

	out := runScript(t, st, "bob", "join g1\njoin g1\ngroups\nexit\n")

	assert.Contains(t, out, "Error: wrong password")
	assert.Contains(t, out, `Joined "Locked"`)
	assert.Contains(t, out, "[locked]")

	_, ok := st.Get(store.NewPath("groups", "g1", "members", "bob"))
	assert.True(t, ok)
}

func TestApp_JoinUnknownGroup(t *testing.T) {
	out := runScript(t, memstore.New(), "bob", "join nope\nexit\n")
	assert.Contains(t, out, "Error: group not found")
}

func TestApp_LogoutRecordsTime(t *testing.T) {
	st := memstore.New()
	out := runScript(t, st, "carol", "logout\n")

	assert.Contains(t, out, "Logged out")
	_, ok := st.Get(store.NewPath("users", "carol", "lastLogout"))
	assert.True(t, ok)
}

func TestApp_CreateWithPassword(t *testing.T) {
	st := memstore.New()
	stubPasswords(t, "hunter2")

	runScript(t, st, "dave", "create\nSecret club\n\ny\nexit\n")

	groups := st.Children(store.NewPath("users", "dave", "groups"))
	require.Len(t, groups, 1)
	n, ok := st.Get(store.NewPath("groups", groups[0].Key()))
	require.True(t, ok)

	var g engine.Group
	require.NoError(t, n.Decode(&g))
	require.NotNil(t, g.PasswordHash)
	assert.True(t, cryptox.VerifyPassword("hunter2", *g.PasswordHash))
}

func TestRender(t *testing.T) {
	out := &syncBuffer{}
	app, err := newApp(testConfig("u"), memstore.New(), identity.None{}, logging.Nop{}, rdr(""), out)
	require.NoError(t, err)

	app.render(engine.GroupSelected{Group: engine.Group{ID: "g1", Name: "Team"}})
	assert.Equal(t, "u@Team", app.statusLine())
	assert.True(t, app.inGroup())

	app.render(engine.EmptyState{GroupID: "g1"})
	app.render(engine.ErrorOccurred{Kind: engine.KindStoreUnavailable, Context: "deliver message", Err: store.ErrUnavailable})
	app.render(engine.GroupListUpdated{Groups: []engine.GroupView{{Group: engine.Group{ID: "g1", Name: "Team"}}}})
	assert.Equal(t, "g1", app.resolveGroup("1"))
	assert.Equal(t, "7", app.resolveGroup("7"))

	app.render(engine.GroupDeselected{GroupID: "g1"})
	assert.False(t, app.inGroup())

	assert.Contains(t, out.String(), "== Team ==")
	assert.Contains(t, out.String(), "No messages yet")
	assert.Contains(t, out.String(), "! StoreUnavailable: deliver message")
}

func TestFormatMessage(t *testing.T) {
	m := engine.Message{UserID: "u", Text: "hi", Timestamp: time.Date(2026, 1, 1, 10, 11, 12, 0, time.Local).UnixMilli()}
	assert.Equal(t, "[10:11:12] u: hi", formatMessage(m))

	m.BlockchainVerified = true
	assert.Equal(t, "[10:11:12] u: hi (signed)", formatMessage(m))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "this group is password protected", describe(engine.ErrPasswordRequired))
	assert.Equal(t, "wrong password", describe(engine.ErrInvalidPassword))
	assert.Contains(t, describe(engine.ErrStoreUnavailable), "store unavailable")
}

type flakyPinger struct {
	mu  sync.Mutex
	err error
}

func (f *flakyPinger) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *flakyPinger) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestOnlineStatusWatcher_FlipsMode(t *testing.T) {
	out := &syncBuffer{}
	app, err := newApp(testConfig("u"), memstore.New(), identity.None{}, logging.Nop{}, rdr(""), out)
	require.NoError(t, err)

	p := &flakyPinger{err: store.ErrUnavailable}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.StartOnlineStatusWatcher(ctx, p, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return strings.Contains(app.statusLine(), "[offline]") }, time.Second, 5*time.Millisecond)
	p.set(nil)
	assert.Eventually(t, func() bool { return !strings.Contains(app.statusLine(), "[offline]") }, time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), "Switched to offline mode")
	assert.Contains(t, out.String(), "Switched to online mode")
}
