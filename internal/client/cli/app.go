package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/client/config"
	"github.com/dmitrijs2005/groupsync/internal/engine"
	"github.com/dmitrijs2005/groupsync/internal/identity"
	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/dmitrijs2005/groupsync/internal/store/memstore"
	"github.com/dmitrijs2005/groupsync/internal/store/remote"
	"github.com/dmitrijs2005/groupsync/internal/store/replica"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// commandTimeout bounds how long a command waits on the engine.
const commandTimeout = 15 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    store.Store
	attestor identity.Attestor
	engine   *engine.Engine
	closers  []func() error

	reader *bufio.Reader
	out    io.Writer

	// mu guards everything below and serialises writes to out.
	mu     sync.Mutex
	mode   Mode
	groups []engine.GroupView
	active *engine.Group
}

// NewApp opens the configured store backend and wallet and builds the
// engine on top of them.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	reader := bufio.NewReader(os.Stdin)

	st, closer, err := openStore(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	var attestor identity.Attestor = identity.None{}
	if c.KeystorePath != "" {
		w, err := unlockWallet(c.KeystorePath, os.Stdout)
		if err != nil {
			_ = closer()
			return nil, err
		}
		attestor = w
	}

	app, err := newApp(c, st, attestor, logger, reader, os.Stdout)
	if err != nil {
		_ = closer()
		return nil, err
	}
	app.closers = append(app.closers, closer)
	return app, nil
}

func newApp(c *config.Config, st store.Store, attestor identity.Attestor, logger logging.Logger, reader *bufio.Reader, out io.Writer) (*App, error) {
	app := &App{
		config:   c,
		logger:   logger.With("module", "cli"),
		store:    st,
		attestor: attestor,
		reader:   reader,
		out:      out,
		mode:     ModeOnline,
	}

	e, err := engine.New(st, attestor, engine.RenderFunc(app.render), logger, engine.Config{
		UserID:    c.UserID,
		EchoGrace: c.EchoGrace,
	})
	if err != nil {
		return nil, err
	}
	app.engine = e
	return app, nil
}

func openStore(ctx context.Context, c *config.Config, logger logging.Logger) (store.Store, func() error, error) {
	switch c.Backend {
	case config.BackendMemory:
		return memstore.New(), func() error { return nil }, nil
	case config.BackendSQLite:
		st, err := replica.Open(ctx, c.SQLitePath, logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open replica")
		}
		return st, st.Close, nil
	case config.BackendRelay:
		st, err := remote.Dial(c.RelayAddr, c.Token, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	return nil, nil, errors.Newf("unknown backend %q", c.Backend)
}

// unlockWallet opens the keystore at path, creating it when missing.
func unlockWallet(path string, w io.Writer) (*identity.Wallet, error) {
	_, statErr := os.Stat(path)
	creating := errors.Is(statErr, os.ErrNotExist)

	prompt := "Keystore passphrase"
	if creating {
		prompt = "New keystore passphrase"
	}
	pass, err := GetPassword(w, prompt)
	if err != nil {
		return nil, err
	}
	defer wipe(pass)

	if creating {
		wallet, err := identity.CreateKeystore(path, pass)
		if err != nil {
			return nil, err
		}
		addr, _ := wallet.Address()
		fmt.Fprintln(w, "Created wallet", addr)
		return wallet, nil
	}
	return identity.OpenKeystore(path, pass)
}

// Run starts the engine loop and the connectivity watcher, then blocks in
// the REPL until the user leaves.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.engine.Run(ctx) }()

	if p, ok := a.store.(store.Pinger); ok && a.config.Backend == config.BackendRelay {
		go a.StartOnlineStatusWatcher(ctx, p, a.config.OnlineCheckInterval)
	}

	a.printf("Welcome, %s. Type 'help' for commands.\n", a.config.UserID)
	if err := a.Groups(ctx); err != nil {
		a.printf("Error: %s\n", describe(err))
	}

	runREPL(ctx, a, a.statusLine, a.reader, a.out)

	a.engine.Close()
	return <-loopDone
}

func (a *App) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		a.printf("\nSwitched to %s mode\n", mode)
	}
}

// StartOnlineStatusWatcher pings the backend every interval and flips the
// displayed mode when reachability changes.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, p store.Pinger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := p.Ping(pctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) statusLine() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.config.UserID
	if a.active != nil {
		s += "@" + a.active.Name
	}
	if a.mode == ModeOffline {
		s += " [offline]"
	}
	return s
}

func (a *App) inGroup() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

func (a *App) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}
