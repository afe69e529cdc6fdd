// Package browser owns the shared Chrome process and the per-session
// isolated browsing contexts. Each session id maps to at most one live
// CDP browser context; creating a context for an existing id tears down
// the previous one first.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	cdbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidrg-mx/clubagent/api/schemas"
	"github.com/davidrg-mx/clubagent/internal/config"
)

const (
	launchProbeTimeout = 30 * time.Second
	readyProbeTimeout  = 5 * time.Second
	disposeTimeout     = 10 * time.Second
)

// Manager handles the browser process lifecycle and the session registry.
type Manager struct {
	cfg        config.BrowserConfig
	sessionDir string
	logger     *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*idLock
	closed   bool

	// createMu serializes raw CDP browser-context creation; the protocol
	// calls are cheap but must not interleave during target attach.
	createMu sync.Mutex
}

// NewManager launches the shared Chrome process and verifies it responds.
func NewManager(ctx context.Context, cfg config.BrowserConfig, sessionDir string, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		cfg:        cfg,
		sessionDir: sessionDir,
		logger:     logger.Named("browser_manager"),
		sessions:   make(map[string]*Session),
		locks:      make(map[string]*idLock),
	}

	m.logger.Info("Initializing browser allocator...")
	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx)

	// Run a trivial task to confirm the process starts and responds.
	probeCtx, cancel := context.WithTimeout(m.browserCtx, launchProbeTimeout)
	defer cancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		m.browserCancel()
		m.allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.",
		zap.Bool("headless", cfg.Headless))
	return m, nil
}

// buildAllocatorOptions assembles Chrome flags from defaults plus config.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("lang", m.cfg.Locale),
	)

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	for _, arg := range m.cfg.Args {
		arg = strings.TrimPrefix(arg, "--")
		if name, value, ok := strings.Cut(arg, "="); ok {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

// idLock is one entry in the session lock table. refs counts holders
// plus waiters so an entry can be dropped once the last one releases.
type idLock struct {
	mu   sync.Mutex
	refs int
}

// acquireLock blocks until the caller holds the mutex scoped to one
// session id. Create and close for the same id contend on it, so
// concurrent creates cannot leak a context. Session ids are fresh UUIDs
// per login, so entries are pruned in releaseLock instead of living for
// the process lifetime.
func (m *Manager) acquireLock(id string) *idLock {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &idLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return l
}

func (m *Manager) releaseLock(id string, l *idLock) {
	l.mu.Unlock()
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, id)
	}
	m.mu.Unlock()
}

// CreateOption customizes context creation.
type CreateOption func(*createOptions)

type createOptions struct {
	storagePath string
}

// WithStorageState restores a previously persisted cookie/storage blob
// into the new context.
func WithStorageState(path string) CreateOption {
	return func(o *createOptions) { o.storagePath = path }
}

// CreateContext allocates an isolated browsing context for the session id.
// An existing context under the same id is closed first.
func (m *Manager) CreateContext(ctx context.Context, id string, opts ...CreateOption) (*Session, error) {
	var options createOptions
	for _, opt := range opts {
		opt(&options)
	}

	lock := m.acquireLock(id)
	defer m.releaseLock(id, lock)

	m.mu.Lock()
	closed := m.closed
	previous := m.sessions[id]
	m.mu.Unlock()

	if closed || m.browserCtx.Err() != nil {
		return nil, &schemas.BrowserNotReadyError{Reason: "browser process is not running"}
	}

	if previous != nil {
		m.logger.Debug("Replacing existing context for session.", zap.String("session_id", id))
		m.removeSession(id)
		previous.close(ctx)
	}

	session, err := m.newIsolatedSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if options.storagePath != "" {
		if err := session.restoreStorageState(ctx, options.storagePath); err != nil {
			session.logger.Warn("Failed to restore storage state.", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	m.logger.Debug("Created browser context.", zap.String("session_id", id))
	return session, nil
}

// newIsolatedSession performs the CDP dance: create a browser context,
// open a target inside it, and attach a chromedp context to that target.
func (m *Manager) newIsolatedSession(ctx context.Context, id string) (*Session, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before creating browser context: %w", err)
	}

	var contextID cdp.BrowserContextID
	var targetID target.ID
	err := chromedp.Run(m.browserCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		contextID, err = target.CreateBrowserContext().Do(c)
		if err != nil {
			return fmt.Errorf("failed to create browser context: %w", err)
		}
		targetID, err = target.CreateTarget("about:blank").
			WithBrowserContextID(contextID).
			Do(c)
		if err != nil {
			return fmt.Errorf("failed to create target: %w", err)
		}
		return nil
	}))
	if err != nil {
		if contextID != "" {
			m.disposeBrowserContext(contextID)
		}
		return nil, err
	}

	sessionCtx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithTargetID(targetID))

	session := &Session{
		id:         id,
		createdAt:  time.Now(),
		cfg:        m.cfg,
		logger:     m.logger.With(zap.String("session_id", id)),
		ctx:        sessionCtx,
		cancel:     cancel,
		browserCtx: m.browserCtx,
		contextID:  contextID,
	}

	if err := session.applyDefaults(ctx); err != nil {
		session.close(ctx)
		return nil, fmt.Errorf("failed to configure browser context: %w", err)
	}
	return session, nil
}

// applyDefaults sets the fixed viewport, locale and timezone on a fresh
// context.
func (s *Session) applyDefaults(ctx context.Context) error {
	opCtx, cancel := s.combine(ctx)
	defer cancel()

	return chromedp.Run(opCtx,
		emulation.SetDeviceMetricsOverride(
			int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight), 1.0, false),
		emulation.SetLocaleOverride().WithLocale(s.cfg.Locale),
		emulation.SetTimezoneOverride(s.cfg.Timezone),
	)
}

// GetContext is a pure lookup with no side effects.
func (m *Manager) GetContext(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// CloseContext closes the session's browsing context. Idempotent: closing
// an unknown id is a no-op, never an error.
func (m *Manager) CloseContext(ctx context.Context, id string) {
	lock := m.acquireLock(id)
	defer m.releaseLock(id, lock)

	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	session.close(ctx)
	m.logger.Debug("Closed browser context.", zap.String("session_id", id))
}

func (m *Manager) removeSession(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Persist serializes the session's cookie/storage state to a blob under
// the session directory and returns the blob path.
func (m *Manager) Persist(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return "", &schemas.SessionNotFoundError{SessionID: id}
	}

	if err := os.MkdirAll(m.sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}

	path := filepath.Join(m.sessionDir, id+".json")
	if err := session.saveStorageState(ctx, path); err != nil {
		return "", err
	}

	m.logger.Info("Session state persisted.", zap.String("session_id", id), zap.String("path", path))
	return path, nil
}

// IsReady reports whether the browser process is alive and responsive.
func (m *Manager) IsReady(ctx context.Context) bool {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed || m.browserCtx.Err() != nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(m.browserCtx, readyProbeTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(probeCtx, chromedp.ActionFunc(func(c context.Context) error {
		_, _, _, _, _, err := cdbrowser.GetVersion().Do(c)
		return err
	}))
	return err == nil
}

// disposeBrowserContext is best-effort cleanup for an orphaned context.
func (m *Manager) disposeBrowserContext(id cdp.BrowserContextID) {
	if m.browserCtx.Err() != nil {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(m.browserCtx, disposeTimeout)
	defer cancel()
	if err := chromedp.Run(cleanupCtx, target.DisposeBrowserContext(id)); err != nil {
		m.logger.Debug("Failed best-effort cleanup of orphaned browser context.",
			zap.String("browser_context_id", string(id)), zap.Error(err))
	}
}

// Shutdown closes every live context, then the browser process, in that
// order. Per-context close failures are logged, never raised, so one
// stuck session cannot block full shutdown.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.logger.Info("Shutting down browser manager.", zap.Int("open_sessions", len(sessions)))

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error {
			s.close(ctx)
			return nil
		})
	}
	// Close errors are swallowed inside Session.close; Wait only joins.
	_ = g.Wait()

	if err := chromedp.Cancel(m.browserCtx); err != nil {
		m.logger.Warn("Error closing browser instance.", zap.Error(err))
	}
	m.browserCancel()
	m.allocCancel()

	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
