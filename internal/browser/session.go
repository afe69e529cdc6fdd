package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/api/schemas"
	"github.com/davidrg-mx/clubagent/internal/config"
)

const (
	interactTimeout = 30 * time.Second
	settleTimeout   = 30 * time.Second
)

// Session is one isolated browsing context plus its single page. The
// Manager owns it exclusively; collaborators receive it as a borrowed
// schemas.Page and must never use it after the context is closed.
type Session struct {
	id        string
	createdAt time.Time
	cfg       config.BrowserConfig
	logger    *zap.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	browserCtx context.Context
	contextID  cdp.BrowserContextID

	mu     sync.Mutex
	closed bool
}

var _ schemas.Page = (*Session)(nil)

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the context creation timestamp.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// combine derives an operation context from the session lifetime that is
// additionally cancelled when the request context ends.
func (s *Session) combine(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := s.combine(ctx)
	defer cancel()
	runCtx, runCancel := context.WithTimeout(opCtx, timeout)
	defer runCancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL and waits for the page to settle. A timeout is
// classified as a NavigationError; there is no retry.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL.", zap.String("url", url))

	opCtx, cancel := s.combine(ctx)
	defer cancel()

	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return &schemas.NavigationError{URL: url, Err: fmt.Errorf("timed out after %s: %w", navTimeout, err)}
		}
		if opCtx.Err() != nil {
			return &schemas.NavigationError{URL: url, Err: opCtx.Err()}
		}
		return &schemas.NavigationError{URL: url, Err: err}
	}

	return s.WaitSettled(opCtx)
}

// WaitSettled waits for the DOM to report ready, then applies the
// configured quiet period. Settle failures after a successful load are
// logged, not raised.
func (s *Session) WaitSettled(ctx context.Context) error {
	opCtx, cancel := s.combine(ctx)
	defer cancel()
	settleCtx, settleCancel := context.WithTimeout(opCtx, settleTimeout)
	defer settleCancel()

	if err := chromedp.Run(settleCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		s.logger.Debug("WaitReady failed while settling.", zap.Error(err))
	}

	if s.cfg.QuietWait > 0 {
		if err := chromedp.Run(settleCtx, chromedp.Sleep(s.cfg.QuietWait)); err != nil && opCtx.Err() != nil {
			return opCtx.Err()
		}
	}
	return nil
}

// Fill clears the first element matching the selector and types the value.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	err := s.run(ctx, interactTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill failed for selector %q: %w", selector, err)
	}
	return nil
}

// Click scrolls the element into view and clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	err := s.run(ctx, interactTimeout,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click failed for selector %q: %w", selector, err)
	}
	return nil
}

// ClickFirst clicks the first selector that matches an element on the
// current page, trying each alternative in order.
func (s *Session) ClickFirst(ctx context.Context, selectors ...string) error {
	for _, selector := range selectors {
		var present bool
		script := fmt.Sprintf(`!!document.querySelector(%q)`, selector)
		if err := s.Evaluate(ctx, script, &present); err != nil {
			return err
		}
		if present {
			return s.Click(ctx, selector)
		}
	}
	return fmt.Errorf("no element matched any of %d selectors", len(selectors))
}

// Text returns the trimmed text content of the first matching element,
// or empty when the element is absent.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var text string
	script := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); return el ? (el.textContent || '').trim() : ''; })()`,
		selector)
	if err := s.Evaluate(ctx, script, &text); err != nil {
		return "", err
	}
	return text, nil
}

// Attribute returns the named attribute of the first matching element.
// The bool reports whether the element exists and carries the attribute.
func (s *Session) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var result struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
	}
	script := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); if (!el || el.getAttribute(%q) === null) { return {found: false, value: ''}; } return {found: true, value: el.getAttribute(%q)}; })()`,
		selector, name, name)
	if err := s.Evaluate(ctx, script, &result); err != nil {
		return "", false, err
	}
	return result.Value, result.Found, nil
}

// Evaluate runs a script in the page and unmarshals its result into out.
// Pass nil when no result is expected.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, interactTimeout, chromedp.Evaluate(script, out))
}

// Location returns the page's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, interactTimeout, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Screenshot captures the viewport to the given file path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, interactTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("screenshot capture failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	s.logger.Debug("Screenshot saved.", zap.String("path", path))
	return nil
}

// close tears down the target and disposes the isolated browser context.
// Safe to call more than once; errors are logged, not returned, so a
// stuck context never blocks shutdown.
func (s *Session) close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.cancel()

	if s.contextID != "" && s.browserCtx.Err() == nil {
		disposeCtx, cancel := context.WithTimeout(s.browserCtx, disposeTimeout)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		if err := chromedp.Run(disposeCtx, target.DisposeBrowserContext(s.contextID)); err != nil {
			if s.browserCtx.Err() == nil {
				s.logger.Warn("Failed to dispose browser context; it may be orphaned.",
					zap.String("browser_context_id", string(s.contextID)), zap.Error(err))
			}
		}
	}
}
