package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StorageState is the persisted per-session blob. The format is owned by
// this layer and opaque to everything above it.
type StorageState struct {
	SessionID      string            `json:"session_id"`
	SavedAt        time.Time         `json:"saved_at"`
	Cookies        []*network.Cookie `json:"cookies"`
	LocalStorage   map[string]string `json:"local_storage,omitempty"`
	SessionStorage map[string]string `json:"session_storage,omitempty"`
}

const storageDumpScript = `(() => {
	const dump = (s) => {
		const items = {};
		try {
			if (s) {
				for (let i = 0; i < s.length; i++) {
					const k = s.key(i);
					if (k !== null) { items[k] = s.getItem(k); }
				}
			}
		} catch (e) { /* storage disabled for this origin */ }
		return items;
	};
	return { localStorage: dump(window.localStorage), sessionStorage: dump(window.sessionStorage) };
})()`

// exportStorageState captures cookies via CDP plus web storage via JS.
func (s *Session) exportStorageState(ctx context.Context) (*StorageState, error) {
	state := &StorageState{
		SessionID: s.id,
		SavedAt:   time.Now().UTC(),
	}

	err := s.run(ctx, interactTimeout, chromedp.ActionFunc(func(c context.Context) error {
		cookies, err := storage.GetCookies().WithBrowserContextID(s.contextID).Do(c)
		if err != nil {
			return fmt.Errorf("failed to read cookies: %w", err)
		}
		state.Cookies = cookies
		return nil
	}))
	if err != nil {
		return nil, err
	}

	var webStorage struct {
		LocalStorage   map[string]string `json:"localStorage"`
		SessionStorage map[string]string `json:"sessionStorage"`
	}
	if err := s.Evaluate(ctx, storageDumpScript, &webStorage); err != nil {
		s.logger.Warn("Could not capture web storage; persisting cookies only.", zap.Error(err))
	} else {
		state.LocalStorage = webStorage.LocalStorage
		state.SessionStorage = webStorage.SessionStorage
	}

	return state, nil
}

// saveStorageState serializes the captured state to path.
func (s *Session) saveStorageState(ctx context.Context, path string) error {
	state, err := s.exportStorageState(ctx)
	if err != nil {
		return err
	}
	blob, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode storage state: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("failed to write storage state: %w", err)
	}
	return nil
}

// restoreStorageState loads a persisted blob and reapplies its cookies.
// Web storage entries are origin-scoped and can only be written after a
// navigation to that origin, so only cookies are restored here; for the
// portal's cookie-based session that is sufficient.
func (s *Session) restoreStorageState(ctx context.Context, path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read storage state: %w", err)
	}
	var state StorageState
	if err := json.Unmarshal(blob, &state); err != nil {
		return fmt.Errorf("failed to decode storage state: %w", err)
	}
	if len(state.Cookies) == 0 {
		return nil
	}

	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}

	err = s.run(ctx, interactTimeout, chromedp.ActionFunc(func(c context.Context) error {
		return storage.SetCookies(params).WithBrowserContextID(s.contextID).Do(c)
	}))
	if err != nil {
		return fmt.Errorf("failed to restore cookies: %w", err)
	}

	s.logger.Debug("Restored storage state.",
		zap.Int("cookies", len(params)), zap.String("path", path))
	return nil
}
