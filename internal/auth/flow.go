// Package auth drives a browsing context through credential submission
// and optional club-selection disambiguation against the member portal.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/api/schemas"
	"github.com/davidrg-mx/clubagent/internal/browser"
	"github.com/davidrg-mx/clubagent/internal/config"
)

// Selectors for the portal's login and selection surfaces. Tied to the
// target site's markup; update when the site changes.
const (
	usernameSelector = `input[placeholder*="nombre de usuario"], input[name="username"]`
	passwordSelector = `input[placeholder*="contraseña"], input[name="password"], input[type="password"]`
	errorBoxSelector = `.alert-danger, .error-message, .alert`
)

var submitSelectors = []string{`button[type="submit"]`, `input[type="submit"]`}

const clubOptionsScript = `(() => {
	const options = [];
	document.querySelectorAll("input[type='radio']").forEach((input) => {
		const value = input.getAttribute('value');
		if (!value) { return; }
		let text = '';
		const id = input.getAttribute('id');
		if (id) {
			const label = document.querySelector("label[for='" + id + "']");
			if (label) { text = label.textContent || ''; }
		}
		if (!text && input.parentElement) { text = input.parentElement.textContent || ''; }
		text = text.trim();
		if (text) { options.push({ value: value, label: text }); }
	});
	return options;
})()`

// The confirmation control carries no stable id or class, only its text.
const clickEntrarScript = `(() => {
	for (const el of document.querySelectorAll('a, button')) {
		if ((el.textContent || '').trim().includes('Entrar')) { el.click(); return true; }
	}
	return false;
})()`

// Result is the output of a completed login: the live page handle, the
// memberships discovered during disambiguation and the one entered.
type Result struct {
	SessionID string
	Page      schemas.Page
	Clubs     []schemas.ClubInfo
	Selected  *schemas.ClubInfo
}

// Flow is the multi-step authentication state machine. One Flow serves
// any number of concurrent Execute calls; each call gets its own session.
type Flow struct {
	sessions *browser.Manager
	site     config.SiteConfig
	logger   *zap.Logger
}

// NewFlow wires the flow to the session store and site configuration.
func NewFlow(sessions *browser.Manager, site config.SiteConfig, logger *zap.Logger) *Flow {
	return &Flow{
		sessions: sessions,
		site:     site,
		logger:   logger.Named("login_flow"),
	}
}

// Execute runs the full login sequence. On any failure the partially
// created session is torn down before the error propagates: timeouts as
// NavigationError, everything else as LoginError.
func (f *Flow) Execute(ctx context.Context, creds schemas.Credentials) (*Result, error) {
	sessionID := uuid.NewString()
	log := f.logger.With(
		zap.String("username", creds.Username),
		zap.String("session_id", sessionID),
	)

	session, err := f.sessions.CreateContext(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := f.run(ctx, session, sessionID, creds, log)
	if err != nil {
		f.sessions.CloseContext(ctx, sessionID)
		return nil, err
	}

	log.Info("Login successful.",
		zap.Int("clubs", len(result.Clubs)),
		zap.String("selected_club", selectedName(result.Selected)),
	)
	return result, nil
}

// Cleanup releases the login session. Safe on unknown ids.
func (f *Flow) Cleanup(ctx context.Context, sessionID string) {
	f.sessions.CloseContext(ctx, sessionID)
}

func (f *Flow) run(ctx context.Context, session *browser.Session, sessionID string, creds schemas.Credentials, log *zap.Logger) (*Result, error) {
	log.Info("Starting login flow.")

	if err := session.Navigate(ctx, f.site.LoginURL()); err != nil {
		return nil, err
	}

	if err := session.Fill(ctx, usernameSelector, creds.Username); err != nil {
		return nil, wrapLoginFailure(err)
	}
	if err := session.Fill(ctx, passwordSelector, creds.Password); err != nil {
		return nil, wrapLoginFailure(err)
	}
	if err := session.ClickFirst(ctx, submitSelectors...); err != nil {
		return nil, wrapLoginFailure(err)
	}
	if err := session.WaitSettled(ctx); err != nil {
		return nil, wrapLoginFailure(err)
	}

	location, err := session.Location(ctx)
	if err != nil {
		return nil, wrapLoginFailure(err)
	}

	if strings.Contains(location, f.site.LoginErrorMarker) {
		message := f.loginErrorMessage(ctx, session)
		return nil, schemas.NewLoginError("login failed: "+message, map[string]any{
			"username": creds.Username,
			"error":    message,
		})
	}

	clubs, selected, err := f.handleClubSelection(ctx, session, location, creds.Club, log)
	if err != nil {
		return nil, err
	}

	// Settle on whatever surface we ended up on; the dashboard may still
	// be loading after the confirmation click.
	if err := session.WaitSettled(ctx); err != nil {
		return nil, wrapLoginFailure(err)
	}

	return &Result{
		SessionID: sessionID,
		Page:      session,
		Clubs:     clubs,
		Selected:  selected,
	}, nil
}

// handleClubSelection parses and resolves membership disambiguation when
// the login landed on the selection surface.
func (f *Flow) handleClubSelection(ctx context.Context, session *browser.Session, location string, sel schemas.ClubSelector, log *zap.Logger) ([]schemas.ClubInfo, *schemas.ClubInfo, error) {
	if !strings.Contains(location, f.site.SelectClubPath) {
		return nil, nil, nil
	}

	clubs := f.extractClubs(ctx, session, log)

	selected, err := resolveSelection(clubs, sel)
	if err != nil {
		return nil, nil, err
	}
	if selected == nil {
		return clubs, nil, nil
	}

	// Selection failures are non-fatal: the dashboard may still be
	// reachable, and the caller learns which club was intended.
	f.selectClub(ctx, session, selected.ID, log)
	return clubs, selected, nil
}

// extractClubs reads every radio option and parses its label. Extraction
// problems yield a shorter (possibly empty) list, never an error.
func (f *Flow) extractClubs(ctx context.Context, session *browser.Session, log *zap.Logger) []schemas.ClubInfo {
	var rawOptions []struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
	if err := session.Evaluate(ctx, clubOptionsScript, &rawOptions); err != nil {
		log.Warn("Error extracting clubs.", zap.Error(err))
		return nil
	}

	clubs := make([]schemas.ClubInfo, 0, len(rawOptions))
	for _, opt := range rawOptions {
		id, err := strconv.Atoi(opt.Value)
		if err != nil {
			log.Debug("Skipping club option with non-numeric value.", zap.String("value", opt.Value))
			continue
		}
		name, clubType, role := ParseClubLabel(opt.Label)
		clubs = append(clubs, schemas.ClubInfo{
			ID:       id,
			Name:     name,
			ClubType: clubType,
			Role:     role,
			FullText: opt.Label,
		})
	}

	log.Debug("Extracted clubs.", zap.Int("count", len(clubs)), zap.Strings("clubs", describeClubs(clubs)))
	return clubs
}

// selectClub clicks the option's radio control and the confirmation
// action, then waits for the page to settle. Never fatal.
func (f *Flow) selectClub(ctx context.Context, session *browser.Session, clubID int, log *zap.Logger) {
	if err := session.Click(ctx, fmt.Sprintf("input[value='%d']", clubID)); err != nil {
		log.Warn("Error selecting club.", zap.Int("club_id", clubID), zap.Error(err))
		return
	}

	var clicked bool
	if err := session.Evaluate(ctx, clickEntrarScript, &clicked); err != nil || !clicked {
		log.Warn("Could not confirm club selection.", zap.Int("club_id", clubID), zap.Error(err))
		return
	}

	if err := session.WaitSettled(ctx); err != nil {
		log.Warn("Page did not settle after club selection.", zap.Error(err))
		return
	}
	log.Debug("Selected club.", zap.Int("club_id", clubID))
}

// loginErrorMessage pulls the rendered error text from the login page,
// falling back to a generic message when no error element is present.
func (f *Flow) loginErrorMessage(ctx context.Context, session *browser.Session) string {
	text, err := session.Text(ctx, errorBoxSelector)
	if err != nil || strings.TrimSpace(text) == "" {
		return "Invalid credentials"
	}
	return strings.TrimSpace(text)
}

// wrapLoginFailure keeps typed navigation errors intact and classifies
// everything else as a LoginError.
func wrapLoginFailure(err error) error {
	var navErr *schemas.NavigationError
	var loginErr *schemas.LoginError
	if errors.As(err, &navErr) || errors.As(err, &loginErr) {
		return err
	}
	return schemas.NewLoginError("login failed: "+err.Error(), nil)
}

func selectedName(club *schemas.ClubInfo) string {
	if club == nil {
		return ""
	}
	return club.Name
}
