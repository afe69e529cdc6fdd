// Package orchestrator ties the login flow and the extractor registry
// into the end-to-end operations the API and CLI expose. Extract never
// returns an error to its caller: every outcome, including total
// failure, is reported through the result value.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/api/schemas"
	"github.com/davidrg-mx/clubagent/internal/auth"
	"github.com/davidrg-mx/clubagent/internal/config"
	"github.com/davidrg-mx/clubagent/internal/extract"
)

// Authenticator runs the login state machine and releases its sessions.
type Authenticator interface {
	Execute(ctx context.Context, creds schemas.Credentials) (*auth.Result, error)
	Cleanup(ctx context.Context, sessionID string)
}

// ExtractorSource resolves extractor names.
type ExtractorSource interface {
	Get(name string) (extract.Extractor, error)
	Names() []string
}

// SessionStore is the slice of the browser manager the orchestrator
// needs beyond what the Authenticator already covers.
type SessionStore interface {
	Persist(ctx context.Context, id string) (string, error)
	IsReady(ctx context.Context) bool
}

// Orchestrator executes full authenticate-then-extract runs.
type Orchestrator struct {
	flow        Authenticator
	registry    ExtractorSource
	store       SessionStore
	site        config.SiteConfig
	screenshots config.ScreenshotConfig
	logger      *zap.Logger
}

// New wires the orchestrator from its collaborators.
func New(flow Authenticator, registry ExtractorSource, store SessionStore, site config.SiteConfig, screenshots config.ScreenshotConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		flow:        flow,
		registry:    registry,
		store:       store,
		site:        site,
		screenshots: screenshots,
		logger:      logger.Named("orchestrator"),
	}
}

// Extract logs in, runs the requested extractors against the live
// session and aggregates their outcomes. One extractor failing never
// aborts the others; its error is recorded and the run continues. The
// session is always released before returning.
func (o *Orchestrator) Extract(ctx context.Context, req schemas.ExtractRequest) *schemas.ExtractResult {
	result := &schemas.ExtractResult{
		ExtractedAt: time.Now().UTC(),
	}

	loginResult, err := o.flow.Execute(ctx, req.Credentials())
	if err != nil {
		result.Message = "Login failed: " + err.Error()
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	defer o.flow.Cleanup(ctx, loginResult.SessionID)

	result.SessionID = loginResult.SessionID
	result.Login = &schemas.LoginSummary{
		Clubs:    loginResult.Clubs,
		Selected: loginResult.Selected,
	}

	names := req.Include
	if len(names) == 0 {
		names = o.registry.Names()
	}

	result.Data = make(map[string]any, len(names))
	var extracted []string
	for _, name := range names {
		extractor, err := o.registry.Get(name)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		data, err := extractor.Extract(ctx, loginResult.Page, o.site.BaseURL)
		if err != nil {
			o.logger.Warn("Extractor failed.", zap.String("extractor", name), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		result.Data[name] = data
		extracted = append(extracted, name)
	}

	if o.screenshots.Enabled {
		result.ScreenshotPath = o.captureScreenshot(ctx, loginResult.Page, loginResult.SessionID)
	}

	result.Success = len(extracted) > 0 || len(names) == 0
	result.Message = buildMessage(loginResult.Selected, extracted, len(result.Errors))

	o.logger.Info("Extraction run finished.",
		zap.String("session_id", loginResult.SessionID),
		zap.Strings("extracted", extracted),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// Login authenticates without extracting. With save_session set, the
// state blob is persisted and the session kept open for later reuse;
// otherwise the session is released before returning.
func (o *Orchestrator) Login(ctx context.Context, req schemas.LoginRequest) (*schemas.LoginResponse, error) {
	creds := schemas.Credentials{Username: req.Username, Password: req.Password, Club: req.Club}
	loginResult, err := o.flow.Execute(ctx, creds)
	if err != nil {
		return nil, err
	}

	resp := &schemas.LoginResponse{
		Success:   true,
		Message:   "Login successful",
		SessionID: loginResult.SessionID,
		Clubs:     loginResult.Clubs,
		Selected:  loginResult.Selected,
	}
	// The landing page heading carries the member's name; best effort.
	if name, err := loginResult.Page.Text(ctx, "h2"); err == nil {
		resp.DisplayName = name
	}

	if !req.SaveSession {
		o.flow.Cleanup(ctx, loginResult.SessionID)
		return resp, nil
	}

	path, err := o.store.Persist(ctx, loginResult.SessionID)
	if err != nil {
		o.logger.Warn("Failed to persist session state.",
			zap.String("session_id", loginResult.SessionID), zap.Error(err))
		resp.Message = "Login successful; session state could not be saved"
		return resp, nil
	}
	resp.StoragePath = path
	return resp, nil
}

// CloseSession releases a session held open by Login with save_session.
func (o *Orchestrator) CloseSession(ctx context.Context, sessionID string) {
	o.flow.Cleanup(ctx, sessionID)
}

// Extractors lists the registered extractor names.
func (o *Orchestrator) Extractors() []string {
	return o.registry.Names()
}

// Ready reports whether the underlying browser can serve requests.
func (o *Orchestrator) Ready(ctx context.Context) bool {
	return o.store.IsReady(ctx)
}

// captureScreenshot is diagnostic-only; failures are logged, never
// surfaced.
func (o *Orchestrator) captureScreenshot(ctx context.Context, page schemas.Page, sessionID string) string {
	if err := os.MkdirAll(o.screenshots.Dir, 0o755); err != nil {
		o.logger.Warn("Could not create screenshot directory.", zap.Error(err))
		return ""
	}
	path := filepath.Join(o.screenshots.Dir, fmt.Sprintf("%s_%d.png", sessionID, time.Now().Unix()))
	if err := page.Screenshot(ctx, path); err != nil {
		o.logger.Warn("Screenshot capture failed.", zap.Error(err))
		return ""
	}
	return path
}

// buildMessage renders the human-readable run summary.
func buildMessage(selected *schemas.ClubInfo, extracted []string, errorCount int) string {
	var parts []string
	if selected != nil {
		parts = append(parts, "Club: "+selected.Display())
	}
	if len(extracted) > 0 {
		parts = append(parts, "Extracted: "+strings.Join(extracted, ", "))
	}
	if errorCount > 0 {
		parts = append(parts, fmt.Sprintf("Errors: %d", errorCount))
	}
	if len(parts) == 0 {
		return "Nothing extracted"
	}
	return strings.Join(parts, " | ")
}
