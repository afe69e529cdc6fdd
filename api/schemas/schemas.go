// Package schemas holds the value objects and typed errors shared between
// the browser, auth, extraction and API layers. Everything here is a plain
// data carrier copied out of the page; nothing retains a handle back into
// the browser.
package schemas

import (
	"context"
	"time"
)

// ClubType is the normalized category of a membership option.
type ClubType string

const (
	ClubTypeAventureros    ClubType = "Aventureros"
	ClubTypeConquistadores ClubType = "Conquistadores"
	ClubTypeGuiasMayores   ClubType = "Guías Mayores"
)

// ClubInfo describes one membership option parsed from the club selection
// page. FullText keeps the original unparsed label for fallback matching.
type ClubInfo struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	ClubType ClubType `json:"club_type,omitempty"`
	Role     string   `json:"role"`
	FullText string   `json:"full_text,omitempty"`
}

// Display renders the club the way error messages and logs present it.
func (c ClubInfo) Display() string {
	if c.ClubType == "" {
		return c.Name
	}
	return c.Name + " (" + string(c.ClubType) + ")"
}

// Credentials carries everything the login flow needs for one attempt.
type Credentials struct {
	Username string       `json:"username"`
	Password string       `json:"password"`
	Club     ClubSelector `json:"club"`
}

// ClubSelector identifies which membership to pick when the account has
// more than one. A zero value means "default to the first option".
type ClubSelector struct {
	ClubID   int    `json:"club_id,omitempty"`
	ClubType string `json:"club_type,omitempty"`
	ClubName string `json:"club_name,omitempty"`
}

// IsZero reports whether no explicit selection was requested.
func (s ClubSelector) IsZero() bool {
	return s.ClubID == 0 && s.ClubType == "" && s.ClubName == ""
}

// UserProfile is the best-effort field set read from the profile surface.
// Any field other than Username may be empty when the site never stored it.
type UserProfile struct {
	Username      string   `json:"username"`
	AccountNumber string   `json:"account_number,omitempty"`
	FullName      string   `json:"full_name,omitempty"`
	Gender        string   `json:"gender,omitempty"`
	Birthday      string   `json:"birthday,omitempty"`
	Age           *float64 `json:"age,omitempty"`
	Email         string   `json:"email,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Address       string   `json:"address,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	Twitter       string   `json:"twitter,omitempty"`
	Facebook      string   `json:"facebook,omitempty"`
	Instagram     string   `json:"instagram,omitempty"`
	AvatarURL     string   `json:"avatar_url,omitempty"`
}

// CourseProgress is one active course parsed from the courses surface.
type CourseProgress struct {
	Name                  string  `json:"name"`
	CompletionPercentage  float64 `json:"completion_percentage"`
	Status                string  `json:"status"`
	IsReadyForInvestiture bool    `json:"is_ready_for_investiture"`
	ImageURL              string  `json:"image_url,omitempty"`
}

// CourseReport aggregates all courses found for the member.
// OverallCompletion is nil (not zero) when no courses were discovered.
type CourseReport struct {
	ActiveCourses            []CourseProgress `json:"active_courses"`
	TotalCourses             int              `json:"total_courses"`
	OverallCompletion        *float64         `json:"overall_completion"`
	ReadyForInvestitureCount int              `json:"ready_for_investiture_count"`
}

// LoginSummary is the club-discovery part of an authentication result.
type LoginSummary struct {
	Clubs    []ClubInfo `json:"clubs"`
	Selected *ClubInfo  `json:"selected_club,omitempty"`
}

// ExtractRequest drives one end-to-end extraction operation.
type ExtractRequest struct {
	Username string       `json:"username" binding:"required"`
	Password string       `json:"password" binding:"required"`
	Club     ClubSelector `json:"club"`
	// Include lists extractor names to run; empty means all registered.
	Include []string `json:"include,omitempty"`
}

// Credentials folds the request into the shape the login flow consumes.
func (r ExtractRequest) Credentials() Credentials {
	return Credentials{Username: r.Username, Password: r.Password, Club: r.Club}
}

// ExtractResult is always returned by the orchestrator, even on total
// failure; Success=false plus Errors replaces a raised error at this level.
type ExtractResult struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	SessionID      string         `json:"session_id,omitempty"`
	Login          *LoginSummary  `json:"login,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
	ExtractedAt    time.Time      `json:"extracted_at"`
	ScreenshotPath string         `json:"screenshot_path,omitempty"`
}

// LoginRequest is the authenticate-only operation.
type LoginRequest struct {
	Username    string       `json:"username" binding:"required"`
	Password    string       `json:"password" binding:"required"`
	Club        ClubSelector `json:"club"`
	SaveSession bool         `json:"save_session"`
}

// LoginResponse reports an authenticate-only operation.
type LoginResponse struct {
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
	SessionID   string     `json:"session_id,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Clubs       []ClubInfo `json:"clubs"`
	Selected    *ClubInfo  `json:"selected_club,omitempty"`
	StoragePath string     `json:"storage_path,omitempty"`
}

// Page is the borrowed page handle the auth flow hands to extractors.
// It is implemented by browser.Session; callers must never use a Page
// after the owning session context has been closed.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitSettled(ctx context.Context) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// ClickFirst tries each selector in order and clicks the first match.
	ClickFirst(ctx context.Context, selectors ...string) error
	Text(ctx context.Context, selector string) (string, error)
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	Evaluate(ctx context.Context, script string, out any) error
	Location(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
}
