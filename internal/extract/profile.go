package extract

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/api/schemas"
)

// profileFieldsScript applies four independent DOM strategies in priority
// order and merges the results into one field map. Account pages render
// the same data with different markup depending on age of the account, so
// collapsing these into a single strategy loses fields in practice.
const profileFieldsScript = `(() => {
	const fields = {};
	const placeholder = 'Haz click en el icono';
	const ignorePhrases = ['Estos datos', 'Para cambiar', 'Guardar', 'Cancelar'];

	const fieldMappings = {
		'Número de cuenta': 'account_number',
		'Usuario': 'username',
		'Nombre completo': 'full_name',
		'Género': 'gender',
		'Cumpleaños': 'birthday',
		'Correo electrónico': 'email',
		'Teléfono': 'phone',
		'Dirección': 'address',
		'Mi Presentación': 'bio',
		'Twitter': 'twitter',
		'Facebook': 'facebook',
		'Instagram': 'instagram'
	};

	const shouldIgnore = (value) => {
		if (!value || value.length === 0) { return true; }
		if (value.includes(placeholder)) { return true; }
		for (const phrase of ignorePhrases) {
			if (value.includes(phrase)) { return true; }
		}
		for (const label of Object.keys(fieldMappings)) {
			if (value.includes(label)) { return true; }
		}
		return false;
	};

	// Strategy 1: table rows with label/value cells.
	for (const row of document.querySelectorAll('tr')) {
		const cells = row.querySelectorAll('td, th');
		if (cells.length >= 2) {
			const label = cells[0].textContent?.trim();
			const value = cells[1].textContent?.trim();
			if (label && fieldMappings[label] && value && !shouldIgnore(value)) {
				fields[fieldMappings[label]] = value;
			}
		}
	}

	// Strategy 2: list items with bold labels.
	for (const li of document.querySelectorAll('li')) {
		const strong = li.querySelector('strong, b, .font-bold, .font-weight-bold');
		if (!strong) { continue; }
		const label = strong.textContent?.trim();
		if (!label || !fieldMappings[label] || fields[fieldMappings[label]]) { continue; }
		const fullText = li.textContent || '';
		const labelIndex = fullText.indexOf(label);
		if (labelIndex < 0) { continue; }
		let value = fullText.substring(labelIndex + label.length).trim();
		value = value.replace(/^[:\s]+/, '').trim();
		if (!shouldIgnore(value)) {
			fields[fieldMappings[label]] = value;
		}
	}

	// Strategy 3: definition lists.
	for (const dl of document.querySelectorAll('dl')) {
		const dts = dl.querySelectorAll('dt');
		const dds = dl.querySelectorAll('dd');
		for (let i = 0; i < dts.length && i < dds.length; i++) {
			const label = dts[i].textContent?.trim();
			const value = dds[i].textContent?.trim();
			if (label && fieldMappings[label] && value && !shouldIgnore(value)) {
				fields[fieldMappings[label]] = value;
			}
		}
	}

	// Strategy 4: value nodes with an adjacent label sibling.
	for (const span of document.querySelectorAll('span, div.col, div.value, p.value')) {
		const text = span.textContent?.trim();
		if (!text) { continue; }
		const prev = span.previousElementSibling;
		if (!prev) { continue; }
		const label = prev.textContent?.trim();
		if (label && fieldMappings[label] && !fields[fieldMappings[label]] && !shouldIgnore(text)) {
			fields[fieldMappings[label]] = text;
		}
	}

	return fields;
})()`

const sessionUserScript = `(() => {
	const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
	while (walker.nextNode()) {
		const text = walker.currentNode.textContent || '';
		const idx = text.indexOf('Iniciaste sesión como');
		if (idx >= 0) {
			const rest = text.substring(idx + 'Iniciaste sesión como'.length).trim();
			const word = rest.split(/\s+/)[0];
			if (word) { return word; }
		}
	}
	return '';
})()`

const avatarSelector = `img.profile-image, img.avatar, .profile-photo img`

// ProfileExtractor reads the member's profile surface.
type ProfileExtractor struct {
	path   string
	logger *zap.Logger
}

// NewProfileExtractor builds the extractor for the given profile path.
func NewProfileExtractor(path string, logger *zap.Logger) *ProfileExtractor {
	return &ProfileExtractor{path: path, logger: logger.Named("profile_extractor")}
}

func (e *ProfileExtractor) Name() string { return "profile" }

func (e *ProfileExtractor) Description() string {
	return "Extracts user profile information (name, email, birthday, etc.)"
}

// Extract navigates to the profile surface and fills a UserProfile from
// the strategy script's field map. When the primary strategies fail
// entirely it falls back to minimal username/full-name extraction from
// the current page.
func (e *ProfileExtractor) Extract(ctx context.Context, page schemas.Page, baseURL string) (any, error) {
	if err := page.Navigate(ctx, baseURL+e.path); err != nil {
		e.logger.Warn("Profile navigation failed; trying basic extraction.", zap.Error(err))
		return e.basicProfile(ctx, page)
	}

	var fields map[string]string
	if err := page.Evaluate(ctx, profileFieldsScript, &fields); err != nil {
		e.logger.Warn("Profile field extraction failed; trying basic extraction.", zap.Error(err))
		return e.basicProfile(ctx, page)
	}
	profile := profileFromFields(fields)

	if profile.FullName == "" {
		if fullName, err := page.Text(ctx, "h2"); err == nil && fullName != "" {
			profile.FullName = fullName
		}
	}
	if src, found, err := page.Attribute(ctx, avatarSelector, "src"); err == nil && found {
		profile.AvatarURL = src
	}

	e.logger.Debug("Profile extracted.", zap.Int("fields", len(fields)))
	return profile, nil
}

// basicProfile is the last-resort pass: the logged-in username from the
// session banner and the page heading, whatever page we are on.
func (e *ProfileExtractor) basicProfile(ctx context.Context, page schemas.Page) (*schemas.UserProfile, error) {
	profile := &schemas.UserProfile{Username: "unknown"}

	var username string
	if err := page.Evaluate(ctx, sessionUserScript, &username); err != nil {
		return nil, err
	}
	if username != "" {
		profile.Username = username
	}

	if fullName, err := page.Text(ctx, "h2"); err == nil && fullName != "" {
		profile.FullName = fullName
	}
	return profile, nil
}

// profileFromFields maps the strategy script's label keys onto the typed
// profile, including the combined birthday/age post-processing.
func profileFromFields(fields map[string]string) *schemas.UserProfile {
	profile := &schemas.UserProfile{Username: "unknown"}
	for key, value := range fields {
		switch key {
		case "username":
			profile.Username = value
		case "account_number":
			profile.AccountNumber = value
		case "full_name":
			profile.FullName = value
		case "gender":
			profile.Gender = value
		case "birthday":
			profile.Birthday, profile.Age = splitBirthday(value)
		case "email":
			profile.Email = value
		case "phone":
			profile.Phone = value
		case "address":
			profile.Address = value
		case "bio":
			profile.Bio = value
		case "twitter":
			profile.Twitter = value
		case "facebook":
			profile.Facebook = value
		case "instagram":
			profile.Instagram = value
		}
	}
	return profile
}

// splitBirthday separates the combined "birthday - age" value the portal
// renders into its parts. The age suffix reads like "12 años".
func splitBirthday(value string) (string, *float64) {
	date, ageText, found := strings.Cut(value, " - ")
	if !found {
		return value, nil
	}
	date = strings.TrimSpace(date)
	ageText = strings.TrimSpace(strings.ReplaceAll(ageText, "años", ""))
	age, err := strconv.ParseFloat(ageText, 64)
	if err != nil {
		return date, nil
	}
	return date, &age
}
