package auth

import (
	"strings"

	"github.com/davidrg-mx/clubagent/api/schemas"
)

// DefaultRole is assumed when a membership label carries no explicit role.
const DefaultRole = "Miembro"

// ParseClubLabel splits a selection-page label into name, club type and
// role. The expected grammar is "Club {name}, Club de {type} como {role}"
// with two fallback grammars for labels missing the separators.
func ParseClubLabel(fullText string) (name string, clubType schemas.ClubType, role string) {
	role = DefaultRole
	rest := strings.TrimSpace(fullText)

	if idx := strings.LastIndex(rest, " como "); idx >= 0 {
		role = strings.TrimSpace(rest[idx+len(" como "):])
		rest = strings.TrimSpace(rest[:idx])
	}

	switch {
	case strings.Contains(rest, ", Club de "):
		parts := strings.SplitN(rest, ", Club de ", 2)
		namePart := strings.TrimSpace(parts[0])
		if strings.HasPrefix(strings.ToLower(namePart), "club ") {
			name = strings.TrimSpace(namePart[len("club "):])
		} else {
			name = namePart
		}
		clubType = DetectClubType(strings.TrimSpace(parts[1]))

	case strings.Contains(rest, "Club de "):
		parts := strings.SplitN(rest, " Club de ", 2)
		name = strings.TrimSpace(strings.ReplaceAll(parts[0], "Club ", ""))
		var kind string
		if len(parts) == 2 {
			kind = strings.TrimSpace(parts[1])
		}
		clubType = DetectClubType(kind)

	default:
		clubType = DetectClubType(rest)
		name = strings.TrimSpace(strings.ReplaceAll(rest, "Club ", ""))
	}

	return name, clubType, role
}

// DetectClubType normalizes free text into one of the three club
// categories by case-insensitive substring matching. Unrecognized text
// yields the empty type, never an error.
func DetectClubType(text string) schemas.ClubType {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "aventurero"):
		return schemas.ClubTypeAventureros
	case strings.Contains(t, "conquistador"):
		return schemas.ClubTypeConquistadores
	case strings.Contains(t, "guia"), strings.Contains(t, "guías"), strings.Contains(t, "mayor"):
		return schemas.ClubTypeGuiasMayores
	}
	return ""
}

// resolveSelection picks the membership to enter given the parsed options
// and the caller's selector.
//
// Order: explicit id, then type+name fuzzy match, then the first option.
// An explicit selector (id or type+name) that matches nothing fails with
// a LoginError enumerating the available options; the original behavior
// of silently ignoring an unmatched id was deliberately dropped because a
// caller naming an exact id has no sane fallback.
func resolveSelection(clubs []schemas.ClubInfo, sel schemas.ClubSelector) (*schemas.ClubInfo, error) {
	if sel.ClubID != 0 {
		for i := range clubs {
			if clubs[i].ID == sel.ClubID {
				return &clubs[i], nil
			}
		}
		return nil, schemas.NewLoginError(
			"club not found for requested id",
			map[string]any{
				"requested_id":    sel.ClubID,
				"available_clubs": describeClubs(clubs),
			})
	}

	if sel.ClubType != "" && sel.ClubName != "" {
		if club := findClubByTypeAndName(clubs, sel.ClubType, sel.ClubName); club != nil {
			return club, nil
		}
		return nil, schemas.NewLoginError(
			"club not found: "+sel.ClubName+" ("+sel.ClubType+")",
			map[string]any{
				"requested_type":  sel.ClubType,
				"requested_name":  sel.ClubName,
				"available_clubs": describeClubs(clubs),
			})
	}

	if len(clubs) == 0 {
		return nil, nil
	}
	return &clubs[0], nil
}

// findClubByTypeAndName searches for a category+name match, falling back
// to a substring search over the raw label text.
func findClubByTypeAndName(clubs []schemas.ClubInfo, clubType, clubName string) *schemas.ClubInfo {
	nameLower := strings.ToLower(clubName)
	typeLower := strings.ToLower(clubType)

	for i := range clubs {
		c := &clubs[i]
		if c.ClubType != "" &&
			strings.Contains(strings.ToLower(string(c.ClubType)), typeLower) &&
			strings.Contains(strings.ToLower(c.Name), nameLower) {
			return c
		}
	}

	// Lenient pass over the original label text.
	for i := range clubs {
		c := &clubs[i]
		fullText := c.FullText
		if fullText == "" {
			fullText = c.Name + " " + string(c.ClubType)
		}
		lower := strings.ToLower(fullText)
		if strings.Contains(lower, typeLower) && strings.Contains(lower, nameLower) {
			return c
		}
	}

	return nil
}

func describeClubs(clubs []schemas.ClubInfo) []string {
	out := make([]string, 0, len(clubs))
	for _, c := range clubs {
		out = append(out, c.Display())
	}
	return out
}
