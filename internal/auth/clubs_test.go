package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidrg-mx/clubagent/api/schemas"
)

func TestParseClubLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		label    string
		wantName string
		wantType schemas.ClubType
		wantRole string
	}{
		{
			name:     "full grammar with role",
			label:    "Club Halcones, Club de Conquistadores como Director",
			wantName: "Halcones",
			wantType: schemas.ClubTypeConquistadores,
			wantRole: "Director",
		},
		{
			name:     "full grammar without role",
			label:    "Club Estrellas, Club de Aventureros",
			wantName: "Estrellas",
			wantType: schemas.ClubTypeAventureros,
			wantRole: DefaultRole,
		},
		{
			name:     "missing comma separator",
			label:    "Club Vencedores Club de Guías Mayores como Consejero",
			wantName: "Vencedores",
			wantType: schemas.ClubTypeGuiasMayores,
			wantRole: "Consejero",
		},
		{
			name:     "bare club name",
			label:    "Club Pioneros",
			wantName: "Pioneros",
			wantType: "",
			wantRole: DefaultRole,
		},
		{
			name:     "role uses last como occurrence",
			label:    "Club Cometas, Club de Conquistadores como Secretario",
			wantName: "Cometas",
			wantType: schemas.ClubTypeConquistadores,
			wantRole: "Secretario",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name, clubType, role := ParseClubLabel(tt.label)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantType, clubType)
			assert.Equal(t, tt.wantRole, role)
		})
	}
}

func TestDetectClubType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, schemas.ClubTypeAventureros, DetectClubType("Club de Aventureros"))
	assert.Equal(t, schemas.ClubTypeAventureros, DetectClubType("aventurero"))
	assert.Equal(t, schemas.ClubTypeConquistadores, DetectClubType("Conquistadores"))
	assert.Equal(t, schemas.ClubTypeGuiasMayores, DetectClubType("Guias Mayores"))
	assert.Equal(t, schemas.ClubTypeGuiasMayores, DetectClubType("mayor"))
	assert.Equal(t, schemas.ClubType(""), DetectClubType("algo distinto"))
	assert.Equal(t, schemas.ClubType(""), DetectClubType(""))
}

func sampleClubs() []schemas.ClubInfo {
	return []schemas.ClubInfo{
		{ID: 10, Name: "Halcones", ClubType: schemas.ClubTypeConquistadores, Role: "Miembro",
			FullText: "Club Halcones, Club de Conquistadores"},
		{ID: 20, Name: "Estrellas", ClubType: schemas.ClubTypeAventureros, Role: "Director",
			FullText: "Club Estrellas, Club de Aventureros como Director"},
	}
}

func TestResolveSelectionByID(t *testing.T) {
	t.Parallel()

	selected, err := resolveSelection(sampleClubs(), schemas.ClubSelector{ClubID: 20})
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.Equal(t, "Estrellas", selected.Name)
}

func TestResolveSelectionUnmatchedIDFails(t *testing.T) {
	t.Parallel()

	selected, err := resolveSelection(sampleClubs(), schemas.ClubSelector{ClubID: 999})
	require.Error(t, err)
	assert.Nil(t, selected)

	var loginErr *schemas.LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Contains(t, loginErr.Details, "available_clubs")
}

func TestResolveSelectionByTypeAndName(t *testing.T) {
	t.Parallel()

	selected, err := resolveSelection(sampleClubs(), schemas.ClubSelector{
		ClubType: "conquistadores",
		ClubName: "halcones",
	})
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.Equal(t, 10, selected.ID)
}

func TestResolveSelectionUnmatchedTypeNameFails(t *testing.T) {
	t.Parallel()

	_, err := resolveSelection(sampleClubs(), schemas.ClubSelector{
		ClubType: "Conquistadores",
		ClubName: "NoExiste",
	})
	var loginErr *schemas.LoginError
	require.True(t, errors.As(err, &loginErr))
}

func TestResolveSelectionDefaultsToFirst(t *testing.T) {
	t.Parallel()

	selected, err := resolveSelection(sampleClubs(), schemas.ClubSelector{})
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.Equal(t, 10, selected.ID)
}

func TestResolveSelectionEmptyClubsNoSelector(t *testing.T) {
	t.Parallel()

	selected, err := resolveSelection(nil, schemas.ClubSelector{})
	require.NoError(t, err)
	assert.Nil(t, selected)
}

func TestResolveSelectionEmptyClubsExplicitSelectorFails(t *testing.T) {
	t.Parallel()

	// An explicit selector is loud even when no options were parsed at
	// all; defaulting silently would mis-login the caller.
	var loginErr *schemas.LoginError

	_, err := resolveSelection(nil, schemas.ClubSelector{ClubID: 10})
	require.Error(t, err)
	require.True(t, errors.As(err, &loginErr))

	_, err = resolveSelection(nil, schemas.ClubSelector{
		ClubType: "Aventureros",
		ClubName: "Peniel",
	})
	require.Error(t, err)
	require.True(t, errors.As(err, &loginErr))
	assert.Contains(t, loginErr.Details, "available_clubs")
	assert.Empty(t, loginErr.Details["available_clubs"])
}

func TestFindClubByTypeAndNameFallsBackToFullText(t *testing.T) {
	t.Parallel()

	// Type detection failed for this option, but the raw label still
	// carries both tokens.
	clubs := []schemas.ClubInfo{
		{ID: 5, Name: "Raro", FullText: "Club Aguilas, agrupación conquistadores"},
	}
	found := findClubByTypeAndName(clubs, "conquistadores", "aguilas")
	require.NotNil(t, found)
	assert.Equal(t, 5, found.ID)
}
