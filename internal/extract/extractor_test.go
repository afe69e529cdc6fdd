package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/api/schemas"
	"github.com/davidrg-mx/clubagent/internal/config"
)

func testSite() config.SiteConfig {
	return config.SiteConfig{
		BaseURL:     "https://example.test",
		ProfilePath: "/mi-perfil",
		CoursesPath: "/miembro/cursos-activos",
	}
}

func TestNewRegistryHasDefaultExtractors(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(testSite(), zap.NewNop())
	assert.Equal(t, []string{"courses", "profile"}, registry.Names())

	for _, name := range registry.Names() {
		e, err := registry.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, e.Name())
		assert.NotEmpty(t, e.Description())
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(testSite(), zap.NewNop())
	_, err := registry.Get("grades")
	require.Error(t, err)

	var unknownErr *schemas.UnknownExtractorError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "grades", unknownErr.Name)
	assert.Equal(t, []string{"courses", "profile"}, unknownErr.Available)
}
