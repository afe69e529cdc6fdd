// Package extract holds the pluggable data extractors and their registry.
// Each extractor is an independently addressable unit that reads one
// surface of the portal from an already-authenticated page.
package extract

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/api/schemas"
	"github.com/davidrg-mx/clubagent/internal/config"
)

// Extractor produces one surface's payload from the current
// authenticated page. The payload is a JSON-encodable value, typically
// one of the schemas value objects. Implementations navigate to their
// own surface and must tolerate inconsistent markup.
type Extractor interface {
	Name() string
	Description() string
	Extract(ctx context.Context, page schemas.Page, baseURL string) (any, error)
}

// Registry maps stable extractor names to instances. The map is built
// explicitly in NewRegistry; there is no side-effect registration.
type Registry struct {
	entries map[string]Extractor
	logger  *zap.Logger
}

// NewRegistry builds the registry with every production extractor.
func NewRegistry(site config.SiteConfig, logger *zap.Logger) *Registry {
	r := &Registry{
		entries: make(map[string]Extractor),
		logger:  logger.Named("extractors"),
	}
	r.Register(NewProfileExtractor(site.ProfilePath, logger))
	r.Register(NewCoursesExtractor(site.CoursesPath, logger))
	return r
}

// Register adds or replaces an extractor under its name.
func (r *Registry) Register(e Extractor) {
	if _, exists := r.entries[e.Name()]; exists {
		r.logger.Warn("Overwriting existing extractor.", zap.String("name", e.Name()))
	}
	r.entries[e.Name()] = e
}

// Get returns the extractor registered under name, or an
// UnknownExtractorError listing every valid name.
func (r *Registry) Get(name string) (Extractor, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &schemas.UnknownExtractorError{Name: name, Available: r.Names()}
	}
	return e, nil
}

// Names enumerates all registered extractors, sorted for stable output.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
