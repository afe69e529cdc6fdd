package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidrg-mx/clubagent/api/schemas"
)

func TestBuildCourseStatusPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        rawCourse
		wantPct    float64
		wantStatus string
		wantReady  bool
	}{
		{
			name:       "no progress",
			raw:        rawCourse{Name: "Amigo", Text: "Amigo"},
			wantPct:    0,
			wantStatus: "Sin iniciar",
		},
		{
			name:       "in progress",
			raw:        rawCourse{Name: "Compañero", Text: "Compañero 45% completado"},
			wantPct:    45,
			wantStatus: "En progreso",
		},
		{
			name:       "completed",
			raw:        rawCourse{Name: "Explorador", Text: "Explorador 100%"},
			wantPct:    100,
			wantStatus: "Completado",
		},
		{
			name:       "investiture beats percentage",
			raw:        rawCourse{Name: "Orientador", Text: "Orientador 80% Autorizado para investir"},
			wantPct:    80,
			wantStatus: "Autorizado para investir",
			wantReady:  true,
		},
		{
			name:       "investir token alone marks ready",
			raw:        rawCourse{Name: "Viajero", Text: "Listo para investir"},
			wantPct:    0,
			wantStatus: "Autorizado para investir",
			wantReady:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			course := buildCourse(tt.raw)
			assert.Equal(t, tt.raw.Name, course.Name)
			assert.Equal(t, tt.wantPct, course.CompletionPercentage)
			assert.Equal(t, tt.wantStatus, course.Status)
			assert.Equal(t, tt.wantReady, course.IsReadyForInvestiture)
		})
	}
}

func TestBuildCoursePercentWithSpacing(t *testing.T) {
	t.Parallel()

	course := buildCourse(rawCourse{Name: "Amigo", Text: "Avance: 33 %"})
	assert.Equal(t, 33.0, course.CompletionPercentage)
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	courses := []schemas.CourseProgress{
		{Name: "A", CompletionPercentage: 100, IsReadyForInvestiture: true},
		{Name: "B", CompletionPercentage: 50},
		{Name: "C", CompletionPercentage: 0},
	}

	report := aggregate(courses)
	assert.Equal(t, 3, report.TotalCourses)
	assert.Equal(t, 1, report.ReadyForInvestitureCount)
	require.NotNil(t, report.OverallCompletion)
	assert.InDelta(t, 50.0, *report.OverallCompletion, 0.001)
}

func TestAggregateEmptyHasNoOverall(t *testing.T) {
	t.Parallel()

	report := aggregate(nil)
	assert.Equal(t, 0, report.TotalCourses)
	assert.Nil(t, report.OverallCompletion)
	assert.Equal(t, 0, report.ReadyForInvestitureCount)
}
