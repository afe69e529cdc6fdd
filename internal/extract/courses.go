package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/api/schemas"
)

// courseScanScript collects raw course cards: every h3 heading that is
// not one of the page's action links, plus the text and illustration of
// its enclosing card.
const courseScanScript = `(() => {
	const rows = [];
	for (const heading of document.querySelectorAll('h3')) {
		const name = (heading.textContent || '').trim();
		if (!name) { continue; }
		if (name.includes('Cambiar') || name.includes('Investidura')) { continue; }
		const card = heading.closest('div, section, article');
		let text = '';
		let imageURL = '';
		if (card) {
			text = (card.textContent || '').trim();
			const img = card.querySelector('img');
			if (img) { imageURL = img.getAttribute('src') || ''; }
		}
		rows.push({ name: name, text: text, image_url: imageURL });
	}
	return rows;
})()`

var percentPattern = regexp.MustCompile(`(\d+)\s*%`)

// rawCourse is the shape the scan script emits per card.
type rawCourse struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// CoursesExtractor reads the member's active-courses surface.
type CoursesExtractor struct {
	path   string
	logger *zap.Logger
}

// NewCoursesExtractor builds the extractor for the given courses path.
func NewCoursesExtractor(path string, logger *zap.Logger) *CoursesExtractor {
	return &CoursesExtractor{path: path, logger: logger.Named("courses_extractor")}
}

func (e *CoursesExtractor) Name() string { return "courses" }

func (e *CoursesExtractor) Description() string {
	return "Extracts active courses with completion percentages and investiture readiness"
}

// Extract navigates to the courses surface and returns the aggregated
// CourseReport: per-course progress plus the overall figures.
func (e *CoursesExtractor) Extract(ctx context.Context, page schemas.Page, baseURL string) (any, error) {
	if err := page.Navigate(ctx, baseURL+e.path); err != nil {
		return nil, err
	}

	var raw []rawCourse
	if err := page.Evaluate(ctx, courseScanScript, &raw); err != nil {
		return nil, err
	}

	courses := make([]schemas.CourseProgress, 0, len(raw))
	for _, r := range raw {
		courses = append(courses, buildCourse(r))
	}

	report := aggregate(courses)
	e.logger.Debug("Courses extracted.",
		zap.Int("total", report.TotalCourses),
		zap.Int("ready_for_investiture", report.ReadyForInvestitureCount),
	)
	return report, nil
}

// buildCourse derives progress and status from a raw card. Status
// priority: investiture readiness beats a raw percentage, completion
// beats progress.
func buildCourse(r rawCourse) schemas.CourseProgress {
	course := schemas.CourseProgress{
		Name:     strings.TrimSpace(r.Name),
		ImageURL: r.ImageURL,
		Status:   "Sin iniciar",
	}

	if m := percentPattern.FindStringSubmatch(r.Text); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			course.CompletionPercentage = pct
		}
	}

	lower := strings.ToLower(r.Text)
	course.IsReadyForInvestiture = strings.Contains(lower, "autorizado") || strings.Contains(lower, "investir")

	switch {
	case course.IsReadyForInvestiture:
		course.Status = "Autorizado para investir"
	case course.CompletionPercentage >= 100:
		course.Status = "Completado"
	case course.CompletionPercentage > 0:
		course.Status = "En progreso"
	}

	return course
}

// aggregate computes the report over all courses. The overall completion
// is the plain mean and is absent when there are no courses at all.
func aggregate(courses []schemas.CourseProgress) schemas.CourseReport {
	report := schemas.CourseReport{
		ActiveCourses: courses,
		TotalCourses:  len(courses),
	}
	if len(courses) == 0 {
		return report
	}

	var sum float64
	for _, c := range courses {
		sum += c.CompletionPercentage
		if c.IsReadyForInvestiture {
			report.ReadyForInvestitureCount++
		}
	}
	mean := sum / float64(len(courses))
	report.OverallCompletion = &mean
	return report
}
