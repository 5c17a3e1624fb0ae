package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/lessonswarm/internal/models"
)

func voiced(lengths ...int) []models.PageResult {
	results := make([]models.PageResult, len(lengths))
	for i, n := range lengths {
		results[i] = models.PageResult{Page: i + 1, Voiceover: strings.Repeat("ü", n)}
	}
	return results
}

func TestFocusScore(t *testing.T) {
	cases := []struct {
		name    string
		results []models.PageResult
		want    int
	}{
		{"empty storyboard", nil, 75},
		{"on target", voiced(200), 100},
		{"averaged on target", voiced(100, 300), 100},
		{"short", voiced(100), 75},
		{"long", voiced(300), 75},
		{"floored at zero", voiced(1000), 0},
		{"rounded", voiced(202), 100},
		{"half rounds up", voiced(206), 99},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FocusScore(tc.results))
		})
	}
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]models.PageResult{
		{Status: models.PageStatusSuccess, Facts: make([]models.ExtractedFact, 3), Concepts: make([]models.ConceptExplanation, 2)},
		{Status: models.PageStatusFallback},
		{Status: models.PageStatusSuccess, Facts: make([]models.ExtractedFact, 1)},
	})

	assert.Equal(t, Stats{Succeeded: 2, FellBack: 1, Facts: 4, Concepts: 2}, stats)
}
