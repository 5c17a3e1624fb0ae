package pipeline

import (
	"math"
	"unicode/utf8"

	"github.com/Lllllllleong/lessonswarm/internal/models"
)

// Focus score constants: a voiceover of FocusTargetLength characters scores
// 100 and every FocusScale characters away from it costs one point.
const (
	FocusTargetLength = 200
	FocusScale        = 4

	emptyStoryboardLength = 100
)

// FocusScore rewards voiceovers close to the target spoken length.
func FocusScore(results []models.PageResult) int {
	avg := float64(emptyStoryboardLength)
	if len(results) > 0 {
		total := 0
		for _, r := range results {
			total += utf8.RuneCountInString(r.Voiceover)
		}
		avg = float64(total) / float64(len(results))
	}
	score := 100 - math.Abs(avg-FocusTargetLength)/FocusScale
	return int(math.Round(math.Max(0, math.Min(100, score))))
}

// Stats are the per-run counters returned with the response.
type Stats struct {
	Succeeded int
	FellBack  int
	Facts     int
	Concepts  int
}

func Summarize(results []models.PageResult) Stats {
	var s Stats
	for _, r := range results {
		switch r.Status {
		case models.PageStatusSuccess:
			s.Succeeded++
		case models.PageStatusFallback:
			s.FellBack++
		}
		s.Facts += len(r.Facts)
		s.Concepts += len(r.Concepts)
	}
	return s
}
