package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

const singlePagePlaceholder = "Full document content extracted as single page"

// FallbackScene is substituted when the animation agent returns nothing
// usable. It only shows the page number and the start of the title.
func FallbackScene(pageNumber int, title string) string {
	return fmt.Sprintf(`// Page %[1]d Animation - Fallback
import { AbsoluteFill, useCurrentFrame, interpolate } from 'remotion';

export const Page%[1]dScene: React.FC = () => {
  const frame = useCurrentFrame();
  const opacity = interpolate(frame, [0, 30], [0, 1]);

  return (
    <AbsoluteFill style={{
      backgroundColor: '#0a0a0a',
      justifyContent: 'center',
      alignItems: 'center',
      color: 'white',
      fontSize: 48
    }}>
      <div style={{ opacity }}>
        Page %[1]d: %[2]s
      </div>
    </AbsoluteFill>
  );
};`, pageNumber, truncateRunes(title, 50))
}

// FailedPageScene is the scene of a page whose pipeline failed.
func FailedPageScene(pageNumber int) string {
	return fmt.Sprintf(`// Page %[1]d - Fallback (processing error)
import { AbsoluteFill } from 'remotion';
export const Page%[1]dScene: React.FC = () => (
  <AbsoluteFill style={{ backgroundColor: '#1a1a1a', color: 'white', justifyContent: 'center', alignItems: 'center' }}>
    <div>Page %[1]d content could not be processed</div>
  </AbsoluteFill>
);`, pageNumber)
}

// FailedPageVoiceover is the narration of a page whose pipeline failed.
func FailedPageVoiceover(pageNumber int) string {
	return fmt.Sprintf("Page %d of this document is still being analyzed. Let's continue with the next section.", pageNumber)
}

func fallbackVoiceover(pageNumber int, title string) string {
	return fmt.Sprintf("Page %d explores concepts from %s.", pageNumber, title)
}

var codeFence = regexp.MustCompile("```(?:tsx|jsx|javascript|js)?\\n?([\\s\\S]*?)```")

// unfence returns the body of the first fenced code block, if any.
func unfence(s string) (string, bool) {
	m := codeFence.FindStringSubmatch(s)
	if m == nil {
		return s, false
	}
	return strings.TrimSpace(m[1]), true
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := 0
	for i := range s {
		if runes == n {
			return s[:i]
		}
		runes++
	}
	return s
}
