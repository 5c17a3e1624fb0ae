package pipeline

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/lessonswarm/internal/models"
)

// --- Global Context Prompt ---
const GlobalContextSystemPrompt = `You are a document analyst. Skim the attached academic document and extract the high-level metadata that will ground every later page-level analysis.

Respond with a single JSON object:
{
  "paper_title": "The exact title of the document",
  "main_goal": "One sentence describing what the document sets out to achieve",
  "themes": ["theme1", "theme2", "theme3"],
  "key_terminology": ["term1", "term2", "term3", "term4", "term5"],
  "target_audience": "Who benefits most from understanding this document"
}`

// --- Page Extraction Prompt ---
const pageExtractionSystemPromptFormat = `You are a PDF content extractor. Extract the text of each page of the attached document separately.

Respond with a single JSON object:
{
  "pages": [
    { "page": 1, "content": "Full text content of page 1..." },
    { "page": 2, "content": "Full text content of page 2..." }
  ]
}

Extract up to %d pages. Include all text, equations (as LaTeX), tables and figure captions.`

func pageExtractionSystemPrompt(maxPages int) string {
	return fmt.Sprintf(pageExtractionSystemPromptFormat, maxPages)
}

func pageExtractionUserPrompt(documentName string, pageHint int) string {
	if pageHint > 0 {
		return fmt.Sprintf("Extract the text content from each page of this PDF: %s (the file has %d pages).", documentName, pageHint)
	}
	return fmt.Sprintf("Extract the text content from each page of this PDF: %s", documentName)
}

// --- Per-page Prompts ---
func conceptSystemPrompt(pageNumber int, cp models.ContextPacket) string {
	return fmt.Sprintf(`You find the concepts on a page that a complete beginner would not understand.

CONTEXT: page %d of "%s".
Document goal: %s
Key themes: %s

For every complex term give its technical definition and an analogy simple enough for a five-year-old.

Respond with JSON:
{
  "concepts": [
    {
      "term": "complex term",
      "definition": "technical definition",
      "beginner_analogy": "It's like when you...",
      "difficulty": "easy|medium|hard"
    }
  ]
}`, pageNumber, cp.PaperTitle, cp.MainGoal, strings.Join(cp.Themes, ", "))
}

func factSystemPrompt(pageNumber int, cp models.ContextPacket) string {
	return fmt.Sprintf(`You extract facts from page %d of "%s".
Document goal: %s

Extract every factual claim, definition, equation and data point on the page.

Respond with JSON:
{
  "facts": [
    {
      "fact": "The exact claim or data point",
      "category": "definition|equation|data|claim|method|result",
      "confidence_score": 0.95
    }
  ]
}`, pageNumber, cp.PaperTitle, cp.MainGoal)
}

func narrativeSystemPrompt(pageNumber int, cp models.ContextPacket) string {
	return fmt.Sprintf(`You write the voiceover for page %d of "%s".
Document goal: %s
Target audience: %s

Write an engaging, educational explainer-video script for this page that uses the beginner analogies provided.
It must take 30 to 60 seconds to read aloud (roughly 75 to 150 words).

Respond with JSON:
{
  "voiceover": "The script text..."
}`, pageNumber, cp.PaperTitle, cp.MainGoal, cp.TargetAudience)
}

func animationSystemPrompt(pageNumber int, cp models.ContextPacket) string {
	return fmt.Sprintf(`You generate procedural animation code for page %d of "%s".

Output a Remotion React component that visually represents the concepts and formulas of the page, using SVG shapes and frame-based interpolation.

Example:
`+"```tsx"+`
import { AbsoluteFill, useCurrentFrame, interpolate } from 'remotion';

export const Page%dScene: React.FC = () => {
  const frame = useCurrentFrame();
  const opacity = interpolate(frame, [0, 30], [0, 1]);
  return (
    <AbsoluteFill style={{ backgroundColor: '#0a0a0a' }}>
      <svg viewBox="0 0 800 600">{/* shapes */}</svg>
    </AbsoluteFill>
  );
};
`+"```"+`

Respond with JSON:
{
  "animation_code": "the complete component code"
}`, pageNumber, cp.PaperTitle, pageNumber)
}
