package pipeline

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Lllllllleong/lessonswarm/internal/models"
)

// Models do not always use the field names they were asked for. Every alias
// accepted for a field is listed here and nowhere else.
var (
	titleAliases       = []string{"paper_title", "title"}
	goalAliases        = []string{"main_goal", "goal"}
	themeAliases       = []string{"themes"}
	terminologyAliases = []string{"key_terminology", "terminology", "keywords"}
	audienceAliases    = []string{"target_audience", "audience"}

	pageListAliases    = []string{"pages"}
	pageNumberAliases  = []string{"page", "page_number"}
	pageContentAliases = []string{"content", "text"}

	conceptListAliases = []string{"concepts"}
	termAliases        = []string{"term", "concept", "name"}
	definitionAliases  = []string{"definition", "technical_definition"}
	analogyAliases     = []string{"beginner_analogy", "analogy"}
	difficultyAliases  = []string{"difficulty"}

	factListAliases       = []string{"facts", "extracted_facts"}
	factTextAliases       = []string{"fact", "claim", "content"}
	factCategoryAliases   = []string{"category", "type"}
	factConfidenceAliases = []string{"confidence_score", "confidence"}

	voiceoverAliases = []string{"voiceover", "script"}
	animationAliases = []string{"animation_code", "code"}
)

const (
	defaultMainGoal       = "Explore and explain the concepts in this document"
	defaultTargetAudience = "Students and researchers"
	defaultConfidence     = 0.9
	defaultDifficulty     = "medium"
	defaultCategory       = "general"
)

var defaultThemes = []string{"academic", "research"}

var factCategories = map[string]bool{
	"definition": true,
	"equation":   true,
	"data":       true,
	"claim":      true,
	"method":     true,
	"result":     true,
	"general":    true,
}

var difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func firstList(m map[string]any, keys []string) []any {
	for _, k := range keys {
		if l, ok := m[k].([]any); ok {
			return l
		}
	}
	return nil
}

// listOf accepts either a bare array or an object carrying the array under
// one of the aliases.
func listOf(raw any, keys []string) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case map[string]any:
		return firstList(v, keys)
	}
	return nil
}

// uniqueStrings keeps the first occurrence of every non-empty string.
func uniqueStrings(items []any) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// TitleFromFilename strips the extension from a document name.
func TitleFromFilename(name string) string {
	title := strings.TrimSuffix(name, filepath.Ext(name))
	if title == "" {
		return name
	}
	return title
}

func normalizeContext(raw map[string]any, documentName string) models.ContextPacket {
	cp := models.ContextPacket{
		PaperTitle:     firstString(raw, titleAliases),
		MainGoal:       firstString(raw, goalAliases),
		Themes:         uniqueStrings(firstList(raw, themeAliases)),
		KeyTerminology: uniqueStrings(firstList(raw, terminologyAliases)),
		TargetAudience: firstString(raw, audienceAliases),
	}
	if cp.PaperTitle == "" {
		cp.PaperTitle = TitleFromFilename(documentName)
	}
	if cp.MainGoal == "" {
		cp.MainGoal = defaultMainGoal
	}
	if len(cp.Themes) == 0 {
		cp.Themes = append([]string(nil), defaultThemes...)
	}
	if cp.TargetAudience == "" {
		cp.TargetAudience = defaultTargetAudience
	}
	return cp
}

type declaredPage struct {
	order   int
	content string
}

// normalizePages orders pages by their declared number and renumbers them
// 1..N. Entries without a usable number sort at their list position.
func normalizePages(raw any) []models.PageContent {
	entries := listOf(raw, pageListAliases)
	declared := make([]declaredPage, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		order := i + 1
		if n, ok := firstNumber(m, pageNumberAliases); ok && n >= 1 {
			order = int(n)
		}
		content := firstString(m, pageContentAliases)
		if content == "" {
			content = "Page " + strconv.Itoa(order) + " content"
		}
		declared = append(declared, declaredPage{order: order, content: content})
	}

	sort.SliceStable(declared, func(i, j int) bool { return declared[i].order < declared[j].order })

	pages := make([]models.PageContent, len(declared))
	for i, d := range declared {
		pages[i] = models.PageContent{Number: i + 1, Text: d.content}
	}
	return pages
}

func normalizeConcepts(raw any) []models.ConceptExplanation {
	entries := listOf(raw, conceptListAliases)
	concepts := make([]models.ConceptExplanation, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		term := firstString(m, termAliases)
		if term == "" {
			continue
		}
		difficulty := strings.ToLower(firstString(m, difficultyAliases))
		if !difficulties[difficulty] {
			difficulty = defaultDifficulty
		}
		concepts = append(concepts, models.ConceptExplanation{
			Term:            term,
			Definition:      firstString(m, definitionAliases),
			BeginnerAnalogy: firstString(m, analogyAliases),
			Difficulty:      difficulty,
		})
	}
	return concepts
}

func normalizeFacts(raw any) []models.ExtractedFact {
	entries := listOf(raw, factListAliases)
	facts := make([]models.ExtractedFact, 0, len(entries))
	for _, entry := range entries {
		switch v := entry.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				facts = append(facts, models.ExtractedFact{Fact: s, Category: defaultCategory, ConfidenceScore: defaultConfidence})
			}
		case map[string]any:
			facts = append(facts, normalizeFact(v))
		}
	}
	return facts
}

func normalizeFact(m map[string]any) models.ExtractedFact {
	text := firstString(m, factTextAliases)
	if text == "" {
		encoded, _ := json.Marshal(m)
		text = string(encoded)
	}

	category := strings.ToLower(firstString(m, factCategoryAliases))
	if !factCategories[category] {
		category = defaultCategory
	}

	confidence, ok := firstNumber(m, factConfidenceAliases)
	if !ok || confidence == 0 {
		confidence = defaultConfidence
	}
	confidence = min(max(confidence, 0), 1)

	return models.ExtractedFact{Fact: text, Category: category, ConfidenceScore: confidence}
}
