// Package format turns free-form model answers into a structured
// summary / improvements / next-actions rendering.
package format

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"askbridge/internal/models"
)

// Version identifies the rendering layout in diagnostics.
const Version = "structured-response.v1"

const (
	maxItems          = 3
	maxRationaleRunes = 140
	maxNoteRunes      = 120

	summaryFallback          = "AI からの回答を要約できませんでした。原文をご確認ください。"
	improvementFallback      = "特に明確な改善提案は検出できませんでした。"
	improvementFallbackBasis = "必要に応じて AI の原文回答を参照してください。"
	nextActionSuffix         = " に基づいて次のアクションを検討してください。"
)

var (
	improvementVocabulary = compileVocabulary("改善", "見直", "修正", "調整", "最適化", "should", "recommend", "suggest")
	actionVocabulary      = compileVocabulary("次", "action", "進め", "試す", "着手", `follow\s*up`, "implement", "進行", "確認")
)

func compileVocabulary(terms ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		out = append(out, regexp.MustCompile("(?i)"+term))
	}
	return out
}

// Context is everything the formatter looks at for one answer.
type Context struct {
	Tool            models.Tool
	UserInput       string
	DesignContext   string
	OriginalContent string
	History         []models.ChatMessage
}

// Improvement is one suggested change with an optional supporting sentence.
type Improvement struct {
	Point     string `json:"point"`
	Rationale string `json:"rationale,omitempty"`
}

// Response is the structured view of an answer.
type Response struct {
	Text              string        `json:"text"`
	Summary           []string      `json:"summary"`
	Improvements      []Improvement `json:"improvements"`
	NextActions       []string      `json:"nextActions"`
	DesignContextNote string        `json:"designContextNote,omitempty"`
}

// Diagnostics is the machine-readable record attached to an ask result.
func (r Response) Diagnostics(originalContent string) map[string]any {
	out := map[string]any{
		"version":         Version,
		"summary":         r.Summary,
		"improvements":    r.Improvements,
		"nextActions":     r.NextActions,
		"originalContent": originalContent,
	}
	if r.DesignContextNote != "" {
		out["designContextNote"] = r.DesignContextNote
	}
	return out
}

// Structured is the heuristic formatter. It holds no per-call state and is
// safe for concurrent use.
type Structured struct {
	md goldmark.Markdown
}

func NewStructured() *Structured {
	return &Structured{md: goldmark.New()}
}

// Format derives the structured response. Identical input always yields an
// identical Response.
func (f *Structured) Format(c Context) Response {
	sentences := extractSentences(plainBlocks(f.md, []byte(c.OriginalContent)))
	bullets := extractBullets(f.md, c.OriginalContent)

	resp := Response{
		Summary:           buildSummary(sentences, bullets),
		Improvements:      buildImprovements(sentences),
		NextActions:       buildNextActions(sentences, c.UserInput),
		DesignContextNote: designContextNote(c.DesignContext),
	}
	resp.Text = render(resp)
	return resp
}

func buildSummary(sentences, bullets []sentence) []string {
	candidates := dedupe(append(slices.Clone(bullets), sentences...))
	out := make([]string, 0, maxItems)
	for _, c := range candidates {
		if len(out) == maxItems {
			break
		}
		out = append(out, c.value)
	}
	if len(out) == 0 {
		return []string{summaryFallback}
	}
	return out
}

// rank orders sentences by how many vocabulary terms they match, highest
// first, keeping the original order between equal scores.
func rank(sentences []sentence, vocabulary []*regexp.Regexp) []sentence {
	type scored struct {
		sentence
		score int
	}
	list := make([]scored, 0, len(sentences))
	for _, s := range sentences {
		score := 0
		for _, re := range vocabulary {
			if re.MatchString(s.value) {
				score++
			}
		}
		list = append(list, scored{s, score})
	}
	slices.SortStableFunc(list, func(a, b scored) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return a.index - b.index
	})

	out := make([]sentence, 0, len(list))
	for _, s := range list {
		out = append(out, s.sentence)
	}
	return out
}

func buildImprovements(sentences []sentence) []Improvement {
	var out []Improvement
	for _, s := range rank(sentences, improvementVocabulary) {
		entry := Improvement{Point: s.value}
		if next := s.index + 1; next < len(sentences) {
			if basis := sentences[next].value; utf8.RuneCountInString(basis) <= maxRationaleRunes {
				entry.Rationale = basis
			}
		}
		out = append(out, entry)
		if len(out) == maxItems {
			break
		}
	}
	if len(out) == 0 {
		return []Improvement{{Point: improvementFallback, Rationale: improvementFallbackBasis}}
	}
	return out
}

func buildNextActions(sentences []sentence, userInput string) []string {
	var out []string
	for _, s := range rank(sentences, actionVocabulary) {
		out = append(out, s.value)
		if len(out) == maxItems {
			break
		}
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(userInput) + nextActionSuffix}
	}
	return out
}

func designContextNote(designContext string) string {
	note := collapseSpace(designContext)
	if utf8.RuneCountInString(note) <= maxNoteRunes {
		return note
	}
	runes := []rune(note)
	return string(runes[:maxNoteRunes]) + "…"
}

func render(r Response) string {
	var lines []string
	if r.DesignContextNote != "" {
		lines = append(lines, "🎯 デザイン文脈: "+r.DesignContextNote, "")
	}

	lines = append(lines, "✅ 要約")
	for _, s := range r.Summary {
		lines = append(lines, "- "+s)
	}
	lines = append(lines, "")

	lines = append(lines, "🛠 改善ポイント")
	for i, imp := range r.Improvements {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, imp.Point))
		if imp.Rationale != "" {
			lines = append(lines, "   └ 根拠: "+imp.Rationale)
		}
	}
	lines = append(lines, "")

	lines = append(lines, "🚀 次の一歩")
	for _, a := range r.NextActions {
		lines = append(lines, "- "+a)
	}
	return strings.Join(lines, "\n")
}
