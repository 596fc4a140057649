package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mindloom/mindloom/pkg/types"
)

// Analysis is the parsed result of a semantic analysis completion, already
// converted to the canonical types the pipeline stores.
type Analysis struct {
	Entities             []types.Entity
	Relations            []types.Relation
	Context              types.ContextUnderstanding
	SemanticTags         []string
	SemanticConcepts     []string
	DomainClassification types.DomainClassification
	Confidence           float64
}

// QuestionAnalysis is the parsed retrieval plan for a question.
type QuestionAnalysis struct {
	QuestionType       string   `json:"question_type"`
	KeyEntities        []string `json:"key_entities"`
	SearchTerms        []string `json:"search_terms"`
	ExpectedAnswerType string   `json:"expected_answer_type"`
	Domain             string   `json:"domain"`
}

// flexFloat tolerates models that quote numbers ("0.85") or emit junk where
// a number belongs. Unparseable values decode to zero instead of failing the
// whole response.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexEntity accepts both {"name": ..., "type": ...} objects and bare
// strings for entity list entries.
type flexEntity struct {
	Name string
	Type string
}

func (e *flexEntity) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) > 0 && s[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		e.Name = name
		e.Type = "other"
		return nil
	}
	var obj struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.Name = obj.Name
	e.Type = obj.Type
	return nil
}

// analysisResponse is the wire shape of the analysis prompt's JSON.
type analysisResponse struct {
	Entities  []flexEntity `json:"entities"`
	Relations []struct {
		From string `json:"from"`
		To   string `json:"to"`
		Type string `json:"type"`
	} `json:"relationships"`
	Context struct {
		PrimaryIntent    string `json:"primary_intent"`
		ImplicitMeaning  string `json:"implicit_meaning"`
		UrgencyLevel     string `json:"urgency_level"`
		ImportanceLevel  string `json:"importance_level"`
		EmotionalTone    string `json:"emotional_tone"`
		TemporalScope    string `json:"temporal_scope"`
		PersonalInfoType string `json:"personal_information_type"`
	} `json:"context"`
	SemanticTags     []string `json:"semantic_tags"`
	SemanticConcepts []string `json:"semantic_concepts"`
	Domain           struct {
		PrimaryDomain string    `json:"primary_domain"`
		Confidence    flexFloat `json:"confidence"`
		Reasoning     string    `json:"reasoning"`
	} `json:"domain_classification"`
	Confidence flexFloat `json:"confidence"`
}

// extractJSON extracts the first complete JSON object from text that may
// contain prose or markdown fences around it, despite prompt instructions.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text
}

// fallbackFieldRes pull individual fields out of a malformed response. A
// model that mangles the JSON often still emits the key/value pairs as text.
var fallbackFieldRes = map[string]*regexp.Regexp{
	"urgency":    regexp.MustCompile(`(?i)"?urgency_level"?\s*[:=]\s*"?(\w+)`),
	"importance": regexp.MustCompile(`(?i)"?importance_level"?\s*[:=]\s*"?(\w+)`),
	"domain":     regexp.MustCompile(`(?i)"?primary_domain"?\s*[:=]\s*"?(\w+)`),
	"intent":     regexp.MustCompile(`(?i)"?primary_intent"?\s*[:=]\s*"?([^",\n}]+)`),
}

// fallbackConfidence marks an analysis recovered from a malformed response.
const fallbackConfidence = 0.5

// ParseAnalysisResponse parses the semantic analysis completion. Malformed
// JSON degrades to a field-scraping fallback with confidence 0.5 rather than
// failing; an empty response is an error.
func ParseAnalysisResponse(raw string) (*Analysis, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty analysis response")
	}

	var resp analysisResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return fallbackAnalysis(raw), nil
	}

	a := &Analysis{
		SemanticTags:     resp.SemanticTags,
		SemanticConcepts: resp.SemanticConcepts,
		Confidence:       clamp01(float64(resp.Confidence)),
		Context: types.ContextUnderstanding{
			PrimaryIntent:    resp.Context.PrimaryIntent,
			ImplicitMeaning:  resp.Context.ImplicitMeaning,
			UrgencyLevel:     normalizeLevel(resp.Context.UrgencyLevel),
			ImportanceLevel:  normalizeLevel(resp.Context.ImportanceLevel),
			EmotionalTone:    resp.Context.EmotionalTone,
			TemporalScope:    resp.Context.TemporalScope,
			PersonalInfoType: resp.Context.PersonalInfoType,
		},
		DomainClassification: types.DomainClassification{
			PrimaryDomain: resp.Domain.PrimaryDomain,
			Confidence:    clamp01(float64(resp.Domain.Confidence)),
			Reasoning:     resp.Domain.Reasoning,
		},
	}
	a.Context.Domain = a.DomainClassification

	for _, e := range resp.Entities {
		if e.Name == "" {
			continue
		}
		a.Entities = append(a.Entities, types.Entity{Name: e.Name, Type: e.Type})
	}
	for _, r := range resp.Relations {
		if r.From == "" || r.To == "" {
			continue
		}
		a.Relations = append(a.Relations, types.Relation{From: r.From, To: r.To, Type: r.Type})
	}

	return a, nil
}

// fallbackAnalysis scrapes what it can from a malformed response.
func fallbackAnalysis(raw string) *Analysis {
	a := &Analysis{
		Confidence: fallbackConfidence,
		Context: types.ContextUnderstanding{
			UrgencyLevel:    "medium",
			ImportanceLevel: "medium",
		},
	}

	if m := fallbackFieldRes["urgency"].FindStringSubmatch(raw); m != nil {
		a.Context.UrgencyLevel = normalizeLevel(m[1])
	}
	if m := fallbackFieldRes["importance"].FindStringSubmatch(raw); m != nil {
		a.Context.ImportanceLevel = normalizeLevel(m[1])
	}
	if m := fallbackFieldRes["domain"].FindStringSubmatch(raw); m != nil {
		a.DomainClassification.PrimaryDomain = strings.ToLower(m[1])
		a.DomainClassification.Confidence = fallbackConfidence
	}
	if m := fallbackFieldRes["intent"].FindStringSubmatch(raw); m != nil {
		a.Context.PrimaryIntent = strings.TrimSpace(m[1])
	}
	a.Context.Domain = a.DomainClassification

	return a
}

// normalizeLevel maps free-form level words onto the four canonical levels,
// defaulting to medium.
func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return "low"
	case "high":
		return "high"
	case "critical", "urgent":
		return "critical"
	default:
		return "medium"
	}
}

// ParseQuestionAnalysis parses the retrieval-planning completion. On
// malformed JSON the question itself becomes the only search term so the
// planner can still run a keyword pass.
func ParseQuestionAnalysis(raw, question string) *QuestionAnalysis {
	var qa QuestionAnalysis
	if err := json.Unmarshal([]byte(extractJSON(raw)), &qa); err != nil || len(qa.SearchTerms) == 0 {
		return &QuestionAnalysis{
			QuestionType: "other",
			SearchTerms:  []string{question},
		}
	}
	return &qa
}

var relevanceNumberRe = regexp.MustCompile(`\d*\.?\d+`)

// ParseRelevance parses a relevance rating completion into [0,1].
func ParseRelevance(raw string) (float64, error) {
	m := relevanceNumberRe.FindString(raw)
	if m == "" {
		return 0, fmt.Errorf("no number in relevance response %q", strings.TrimSpace(raw))
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("parse relevance %q: %w", m, err)
	}
	return clamp01(v), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
