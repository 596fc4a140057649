package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullAnalysisJSON = `{
  "entities": [
    {"name": "Priya", "type": "person"},
    {"name": "Helios Labs", "type": "organization"}
  ],
  "relationships": [
    {"from": "Priya", "to": "Helios Labs", "type": "works_at"}
  ],
  "context": {
    "primary_intent": "introduce self",
    "implicit_meaning": "establishing identity",
    "urgency_level": "low",
    "importance_level": "high",
    "emotional_tone": "neutral",
    "temporal_scope": "present",
    "personal_information_type": "identity",
    "domain": "personal"
  },
  "semantic_tags": ["identity", "employment"],
  "semantic_concepts": ["self-introduction"],
  "domain_classification": {"primary_domain": "personal", "confidence": 0.92, "reasoning": "user states their name"},
  "confidence": 0.88
}`

func TestParseAnalysisResponse_Full(t *testing.T) {
	a, err := ParseAnalysisResponse(fullAnalysisJSON)
	require.NoError(t, err)

	require.Len(t, a.Entities, 2)
	assert.Equal(t, "Priya", a.Entities[0].Name)
	assert.Equal(t, "organization", a.Entities[1].Type)

	require.Len(t, a.Relations, 1)
	assert.Equal(t, "works_at", a.Relations[0].Type)

	assert.Equal(t, "low", a.Context.UrgencyLevel)
	assert.Equal(t, "high", a.Context.ImportanceLevel)
	assert.Equal(t, "identity", a.Context.PersonalInfoType)

	assert.Equal(t, "personal", a.DomainClassification.PrimaryDomain)
	assert.InDelta(t, 0.92, a.DomainClassification.Confidence, 1e-9)
	assert.InDelta(t, 0.88, a.Confidence, 1e-9)
}

func TestParseAnalysisResponse_StripsMarkdownAndProse(t *testing.T) {
	raw := "Sure, here is the analysis:\n```json\n" + fullAnalysisJSON + "\n```\nLet me know if you need more."

	a, err := ParseAnalysisResponse(raw)
	require.NoError(t, err)
	assert.InDelta(t, 0.88, a.Confidence, 1e-9)
	assert.Len(t, a.Entities, 2)
}

func TestParseAnalysisResponse_QuotedNumbersCoerced(t *testing.T) {
	raw := `{"confidence": "0.75", "domain_classification": {"primary_domain": "work", "confidence": "0.6"}, "context": {"urgency_level": "URGENT"}}`

	a, err := ParseAnalysisResponse(raw)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, a.Confidence, 1e-9)
	assert.InDelta(t, 0.6, a.DomainClassification.Confidence, 1e-9)
	assert.Equal(t, "critical", a.Context.UrgencyLevel)
}

func TestParseAnalysisResponse_BareStringEntities(t *testing.T) {
	raw := `{"entities": ["Priya", {"name": "Helios Labs", "type": "organization"}], "confidence": 0.7}`

	a, err := ParseAnalysisResponse(raw)
	require.NoError(t, err)

	require.Len(t, a.Entities, 2)
	assert.Equal(t, "Priya", a.Entities[0].Name)
	assert.Equal(t, "other", a.Entities[0].Type)
}

func TestParseAnalysisResponse_MalformedFallsBack(t *testing.T) {
	raw := `the urgency_level: high and primary_domain: work but I forgot the braces`

	a, err := ParseAnalysisResponse(raw)
	require.NoError(t, err)

	assert.InDelta(t, fallbackConfidence, a.Confidence, 1e-9)
	assert.Equal(t, "high", a.Context.UrgencyLevel)
	assert.Equal(t, "work", a.DomainClassification.PrimaryDomain)
}

func TestParseAnalysisResponse_EmptyIsError(t *testing.T) {
	_, err := ParseAnalysisResponse("   ")
	require.Error(t, err)
}

func TestParseQuestionAnalysis(t *testing.T) {
	raw := `{"question_type": "personal_info", "key_entities": ["name"], "search_terms": ["my name", "called"], "expected_answer_type": "name", "domain": "personal"}`

	qa := ParseQuestionAnalysis(raw, "what is my name?")
	assert.Equal(t, "personal_info", qa.QuestionType)
	assert.Equal(t, []string{"my name", "called"}, qa.SearchTerms)
}

func TestParseQuestionAnalysis_FallbackUsesQuestion(t *testing.T) {
	qa := ParseQuestionAnalysis("not json at all", "where do I work?")
	assert.Equal(t, "other", qa.QuestionType)
	assert.Equal(t, []string{"where do I work?"}, qa.SearchTerms)

	// Valid JSON with no search terms still falls back.
	qa = ParseQuestionAnalysis(`{"question_type": "factual"}`, "where do I work?")
	assert.Equal(t, []string{"where do I work?"}, qa.SearchTerms)
}

func TestParseRelevance(t *testing.T) {
	v, err := ParseRelevance("0.85")
	require.NoError(t, err)
	assert.InDelta(t, 0.85, v, 1e-9)

	v, err = ParseRelevance("Relevance: 0.9 out of 1")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, v, 1e-9)

	v, err = ParseRelevance("1.5")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	_, err = ParseRelevance("not applicable")
	require.Error(t, err)
}

func TestExtractJSON_NestedAndStrings(t *testing.T) {
	raw := `prefix {"a": {"b": "has } brace", "c": [1, 2]}, "d": "x"} suffix`
	assert.Equal(t, `{"a": {"b": "has } brace", "c": [1, 2]}, "d": "x"}`, extractJSON(raw))

	assert.Equal(t, "no braces here", extractJSON("no braces here"))
}
