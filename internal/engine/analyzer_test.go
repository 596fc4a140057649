package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindloom/mindloom/internal/ontology"
	"github.com/mindloom/mindloom/internal/session"
)

// fakeGen scripts completions by prompt substring, in registration order.
type fakeGen struct {
	rules []genRule
	err   error
	calls int
}

type genRule struct {
	contains string
	response string
}

func (g *fakeGen) on(contains, response string) *fakeGen {
	g.rules = append(g.rules, genRule{contains: contains, response: response})
	return g
}

func (g *fakeGen) Complete(_ context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	for _, r := range g.rules {
		if strings.Contains(prompt, r.contains) {
			return r.response, nil
		}
	}
	return "", errors.New("no scripted response for prompt")
}

func (g *fakeGen) GetModel() string { return "fake" }

const analysisJSON = `{
  "entities": [{"name": "Priya", "type": "person"}],
  "relationships": [],
  "context": {
    "primary_intent": "share identity",
    "urgency_level": "low",
    "importance_level": "high",
    "temporal_scope": "ongoing"
  },
  "semantic_tags": ["identity"],
  "semantic_concepts": ["personal identity"],
  "domain_classification": {"primary_domain": "personal", "confidence": 0.9},
  "confidence": 0.85
}`

func personalHints(t *testing.T, content string) []ontology.Classification {
	t.Helper()
	store := ontology.NewStore(ontology.DefaultCatalog())
	return ontology.NewClassifier(store).Classify(content)
}

func TestAnalyzer_ParsesAndCaches(t *testing.T) {
	gen := (&fakeGen{}).on("My name is Priya", analysisJSON)
	an := NewAnalyzer(gen, session.NewCaches(0))
	hints := personalHints(t, "My name is Priya")

	res := an.Analyze(context.Background(), "u-1", "My name is Priya", hints, "")
	require.False(t, res.Degraded)
	require.False(t, res.CacheHit)
	assert.Equal(t, "personal", res.Analysis.DomainClassification.PrimaryDomain)
	assert.InDelta(t, 0.85, res.Analysis.Confidence, 1e-9)

	res2 := an.Analyze(context.Background(), "u-1", "My name is Priya", hints, "")
	assert.True(t, res2.CacheHit)
	assert.Same(t, res.Analysis, res2.Analysis)
	assert.Equal(t, 1, gen.calls, "cache hit skips the model")
}

func TestAnalyzer_CacheIsPerUser(t *testing.T) {
	gen := (&fakeGen{}).on("My name is Priya", analysisJSON)
	an := NewAnalyzer(gen, session.NewCaches(0))

	an.Analyze(context.Background(), "u-1", "My name is Priya", nil, "")
	res := an.Analyze(context.Background(), "u-2", "My name is Priya", nil, "")

	assert.False(t, res.CacheHit)
	assert.Equal(t, 2, gen.calls)
}

func TestAnalyzer_CompletionFailureDegrades(t *testing.T) {
	gen := &fakeGen{err: errors.New("model down")}
	an := NewAnalyzer(gen, session.NewCaches(0))
	content := "My name is Priya and I work at Initech"
	hints := personalHints(t, content)

	res := an.Analyze(context.Background(), "u-1", content, hints, "")

	require.True(t, res.Degraded)
	assert.InDelta(t, fallbackAnalysisConfidence, res.Analysis.Confidence, 1e-9)
	assert.Equal(t, "personal", res.Analysis.DomainClassification.PrimaryDomain,
		"fallback domain comes from the top ontology hint")
	assert.NotEmpty(t, res.Analysis.Entities, "regex extractors still run")

	an.Analyze(context.Background(), "u-1", content, hints, "")
	assert.Equal(t, 2, gen.calls, "degraded analyses are not cached, the model is retried")
}

func TestAnalyzer_NilGeneratorDegrades(t *testing.T) {
	an := NewAnalyzer(nil, session.NewCaches(0))

	res := an.Analyze(context.Background(), "u-1", "note to self", nil, "")
	require.True(t, res.Degraded)
	assert.Equal(t, "medium", res.Analysis.Context.UrgencyLevel)
}

func TestFallbackFromOntology_NoHints(t *testing.T) {
	a := fallbackFromOntology("random text", nil)
	assert.Empty(t, a.DomainClassification.PrimaryDomain)
	assert.InDelta(t, fallbackAnalysisConfidence, a.Confidence, 1e-9)
}
