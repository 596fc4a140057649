package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindloom/mindloom/internal/index"
	"github.com/mindloom/mindloom/internal/index/sqlite"
	"github.com/mindloom/mindloom/internal/ontology"
)

// testEmbedder is a deterministic toy embedding: similar strings land near
// each other, which is enough to exercise the vector path.
type testEmbedder struct{}

func (testEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range strings.ToLower(text) {
		vec[i%8] += float32(r%13) + 1
	}
	return vec, nil
}

func (testEmbedder) GetModel() string { return "test-embedder" }

func newTestEngine(t *testing.T, gen *fakeGen, opts Options) *Engine {
	t.Helper()
	backend, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	adapter := index.NewAdapter(backend, testEmbedder{}, index.Options{})
	catalog := ontology.NewStore(ontology.DefaultCatalog())

	e := New(catalog, gen, adapter, opts)
	t.Cleanup(e.Close)
	return e
}

const priyaAnalysisJSON = `{
  "entities": [{"name": "Priya", "type": "person"}, {"name": "Initech", "type": "organization"}],
  "relationships": [{"from": "Priya", "to": "Initech", "type": "works_at"}],
  "context": {
    "primary_intent": "share identity",
    "urgency_level": "low",
    "importance_level": "high",
    "temporal_scope": "ongoing",
    "personal_information_type": "identity"
  },
  "semantic_tags": ["identity", "employment"],
  "semantic_concepts": ["personal identity"],
  "domain_classification": {"primary_domain": "personal", "confidence": 0.9},
  "confidence": 0.85
}`

const dinnerAnalysisJSON = `{
  "entities": [{"name": "Maria", "type": "person"}, {"name": "Friday", "type": "date"}],
  "relationships": [],
  "context": {
    "primary_intent": "plan event",
    "urgency_level": "medium",
    "importance_level": "medium",
    "temporal_scope": "future"
  },
  "semantic_tags": ["dinner", "social"],
  "semantic_concepts": ["social plans"],
  "domain_classification": {"primary_domain": "personal", "confidence": 0.8},
  "confidence": 0.8
}`

const dinnerPlanJSON = `{
  "question_type": "event",
  "key_entities": ["Maria"],
  "search_terms": ["dinner", "Maria"],
  "expected_answer_type": "time",
  "domain": "personal"
}`

func TestEngine_IngestAndTemplateAnswer(t *testing.T) {
	gen := (&fakeGen{}).on("memory analyst", priyaAnalysisJSON)
	e := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	report, err := e.IngestMemory(ctx, IngestRequest{
		UserID:  "u-1",
		Content: "My name is Priya and I work at Initech as an engineer.",
	})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.True(t, strings.HasPrefix(report.MemoryID, "mem:"))
	assert.Equal(t, "personal", report.OntologyDomain)
	assert.InDelta(t, 0.85, report.AIConfidence, 1e-9)
	assert.False(t, report.Degraded)
	assert.Greater(t, report.ImportanceScore, 0.5)

	ans, err := e.AnswerQuestion(ctx, "u-1", "What is my name?")
	require.NoError(t, err)
	assert.Equal(t, AnswerViaTemplate, ans.Outcome)
	assert.Equal(t, "Your name is Priya.", ans.Text)
	assert.Equal(t, 1.0, ans.Confidence)

	ans, err = e.AnswerQuestion(ctx, "u-1", "Where do I work?")
	require.NoError(t, err)
	assert.Equal(t, AnswerViaTemplate, ans.Outcome)
	assert.Equal(t, "You work at Initech as an engineer.", ans.Text)
}

func TestEngine_AnswerViaRetrieval(t *testing.T) {
	gen := (&fakeGen{}).
		on("Analyze this question", dinnerPlanJSON).
		on("ONLY their stored memories", "Dinner with Maria is on Friday at 7pm.").
		on("memory analyst", dinnerAnalysisJSON)
	e := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	report, err := e.IngestMemory(ctx, IngestRequest{
		UserID:  "u-1",
		Content: "Dinner with Maria on Friday at 7pm.",
	})
	require.NoError(t, err)

	ans, err := e.AnswerQuestion(ctx, "u-1", "When is dinner with Maria?")
	require.NoError(t, err)

	assert.Equal(t, AnswerViaLLM, ans.Outcome)
	assert.Equal(t, "Dinner with Maria is on Friday at 7pm.", ans.Text)
	assert.Contains(t, ans.MemoryIDs, report.MemoryID)
	assert.False(t, ans.Degraded)
}

func TestEngine_DegradedIngestStillSearchable(t *testing.T) {
	gen := &fakeGen{err: errors.New("model down")}
	e := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	report, err := e.IngestMemory(ctx, IngestRequest{
		UserID:  "u-1",
		Content: "Logged 45 minutes of code review this morning.",
	})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.True(t, report.Degraded)
	assert.InDelta(t, fallbackAnalysisConfidence, report.AIConfidence, 1e-9)
	assert.Equal(t, "work", report.OntologyDomain)

	results, err := e.SearchMemories(ctx, "u-1", "code review", index.Filter{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, report.MemoryID, results[0].Record.ID)
}

func TestEngine_SearchUsesCache(t *testing.T) {
	gen := (&fakeGen{}).on("memory analyst", priyaAnalysisJSON)
	e := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	_, err := e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "My name is Priya and I work at Initech as an engineer."})
	require.NoError(t, err)

	first, err := e.SearchMemories(ctx, "u-1", "Initech", index.Filter{}, 10)
	require.NoError(t, err)
	before := e.Metrics().CacheHits

	second, err := e.SearchMemories(ctx, "u-1", "Initech", index.Filter{}, 10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Greater(t, e.Metrics().CacheHits, before, "repeat search hits the cache")
}

func TestEngine_IngestInvalidatesSearchCache(t *testing.T) {
	gen := (&fakeGen{}).on("memory analyst", priyaAnalysisJSON)
	e := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	_, err := e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "My name is Priya and I work at Initech as an engineer."})
	require.NoError(t, err)

	first, err := e.SearchMemories(ctx, "u-1", "Initech", index.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "Initech moved to a new office building."})
	require.NoError(t, err)

	second, err := e.SearchMemories(ctx, "u-1", "Initech", index.Filter{}, 10)
	require.NoError(t, err)
	assert.Len(t, second, 2, "ingestion invalidated the cached result set")
}

func TestEngine_CorrectionUpdatesProfile(t *testing.T) {
	gen := (&fakeGen{}).on("memory analyst", priyaAnalysisJSON)
	e := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	_, err := e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "My name is Priya."})
	require.NoError(t, err)

	ans, err := e.AnswerQuestion(ctx, "u-1", "What is my name?")
	require.NoError(t, err)
	assert.Equal(t, "Your name is Priya.", ans.Text)

	time.Sleep(5 * time.Millisecond)

	report, err := e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "Actually, my name is Pria."})
	require.NoError(t, err)

	record, err := e.GetMemory(ctx, report.MemoryID)
	require.NoError(t, err)
	assert.True(t, record.HasTag("correction"))
	assert.Equal(t, 2, record.Version, "the correction supersedes the prior statement")

	ans, err = e.AnswerQuestion(ctx, "u-1", "What is my name?")
	require.NoError(t, err)
	assert.Equal(t, AnswerViaTemplate, ans.Outcome)
	assert.Equal(t, "Your name is Pria.", ans.Text, "newest statement wins after the correction")
}

func TestEngine_AssistantRename(t *testing.T) {
	gen := (&fakeGen{}).on("memory analyst", priyaAnalysisJSON)
	e := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	_, err := e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "Call yourself Aria."})
	require.NoError(t, err)

	ans, err := e.AnswerQuestion(ctx, "u-1", "What is your name?")
	require.NoError(t, err)
	assert.Equal(t, AnswerViaTemplate, ans.Outcome)
	assert.Equal(t, "My name is Aria.", ans.Text)

	time.Sleep(5 * time.Millisecond)

	_, err = e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "Your name is not Aria, call yourself Nova."})
	require.NoError(t, err)

	ans, err = e.AnswerQuestion(ctx, "u-1", "What is your name?")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "Nova")
	assert.NotContains(t, ans.Text, "Aria", "the rename fully replaces the old name")
}

func TestEngine_AsyncUpserts(t *testing.T) {
	gen := (&fakeGen{}).on("memory analyst", priyaAnalysisJSON)
	e := newTestEngine(t, gen, Options{AsyncUpserts: true, Workers: 2, QueueSize: 8})
	ctx := context.Background()

	report, err := e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "My name is Priya and I work at Initech as an engineer."})
	require.NoError(t, err)

	e.Close()

	record, err := e.GetMemory(ctx, report.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, "u-1", record.UserID)
}

func TestEngine_Validation(t *testing.T) {
	e := newTestEngine(t, &fakeGen{}, Options{})
	ctx := context.Background()

	_, err := e.IngestMemory(ctx, IngestRequest{Content: "no user"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "x", Source: "telepathy"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.SearchMemories(ctx, "", "q", index.Filter{}, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.AnswerQuestion(ctx, "u-1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEngine_Health(t *testing.T) {
	e := newTestEngine(t, &fakeGen{}, Options{})

	h := e.Health(context.Background())
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "ok", h.Index)
	assert.Equal(t, "ok", h.Model)
}

func TestEngine_DeleteMemoryInvalidates(t *testing.T) {
	gen := (&fakeGen{}).on("memory analyst", priyaAnalysisJSON)
	e := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	report, err := e.IngestMemory(ctx, IngestRequest{UserID: "u-1", Content: "My name is Priya and I work at Initech as an engineer."})
	require.NoError(t, err)

	first, err := e.SearchMemories(ctx, "u-1", "Priya", index.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, e.DeleteMemory(ctx, report.MemoryID))

	second, err := e.SearchMemories(ctx, "u-1", "Priya", index.Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, second)

	_, err = e.GetMemory(ctx, report.MemoryID)
	assert.ErrorIs(t, err, index.ErrNotFound)
}
