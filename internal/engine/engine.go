// Package engine wires the ingestion pipeline: ontology classification, LLM
// semantic analysis, hybrid synthesis, indexing, retrieval planning, and
// answer composition.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindloom/mindloom/internal/index"
	"github.com/mindloom/mindloom/internal/llm"
	"github.com/mindloom/mindloom/internal/ontology"
	"github.com/mindloom/mindloom/internal/session"
	"github.com/mindloom/mindloom/pkg/types"
)

// ErrInvalidInput marks requests rejected before any pipeline work.
var ErrInvalidInput = errors.New("invalid input")

// Store is the index surface the engine depends on.
type Store interface {
	Upserter
	Searcher
	Get(ctx context.Context, id string) (*types.MemoryRecord, error)
	Delete(ctx context.Context, id string) error
}

// Options tunes the engine. The zero value runs synchronous upserts with
// default cache TTLs.
type Options struct {
	// AsyncUpserts hands index writes to a worker pool so ingestion returns
	// before the write lands.
	AsyncUpserts bool
	Workers      int
	QueueSize    int

	// CacheTTL bounds the analysis, search, and profile caches.
	CacheTTL time.Duration
}

// Engine is the pipeline facade the server talks to.
type Engine struct {
	classifier *ontology.Classifier
	catalog    *ontology.Store
	analyzer   *Analyzer
	store      Store
	planner    *Planner
	answerer   *Answerer
	caches     *session.Caches
	profiles   *session.ProfileService
	metrics    *Metrics
	pool       *UpsertPool
	gen        llm.TextGenerator
}

// New assembles an engine. gen may be nil; analysis and answering then run
// on their degraded paths, which keeps ingestion available when no model is
// configured.
func New(catalog *ontology.Store, gen llm.TextGenerator, store Store, opts Options) *Engine {
	caches := session.NewCaches(opts.CacheTTL)

	e := &Engine{
		classifier: ontology.NewClassifier(catalog),
		catalog:    catalog,
		analyzer:   NewAnalyzer(gen, caches),
		store:      store,
		planner:    NewPlanner(store, gen),
		answerer:   NewAnswerer(gen, store),
		caches:     caches,
		profiles:   session.NewProfileService(store, opts.CacheTTL),
		metrics:    NewMetrics(),
		gen:        gen,
	}
	if opts.AsyncUpserts {
		e.pool = NewUpsertPool(store, opts.Workers, opts.QueueSize)
	}
	return e
}

// Metrics returns a snapshot of the pipeline counters.
func (e *Engine) Metrics() Snapshot {
	return e.metrics.Snapshot()
}

// Profiles exposes the profile service for cache warming.
func (e *Engine) Profiles() *session.ProfileService {
	return e.profiles
}

// Health describes the engine's dependencies for health reporting.
type Health struct {
	Status string `json:"status"`
	Index  string `json:"index"`
	Model  string `json:"model"`
}

// Health probes the index with a read and reports the model breaker state.
// A not-found probe still proves the index answered.
func (e *Engine) Health(ctx context.Context) Health {
	h := Health{Status: "ok", Index: "ok", Model: "disabled"}

	if _, err := e.store.Get(ctx, "mem:healthcheck"); err != nil && !errors.Is(err, index.ErrNotFound) {
		h.Status = "degraded"
		h.Index = "unreachable"
	}

	if e.gen != nil {
		h.Model = "ok"
		if breaker, ok := e.gen.(interface{ BreakerState() string }); ok {
			h.Model = breaker.BreakerState()
			if h.Model == "open" {
				h.Status = "degraded"
			}
		}
	}
	return h
}

// Close drains the async upsert pool, if any.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

// IngestRequest is one memory to ingest.
type IngestRequest struct {
	UserID    string     `json:"user_id"`
	TenantID  string     `json:"tenant_id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Content   string     `json:"content"`
	Source    string     `json:"source,omitempty"`
	Expiry    *time.Time `json:"expiry,omitempty"`
}

func (r *IngestRequest) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	switch r.Source {
	case "", types.SourceChat, types.SourceEvent, types.SourceChunk:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidInput, r.Source)
	}
	return nil
}

// IngestMemory runs the full ingestion pipeline for one piece of content
// and returns a report. With async upserts enabled the report is issued
// before the index write completes.
func (e *Engine) IngestMemory(ctx context.Context, req IngestRequest) (*types.IngestReport, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	content := strings.TrimSpace(req.Content)
	intent := session.ClassifyIntent(content)
	classifications := e.classifier.Classify(content)

	userContext := ""
	if p, err := e.profiles.Get(ctx, req.UserID); err == nil {
		userContext = profileFacts(p)
	}

	ar := e.analyzer.Analyze(ctx, req.UserID, content, classifications, userContext)
	if ar.CacheHit {
		e.metrics.RecordCacheHit()
	} else {
		e.metrics.RecordCacheMiss()
	}

	record := e.buildRecord(req, content, classifications, ar.Analysis)
	if intent == session.IntentUpdate || intent == session.IntentCorrection {
		// The new record supersedes the closest prior statement of the fact;
		// its version continues that record's sequence.
		if prior, err := e.store.Search(ctx, content, index.Filter{UserID: req.UserID}, 1); err == nil && len(prior) > 0 {
			record.Version = prior[0].Record.Version + 1
		}
	}
	if intent == session.IntentCorrection {
		// Copy before appending: the tag slice may be shared with a cached
		// analysis.
		tags := make([]string, 0, len(record.AISemanticTags)+1)
		tags = append(tags, record.AISemanticTags...)
		record.AISemanticTags = append(tags, "correction")
	}
	record.ImportanceScore = ImportanceScore(record)

	if e.pool != nil {
		record.DeriveSearchFields()
		e.pool.Submit(record)
	} else if err := e.store.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("upsert memory: %w", err)
	}

	if intent.MutatesMemory() {
		e.caches.InvalidateUser(req.UserID)
		if intent == session.IntentCorrection {
			e.profiles.Invalidate(req.UserID, session.DetectProfileFields(content))
		} else {
			e.profiles.Invalidate(req.UserID, nil)
		}
	}

	elapsed := time.Since(start)
	e.metrics.RecordIngest(elapsed, ar.Degraded)

	return &types.IngestReport{
		Success:          true,
		MemoryID:         record.ID,
		ProcessingTime:   elapsed.Seconds(),
		OntologyDomain:   record.OntologyDomain,
		AIConfidence:     record.AIConfidence,
		HybridConfidence: record.Hybrid.SynthesisConfidence,
		ImportanceScore:  record.ImportanceScore,
		SemanticSummary:  record.SemanticSummary,
		Degraded:         ar.Degraded,
	}, nil
}

// buildRecord assembles the memory record from both classification sides.
func (e *Engine) buildRecord(req IngestRequest, content string, classifications []ontology.Classification, a *llm.Analysis) *types.MemoryRecord {
	source := req.Source
	if source == "" {
		source = types.SourceChat
	}

	r := &types.MemoryRecord{
		ID:        "mem:" + uuid.NewString(),
		UserID:    req.UserID,
		TenantID:  req.TenantID,
		SessionID: req.SessionID,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Version:   1,
		IsActive:  true,
		Expiry:    req.Expiry,
		Content:   content,
	}

	if len(classifications) > 0 {
		best := classifications[0]
		r.OntologyDomain = best.Domain
		r.OntologyCategory = best.Category
		r.OntologyConceptID = best.ConceptID
		r.OntologyConfidence = OntologyConfidence(best.Score)
		if concept, ok := e.catalog.Catalog().Concept(best.ConceptID); ok {
			r.OntologyProperties = ontology.ExtractProperties(content, concept)
		}
	}

	if a != nil {
		r.AISemanticConcepts = a.SemanticConcepts
		r.AIExtractedEntities = a.Entities
		r.AIRelationships = a.Relations
		r.AIContext = a.Context
		r.AISemanticTags = a.SemanticTags
		r.AIConfidence = a.Confidence
		r.AIReasoning = a.DomainClassification.Reasoning
	}

	var best *ontology.Classification
	if len(classifications) > 0 {
		best = &classifications[0]
	}
	r.Hybrid = Synthesize(best, a)
	r.SemanticSummary = summarize(content, r.Hybrid.PrimaryDomain)

	return r
}

// summaryLimit bounds the stored summary length in runes.
const summaryLimit = 160

// summarize builds a short domain-prefixed summary without the LLM.
func summarize(content, domain string) string {
	runes := []rune(content)
	if len(runes) > summaryLimit {
		content = string(runes[:summaryLimit-3]) + "..."
	}
	if domain == "" || domain == unclassifiedDomain {
		return content
	}
	return domain + ": " + content
}

// SearchMemories runs one cached hybrid search scoped to the user. The
// filter's UserID is forced to the caller's user.
func (e *Engine) SearchMemories(ctx context.Context, userID, query string, filter index.Filter, top int) ([]index.Result, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	filter.UserID = userID
	start := time.Now()

	key := session.SearchKey(userID, query, filter, top)
	if results, ok := e.caches.GetSearch(key); ok {
		e.metrics.RecordCacheHit()
		e.metrics.RecordSearch(time.Since(start))
		return results, nil
	}
	e.metrics.RecordCacheMiss()

	results, err := e.store.Search(ctx, query, filter, top)
	if err != nil {
		return nil, err
	}
	e.caches.PutSearch(key, results)
	e.metrics.RecordSearch(time.Since(start))
	return results, nil
}

// AnswerQuestion answers a question from the user's memories. Canonical
// personal questions are answered from the cached profile without touching
// the model or the index.
func (e *Engine) AnswerQuestion(ctx context.Context, userID, question string) (*Answer, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	start := time.Now()

	profile, err := e.profiles.Get(ctx, userID)
	if err != nil {
		profile = nil
	}
	if text, ok := session.TemplateAnswer(question, profile); ok {
		e.metrics.RecordAnswer(time.Since(start), AnswerViaTemplate, answerQuality(text, nil))
		return &Answer{Text: text, Confidence: 1, Outcome: AnswerViaTemplate}, nil
	}

	ret, err := e.planner.Retrieve(ctx, userID, question)
	if err != nil {
		return nil, err
	}

	ans := e.answerer.Compose(ctx, userID, question, ret, profile)

	supporting := make([]string, len(ret.Memories))
	for i, m := range ret.Memories {
		supporting[i] = m.Record.Content
	}
	quality := 0.0
	if ans.Outcome != AnswerNone {
		quality = answerQuality(ans.Text, supporting)
	}
	e.metrics.RecordAnswer(time.Since(start), ans.Outcome, quality)
	return ans, nil
}

// GetMemory fetches one record by ID.
func (e *Engine) GetMemory(ctx context.Context, id string) (*types.MemoryRecord, error) {
	return e.store.Get(ctx, id)
}

// DeleteMemory removes a record and invalidates its owner's caches.
func (e *Engine) DeleteMemory(ctx context.Context, id string) error {
	record, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	e.caches.InvalidateUser(record.UserID)
	e.profiles.Invalidate(record.UserID, nil)
	return nil
}
