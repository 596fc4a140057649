package engine

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// latencyBuckets are the histogram upper bounds in seconds. The last bucket
// is open-ended.
var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// histogram is a fixed-bucket latency histogram.
type histogram struct {
	counts []uint64
	sum    float64
	total  uint64
}

func newHistogram() *histogram {
	return &histogram{counts: make([]uint64, len(latencyBuckets)+1)}
}

func (h *histogram) observe(seconds float64) {
	idx := sort.SearchFloat64s(latencyBuckets, seconds)
	h.counts[idx]++
	h.sum += seconds
	h.total++
}

// HistogramSnapshot is the exported view of one histogram.
type HistogramSnapshot struct {
	Buckets []float64 `json:"buckets"`
	Counts  []uint64  `json:"counts"`
	Sum     float64   `json:"sum"`
	Count   uint64    `json:"count"`
}

func (h *histogram) snapshot() HistogramSnapshot {
	counts := make([]uint64, len(h.counts))
	copy(counts, h.counts)
	return HistogramSnapshot{Buckets: latencyBuckets, Counts: counts, Sum: h.sum, Count: h.total}
}

// Metrics tracks pipeline counters and latency histograms. All methods are
// safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	ingestsTotal    uint64
	ingestsDegraded uint64
	searchesTotal   uint64
	questionsTotal  uint64
	answersTemplate uint64
	answersLLM      uint64
	answersDegraded uint64
	answersNone     uint64
	cacheHits       uint64
	cacheMisses     uint64

	ingestLatency *histogram
	searchLatency *histogram
	answerLatency *histogram

	answerQualitySum   float64
	answerQualityCount uint64
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		ingestLatency: newHistogram(),
		searchLatency: newHistogram(),
		answerLatency: newHistogram(),
	}
}

// RecordIngest counts one ingestion and its latency.
func (m *Metrics) RecordIngest(d time.Duration, degraded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestsTotal++
	if degraded {
		m.ingestsDegraded++
	}
	m.ingestLatency.observe(d.Seconds())
}

// RecordSearch counts one search and its latency.
func (m *Metrics) RecordSearch(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchesTotal++
	m.searchLatency.observe(d.Seconds())
}

// AnswerOutcome labels how a question was resolved.
type AnswerOutcome string

const (
	AnswerViaTemplate AnswerOutcome = "template"
	AnswerViaLLM      AnswerOutcome = "llm"
	AnswerDegraded    AnswerOutcome = "degraded"
	AnswerNone        AnswerOutcome = "none"
)

// RecordAnswer counts one answered question, its latency, and a quality
// estimate in [0,1].
func (m *Metrics) RecordAnswer(d time.Duration, outcome AnswerOutcome, quality float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questionsTotal++
	switch outcome {
	case AnswerViaTemplate:
		m.answersTemplate++
	case AnswerViaLLM:
		m.answersLLM++
	case AnswerDegraded:
		m.answersDegraded++
	case AnswerNone:
		m.answersNone++
	}
	m.answerLatency.observe(d.Seconds())
	m.answerQualitySum += quality
	m.answerQualityCount++
}

// RecordCacheHit counts an analysis or search cache hit.
func (m *Metrics) RecordCacheHit() {
	m.mu.Lock()
	m.cacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss counts an analysis or search cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.mu.Lock()
	m.cacheMisses++
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of every metric, suitable for JSON
// encoding on the stats endpoint.
type Snapshot struct {
	IngestsTotal    uint64 `json:"ingests_total"`
	IngestsDegraded uint64 `json:"ingests_degraded"`
	SearchesTotal   uint64 `json:"searches_total"`
	QuestionsTotal  uint64 `json:"questions_total"`
	AnswersTemplate uint64 `json:"answers_template"`
	AnswersLLM      uint64 `json:"answers_llm"`
	AnswersDegraded uint64 `json:"answers_degraded"`
	AnswersNone     uint64 `json:"answers_none"`
	CacheHits       uint64 `json:"cache_hits"`
	CacheMisses     uint64 `json:"cache_misses"`

	IngestLatency HistogramSnapshot `json:"ingest_latency_seconds"`
	SearchLatency HistogramSnapshot `json:"search_latency_seconds"`
	AnswerLatency HistogramSnapshot `json:"answer_latency_seconds"`

	AnswerQualityAvg float64 `json:"answer_quality_avg"`
}

// Snapshot returns a copy of the current metric values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		IngestsTotal:    m.ingestsTotal,
		IngestsDegraded: m.ingestsDegraded,
		SearchesTotal:   m.searchesTotal,
		QuestionsTotal:  m.questionsTotal,
		AnswersTemplate: m.answersTemplate,
		AnswersLLM:      m.answersLLM,
		AnswersDegraded: m.answersDegraded,
		AnswersNone:     m.answersNone,
		CacheHits:       m.cacheHits,
		CacheMisses:     m.cacheMisses,
		IngestLatency:   m.ingestLatency.snapshot(),
		SearchLatency:   m.searchLatency.snapshot(),
		AnswerLatency:   m.answerLatency.snapshot(),
	}
	if m.answerQualityCount > 0 {
		s.AnswerQualityAvg = m.answerQualitySum / float64(m.answerQualityCount)
	}
	return s
}

// noAnswerPhrases are the hedges that mark an answer as empty-handed.
var noAnswerPhrases = []string{
	"don't have", "do not have", "no information", "cannot find", "can't find",
}

// answerQuality estimates answer quality without ground truth from four
// equally weighted signals: a substantive length, at least one specific
// token (a capitalized word past the first or a digit), the absence of
// a no-information hedge, and word overlap with the supporting context.
func answerQuality(text string, context []string) float64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	q := 0.0
	if len(trimmed) > 20 {
		q += 0.25
	}
	if hasSpecificToken(trimmed) {
		q += 0.25
	}

	lower := strings.ToLower(trimmed)
	hedged := false
	for _, p := range noAnswerPhrases {
		if strings.Contains(lower, p) {
			hedged = true
			break
		}
	}
	if !hedged {
		q += 0.25
	}

	if overlapsContext(lower, context) {
		q += 0.25
	}
	return q
}

// hasSpecificToken reports whether the answer carries a concrete detail: a
// capitalized word after the sentence start or any digit.
func hasSpecificToken(text string) bool {
	for _, r := range text {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	words := strings.Fields(text)
	for _, w := range words[1:] {
		r := rune(w[0])
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

// overlapsContext reports whether any answer word appears in the supporting
// memory contents.
func overlapsContext(lowerAnswer string, context []string) bool {
	if len(context) == 0 {
		return false
	}
	answerWords := tokenize(lowerAnswer)
	for _, c := range context {
		for w := range tokenize(c) {
			if answerWords[w] {
				return true
			}
		}
	}
	return false
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
