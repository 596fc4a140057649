package engine

import (
	"context"
	"log"

	"github.com/mindloom/mindloom/internal/llm"
	"github.com/mindloom/mindloom/internal/ontology"
	"github.com/mindloom/mindloom/internal/session"
	"github.com/mindloom/mindloom/pkg/types"
)

// fallbackAnalysisConfidence marks analyses produced without the LLM, from
// the ontology side alone.
const fallbackAnalysisConfidence = 0.6

// Analyzer runs semantic analysis with a per-user cache in front of the
// model. An unreachable model degrades to an ontology-grounded analysis
// instead of failing the ingestion.
type Analyzer struct {
	gen    llm.TextGenerator
	caches *session.Caches
}

// NewAnalyzer creates an analyzer. gen may be nil, in which case every
// analysis takes the fallback path.
func NewAnalyzer(gen llm.TextGenerator, caches *session.Caches) *Analyzer {
	return &Analyzer{gen: gen, caches: caches}
}

// AnalysisResult carries the analysis plus how it was obtained.
type AnalysisResult struct {
	Analysis *llm.Analysis
	Degraded bool
	CacheHit bool
}

// Analyze returns the semantic analysis for the content. Identical content
// from the same user within the cache TTL reuses the cached analysis.
// Completion or parse failures degrade to the ontology fallback; only an
// empty content is impossible here (validated upstream), so Analyze never
// errors.
func (an *Analyzer) Analyze(ctx context.Context, userID, content string, hints []ontology.Classification, userContext string) *AnalysisResult {
	key := session.AnalysisKey(userID, content)
	if an.caches != nil {
		if a, ok := an.caches.GetAnalysis(key); ok {
			return &AnalysisResult{Analysis: a, CacheHit: true}
		}
	}

	if an.gen == nil {
		return &AnalysisResult{Analysis: fallbackFromOntology(content, hints), Degraded: true}
	}

	prompt := llm.BuildAnalysisPrompt(content, hints, userContext)
	raw, err := an.gen.Complete(ctx, prompt)
	if err != nil {
		log.Printf("engine: analysis completion failed, using ontology fallback: %v", err)
		return &AnalysisResult{Analysis: fallbackFromOntology(content, hints), Degraded: true}
	}

	a, err := llm.ParseAnalysisResponse(raw)
	if err != nil {
		log.Printf("engine: analysis parse failed, using ontology fallback: %v", err)
		return &AnalysisResult{Analysis: fallbackFromOntology(content, hints), Degraded: true}
	}

	if an.caches != nil {
		an.caches.PutAnalysis(key, a)
	}
	return &AnalysisResult{Analysis: a}
}

// fallbackFromOntology builds an analysis from the rule-based side alone:
// the best classification supplies the domain, the regex extractors supply
// entities, and the context levels default to medium.
func fallbackFromOntology(content string, hints []ontology.Classification) *llm.Analysis {
	a := &llm.Analysis{
		Entities:   ontology.ExtractEntities(content),
		Confidence: fallbackAnalysisConfidence,
		Context: types.ContextUnderstanding{
			UrgencyLevel:    "medium",
			ImportanceLevel: "medium",
		},
	}

	if len(hints) > 0 {
		best := hints[0]
		a.DomainClassification = types.DomainClassification{
			PrimaryDomain: best.Domain,
			Confidence:    fallbackAnalysisConfidence,
			Reasoning:     "ontology classifier fallback",
		}
		a.SemanticTags = append(a.SemanticTags, best.Category)
		for _, h := range hints {
			a.SemanticConcepts = append(a.SemanticConcepts, h.ConceptID)
		}
	}
	a.Context.Domain = a.DomainClassification

	return a
}
