package engine

import (
	"fmt"

	"github.com/mindloom/mindloom/internal/llm"
	"github.com/mindloom/mindloom/internal/ontology"
	"github.com/mindloom/mindloom/pkg/types"
)

// Synthesis fusion constants. A side dominates when its raw confidence
// exceeds 1.5x the other's; agreeing sides get a 1.2x bonus on the averaged
// confidence. Raw classifier scores (which stack above 1) are compared
// against the LLM confidence directly; only the stored confidences clamp.
const (
	dominanceRatio = 1.5
	agreementBonus = 1.2

	// ontologyScoreScale maps raw classifier scores onto the [0,1]
	// ontology_confidence record field.
	ontologyScoreScale = 2.5
)

// The fused classification when neither side produced a domain.
const (
	unclassifiedDomain     = "general"
	unclassifiedCategory   = "unclassified"
	unclassifiedConfidence = 0.3
)

// aiDerivedCategory marks records whose primary domain came from the LLM
// side; the ontology catalog has no category for them.
const aiDerivedCategory = "ai_derived"

// Importance formula weights.
const (
	importanceAIWeight         = 0.3
	importanceSynthesisWeight  = 0.2
	importanceUrgencyWeight    = 0.25
	importanceImportanceWeight = 0.25
	entityBonusPer             = 0.1
	entityBonusCap             = 0.5
	relationBonusPer           = 0.1
	relationBonusCap           = 0.3
)

// levelWeight maps the four canonical urgency/importance levels to numeric
// weights. Unknown levels count as medium.
func levelWeight(level string) float64 {
	switch level {
	case "low":
		return 0.2
	case "high":
		return 0.8
	case "critical":
		return 1.0
	default:
		return 0.5
	}
}

// OntologyConfidence maps a raw classifier score onto [0,1].
func OntologyConfidence(score float64) float64 {
	return clamp01(score / ontologyScoreScale)
}

// Synthesize fuses the ontology classifier's best match with the LLM
// analysis into the hybrid classification stored on the record. Either side
// may be absent.
func Synthesize(best *ontology.Classification, a *llm.Analysis) types.HybridClassification {
	var (
		ontDomain, ontCategory string
		ontScore               float64
	)
	if best != nil {
		ontDomain = best.Domain
		ontCategory = best.Category
		ontScore = best.Score
	}

	var (
		llmDomain string
		llmConf   float64
	)
	if a != nil {
		llmDomain = a.DomainClassification.PrimaryDomain
		llmConf = a.DomainClassification.Confidence
	}

	switch {
	case ontDomain == "" && llmDomain == "":
		return types.HybridClassification{
			PrimaryDomain:       unclassifiedDomain,
			PrimaryCategory:     unclassifiedCategory,
			SynthesisConfidence: unclassifiedConfidence,
			DecisionReasoning:   "no classification from either side",
		}

	case llmDomain == "":
		return types.HybridClassification{
			PrimaryDomain:       ontDomain,
			PrimaryCategory:     ontCategory,
			SynthesisConfidence: clamp01(ontScore),
			DecisionReasoning:   "ontology only",
		}

	case ontDomain == "":
		return types.HybridClassification{
			PrimaryDomain:       llmDomain,
			PrimaryCategory:     aiDerivedCategory,
			SynthesisConfidence: llmConf,
			DecisionReasoning:   "llm only",
		}
	}

	if ontDomain == llmDomain {
		return types.HybridClassification{
			PrimaryDomain:       ontDomain,
			PrimaryCategory:     ontCategory,
			SynthesisConfidence: clamp01((ontScore + llmConf) / 2 * agreementBonus),
			OntologyAgreement:   true,
			DecisionReasoning:   "ontology and llm agree",
		}
	}

	// Disagreement: a clearly dominant side wins with its own confidence;
	// otherwise the higher side wins with the averaged confidence.
	switch {
	case ontScore > dominanceRatio*llmConf:
		return types.HybridClassification{
			PrimaryDomain:       ontDomain,
			PrimaryCategory:     ontCategory,
			SynthesisConfidence: clamp01(ontScore),
			DecisionReasoning:   fmt.Sprintf("ontology dominates (%.2f vs %.2f)", ontScore, llmConf),
		}
	case llmConf > dominanceRatio*ontScore:
		return types.HybridClassification{
			PrimaryDomain:       llmDomain,
			PrimaryCategory:     aiDerivedCategory,
			SynthesisConfidence: llmConf,
			DecisionReasoning:   fmt.Sprintf("llm dominates (%.2f vs %.2f)", llmConf, ontScore),
		}
	case ontScore >= llmConf:
		return types.HybridClassification{
			PrimaryDomain:       ontDomain,
			PrimaryCategory:     ontCategory,
			SynthesisConfidence: clamp01((ontScore + llmConf) / 2),
			DecisionReasoning:   fmt.Sprintf("disagreement, ontology higher (%.2f vs %.2f)", ontScore, llmConf),
		}
	default:
		return types.HybridClassification{
			PrimaryDomain:       llmDomain,
			PrimaryCategory:     aiDerivedCategory,
			SynthesisConfidence: clamp01((ontScore + llmConf) / 2),
			DecisionReasoning:   fmt.Sprintf("disagreement, llm higher (%.2f vs %.2f)", llmConf, ontScore),
		}
	}
}

// ImportanceScore computes the stored importance in [0,1] from the analysis
// confidences, the context levels, and the extraction richness.
func ImportanceScore(r *types.MemoryRecord) float64 {
	score := importanceAIWeight*r.AIConfidence +
		importanceSynthesisWeight*r.Hybrid.SynthesisConfidence +
		importanceUrgencyWeight*levelWeight(r.AIContext.UrgencyLevel) +
		importanceImportanceWeight*levelWeight(r.AIContext.ImportanceLevel)

	score += min64(entityBonusPer*float64(len(r.AIExtractedEntities)), entityBonusCap)
	score += min64(relationBonusPer*float64(len(r.AIRelationships)), relationBonusCap)

	return clamp01(score)
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
