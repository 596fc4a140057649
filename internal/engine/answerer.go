package engine

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/mindloom/mindloom/internal/llm"
	"github.com/mindloom/mindloom/internal/session"
)

// Re-ranking weights. Base retrieval score and the personal-info signal
// carry the most weight; the rest nudge ties toward well-understood,
// important, recent memories.
const (
	rerankBaseWeight       = 0.3
	rerankPersonalWeight   = 0.3
	rerankNameMatchWeight  = 0.2
	rerankDomainWeight     = 0.15
	rerankAIConfWeight     = 0.1
	rerankImportanceWeight = 0.1

	tagOverlapBonus = 0.05
	tagOverlapCap   = 0.2
	recencyBonus    = 0.05
	recencyWindow   = 7 * 24 * time.Hour

	// The model's relevance rating, folded in for the top candidates only.
	rerankRelevanceWeight = 0.2
	relevanceTopN         = 3

	relevanceFloor     = 0.3
	minSurvivors       = 3
	maxComposeMemories = 10
)

// personalMarkers is the first-person pronoun/possessive lexicon behind the
// personal-info signal. Each marker is matched against the space-padded
// lowercase content so it only hits at word starts.
var personalMarkers = []string{
	" my ", " i am", " i'm", " i was", " i have", " i work", " i live",
	" i like", " i love", " i enjoy", " call me", " mine",
}

// personalStatement reports whether the content reads as a first-person
// statement about the user.
func personalStatement(content string) bool {
	lower := " " + strings.ToLower(content)
	for _, m := range personalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Answer is the outcome of one question.
type Answer struct {
	Text       string        `json:"text"`
	MemoryIDs  []string      `json:"memory_ids,omitempty"`
	Confidence float64       `json:"confidence"`
	Outcome    AnswerOutcome `json:"outcome"`

	// Degraded marks answers composed without the LLM after a completion
	// failure.
	Degraded bool `json:"degraded,omitempty"`
}

// Answerer re-ranks retrieved memories and synthesizes an answer from the
// survivors. A failed completion degrades to quoting the best memory.
type Answerer struct {
	gen      llm.TextGenerator
	searcher Searcher
}

// NewAnswerer creates an answerer. gen may be nil; every answer then takes
// the degraded extractive path. searcher may be nil, which disables the
// personal-fact backfill for thin candidate sets.
func NewAnswerer(gen llm.TextGenerator, searcher Searcher) *Answerer {
	return &Answerer{gen: gen, searcher: searcher}
}

// scored pairs a retrieved memory with its re-ranked score.
type scored struct {
	RetrievedMemory
	Final float64
}

// rerank scores every candidate against the question and plan, drops the
// ones below the relevance floor, and returns the rest best first.
func rerank(memories []RetrievedMemory, question string, plan *llm.QuestionAnalysis, now time.Time) []scored {
	questionWords := tokenize(question)

	var planDomain string
	var planTerms []string
	if plan != nil {
		planDomain = strings.ToLower(plan.Domain)
		planTerms = plan.SearchTerms
	}

	out := make([]scored, 0, len(memories))
	for _, m := range memories {
		r := m.Record

		personal := 0.0
		if personalStatement(r.Content) || m.FromPersonalInfo {
			personal = 1.0
		}

		nameMatch := 0.0
		for _, e := range r.AIExtractedEntities {
			if questionWords[strings.ToLower(e.Name)] {
				nameMatch = 1.0
				break
			}
		}

		domainMatch := 0.0
		if planDomain != "" && strings.ToLower(r.Hybrid.PrimaryDomain) == planDomain {
			domainMatch = 1.0
		}

		final := rerankBaseWeight*clamp01(m.BaseScore) +
			rerankPersonalWeight*personal +
			rerankNameMatchWeight*nameMatch +
			rerankDomainWeight*domainMatch +
			rerankAIConfWeight*r.AIConfidence +
			rerankImportanceWeight*r.ImportanceScore

		tagMatches := 0
		for _, term := range planTerms {
			if r.HasTag(term) {
				tagMatches++
			}
		}
		final += min64(tagOverlapBonus*float64(tagMatches), tagOverlapCap)

		if now.Sub(r.Timestamp) < recencyWindow {
			final += recencyBonus
		}

		if final <= relevanceFloor {
			continue
		}
		out = append(out, scored{RetrievedMemory: m, Final: final})
	}

	sortScored(out)
	return out
}

func sortScored(ranked []scored) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Final != ranked[j].Final {
			return ranked[i].Final > ranked[j].Final
		}
		return ranked[i].Record.ID < ranked[j].Record.ID
	})
}

// Compose builds the final answer from the retrieval. profile may be nil;
// when present its facts are appended as extra context memories so the
// model can resolve references like "my company".
func (ans *Answerer) Compose(ctx context.Context, userID, question string, ret *Retrieval, profile *session.Profile) *Answer {
	now := time.Now().UTC()
	ranked := rerank(ret.Memories, question, ret.Plan, now)

	// A thin survivor set pulls in the personal-fact queries for the
	// question type and re-ranks the union.
	if len(ranked) < minSurvivors && ans.searcher != nil {
		if extra := ans.personalBackfill(ctx, userID, ret); len(extra) > 0 {
			union := make([]RetrievedMemory, 0, len(ret.Memories)+len(extra))
			union = append(union, ret.Memories...)
			union = append(union, extra...)
			ranked = rerank(union, question, ret.Plan, now)
		}
	}

	ranked = ans.assessRelevance(ctx, question, ranked)
	if len(ranked) > maxComposeMemories {
		ranked = ranked[:maxComposeMemories]
	}

	if len(ranked) == 0 {
		return &Answer{Text: llm.NoAnswerSentinel, Outcome: AnswerNone}
	}

	ids := make([]string, len(ranked))
	texts := make([]string, 0, len(ranked)+1)
	for i, s := range ranked {
		ids[i] = s.Record.ID
		texts = append(texts, s.Record.Content)
	}
	if facts := profileFacts(profile); facts != "" {
		texts = append(texts, facts)
	}

	if ans.gen == nil {
		return degradedAnswer(ranked, ids)
	}

	raw, err := ans.gen.Complete(ctx, llm.BuildAnswerPrompt(question, texts))
	if err != nil {
		log.Printf("engine: answer completion failed, extractive fallback: %v", err)
		return degradedAnswer(ranked, ids)
	}

	text := cleanAnswer(raw)
	if text == "" || strings.Contains(text, llm.NoAnswerSentinel) {
		return &Answer{Text: llm.NoAnswerSentinel, MemoryIDs: ids, Outcome: AnswerNone}
	}

	return &Answer{
		Text:       text,
		MemoryIDs:  ids,
		Confidence: ranked[0].Final,
		Outcome:    AnswerViaLLM,
	}
}

// personalBackfill fetches personal-fact candidates not already retrieved.
func (ans *Answerer) personalBackfill(ctx context.Context, userID string, ret *Retrieval) []RetrievedMemory {
	infoType := ""
	if ret.Plan != nil {
		infoType = infoTypeFor(ret.Plan.QuestionType)
	}
	results, err := ans.searcher.SearchPersonalInformation(ctx, userID, infoType, personalContextLimit)
	if err != nil {
		log.Printf("engine: personal-info backfill failed: %v", err)
		return nil
	}

	seen := make(map[string]bool, len(ret.Memories))
	for _, m := range ret.Memories {
		seen[m.Record.ID] = true
	}
	var extra []RetrievedMemory
	for _, res := range results {
		if seen[res.Record.ID] {
			continue
		}
		seen[res.Record.ID] = true
		extra = append(extra, RetrievedMemory{
			Record:           res.Record,
			BaseScore:        res.Score,
			FromPersonalInfo: true,
		})
	}
	return extra
}

// assessRelevance asks the model to rate the top candidates against the
// question and folds the rating into their scores. Rating failures leave
// the heuristic order in place.
func (ans *Answerer) assessRelevance(ctx context.Context, question string, ranked []scored) []scored {
	if ans.gen == nil || len(ranked) == 0 {
		return ranked
	}
	n := relevanceTopN
	if n > len(ranked) {
		n = len(ranked)
	}

	adjusted := false
	for i := 0; i < n; i++ {
		raw, err := ans.gen.Complete(ctx, llm.BuildRelevancePrompt(question, ranked[i].Record.Content))
		if err != nil {
			log.Printf("engine: relevance assessment failed: %v", err)
			break
		}
		rel, err := llm.ParseRelevance(raw)
		if err != nil {
			log.Printf("engine: relevance parse failed: %v", err)
			continue
		}
		ranked[i].Final += rerankRelevanceWeight * rel
		adjusted = true
	}
	if adjusted {
		sortScored(ranked)
	}
	return ranked
}

// degradedAnswer quotes the best memory when no model is available.
func degradedAnswer(ranked []scored, ids []string) *Answer {
	return &Answer{
		Text:       "From your memories: " + ranked[0].Record.Content,
		MemoryIDs:  ids,
		Confidence: ranked[0].Final,
		Outcome:    AnswerDegraded,
		Degraded:   true,
	}
}

// profileFacts renders the profile as one context line for the prompt.
func profileFacts(p *session.Profile) string {
	if p == nil || p.Empty() {
		return ""
	}
	var parts []string
	if p.Name != "" {
		parts = append(parts, "the user's name is "+p.Name)
	}
	if p.Employer != "" {
		parts = append(parts, "they work at "+p.Employer)
	}
	if p.Role != "" {
		parts = append(parts, "their role is "+p.Role)
	}
	if p.Location != "" {
		parts = append(parts, "they live in "+p.Location)
	}
	if p.AssistantName != "" {
		parts = append(parts, "the assistant's name is "+p.AssistantName)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Known facts: " + strings.Join(parts, "; ") + "."
}

// answerPreambles are boilerplate openers models add despite the prompt.
var answerPreambles = []string{
	"based on your memories,",
	"based on the memories,",
	"based on the provided memories,",
	"according to your memories,",
	"according to the memories,",
	"answer:",
}

// cleanAnswer trims whitespace, fences, and boilerplate preambles.
func cleanAnswer(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	lower := strings.ToLower(text)
	for _, p := range answerPreambles {
		if strings.HasPrefix(lower, p) {
			text = strings.TrimSpace(text[len(p):])
			if text != "" {
				text = strings.ToUpper(text[:1]) + text[1:]
			}
			break
		}
	}
	return text
}

// tokenize lowercases and splits on non-letter boundaries, returning a set.
func tokenize(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	}) {
		w = strings.Trim(w, "'")
		if w != "" {
			words[w] = true
		}
	}
	return words
}
