package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mindloom/mindloom/internal/index"
	"github.com/mindloom/mindloom/internal/llm"
	"github.com/mindloom/mindloom/pkg/types"
)

// Retrieval strategy limits. The direct strategies cast the widest net; the
// expansion strategies each contribute a few candidates per query.
const (
	earlyExitScore   = 0.7
	earlyExitResults = 3

	directLimit          = 8
	withUserLimit        = 8
	variationLimit       = 3
	maxVariations        = 2
	keyTermLimit         = 2
	maxKeyTerms          = 3
	personalContextLimit = 5
)

// semanticVariations maps canonical question heads to the statement forms
// users write the corresponding facts in.
var semanticVariations = map[string][]string{
	"name":       {"my name is", "call me", "i am called"},
	"work":       {"i work at", "my job", "my company"},
	"interests":  {"i like", "i enjoy", "my hobbies"},
	"background": {"my background", "my experience", "my education"},
	"skills":     {"my skills", "i can", "i know how to"},
	"goals":      {"my goal", "i want to", "i plan to"},
	"location":   {"i live in", "my city", "based in"},
	"projects":   {"my project", "working on", "i am building"},
}

// variationAliases fold common question words onto the canonical heads.
var variationAliases = map[string]string{
	"called":     "name",
	"job":        "work",
	"company":    "work",
	"employer":   "work",
	"hobby":      "interests",
	"hobbies":    "interests",
	"like":       "interests",
	"enjoy":      "interests",
	"education":  "background",
	"experience": "background",
	"skill":      "skills",
	"goal":       "goals",
	"live":       "location",
	"city":       "location",
	"project":    "projects",
}

// personalVocabulary is the fixed vocabulary the key-term strategy
// intersects the question with.
var personalVocabulary = map[string]bool{
	"name": true, "work": true, "job": true, "company": true, "role": true,
	"live": true, "location": true, "city": true,
	"hobby": true, "hobbies": true, "interests": true,
	"sport": true, "sports": true, "food": true,
	"skills": true, "education": true, "background": true,
	"project": true, "projects": true, "goal": true, "goals": true,
	"family": true, "email": true,
}

// Searcher is the slice of the index adapter the planner needs.
type Searcher interface {
	Search(ctx context.Context, query string, filter index.Filter, top int) ([]index.Result, error)
	MultiStrategySearch(ctx context.Context, queries []string, filter index.Filter, perQuery int) ([]index.Result, error)
	SearchPersonalInformation(ctx context.Context, userID, infoType string, perQuery int) ([]index.Result, error)
}

// RetrievedMemory is one candidate memory with its retrieval provenance.
type RetrievedMemory struct {
	Record    *types.MemoryRecord
	BaseScore float64

	// FromPersonalInfo marks results of the personal-context strategy; the
	// re-ranker weighs them up for personal questions.
	FromPersonalInfo bool
}

// Retrieval is the planner's output for one question.
type Retrieval struct {
	Plan      *llm.QuestionAnalysis
	Memories  []RetrievedMemory
	EarlyExit bool
}

// Planner turns a question into a retrieval plan and executes it as a
// sequence of search strategies against the index.
type Planner struct {
	searcher Searcher
	gen      llm.TextGenerator
}

// NewPlanner creates a planner. gen may be nil; planning then falls back to
// the question itself as the only search term.
func NewPlanner(searcher Searcher, gen llm.TextGenerator) *Planner {
	return &Planner{searcher: searcher, gen: gen}
}

// plan asks the model how to search for the question. Failures fall back to
// a keyword plan built from the question.
func (p *Planner) plan(ctx context.Context, question string) *llm.QuestionAnalysis {
	if p.gen == nil {
		return llm.ParseQuestionAnalysis("", question)
	}
	raw, err := p.gen.Complete(ctx, llm.BuildQuestionAnalysisPrompt(question))
	if err != nil {
		log.Printf("engine: question analysis failed, keyword fallback: %v", err)
		return llm.ParseQuestionAnalysis("", question)
	}
	return llm.ParseQuestionAnalysis(raw, question)
}

// Retrieve executes the strategy sequence for the question:
//
//  1. direct: the question verbatim, limit 8
//  2. with_user: the question prefixed with the user id, limit 8
//  3. semantic_variations: statement synonyms for up to two question heads,
//     limit 3 each
//  4. key_terms: question words from the personal-information vocabulary,
//     up to three, limit 2 each
//  5. personal_context: the per-type personal-fact query set, limit 5
//
// When the direct strategy alone returns at least three results with a
// strong top score, strategies 3 to 5 are skipped; strategy 2 always runs.
// Individual strategy failures are tolerated; Retrieve errors only when
// every strategy failed.
func (p *Planner) Retrieve(ctx context.Context, userID, question string) (*Retrieval, error) {
	plan := p.plan(ctx, question)
	filter := index.Filter{UserID: userID}

	var (
		merged   []RetrievedMemory
		seen     = make(map[string]bool)
		attempts int
		failures int
		lastErr  error
	)
	merge := func(results []index.Result, personal bool) {
		for _, res := range results {
			if seen[res.Record.ID] {
				continue
			}
			seen[res.Record.ID] = true
			merged = append(merged, RetrievedMemory{
				Record:           res.Record,
				BaseScore:        res.Score,
				FromPersonalInfo: personal,
			})
		}
	}
	run := func(results []index.Result, err error, personal bool) {
		attempts++
		if err != nil {
			failures++
			lastErr = err
			return
		}
		merge(results, personal)
	}

	// Strategy 1: the question verbatim. The early-exit decision is made on
	// this strategy's results alone.
	results, err := p.searcher.Search(ctx, question, filter, directLimit)
	run(results, err, false)
	exit := topBaseScore(merged) > earlyExitScore && len(merged) >= earlyExitResults

	// Strategy 2: the question prefixed with the user id.
	results, err = p.searcher.Search(ctx, userID+" "+question, filter, withUserLimit)
	run(results, err, false)

	if exit {
		return &Retrieval{Plan: plan, Memories: merged, EarlyExit: true}, nil
	}

	// Strategy 3: semantic variations of the question heads.
	for _, synonyms := range questionVariations(question) {
		results, err = p.searcher.MultiStrategySearch(ctx, synonyms, filter, variationLimit)
		run(results, err, false)
	}

	// Strategy 4: personal-vocabulary key terms.
	if terms := questionKeyTerms(question); len(terms) > 0 {
		results, err = p.searcher.MultiStrategySearch(ctx, terms, filter, keyTermLimit)
		run(results, err, false)
	}

	// Strategy 5: the personal-context query set for the question type.
	results, err = p.searcher.SearchPersonalInformation(ctx, userID, infoTypeFor(plan.QuestionType), personalContextLimit)
	run(results, err, true)

	if failures == attempts && len(merged) == 0 {
		return nil, fmt.Errorf("engine: all %d retrieval strategies failed: %w", failures, lastErr)
	}
	return &Retrieval{Plan: plan, Memories: merged}, nil
}

// questionVariations returns the synonym lists for up to two question heads
// found in the question, in question order.
func questionVariations(question string) [][]string {
	var out [][]string
	seen := make(map[string]bool)
	for _, w := range questionWords(question) {
		head := w
		if alias, ok := variationAliases[w]; ok {
			head = alias
		}
		synonyms, ok := semanticVariations[head]
		if !ok || seen[head] {
			continue
		}
		seen[head] = true
		out = append(out, synonyms)
		if len(out) == maxVariations {
			break
		}
	}
	return out
}

// questionKeyTerms intersects the question with the personal vocabulary,
// keeping at most three terms in question order.
func questionKeyTerms(question string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, w := range questionWords(question) {
		if !personalVocabulary[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
		if len(terms) == maxKeyTerms {
			break
		}
	}
	return terms
}

// infoTypeFor maps planner question types onto the store's personal-info
// query sets. Unmapped types take the broad default set.
func infoTypeFor(questionType string) string {
	switch questionType {
	case "identity", "work", "interests", "background":
		return questionType
	case "preference", "preferences":
		return "interests"
	default:
		return ""
	}
}

// questionWords splits the question into ordered lowercase words.
func questionWords(question string) []string {
	return strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func topBaseScore(memories []RetrievedMemory) float64 {
	var top float64
	for _, m := range memories {
		if m.BaseScore > top {
			top = m.BaseScore
		}
	}
	return top
}
