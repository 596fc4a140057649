package ontology

import (
	"regexp"
	"sort"
	"strings"
)

// Classification is a single scored match of content against a concept,
// ordered by Score descending in the classifier output.
type Classification struct {
	ConceptID     string   `json:"concept_id"`
	ConceptName   string   `json:"concept_name"`
	Domain        string   `json:"domain"`
	Category      string   `json:"category"`
	Score         float64  `json:"score"`
	MatchedTerms  []string `json:"matched_terms,omitempty"`
	PropertyNames []string `json:"property_names,omitempty"`
}

// Scoring constants. These are part of the classifier contract: name matches
// weigh 1.0, synonyms 0.8 each, example overlap 0.6 scaled by the ratio of
// overlapping words to all example words, with a 1.5 multiplier when the
// overlap includes at least two multi-word terms.
const (
	nameMatchScore     = 1.0
	synonymMatchScore  = 0.8
	exampleMatchScore  = 0.6
	multiTermBonus     = 1.5
	workLexiconFactor  = 1.2
	companyTokenBonus  = 0.5
	durationTokenBonus = 0.5
	minScore           = 0.1
)

// conceptEmployment and conceptTimeTracking receive the additive boosts.
const (
	conceptEmployment   = "work.employment"
	conceptTimeTracking = "work.time_tracking"
)

var (
	// digitalWorkLexicon multiplies scores of work-domain concepts when the
	// content is plainly about digital/office activity.
	digitalWorkLexicon = []string{
		"email", "software", "computer", "code", "server", "website",
		"online", "app", "digital", "deploy", "bug", "ticket",
	}

	companyTokenRe  = regexp.MustCompile(`(?i)\b(inc|llc|ltd|corp|corporation|gmbh|labs|technologies|systems)\b`)
	durationTokenRe = regexp.MustCompile(`(?i)\b(\d+)\s*(min|mins|minutes|hour|hours|hr|hrs)\b`)

	// exampleStopwords are excluded from example-overlap scoring so that
	// filler words ("my", "is", "at") do not inflate unrelated concepts.
	exampleStopwords = map[string]bool{
		"a": true, "an": true, "the": true, "i": true, "my": true,
		"is": true, "are": true, "am": true, "to": true, "of": true,
		"on": true, "in": true, "at": true, "and": true, "for": true,
		"it": true, "this": true, "that": true, "with": true, "me": true,
	}
)

// Classifier scores content against the active catalog. It is total: it
// always returns a (possibly empty) slice and never an error.
type Classifier struct {
	store *Store
}

// NewClassifier creates a classifier bound to the given catalog store.
func NewClassifier(store *Store) *Classifier {
	return &Classifier{store: store}
}

// Classify scores the content against every concept and returns all
// classifications with score >= 0.1, sorted by score descending. Ties are
// broken by concept ID for deterministic output.
func (c *Classifier) Classify(content string) []Classification {
	cat := c.store.Catalog()
	lower := strings.ToLower(content)
	contentWords := wordSet(lower)

	hasWorkLexicon := containsAnyWord(contentWords, digitalWorkLexicon)
	hasCompanyToken := companyTokenRe.MatchString(content)
	hasDurationToken := durationTokenRe.MatchString(content)

	var results []Classification
	for i := range cat.Concepts() {
		concept := &cat.Concepts()[i]

		score := 0.0
		var matched []string

		if name := strings.ToLower(concept.Name); name != "" && strings.Contains(lower, name) {
			score += nameMatchScore
			matched = append(matched, concept.Name)
		}

		for _, syn := range concept.Synonyms {
			if s := strings.ToLower(syn); s != "" && strings.Contains(lower, s) {
				score += synonymMatchScore
				matched = append(matched, syn)
			}
		}

		for _, example := range concept.Examples {
			score += exampleOverlapScore(example, lower, contentWords)
		}

		// Documented boosts (rule-based, not learned).
		if concept.Domain == "work" && hasWorkLexicon {
			score *= workLexiconFactor
		}
		if concept.ID == conceptEmployment && hasCompanyToken {
			score += companyTokenBonus
			matched = append(matched, "company-token")
		}
		if concept.ID == conceptTimeTracking && hasDurationToken {
			score += durationTokenBonus
			matched = append(matched, "duration-token")
		}

		if score < minScore {
			continue
		}

		results = append(results, Classification{
			ConceptID:     concept.ID,
			ConceptName:   concept.Name,
			Domain:        concept.Domain,
			Category:      concept.Category,
			Score:         score,
			MatchedTerms:  matched,
			PropertyNames: concept.PropertyNames(),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ConceptID < results[j].ConceptID
	})

	return results
}

// Best returns the top classification, or nil when content matched nothing.
func (c *Classifier) Best(content string) *Classification {
	results := c.Classify(content)
	if len(results) == 0 {
		return nil
	}
	return &results[0]
}

// exampleOverlapScore computes the word-overlap contribution of one example
// phrase: 0.6 * |overlap| / |example words|, where the denominator counts
// every example word. Stopwords are still ignored on the overlap side so
// filler words do not count as matches. The 1.5 multiplier applies when at
// least two multi-word terms of the example appear contiguously in the
// content.
func exampleOverlapScore(example, contentLower string, contentWords map[string]bool) float64 {
	exampleWords := orderedWords(strings.ToLower(example))
	if len(exampleWords) == 0 {
		return 0
	}

	overlap := 0
	seen := make(map[string]bool, len(exampleWords))
	for _, w := range exampleWords {
		if seen[w] || exampleStopwords[w] {
			continue
		}
		seen[w] = true
		if contentWords[w] {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}

	score := exampleMatchScore * float64(overlap) / float64(len(exampleWords))

	multiTerms := 0
	for i := 0; i+1 < len(exampleWords); i++ {
		if strings.Contains(contentLower, exampleWords[i]+" "+exampleWords[i+1]) {
			multiTerms++
		}
	}
	if multiTerms >= 2 {
		score *= multiTermBonus
	}
	return score
}

// wordSet splits lowercase text into a set of words, trimming surrounding
// punctuation but keeping intra-word apostrophes ("don't").
func wordSet(lower string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range orderedWords(lower) {
		words[w] = true
	}
	return words
}

// orderedWords is wordSet keeping the original word order.
func orderedWords(lower string) []string {
	var words []string
	for _, field := range strings.Fields(lower) {
		w := strings.Trim(field, ".,!?;:\"()[]{}")
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

func containsAnyWord(contentWords map[string]bool, lexicon []string) bool {
	for _, w := range lexicon {
		if contentWords[w] {
			return true
		}
	}
	return false
}
