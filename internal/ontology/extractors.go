package ontology

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mindloom/mindloom/pkg/types"
)

// Property extraction is rule-based on purpose: these extractors run on every
// ingestion before any LLM call and must be fast and deterministic. They only
// emit a key when a rule fires; absent keys mean "not found", never "".

var (
	nameRe     = regexp.MustCompile(`(?i)(?:my name is|call me|i am called|i'm called)\s+`)
	domainRe   = regexp.MustCompile(`\b[a-z0-9][a-z0-9-]*\.(?:com|org|net|edu|gov|io|dev)\b`)
	durationRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(min|mins|minutes|hour|hours|hr|hrs)\b`)
	amountRe   = regexp.MustCompile(`(?:\$|€|£)?\s?(\d+(?:[.,]\d{1,2})?)\b`)
	companyRe  = regexp.MustCompile(`(?i)\b(?:work(?:s|ing)?\s+(?:at|for)|employed\s+(?:at|by)|my company is)\s+`)
	locationRe = regexp.MustCompile(`(?i)\b(?:live in|living in|based in|located in|moved to)\s+`)
	roleRe     = regexp.MustCompile(`(?i)\bas\s+an?\s+([a-z][a-z -]{2,40}?)(?:\s+at\b|[.,!?]|$)`)
	roleIsRe   = regexp.MustCompile(`(?i)\bmy (?:role|job|position) is\s+([a-z][a-z -]{2,40}?)(?:[.,!?]|$)`)
	timeRe     = regexp.MustCompile(`\b(\d{1,2}:\d{2}\s*(?:am|pm|AM|PM)?|\d{1,2}\s*(?:am|pm|AM|PM))\b`)
	dateRe     = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	subjectRe  = regexp.MustCompile(`(?i)\b(?:don't like|dont like|hate|dislike|love|like|prefer|enjoy)\s+([a-z][a-z' ]{1,40}?)(?:[.,!?]|$)`)

	criticalWords = []string{"asap", "emergency", "immediately", "right now"}
	urgentWords   = []string{"urgent", "urgently", "critical", "time-sensitive"}
	dislikeWords  = []string{"don't like", "dont like", "hate", "dislike", "avoid", "can't stand"}
	likeWords     = []string{"love", "like", "prefer", "enjoy", "favorite", "favourite"}

	// relationWords maps relationship synonyms to the canonical relation value.
	relationWords = []string{
		"wife", "husband", "partner", "friend", "brother", "sister",
		"mother", "father", "mom", "dad", "son", "daughter", "colleague",
	}
)

// ExtractProperties applies the rule-based extractors for every property the
// concept declares and returns the values that were found.
func ExtractProperties(content string, concept *Concept) map[string]any {
	props := make(map[string]any)
	lower := strings.ToLower(content)

	for _, p := range concept.Properties {
		switch p.Name {
		case "name":
			if v := extractAfter(content, nameRe); v != "" {
				props["name"] = v
			}
		case "company":
			if v := extractAfter(content, companyRe); v != "" {
				props["company"] = v
			}
		case "role":
			if m := roleIsRe.FindStringSubmatch(content); m != nil {
				props["role"] = strings.TrimSpace(m[1])
			} else if m := roleRe.FindStringSubmatch(content); m != nil {
				props["role"] = strings.TrimSpace(m[1])
			}
		case "domain":
			if m := domainRe.FindString(lower); m != "" {
				props["domain"] = m
			}
		case "location":
			if v := extractAfter(content, locationRe); v != "" {
				props["location"] = v
			}
		case "urgency":
			if v := urgencyLevel(lower); v != "" {
				props["urgency"] = v
			}
		case "preference_type":
			if v := preferenceType(lower); v != "" {
				props["preference_type"] = v
			}
		case "subject":
			if m := subjectRe.FindStringSubmatch(lower); m != nil {
				props["subject"] = strings.TrimSpace(m[1])
			}
		case "duration_minutes":
			if v, ok := extractDurationMinutes(content); ok {
				props["duration_minutes"] = v
			}
		case "time":
			if m := timeRe.FindString(content); m != "" {
				props["time"] = m
			}
		case "amount":
			if m := amountRe.FindStringSubmatch(content); m != nil {
				if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
					props["amount"] = v
				}
			}
		case "relation":
			for _, rel := range relationWords {
				if containsWord(lower, rel) {
					props["relation"] = rel
					break
				}
			}
		case "person":
			if names := properRuns(content); len(names) > 0 {
				props["person"] = names[0]
			}
		}
	}

	return props
}

// urgencyLevel returns "critical" or "high" when an urgency keyword occurs,
// or "" otherwise. Keywords never lower urgency; medium/low are defaults
// applied elsewhere.
func urgencyLevel(lower string) string {
	for _, w := range criticalWords {
		if strings.Contains(lower, w) {
			return "critical"
		}
	}
	for _, w := range urgentWords {
		if strings.Contains(lower, w) {
			return "high"
		}
	}
	return ""
}

func preferenceType(lower string) string {
	for _, w := range dislikeWords {
		if strings.Contains(lower, w) {
			return "dislike"
		}
	}
	for _, w := range likeWords {
		if strings.Contains(lower, w) {
			return "like"
		}
	}
	return ""
}

// extractDurationMinutes parses the first "N minutes" / "N hours" span and
// normalizes to minutes.
func extractDurationMinutes(content string) (float64, bool) {
	m := durationRe.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "hour", "hours", "hr", "hrs":
		return n * 60, true
	default:
		return n, true
	}
}

// extractAfter finds the trigger phrase and returns the run of capitalized
// words that immediately follows it ("work at Helios Labs as..." yields
// "Helios Labs"). Returns "" when the trigger is absent or not followed by a
// proper-noun run.
func extractAfter(content string, trigger *regexp.Regexp) string {
	loc := trigger.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	return leadingProperRun(content[loc[1]:])
}

// leadingProperRun returns the capitalized-word run at the start of s.
func leadingProperRun(s string) string {
	var run []string
	for _, field := range strings.Fields(s) {
		w := strings.Trim(field, ".,!?;:\"()")
		if !isCapitalized(w) {
			break
		}
		run = append(run, w)
		if field != w {
			// Trailing punctuation ends the run.
			break
		}
	}
	return strings.Join(run, " ")
}

func isCapitalized(w string) bool {
	if w == "" {
		return false
	}
	first := w[0]
	return first >= 'A' && first <= 'Z'
}

func containsWord(lower, word string) bool {
	for _, field := range strings.Fields(lower) {
		if strings.Trim(field, ".,!?;:\"()") == word {
			return true
		}
	}
	return false
}

// sentenceStartWords are capitalized only because of their position and are
// skipped when they open a sentence.
var sentenceStartWords = map[string]bool{
	"i": true, "my": true, "the": true, "a": true, "an": true, "we": true,
	"it": true, "he": true, "she": true, "they": true, "this": true,
	"that": true, "our": true, "today": true, "tomorrow": true,
	"yesterday": true, "please": true, "urgent": true, "ok": true,
	"hi": true, "hello": true, "yes": true, "no": true, "meeting": true,
	"spent": true, "logged": true, "remember": true, "note": true,
	"dinner": true, "lunch": true,
}

var companySuffixes = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "corp": true,
	"corporation": true, "gmbh": true, "labs": true,
	"technologies": true, "systems": true, "co": true,
}

// ExtractEntities finds named entities with shallow rules: proper-noun runs
// become person or organization entities, clock times become time entities,
// and M/D/YYYY spans become date entities.
func ExtractEntities(content string) []types.Entity {
	var entities []types.Entity
	seen := make(map[string]bool)

	for _, run := range properRuns(content) {
		key := strings.ToLower(run)
		if seen[key] {
			continue
		}
		seen[key] = true

		typ := "person"
		words := strings.Fields(key)
		if companySuffixes[words[len(words)-1]] {
			typ = "organization"
		}
		entities = append(entities, types.Entity{Name: run, Type: typ})
	}

	for _, m := range timeRe.FindAllString(content, -1) {
		key := strings.ToLower(m)
		if !seen[key] {
			seen[key] = true
			entities = append(entities, types.Entity{Name: m, Type: "time"})
		}
	}
	for _, m := range dateRe.FindAllString(content, -1) {
		if !seen[m] {
			seen[m] = true
			entities = append(entities, types.Entity{Name: m, Type: "date"})
		}
	}

	return entities
}

// properRuns returns maximal runs of capitalized words, skipping words that
// are capitalized only because they open a sentence and skipping ALL-CAPS
// tokens (usually emphasis, not names).
func properRuns(content string) []string {
	fields := strings.Fields(content)
	var runs []string
	var run []string
	sentenceStart := true

	flush := func() {
		if len(run) > 0 {
			runs = append(runs, strings.Join(run, " "))
			run = nil
		}
	}

	for _, field := range fields {
		w := strings.Trim(field, ".,!?;:\"()")
		endsSentence := strings.ContainsAny(field, ".!?:")

		switch {
		case w == "" || w == "I" || !isCapitalized(w) || isAllCaps(w):
			flush()
		case sentenceStart && len(run) == 0 && sentenceStartWords[strings.ToLower(w)]:
			flush()
		default:
			run = append(run, w)
			if endsSentence {
				flush()
			}
		}

		sentenceStart = endsSentence
	}
	flush()

	return runs
}

func isAllCaps(w string) bool {
	if len(w) < 2 {
		return false
	}
	for i := 0; i < len(w); i++ {
		c := w[i]
		if c >= 'a' && c <= 'z' {
			return false
		}
	}
	return true
}
