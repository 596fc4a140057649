package session

import "strings"

// Intent is the coarse classification of an incoming message that decides
// cache handling: corrections and updates invalidate the user's caches,
// questions and searches read through them.
type Intent string

const (
	IntentNew        Intent = "new"
	IntentUpdate     Intent = "update"
	IntentCorrection Intent = "correction"
	IntentSearch     Intent = "search"
	IntentQuestion   Intent = "question"
)

// MutatesMemory reports whether the intent writes or rewrites stored facts.
func (i Intent) MutatesMemory() bool {
	return i == IntentNew || i == IntentUpdate || i == IntentCorrection
}

var (
	correctionMarkers = []string{
		"actually,", "actually ", "that's wrong", "thats wrong", "i meant",
		"correction", "not anymore", "no longer", "i misspoke", "scratch that",
		"is not ", "isn't ", "isnt ",
	}
	updateMarkers = []string{
		"update:", "changed to", "change my", "is now", "from now on", "new number",
		"moved to", "switched to",
	}
	searchMarkers = []string{
		"find ", "search ", "show me", "look up", "list my",
	}
	questionWords = []string{
		"what", "where", "when", "who", "which", "how", "why", "do i", "did i", "am i",
	}
)

// ClassifyIntent applies ordered keyword rules. Corrections are checked
// before updates because correction phrasing often contains update wording
// too.
func ClassifyIntent(content string) Intent {
	lower := strings.ToLower(strings.TrimSpace(content))
	if lower == "" {
		return IntentNew
	}

	for _, m := range correctionMarkers {
		if strings.Contains(lower, m) {
			return IntentCorrection
		}
	}
	for _, m := range updateMarkers {
		if strings.Contains(lower, m) {
			return IntentUpdate
		}
	}
	for _, m := range searchMarkers {
		if strings.HasPrefix(lower, m) {
			return IntentSearch
		}
	}

	if strings.HasSuffix(lower, "?") {
		return IntentQuestion
	}
	for _, w := range questionWords {
		if strings.HasPrefix(lower, w+" ") {
			return IntentQuestion
		}
	}

	return IntentNew
}
