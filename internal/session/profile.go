package session

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mindloom/mindloom/internal/index"
	"github.com/mindloom/mindloom/pkg/types"
)

// Profile is the compact set of stable user facts extracted from their
// personal-information memories. It backs the fast-path answers for
// canonical questions without touching the LLM.
type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	Employer  string    `json:"employer,omitempty"`
	Role      string    `json:"role,omitempty"`
	Location  string    `json:"location,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Likes     []string  `json:"likes,omitempty"`
	Dislikes  []string  `json:"dislikes,omitempty"`
	Sports    []string  `json:"sports,omitempty"`
	Foods     []string  `json:"foods,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	// AssistantName is what the user told the assistant to call itself.
	AssistantName string `json:"assistant_name,omitempty"`
}

// Empty reports whether no fact was extracted.
func (p *Profile) Empty() bool {
	return p.Name == "" && p.Employer == "" && p.Role == "" &&
		p.Location == "" && p.Domain == "" && p.AssistantName == "" &&
		len(p.Likes) == 0 && len(p.Dislikes) == 0 &&
		len(p.Sports) == 0 && len(p.Foods) == 0
}

// Profile field names used by targeted invalidation.
const (
	FieldName          = "name"
	FieldEmployer      = "employer"
	FieldLocation      = "location"
	FieldPreference    = "preference"
	FieldSports        = "sports"
	FieldFood          = "food"
	FieldDomain        = "domain"
	FieldAssistantName = "assistant_name"
)

// The marker prefixes match case-insensitively; the capture groups stay
// case-sensitive so a capitalized run stops at the next lowercase word.
var (
	profileNameRe     = regexp.MustCompile(`(?i:my name is|call me|i am called)\s+([A-Z][\w'-]*)`)
	profileEmployerRe = regexp.MustCompile(`(?i:work(?:s|ing)?\s+(?:at|for)|employed\s+(?:at|by))\s+([A-Z][\w&.-]*(?:\s+[A-Z][\w&.-]*)*)`)
	profileRoleRe     = regexp.MustCompile(`(?i)(?:\bas an?\s+|my (?:role|job|position) is\s+)([a-z][a-z -]{2,40}?)(?:\s+at\b|[.,!?]|$)`)
	profileLocationRe = regexp.MustCompile(`(?i:live in|living in|based in|moved to)\s+([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)`)
	profileLikeRe     = regexp.MustCompile(`(?i)\bi (?:like|love|enjoy)\s+([a-z][a-z' ]{1,40}?)(?:[.,!?]|$)`)
	profileDislikeRe  = regexp.MustCompile(`(?i)\bi (?:don't like|dont like|hate|dislike)\s+([a-z][a-z' ]{1,40}?)(?:[.,!?]|$)`)
	profilePlayRe     = regexp.MustCompile(`(?i)\bi play\s+([a-zA-Z][a-zA-Z' ]{1,40}?)(?:[.,!?]|$)`)
	profileDomainRe   = regexp.MustCompile(`(?i:my (?:domain|website|site) is)\s+((?:[a-z0-9-]+\.)+[a-z]{2,})`)

	// The capital-start capture skips over negations like "your name is not
	// Aria" and lands on the corrected name instead.
	assistantNameRe = regexp.MustCompile(`(?i:call yourself|your name is(?:\s+now)?)\s+([A-Z][\w'-]*)`)
)

// sportsLexicon and foodLexicon decide whether a liked or played thing
// lands in the sports or foods list alongside the generic likes.
var sportsLexicon = map[string]bool{
	"tennis": true, "soccer": true, "football": true, "basketball": true,
	"baseball": true, "volleyball": true, "golf": true, "running": true,
	"swimming": true, "cycling": true, "climbing": true, "hiking": true,
	"yoga": true, "chess": true, "badminton": true, "cricket": true,
}

var foodLexicon = map[string]bool{
	"pizza": true, "sushi": true, "pasta": true, "ramen": true,
	"tacos": true, "curry": true, "salad": true, "burgers": true,
	"chocolate": true, "ice cream": true, "thai food": true,
	"italian food": true, "indian food": true, "mexican food": true,
}

// fieldLexicons map content keywords to the profile field they touch, so a
// correction about one fact only invalidates that fact.
var fieldLexicons = map[string][]string{
	FieldName:          {"name", "call me", "called"},
	FieldEmployer:      {"work", "job", "employer", "company", "role", "position"},
	FieldLocation:      {"live", "living", "moved", "city", "based in"},
	FieldPreference:    {"like", "love", "hate", "dislike", "favorite", "prefer", "enjoy"},
	FieldSports:        {"sport", "sports", "play"},
	FieldFood:          {"food", "eat", "dish", "cuisine"},
	FieldDomain:        {"domain", "website", "site"},
	FieldAssistantName: {"your name", "call yourself"},
}

// DetectProfileFields returns the profile fields the content talks about.
func DetectProfileFields(content string) []string {
	lower := strings.ToLower(content)
	var fields []string
	for _, field := range []string{
		FieldName, FieldEmployer, FieldLocation, FieldPreference,
		FieldSports, FieldFood, FieldDomain, FieldAssistantName,
	} {
		for _, kw := range fieldLexicons[field] {
			if strings.Contains(lower, kw) {
				fields = append(fields, field)
				break
			}
		}
	}
	return fields
}

// BuildProfile folds personal-information records into a profile. Records
// are applied newest first; an already-set field is never overwritten, so
// the most recent statement of each fact wins.
func BuildProfile(userID string, records []*types.MemoryRecord) *Profile {
	sorted := make([]*types.MemoryRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	p := &Profile{UserID: userID, UpdatedAt: time.Now().UTC()}
	seenLike := make(map[string]bool)
	seenDislike := make(map[string]bool)
	seenSport := make(map[string]bool)
	seenFood := make(map[string]bool)

	addSport := func(term string) {
		if !seenSport[term] {
			seenSport[term] = true
			p.Sports = append(p.Sports, term)
		}
	}
	addFood := func(term string) {
		if !seenFood[term] {
			seenFood[term] = true
			p.Foods = append(p.Foods, term)
		}
	}

	for _, r := range sorted {
		if !r.IsActive {
			continue
		}

		// Extracted ontology properties are more reliable than re-running
		// the regexes; fall back to the content when they are absent.
		if p.Name == "" {
			if v, ok := r.OntologyProperties["name"].(string); ok && v != "" {
				p.Name = v
			} else if m := profileNameRe.FindStringSubmatch(r.Content); m != nil {
				p.Name = m[1]
			}
		}
		if p.Employer == "" {
			if v, ok := r.OntologyProperties["company"].(string); ok && v != "" {
				p.Employer = v
			} else if m := profileEmployerRe.FindStringSubmatch(r.Content); m != nil {
				p.Employer = strings.TrimSpace(m[1])
			}
		}
		if p.Role == "" {
			if v, ok := r.OntologyProperties["role"].(string); ok && v != "" {
				p.Role = v
			} else if m := profileRoleRe.FindStringSubmatch(r.Content); m != nil {
				p.Role = strings.TrimSpace(m[1])
			}
		}
		if p.Location == "" {
			if v, ok := r.OntologyProperties["location"].(string); ok && v != "" {
				p.Location = v
			} else if m := profileLocationRe.FindStringSubmatch(r.Content); m != nil {
				p.Location = strings.TrimSpace(m[1])
			}
		}
		if p.Domain == "" {
			if m := profileDomainRe.FindStringSubmatch(r.Content); m != nil {
				p.Domain = strings.ToLower(m[1])
			}
		}
		if p.AssistantName == "" {
			if m := assistantNameRe.FindStringSubmatch(r.Content); m != nil {
				p.AssistantName = m[1]
			}
		}

		for _, m := range profileLikeRe.FindAllStringSubmatch(r.Content, -1) {
			like := strings.ToLower(strings.TrimSpace(m[1]))
			if like == "" {
				continue
			}
			if !seenLike[like] {
				seenLike[like] = true
				p.Likes = append(p.Likes, like)
			}
			if sportsLexicon[like] {
				addSport(like)
			}
			if foodLexicon[like] {
				addFood(like)
			}
		}
		for _, m := range profilePlayRe.FindAllStringSubmatch(r.Content, -1) {
			// The capture can span a whole clause; only the lexicon words in
			// it are sports.
			for _, w := range strings.Fields(strings.ToLower(m[1])) {
				if sportsLexicon[w] {
					addSport(w)
				}
			}
		}
		for _, m := range profileDislikeRe.FindAllStringSubmatch(r.Content, -1) {
			dislike := strings.ToLower(strings.TrimSpace(m[1]))
			if dislike != "" && !seenDislike[dislike] {
				seenDislike[dislike] = true
				p.Dislikes = append(p.Dislikes, dislike)
			}
		}
	}

	return p
}

// PersonalSearcher is the slice of the index adapter the profile service
// needs.
type PersonalSearcher interface {
	SearchPersonalInformation(ctx context.Context, userID, infoType string, perQuery int) ([]index.Result, error)
}

// profileInfoTypes are the personal-information query sets a profile is
// built from.
var profileInfoTypes = []string{"identity", "work", "interests"}

// ProfileService caches extracted profiles with the session TTL and warms
// them in the background after ingestions.
type ProfileService struct {
	searcher PersonalSearcher
	cache    *expirable.LRU[string, *Profile]
	perQuery int
}

// NewProfileService creates the service. ttl <= 0 takes the default.
func NewProfileService(searcher PersonalSearcher, ttl time.Duration) *ProfileService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProfileService{
		searcher: searcher,
		cache:    expirable.NewLRU[string, *Profile](defaultCacheSize, nil, ttl),
		perQuery: 5,
	}
}

// Get returns the user's profile, building and caching it on a miss.
func (s *ProfileService) Get(ctx context.Context, userID string) (*Profile, error) {
	if p, ok := s.cache.Get(userID); ok {
		return p, nil
	}

	seen := make(map[string]bool)
	var records []*types.MemoryRecord
	for _, infoType := range profileInfoTypes {
		results, err := s.searcher.SearchPersonalInformation(ctx, userID, infoType, s.perQuery)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			if seen[res.Record.ID] {
				continue
			}
			seen[res.Record.ID] = true
			records = append(records, res.Record)
		}
	}

	p := BuildProfile(userID, records)
	s.cache.Add(userID, p)
	return p, nil
}

// Warm rebuilds the profile in the background, replacing any cached copy.
func (s *ProfileService) Warm(userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		s.cache.Remove(userID)
		if _, err := s.Get(ctx, userID); err != nil {
			log.Printf("session: profile warm for %s failed: %v", userID, err)
		}
	}()
}

// Invalidate drops the cached profile so the next Get rebuilds it. With
// fields given, the entry is dropped only when the cached profile carries
// one of those fields; a correction about an unrelated fact keeps the
// cache warm.
func (s *ProfileService) Invalidate(userID string, fields []string) {
	if len(fields) == 0 {
		s.cache.Remove(userID)
		return
	}
	p, ok := s.cache.Get(userID)
	if !ok {
		return
	}
	for _, f := range fields {
		if profileHasField(p, f) {
			s.cache.Remove(userID)
			return
		}
	}
}

func profileHasField(p *Profile, field string) bool {
	switch field {
	case FieldName:
		return p.Name != ""
	case FieldEmployer:
		return p.Employer != "" || p.Role != ""
	case FieldLocation:
		return p.Location != ""
	case FieldPreference:
		return len(p.Likes) > 0 || len(p.Dislikes) > 0
	case FieldSports:
		return len(p.Sports) > 0
	case FieldFood:
		return len(p.Foods) > 0
	case FieldDomain:
		return p.Domain != ""
	case FieldAssistantName:
		return p.AssistantName != ""
	}
	return false
}
