package index

import (
	"context"
	"fmt"
	"log"

	"github.com/mindloom/mindloom/internal/llm"
	"github.com/mindloom/mindloom/pkg/types"
)

// Bounds applied to every search regardless of what the caller asks for.
const (
	minTop = 1
	maxTop = 50

	minKNNCandidates = 1
	maxKNNCandidates = 1000

	minPerQuery = 1
	maxPerQuery = 20

	defaultTop           = 10
	defaultKNNCandidates = 100
	defaultPerQuery      = 5
)

// personalInfoQueries builds the fixed query set behind
// SearchPersonalInformation for one info type. Each phrase targets a way
// users state facts about themselves; the user id is woven into the broad
// queries so the vector side lands near that user's statements.
func personalInfoQueries(userID, infoType string) []string {
	switch infoType {
	case "identity":
		return []string{
			userID + " name called identity",
			"my name is",
			"call me",
			"i am",
			userID + " identity personal",
		}
	case "work":
		return []string{
			userID + " work job company employment",
			"i work at",
			"my job",
			"my company",
			"my role",
			userID + " work employment career",
		}
	case "interests":
		return []string{
			userID + " interests hobbies like enjoy",
			"i like",
			"i enjoy",
			"my interests",
			"my hobbies",
			userID + " preferences interests",
		}
	case "background":
		return []string{
			userID + " background experience education",
			"my background",
			"my experience",
			"i have",
			userID + " history background",
		}
	default:
		return []string{
			userID + " personal information",
			userID + " about me",
			userID,
			"personal information",
			"about me",
		}
	}
}

// Result is one record-level search result.
type Result struct {
	Record *types.MemoryRecord
	Score  float64
}

// Options tunes the adapter. Zero values take the defaults.
type Options struct {
	// KNNCandidates is how many nearest neighbors the vector side considers
	// before fusion. Clamped to [1,1000], default 100.
	KNNCandidates int
}

// Normalize applies defaults and bounds.
func (o *Options) Normalize() {
	if o.KNNCandidates == 0 {
		o.KNNCandidates = defaultKNNCandidates
	}
	o.KNNCandidates = clampInt(o.KNNCandidates, minKNNCandidates, maxKNNCandidates)
}

// Adapter owns the record/document projection and the embedding step, and
// delegates persistence to a Backend. Embedding failures degrade to
// lexical-only operation instead of failing the request.
type Adapter struct {
	backend  Backend
	embedder llm.EmbeddingGenerator
	opts     Options
}

// NewAdapter creates an adapter. embedder may be nil, which disables the
// vector side entirely.
func NewAdapter(backend Backend, embedder llm.EmbeddingGenerator, opts Options) *Adapter {
	opts.Normalize()
	return &Adapter{backend: backend, embedder: embedder, opts: opts}
}

// Upsert derives the search fields, embeds the searchable content, and
// writes the document. A failed embedding is logged and the record is stored
// lexical-only; it still participates in keyword search.
func (a *Adapter) Upsert(ctx context.Context, r *types.MemoryRecord) error {
	if r.ID == "" || r.UserID == "" {
		return fmt.Errorf("%w: record needs id and user_id", ErrInvalidInput)
	}

	r.DeriveSearchFields()

	if a.embedder != nil {
		vec, err := a.embedder.Embed(ctx, r.SearchableContent)
		if err != nil {
			log.Printf("index: embedding failed for %s, storing lexical-only: %v", r.ID, err)
		} else {
			r.ContentVector = vec
		}
	}

	doc, err := FromRecord(r)
	if err != nil {
		return err
	}
	return a.backend.Upsert(ctx, doc)
}

// Get fetches a single record by ID. Deactivated records read as not found,
// matching their absence from every search.
func (a *Adapter) Get(ctx context.Context, id string) (*types.MemoryRecord, error) {
	doc, err := a.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsActive {
		return nil, ErrNotFound
	}
	return doc.ToRecord()
}

// Delete deactivates a document. The row stays behind for audit; searches
// filter on is_active, so a deactivated record never surfaces again.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	doc, err := a.backend.Get(ctx, id)
	if err != nil {
		return err
	}
	if !doc.IsActive {
		return nil
	}
	doc.IsActive = false
	return a.backend.Upsert(ctx, doc)
}

// Search runs one hybrid query. top is clamped to [1,50]. A failed query
// embedding degrades to lexical-only search.
func (a *Adapter) Search(ctx context.Context, query string, filter Filter, top int) ([]Result, error) {
	if top == 0 {
		top = defaultTop
	}
	top = clampInt(top, minTop, maxTop)

	var vector []float32
	if a.embedder != nil && query != "" {
		vec, err := a.embedder.Embed(ctx, query)
		if err != nil {
			log.Printf("index: query embedding failed, lexical-only search: %v", err)
		} else {
			vector = vec
		}
	}

	hits, err := a.backend.Search(ctx, Query{
		Text:          query,
		Vector:        vector,
		Filter:        filter,
		Top:           top,
		KNNCandidates: a.opts.KNNCandidates,
	})
	if err != nil {
		return nil, err
	}

	return hitsToResults(hits)
}

// MultiStrategySearch runs each query in order, concatenating results and
// keeping the first occurrence of each record. perQuery is clamped to
// [1,20]. Individual query failures are tolerated; the call errors only when
// every query failed.
func (a *Adapter) MultiStrategySearch(ctx context.Context, queries []string, filter Filter, perQuery int) ([]Result, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	if perQuery == 0 {
		perQuery = defaultPerQuery
	}
	perQuery = clampInt(perQuery, minPerQuery, maxPerQuery)

	var (
		merged   []Result
		seen     = make(map[string]bool)
		failures int
		lastErr  error
	)
	for _, q := range queries {
		results, err := a.Search(ctx, q, filter, perQuery)
		if err != nil {
			failures++
			lastErr = err
			log.Printf("index: multi-strategy query %q failed: %v", q, err)
			continue
		}
		for _, res := range results {
			if seen[res.Record.ID] {
				continue
			}
			seen[res.Record.ID] = true
			merged = append(merged, res)
		}
	}

	if failures == len(queries) {
		return nil, fmt.Errorf("index: all %d queries failed: %w", failures, lastErr)
	}
	return merged, nil
}

// SearchPersonalInformation runs the fixed personal-fact query set for one
// user and info type (identity, work, interests, background; anything else
// takes the broad default set). Used to assemble answer context and to warm
// the profile cache.
func (a *Adapter) SearchPersonalInformation(ctx context.Context, userID, infoType string, perQuery int) ([]Result, error) {
	return a.MultiStrategySearch(ctx, personalInfoQueries(userID, infoType), Filter{UserID: userID}, perQuery)
}

func hitsToResults(hits []Hit) ([]Result, error) {
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec, err := h.Doc.ToRecord()
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Record: rec, Score: h.Score})
	}
	return results, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
