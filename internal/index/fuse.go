package index

import "sort"

// rrfK is the reciprocal rank fusion constant (a well-tuned default).
const rrfK = 60.0

// Ranked is a backend-side candidate with its per-side score: cosine
// similarity for the vector side, reciprocal rank for the lexical side.
// Both are in [0,1].
type Ranked struct {
	Doc   *Document
	Score float64
}

// Fuse merges the lexical and vector candidate lists. Ordering uses RRF over
// the two rank lists; the reported score is the stronger of the two sides so
// callers always get a value in [0,1]. Ties break by document ID for
// deterministic output.
func Fuse(lexical, vector []Ranked, top int) []Hit {
	type fused struct {
		doc   *Document
		rrf   float64
		score float64
	}
	byID := make(map[string]*fused)

	add := func(list []Ranked) {
		for rank, r := range list {
			f, ok := byID[r.Doc.ID]
			if !ok {
				f = &fused{doc: r.Doc}
				byID[r.Doc.ID] = f
			}
			f.rrf += 1.0 / (rrfK + float64(rank+1))
			if r.Score > f.score {
				f.score = r.Score
			}
		}
	}
	add(lexical)
	add(vector)

	ranked := make([]*fused, 0, len(byID))
	for _, f := range byID {
		ranked = append(ranked, f)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].rrf != ranked[j].rrf {
			return ranked[i].rrf > ranked[j].rrf
		}
		return ranked[i].doc.ID < ranked[j].doc.ID
	})

	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	hits := make([]Hit, len(ranked))
	for i, f := range ranked {
		hits[i] = Hit{Doc: f.doc, Score: f.score}
	}
	return hits
}
