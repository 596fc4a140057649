// Package session holds the per-user short-term layer: TTL caches over
// analysis and search, the extracted user profile with its fast-path answer
// templates, and the intent rules that drive cache invalidation.
package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mindloom/mindloom/internal/index"
	"github.com/mindloom/mindloom/internal/llm"
)

// Cache sizing. TTL is five minutes across all caches; entries also fall out
// by LRU pressure.
const (
	DefaultTTL       = 5 * time.Minute
	defaultCacheSize = 1024
)

// Caches bundles the analysis and search caches. Keys embed the user ID so
// invalidation can target one user without touching the rest.
type Caches struct {
	analysis *expirable.LRU[string, *llm.Analysis]
	search   *expirable.LRU[string, []index.Result]
}

// NewCaches creates the cache set. ttl <= 0 takes the default.
func NewCaches(ttl time.Duration) *Caches {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Caches{
		analysis: expirable.NewLRU[string, *llm.Analysis](defaultCacheSize, nil, ttl),
		search:   expirable.NewLRU[string, []index.Result](defaultCacheSize, nil, ttl),
	}
}

// AnalysisKey builds the analysis cache key. Identical content from the same
// user reuses the cached analysis.
func AnalysisKey(userID, content string) string {
	return userID + "|" + content
}

// SearchKey builds the search cache key from everything that affects the
// result set.
func SearchKey(userID, query string, filter index.Filter, top int) string {
	return userID + "|" + query + "|" + filter.String() + "|" + strconv.Itoa(top)
}

// GetAnalysis returns the cached analysis for the key, if any.
func (c *Caches) GetAnalysis(key string) (*llm.Analysis, bool) {
	return c.analysis.Get(key)
}

// PutAnalysis caches an analysis.
func (c *Caches) PutAnalysis(key string, a *llm.Analysis) {
	c.analysis.Add(key, a)
}

// GetSearch returns the cached result set for the key, if any.
func (c *Caches) GetSearch(key string) ([]index.Result, bool) {
	return c.search.Get(key)
}

// PutSearch caches a result set.
func (c *Caches) PutSearch(key string, results []index.Result) {
	c.search.Add(key, results)
}

// InvalidateUser drops every cached search result and analysis belonging to
// the user. Called when an ingestion changes what their searches would
// return.
func (c *Caches) InvalidateUser(userID string) {
	prefix := userID + "|"
	for _, key := range c.search.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.search.Remove(key)
		}
	}
	for _, key := range c.analysis.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.analysis.Remove(key)
		}
	}
}

// Purge empties both caches.
func (c *Caches) Purge() {
	c.analysis.Purge()
	c.search.Purge()
}
