// Package cache holds the per-run asset search cache. Search results are
// keyed by asset name and domain so repeated lookups of the same check
// within a run hit the catalog once.
package cache

import (
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agentstation/dqsync/internal/collibra"
)

// Assets caches asset search results for the lifetime of one run.
type Assets struct {
	store  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewAssets creates an empty cache. Entries never expire; the cache is
// dropped with the run.
func NewAssets() *Assets {
	return &Assets{store: gocache.New(gocache.NoExpiration, 0)}
}

// Key is the cache key of a search by name within domainID. An empty
// domain means a search across all domains.
func Key(name, domainID string) string {
	if domainID == "" {
		return name
	}
	return name + ":" + domainID
}

// Get returns a cached search result.
func (a *Assets) Get(name, domainID string) (*collibra.AssetPage, bool) {
	v, ok := a.store.Get(Key(name, domainID))
	if !ok {
		a.misses.Add(1)
		return nil, false
	}
	a.hits.Add(1)
	return v.(*collibra.AssetPage), true
}

// Set stores a search result.
func (a *Assets) Set(name, domainID string, page *collibra.AssetPage) {
	a.store.Set(Key(name, domainID), page, gocache.NoExpiration)
}

// Remember stores each asset as the single result of a search by its name
// and domain, after it was created or updated.
func (a *Assets) Remember(assets []collibra.Asset) {
	for _, asset := range assets {
		a.Set(asset.Name, asset.Domain.ID, &collibra.AssetPage{
			Total:   1,
			Limit:   1,
			Results: []collibra.Asset{asset},
		})
	}
}

// Delete drops a cached search.
func (a *Assets) Delete(name, domainID string) {
	a.store.Delete(Key(name, domainID))
}

// Clear drops every entry.
func (a *Assets) Clear() {
	a.store.Flush()
}

// Stats reports cache usage.
type Stats struct {
	Items  int   `json:"items"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Stats returns current usage.
func (a *Assets) Stats() Stats {
	return Stats{
		Items:  a.store.ItemCount(),
		Hits:   a.hits.Load(),
		Misses: a.misses.Load(),
	}
}
