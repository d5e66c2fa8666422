package store

import (
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/entitystore/internal/core/models"
)

// queryCache memoizes ad hoc EntitiesWith lookups keyed by the exact kind
// tuple. Any structural mutation drops the whole cache. Systems keep their
// own incremental caches instead.
type queryCache struct {
	entries map[uint64][]*cachedQuery
	hits    uint64
	misses  uint64
}

type cachedQuery struct {
	kinds []models.Kind
	ids   []models.EntityID
	rows  [][]models.Component
}

func newQueryCache() *queryCache {
	return &queryCache{entries: make(map[uint64][]*cachedQuery)}
}

func (q *queryCache) invalidate() {
	if len(q.entries) == 0 {
		return
	}
	q.entries = make(map[uint64][]*cachedQuery)
}

func (q *queryCache) lookup(kinds []models.Kind) (*cachedQuery, uint64) {
	key := tupleKey(kinds)
	for _, entry := range q.entries[key] {
		if slices.Equal(entry.kinds, kinds) {
			q.hits++
			return entry, key
		}
	}
	q.misses++
	return nil, key
}

func (q *queryCache) store(key uint64, entry *cachedQuery) {
	q.entries[key] = append(q.entries[key], entry)
}

// tupleKey hashes an ordered kind tuple. Kinds are NUL separated so that
// ("ab","c") and ("a","bc") hash differently.
func tupleKey(kinds []models.Kind) uint64 {
	d := xxhash.New()
	for _, kind := range kinds {
		_, _ = d.WriteString(string(kind))
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// QueryStats reports query cache effectiveness since the store was created.
type QueryStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

func (s *Store) QueryStats() QueryStats {
	entries := 0
	for _, bucket := range s.queries.entries {
		entries += len(bucket)
	}
	return QueryStats{Hits: s.queries.hits, Misses: s.queries.misses, Entries: entries}
}

// EntitiesWith returns every live entity carrying all of kinds, in creation
// order. The result is a copy and may be modified by the caller.
func (s *Store) EntitiesWith(kinds ...models.Kind) ([]models.EntityID, error) {
	entry, err := s.query(kinds)
	if err != nil {
		return nil, err
	}
	return slices.Clone(entry.ids), nil
}

// EntitiesWithUnpacked is EntitiesWith returning, for each matching entity,
// its components in the requested kind order.
func (s *Store) EntitiesWithUnpacked(kinds ...models.Kind) ([][]models.Component, error) {
	entry, err := s.query(kinds)
	if err != nil {
		return nil, err
	}
	if entry.rows == nil {
		rows := make([][]models.Component, 0, len(entry.ids))
		for _, id := range entry.ids {
			if len(kinds) == 0 {
				rows = append(rows, []models.Component{})
				continue
			}
			row, err := s.GetComponents(id, kinds...)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		entry.rows = rows
	}

	out := make([][]models.Component, len(entry.rows))
	for i, row := range entry.rows {
		out[i] = slices.Clone(row)
	}
	return out, nil
}

func (s *Store) query(kinds []models.Kind) (*cachedQuery, error) {
	entry, key := s.queries.lookup(kinds)
	if entry != nil {
		return entry, nil
	}

	mask, err := s.reg.Mask(kinds...)
	if err != nil {
		return nil, err
	}
	entry = &cachedQuery{
		kinds: slices.Clone(kinds),
		ids:   s.Matching(mask),
	}
	s.queries.store(key, entry)
	return entry, nil
}
