package cnotes

import lru "github.com/hashicorp/golang-lru"

// RecordCache caches verified note log records by locator, so a
// reader replaying a long mutation history doesn't refetch and
// reverify traces it has already seen.  Only records that passed
// integrity verification are ever added.
type RecordCache interface {
	// Add caches a freshly-verified record.
	Add(key, value interface{})
	// Get retrieves the verified record for the given locator, if cached.
	Get(key interface{}) (value interface{}, ok bool)
}

// NewRecordCache creates a new LRU-based record cache of the given
// size.  One cache can be shared by any number of readers.
func NewRecordCache(size int) RecordCache {
	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}
	return cache
}
