// Package cache provides the bounded LRU cache used by shader engines to keep
// compiled programs keyed by source digest.
//
//	programs := cache.New[cache.Digest, *Program](64)
//	prog, err := programs.Load(cache.DigestOf(code), func() (*Program, error) {
//	    return compile(code)
//	})
//
// Load calls the constructor at most once per key while the entry stays
// resident; a failing constructor stores nothing, so the next Load retries.
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
