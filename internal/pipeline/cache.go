package pipeline

import "github.com/rs/zerolog"

// boundedCache caches per-article values for the lifetime of one
// processor instance. When the entry count reaches maxEntries the
// whole cache is cleared rather than evicting LRU-style; the reset is
// cheap and keeps the memory bound strict.
type boundedCache[V any] struct {
	entries    map[int64]V
	maxEntries int
	name       string
	logger     zerolog.Logger
}

func newBoundedCache[V any](name string, maxEntries int, logger zerolog.Logger) *boundedCache[V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &boundedCache[V]{
		entries:    make(map[int64]V),
		maxEntries: maxEntries,
		name:       name,
		logger:     logger,
	}
}

func (c *boundedCache[V]) get(key int64) (V, bool) {
	value, ok := c.entries[key]
	return value, ok
}

func (c *boundedCache[V]) set(key int64, value V) {
	if len(c.entries) >= c.maxEntries {
		c.logger.Warn().
			Str("cache", c.name).
			Int("size", len(c.entries)).
			Int("max", c.maxEntries).
			Msg("cache full, clearing")
		c.entries = make(map[int64]V)
	}
	c.entries[key] = value
}
