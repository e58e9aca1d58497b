package cache

// Option is a minimal Option type: call sites test Valid before using Value,
// matching the source's usage of a functional Option rather than a nil
// pointer (which would collide with legitimate zero values).
type Option[T any] struct {
	Value T
	Valid bool
}

func Some[T any](v T) Option[T] { return Option[T]{Value: v, Valid: true} }
func None[T any]() Option[T]    { var z T; return Option[T]{Value: z, Valid: false} }

// WithOptionCaching performs a single cache-aside read: a hit short-circuits
// loadFn; a miss calls loadFn, and a found result is cached before return.
func WithOptionCaching[V Keyed](c *Cache[V], id int64, loadFn func() (V, bool, error)) (Option[V], error) {
	if v, ok := c.Get(id); ok {
		return Some(v), nil
	}
	v, found, err := loadFn()
	if err != nil {
		return None[V](), err
	}
	if !found {
		return None[V](), nil
	}
	c.Add(v)
	return Some(v), nil
}

// WithUpdatingCache reads the current value (cache-aside via retrieveFn),
// applies updateFn, persists+caches the result, and returns it. Used for the
// read -> transform -> write-through pattern repositories need for mutating
// endpoints that must keep the cache coherent with the write.
func WithUpdatingCache[V Keyed](c *Cache[V], id int64, retrieveFn func() (V, bool, error), updateFn func(V) (V, error)) (Option[V], error) {
	current, err := WithOptionCaching(c, id, retrieveFn)
	if err != nil {
		return None[V](), err
	}
	if !current.Valid {
		return None[V](), nil
	}
	updated, err := updateFn(current.Value)
	if err != nil {
		return None[V](), err
	}
	c.Add(updated)
	return Some(updated), nil
}

// WithIDListCaching partitions ids into cache hits and misses, bulk-loads
// only the misses via loadFn, adds every loaded value to the cache, and
// returns the full result set in no particular order.
func WithIDListCaching[V Keyed](c *Cache[V], ids []int64, loadFn func(missing []int64) ([]V, error)) ([]V, error) {
	result := make([]V, 0, len(ids))
	missing := make([]int64, 0, len(ids))

	for _, id := range ids {
		if v, ok := c.Get(id); ok {
			result = append(result, v)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	loaded, err := loadFn(missing)
	if err != nil {
		return nil, err
	}
	for _, v := range loaded {
		c.Add(v)
		result = append(result, v)
	}
	return result, nil
}

// WithCacheIDDeletion invalidates ids before running fn, so fn (typically a
// delete or an update that changes the identity of cached data) never races
// a reader repopulating a now-stale entry.
func WithCacheIDDeletion[V Keyed](c *Cache[V], ids []int64, fn func() error) error {
	for _, id := range ids {
		c.Remove(id)
	}
	return fn()
}
