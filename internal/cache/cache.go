// Package cache holds time-boxed values keyed by query shape. Entries expire
// after a TTL or when the business date rolls over, whichever comes first.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"goldchecker/internal/gold"
)

// ErrNoValue is returned when a refresh fails and nothing is cached.
var ErrNoValue = errors.New("cache: no value")

// DefaultRefreshTimeout bounds a shared refresh when Options leave it unset.
const DefaultRefreshTimeout = 30 * time.Second

// State describes an entry at read time.
type State int

const (
	StateEmpty State = iota
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "empty"
	}
}

// Options configure a cache.
type Options struct {
	TTL   time.Duration
	Now   func() time.Time
	DayOf func(time.Time) string

	// RefreshTimeout bounds a refresh shared by collapsed callers. It runs
	// detached from any single caller's cancellation.
	RefreshTimeout time.Duration
}

// Lookup is the outcome of GetOrRefresh.
type Lookup[V any] struct {
	Value     V
	State     State
	StoredAt  time.Time
	Refreshed bool

	// Degraded is set when a failed refresh fell back to a stale value.
	Degraded bool
	Err      error
}

type entry[V any] struct {
	value    V
	storedAt time.Time
	day      string
}

// Cache stores whole values; entries are replaced, never mutated.
type Cache[V any] struct {
	ttl            time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	dayOf          func(time.Time) string

	mu      sync.RWMutex
	entries map[string]entry[V]
	group   singleflight.Group
}

// New constructs a cache. A non-positive TTL makes every entry stale on read.
func New[V any](opts Options) *Cache[V] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DayOf == nil {
		opts.DayOf = gold.BusinessDate
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	return &Cache[V]{
		ttl:            opts.TTL,
		refreshTimeout: opts.RefreshTimeout,
		now:            opts.Now,
		dayOf:          opts.DayOf,
		entries:        make(map[string]entry[V]),
	}
}

// Peek returns the cached value and its state without any I/O.
func (c *Cache[V]) Peek(key string) (V, State, time.Time) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, StateEmpty, time.Time{}
	}
	return e.value, c.stateOf(e), e.storedAt
}

func (c *Cache[V]) stateOf(e entry[V]) State {
	now := c.now()
	if c.dayOf(now) != e.day {
		return StateStale
	}
	if now.Sub(e.storedAt) >= c.ttl {
		return StateStale
	}
	return StateFresh
}

// Set replaces the entry for key.
func (c *Cache[V]) Set(key string, value V) {
	now := c.now()
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: now, day: c.dayOf(now)}
	c.mu.Unlock()
}

// Invalidate drops the entry for key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll drops every entry.
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// RollOver drops entries stored on an earlier business date and returns how
// many were removed.
func (c *Cache[V]) RollOver() int {
	today := c.dayOf(c.now())
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if e.day != today {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrRefresh serves a fresh entry directly. Otherwise it runs refresh,
// collapsing concurrent refreshes of the same key, and stores the result. If
// the refresh fails a stale value is still served with Degraded set.
//
// The shared refresh keeps running when the caller that started it goes away;
// a caller whose ctx ends stops waiting and is treated as a failed refresh.
func (c *Cache[V]) GetOrRefresh(ctx context.Context, key string, refresh func(context.Context) (V, error)) (Lookup[V], error) {
	cached, state, storedAt := c.Peek(key)
	if state == StateFresh {
		return Lookup[V]{Value: cached, State: state, StoredAt: storedAt}, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		v, err := refresh(rctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})

	var res any
	var err error
	select {
	case r := <-ch:
		res, err = r.Val, r.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err == nil {
		return Lookup[V]{Value: res.(V), State: state, StoredAt: c.now(), Refreshed: true}, nil
	}

	if state == StateStale {
		return Lookup[V]{Value: cached, State: state, StoredAt: storedAt, Degraded: true, Err: err}, nil
	}
	var zero V
	return Lookup[V]{Value: zero, State: state, Err: err}, fmt.Errorf("%w: %w", ErrNoValue, err)
}
