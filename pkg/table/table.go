// Package table drives a paginated, sortable, filterable data table over any
// listquery.Query. It keeps the previous page visible while the next one
// loads, serves cached pages stale-while-revalidate, and prefetches the
// following page after every successful load so forward navigation is warm.
package table

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tracker/pkg/listquery"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 25

// Snapshot is the table view at one point in time. Stale marks records that
// belong to an earlier pagination/sort/filter state, kept on screen while
// the current one loads.
type Snapshot[T any] struct {
	Records   []T
	Count     int
	PageIndex int
	PageCount int
	Stale     bool
}

// Option configures a Controller.
type Option[T any, F ~string, TFilter any] func(*Controller[T, F, TFilter])

// WithPageSize sets the rows fetched per page.
func WithPageSize[T any, F ~string, TFilter any](size int) Option[T, F, TFilter] {
	return func(c *Controller[T, F, TFilter]) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithDefaultOrder sets the initial sort. The table always has exactly one
// sort column; toggling never removes it.
func WithDefaultOrder[T any, F ~string, TFilter any](field F, direction listquery.Direction) Option[T, F, TFilter] {
	return func(c *Controller[T, F, TFilter]) {
		c.order = listquery.Order[F]{Field: field, Direction: direction}
	}
}

// WithOnReset registers a hook invoked whenever the page index resets to the
// first page (sort or filter change). UIs use it to scroll back to the top.
func WithOnReset[T any, F ~string, TFilter any](fn func()) Option[T, F, TFilter] {
	return func(c *Controller[T, F, TFilter]) {
		c.onReset = fn
	}
}

// WithStaleAfter sets how long a cached page is served without a background
// revalidation. Zero revalidates on every cache hit.
func WithStaleAfter[T any, F ~string, TFilter any](d time.Duration) Option[T, F, TFilter] {
	return func(c *Controller[T, F, TFilter]) {
		c.staleAfter = d
	}
}

type cacheEntry[T any] struct {
	out       listquery.Output[T]
	fetchedAt time.Time
}

type lastResult[T any] struct {
	key string
	out listquery.Output[T]
}

// Controller holds the table state and its query cache. All methods are safe
// for concurrent use.
type Controller[T any, F ~string, TFilter any] struct {
	query    listquery.Query[T, F, TFilter]
	pageSize int
	onReset  func()

	staleAfter time.Duration
	now        func() time.Time

	mu        sync.Mutex
	pageIndex int
	order     listquery.Order[F]
	filter    TFilter
	cache     map[string]cacheEntry[T]
	inflight  map[string]bool
	last      *lastResult[T]

	group singleflight.Group
	wg    sync.WaitGroup
}

// New creates a controller over a list query.
func New[T any, F ~string, TFilter any](query listquery.Query[T, F, TFilter], opts ...Option[T, F, TFilter]) *Controller[T, F, TFilter] {
	c := &Controller[T, F, TFilter]{
		query:    query,
		pageSize: DefaultPageSize,
		now:      time.Now,
		cache:    make(map[string]cacheEntry[T]),
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageIndex returns the current zero-based page.
func (c *Controller[T, F, TFilter]) PageIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageIndex
}

// Order returns the current sort.
func (c *Controller[T, F, TFilter]) Order() listquery.Order[F] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

// Filter returns the current filter.
func (c *Controller[T, F, TFilter]) Filter() TFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetPage moves to a zero-based page index.
func (c *Controller[T, F, TFilter]) SetPage(index int) {
	if index < 0 {
		index = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageIndex = index
}

// SetFilter replaces the filter and resets to the first page.
func (c *Controller[T, F, TFilter]) SetFilter(filter TFilter) {
	c.mu.Lock()
	c.filter = filter
	c.pageIndex = 0
	c.mu.Unlock()
	if c.onReset != nil {
		c.onReset()
	}
}

// ToggleSort sorts by field, flipping the direction when the field is already
// the sort column and starting ascending when it is not. Either way the page
// resets to the first one; a paging position under one order is meaningless
// under another.
func (c *Controller[T, F, TFilter]) ToggleSort(field F) {
	c.mu.Lock()
	if c.order.Field == field {
		if c.order.Direction == listquery.Asc {
			c.order.Direction = listquery.Desc
		} else {
			c.order.Direction = listquery.Asc
		}
	} else {
		c.order = listquery.Order[F]{Field: field, Direction: listquery.Asc}
	}
	c.pageIndex = 0
	c.mu.Unlock()
	if c.onReset != nil {
		c.onReset()
	}
}

// Snapshot returns the current view without fetching. When the last loaded
// page no longer matches the current state (the user just paged, sorted or
// filtered), the previous records are returned marked stale.
func (c *Controller[T, F, TFilter]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	input := c.inputLocked()
	key := cacheKey(input)
	if c.last == nil {
		return Snapshot[T]{PageIndex: c.pageIndex, Stale: true}
	}
	return Snapshot[T]{
		Records:   c.last.out.Records,
		Count:     c.last.out.Count,
		PageIndex: c.pageIndex,
		PageCount: c.last.out.PageCount(input.Take),
		Stale:     c.last.key != key,
	}
}

// Load ensures the current page is loaded and returns it. Cache hits return
// immediately and revalidate in the background when older than the stale
// window; misses fetch synchronously. A successful load prefetches the next
// page. On error the previous records are returned stale alongside the error.
func (c *Controller[T, F, TFilter]) Load(ctx context.Context) (Snapshot[T], error) {
	c.mu.Lock()
	input := c.inputLocked()
	key := cacheKey(input)
	entry, hit := c.cache[key]
	c.mu.Unlock()

	if hit {
		if c.now().Sub(entry.fetchedAt) >= c.staleAfter {
			c.revalidate(key, input)
		}
		snap := c.deliver(key, input, entry.out)
		c.prefetchNext(input, entry.out)
		return snap, nil
	}

	out, err := c.fetch(ctx, key, input)
	if err != nil {
		return c.Snapshot(), err
	}
	snap := c.deliver(key, input, out)
	c.prefetchNext(input, out)
	return snap, nil
}

// Refresh drops the cached current page and reloads it.
func (c *Controller[T, F, TFilter]) Refresh(ctx context.Context) (Snapshot[T], error) {
	c.mu.Lock()
	key := cacheKey(c.inputLocked())
	delete(c.cache, key)
	c.mu.Unlock()
	return c.Load(ctx)
}

// Invalidate drops every cached page. The next Load of each page fetches
// fresh data; the visible records stay on screen meanwhile.
func (c *Controller[T, F, TFilter]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry[T])
}

// Wait blocks until in-flight background work (prefetches, revalidations)
// finishes. Callers use it on shutdown and in tests.
func (c *Controller[T, F, TFilter]) Wait() {
	c.wg.Wait()
}

func (c *Controller[T, F, TFilter]) inputLocked() listquery.Input[F, TFilter] {
	order := c.order
	return listquery.Input[F, TFilter]{
		Take:   c.pageSize,
		Skip:   c.pageIndex * c.pageSize,
		Order:  &order,
		Filter: c.filter,
	}
}

// fetch runs the query once per key regardless of how many callers ask, and
// caches the result.
func (c *Controller[T, F, TFilter]) fetch(ctx context.Context, key string, input listquery.Input[F, TFilter]) (listquery.Output[T], error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		out, err := c.query.List(ctx, input)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[key] = cacheEntry[T]{out: out, fetchedAt: c.now()}
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return listquery.Output[T]{}, err
	}
	return v.(listquery.Output[T]), nil
}

// deliver publishes a fetched page as the visible result, unless the state
// moved on while the fetch ran; a superseded response must never overwrite
// the view of a newer input.
func (c *Controller[T, F, TFilter]) deliver(key string, input listquery.Input[F, TFilter], out listquery.Output[T]) Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentKey := cacheKey(c.inputLocked())
	if currentKey == key {
		c.last = &lastResult[T]{key: key, out: out}
	}
	return Snapshot[T]{
		Records:   out.Records,
		Count:     out.Count,
		PageIndex: input.Skip / input.Take,
		PageCount: out.PageCount(input.Take),
		Stale:     currentKey != key,
	}
}

// prefetchNext warms the cache for the page after input, when one exists.
func (c *Controller[T, F, TFilter]) prefetchNext(input listquery.Input[F, TFilter], out listquery.Output[T]) {
	next := input
	next.Skip += next.Take
	if next.Skip >= out.Count {
		return
	}
	key := cacheKey(next)

	c.mu.Lock()
	_, cached := c.cache[key]
	if cached || c.inflight[key] {
		c.mu.Unlock()
		return
	}
	c.inflight[key] = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, _ = c.fetch(context.Background(), key, next)
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}()
}

// revalidate refetches a cached page in the background and republishes it if
// the state still points at it.
func (c *Controller[T, F, TFilter]) revalidate(key string, input listquery.Input[F, TFilter]) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.mu.Lock()
		delete(c.cache, key)
		c.mu.Unlock()
		out, err := c.fetch(context.Background(), key, input)
		if err != nil {
			return
		}
		c.deliver(key, input, out)
	}()
}

// cacheKey addresses a result by the full query input. json.Marshal on a
// struct of exported fields cannot fail.
func cacheKey[F ~string, TFilter any](input listquery.Input[F, TFilter]) string {
	b, _ := json.Marshal(input)
	return string(b)
}
