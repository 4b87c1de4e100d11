// Package query is a keyed read-through cache for backend reads. Equal keys
// share one in-flight request, results are served until they go stale,
// subscribed keys are polled, and mutations invalidate keys by prefix.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hephaex/Barami/pkg/logger"

	"golang.org/x/sync/singleflight"
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	}
	return "idle"
}

// Result is a point-in-time view of one cache entry. On a failed refresh
// Data still holds the last good value and Err holds the failure.
type Result[T any] struct {
	Data        T
	HasData     bool
	Err         error
	Status      Status
	UpdatedAt   time.Time
	Previous    T
	HasPrevious bool
	// Stale is set when Data is shown while invalidated or after a failed
	// refresh.
	Stale bool
}

type fetchFunc func(ctx context.Context) (any, error)
type decodeFunc func(raw []byte) (any, error)

type subscriber struct {
	interval time.Duration
	notify   func()
}

type entry struct {
	key Key
	id  string

	fetch  fetchFunc
	decode decodeFunc
	retry  int

	data       any
	hasData    bool
	prev       any
	hasPrev    bool
	err        error
	updatedAt  time.Time
	lastUsed   time.Time
	generation uint64
	invalid    bool
	fetching   bool

	subs         map[uint64]*subscriber
	pollInterval time.Duration
	pollCancel   context.CancelFunc
}

type Client struct {
	cfg     Config
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	nextSub uint64
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.RetryDelay == nil {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.CacheTime <= 0 {
		cfg.CacheTime = def.CacheTime
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.Retry < 0 {
		cfg.Retry = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close stops all polling and waits for background fetches to finish.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Client) options(opts []Option) options {
	o := options{
		enabled:   true,
		staleTime: c.cfg.StaleTime,
		retry:     c.cfg.Retry,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fetch returns the cached value for key when it is fresh and otherwise
// loads it through fn, sharing the request with concurrent callers of the
// same key. It blocks until the load finishes or ctx is done.
func Fetch[T any](ctx context.Context, c *Client, key Key, fn func(context.Context) (T, error), opts ...Option) Result[T] {
	o := c.options(opts)
	if !o.enabled {
		return Result[T]{Status: StatusIdle}
	}

	e := register(c, key, fn, o)
	if c.fresh(e, o.staleTime) {
		c.observeCache(key.Name(), true)
		return snapshot[T](c, e)
	}
	c.observeCache(key.Name(), false)

	// An invalidation while waiting discards the result, so load again for
	// the new generation until one commits or ctx is done.
	for {
		gen, _ := c.load(ctx, e)
		if ctx.Err() != nil || !c.superseded(e, gen) {
			break
		}
	}
	return snapshot[T](c, e)
}

// Peek returns the cached state for key without loading anything.
func Peek[T any](c *Client, key Key) Result[T] {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	c.mu.Unlock()
	if !ok {
		return Result[T]{Status: StatusIdle}
	}
	return snapshot[T](c, e)
}

// Read is Peek when cacheOnly is set and Fetch otherwise. Renders triggered
// by a subscription read the cache only, so a failed entry is not loaded
// again by its own change notification.
func Read[T any](ctx context.Context, c *Client, key Key, fn func(context.Context) (T, error), cacheOnly bool, opts ...Option) Result[T] {
	if cacheOnly {
		return Peek[T](c, key)
	}
	return Fetch(ctx, c, key, fn, opts...)
}

func register[T any](c *Client, key Key, fn func(context.Context) (T, error), o options) *entry {
	id := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: key, id: id, subs: make(map[uint64]*subscriber)}
		c.entries[id] = e
	}
	e.fetch = func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	e.decode = func(raw []byte) (any, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	e.retry = o.retry
	e.lastUsed = c.now()
	return e
}

func (c *Client) fresh(e *entry, staleTime time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.hasData && !e.invalid && e.err == nil && c.now().Sub(e.updatedAt) < staleTime
}

func snapshot[T any](c *Client, e *entry) Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Result[T]{
		HasData:     e.hasData,
		Err:         e.err,
		UpdatedAt:   e.updatedAt,
		HasPrevious: e.hasPrev,
	}
	if e.hasData {
		r.Data, _ = e.data.(T)
	}
	if e.hasPrev {
		r.Previous, _ = e.prev.(T)
	}

	switch {
	case e.hasData:
		r.Status = StatusReady
		r.Stale = e.err != nil || e.invalid
	case e.err != nil:
		r.Status = StatusError
	case e.fetching:
		r.Status = StatusLoading
	default:
		r.Status = StatusIdle
	}
	return r
}

// load joins or starts the shared fetch for the entry's current generation
// and returns that generation. The fetch itself runs detached from ctx; ctx
// only bounds the wait.
func (c *Client) load(ctx context.Context, e *entry) (uint64, error) {
	c.mu.Lock()
	gen := e.generation
	flight := fmt.Sprintf("%s@%d", e.id, gen)
	c.mu.Unlock()

	ch := c.group.DoChan(flight, func() (any, error) {
		return nil, c.run(e, gen)
	})

	select {
	case res := <-ch:
		return gen, res.Err
	case <-ctx.Done():
		return gen, ctx.Err()
	}
}

// superseded reports whether the entry was invalidated after gen was loaded.
func (c *Client) superseded(e *entry, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.generation != gen
}

// background starts a load that nobody waits for.
func (c *Client) background(e *entry) {
	if c.ctx.Err() != nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, _ = c.load(c.ctx, e)
	}()
}

type outcome struct {
	value    any
	err      error
	at       time.Time
	restored bool
}

func (c *Client) run(e *entry, gen uint64) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
	defer cancel()

	c.mu.Lock()
	if e.generation != gen {
		c.mu.Unlock()
		return nil
	}
	e.fetching = true
	fetch, retry := e.fetch, e.retry
	c.mu.Unlock()

	start := c.now()
	v, err := c.fetchWithRetry(ctx, fetch, retry)
	if c.cfg.Observer != nil {
		c.cfg.Observer.FetchCompleted(e.key.Name(), c.now().Sub(start), err)
	}

	out := outcome{value: v, err: err, at: c.now()}
	if err != nil {
		logger.Warn("Query fetch failed",
			logger.String("key", e.key.Label()),
			logger.Int("attempts", retry+1),
			logger.Err(err),
		)
		if restored, ok := c.restore(e); ok {
			restored.err = err
			out = restored
		}
	}

	if c.commit(e, gen, out) && err == nil {
		c.persist(e, v, out.at)
	}
	return err
}

func (c *Client) fetchWithRetry(ctx context.Context, fetch fetchFunc, retry int) (any, error) {
	for attempt := 0; ; attempt++ {
		v, err := fetch(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= retry || ctx.Err() != nil {
			return nil, err
		}
		if c.cfg.ShouldRetry != nil && !c.cfg.ShouldRetry(err) {
			return nil, err
		}

		t := time.NewTimer(c.cfg.RetryDelay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, err
		case <-t.C:
		}
	}
}

// commit stores the outcome unless the entry was invalidated while the
// fetch was running. It reports whether the outcome was kept.
func (c *Client) commit(e *entry, gen uint64, out outcome) bool {
	c.mu.Lock()
	if e.generation != gen {
		c.mu.Unlock()
		return false
	}

	e.fetching = false
	switch {
	case out.err == nil:
		if e.hasData {
			e.prev, e.hasPrev = e.data, true
		}
		e.data, e.hasData = out.value, true
		e.err = nil
		e.updatedAt = out.at
		e.invalid = false
	case out.restored:
		e.data, e.hasData = out.value, true
		e.err = out.err
		e.updatedAt = out.at
		e.invalid = true
	default:
		e.err = out.err
	}

	notify := make([]func(), 0, len(e.subs))
	for _, s := range e.subs {
		notify = append(notify, s.notify)
	}
	c.mu.Unlock()

	for _, n := range notify {
		n()
	}
	return true
}

type snapshotRecord struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Data      json.RawMessage `json:"data"`
}

func (c *Client) persist(e *entry, v any, at time.Time) {
	if c.cfg.Store == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Failed to encode query snapshot", logger.String("key", e.key.Label()), logger.Err(err))
		return
	}
	raw, err := json.Marshal(snapshotRecord{UpdatedAt: at, Data: data})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()
	if err := c.cfg.Store.Set(ctx, e.id, raw); err != nil {
		logger.Warn("Failed to store query snapshot", logger.String("key", e.key.Label()), logger.Err(err))
	}
}

// restore loads the last stored snapshot for an entry that has no data yet.
func (c *Client) restore(e *entry) (outcome, bool) {
	if c.cfg.Store == nil {
		return outcome{}, false
	}

	c.mu.Lock()
	decode, has := e.decode, e.hasData
	c.mu.Unlock()
	if has {
		return outcome{}, false
	}

	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()

	raw, ok, err := c.cfg.Store.Get(ctx, e.id)
	if err != nil {
		logger.Warn("Failed to read query snapshot", logger.String("key", e.key.Label()), logger.Err(err))
		return outcome{}, false
	}
	if !ok {
		return outcome{}, false
	}

	var rec snapshotRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return outcome{}, false
	}
	v, err := decode(rec.Data)
	if err != nil {
		return outcome{}, false
	}

	logger.Info("Serving stored query snapshot", logger.String("key", e.key.Label()))
	return outcome{value: v, at: rec.UpdatedAt, restored: true}, true
}

// Invalidate marks every entry matching one of the prefixes as stale.
// Responses already in flight for those entries are discarded. Entries with
// subscribers refetch right away; the rest refetch on their next read.
func (c *Client) Invalidate(prefixes ...Key) int {
	c.mu.Lock()
	var refetch []*entry
	n := 0
	for _, e := range c.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		e.generation++
		e.invalid = true
		e.fetching = false
		n++
		if len(e.subs) > 0 {
			refetch = append(refetch, e)
		}
	}
	c.mu.Unlock()

	for _, e := range refetch {
		c.background(e)
	}
	return n
}

// Refetch forces a load of key, ignoring staleness. Unknown keys are a no-op.
func (c *Client) Refetch(ctx context.Context, key Key) error {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if ok {
		e.generation++
		e.invalid = true
		e.fetching = false
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	_, err := c.load(ctx, e)
	return err
}

// Prune drops entries that have had no subscribers and no reads for longer
// than the cache time. It returns the number of entries removed.
func (c *Client) Prune() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, e := range c.entries {
		if len(e.subs) > 0 || e.fetching {
			continue
		}
		if now.Sub(e.lastUsed) >= c.cfg.CacheTime {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

func (c *Client) observeCache(name string, hit bool) {
	if c.cfg.Observer == nil {
		return
	}
	if hit {
		c.cfg.Observer.CacheHit(name)
	} else {
		c.cfg.Observer.CacheMiss(name)
	}
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.Matches(p) {
			return true
		}
	}
	return false
}
