package query

import (
	"context"
	"sync"
	"time"
)

// Subscription keeps a key alive while it is open. The key is polled at the
// smallest refetch interval among its open subscriptions; closing the last
// one stops polling.
type Subscription[T any] struct {
	c       *Client
	e       *entry
	key     Key
	id      uint64
	changes chan struct{}
	once    sync.Once
}

// Subscribe attaches to key, loading it in the background unless a fresh
// value is cached. Changes fires after each stored result.
func Subscribe[T any](c *Client, key Key, fn func(context.Context) (T, error), opts ...Option) *Subscription[T] {
	s := &Subscription[T]{c: c, key: key, changes: make(chan struct{}, 1)}

	o := c.options(opts)
	if !o.enabled {
		return s
	}

	e := register(c, key, fn, o)
	s.e = e

	c.mu.Lock()
	c.nextSub++
	s.id = c.nextSub
	e.subs[s.id] = &subscriber{interval: o.refetchInterval, notify: s.signal}
	c.reschedule(e)
	fresh := e.hasData && !e.invalid && e.err == nil && c.now().Sub(e.updatedAt) < o.staleTime
	c.mu.Unlock()

	if c.cfg.Observer != nil {
		c.cfg.Observer.Subscribed(key.Name())
	}

	if fresh {
		s.signal()
	} else {
		c.background(e)
	}
	return s
}

func (s *Subscription[T]) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) Key() Key {
	return s.key
}

// Changes delivers at most one pending notification; readers call Latest
// for the current value.
func (s *Subscription[T]) Changes() <-chan struct{} {
	return s.changes
}

func (s *Subscription[T]) Latest() Result[T] {
	if s.e == nil {
		return Result[T]{Status: StatusIdle}
	}
	return snapshot[T](s.c, s.e)
}

func (s *Subscription[T]) Close() {
	if s.e == nil {
		return
	}
	s.once.Do(func() {
		s.c.unsubscribe(s.e, s.id)
		if s.c.cfg.Observer != nil {
			s.c.cfg.Observer.Unsubscribed(s.key.Name())
		}
	})
}

func (c *Client) unsubscribe(e *entry, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(e.subs, id)
	e.lastUsed = c.now()
	c.reschedule(e)
}

// reschedule restarts the poller when the effective interval changed.
// Callers hold c.mu.
func (c *Client) reschedule(e *entry) {
	var interval time.Duration
	for _, s := range e.subs {
		if s.interval > 0 && (interval == 0 || s.interval < interval) {
			interval = s.interval
		}
	}
	if interval == e.pollInterval {
		return
	}

	if e.pollCancel != nil {
		e.pollCancel()
		e.pollCancel = nil
	}
	e.pollInterval = interval
	if interval == 0 || c.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	e.pollCancel = cancel
	c.wg.Add(1)
	go c.poll(ctx, e, interval)
}

func (c *Client) poll(ctx context.Context, e *entry, interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.load(ctx, e)
		}
	}
}

// Polling reports whether key currently has an active poller.
func (c *Client) Polling(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	return ok && e.pollCancel != nil
}
