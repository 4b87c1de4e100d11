package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrMutationPending is returned when a write for the same target is
// already running.
var ErrMutationPending = errors.New("mutation already pending for target")

// Mutation runs a backend write. It never retries, it allows one write per
// target at a time, and only a successful write invalidates cached reads.
type Mutation[A any] struct {
	c           *Client
	name        string
	fn          func(context.Context, A) error
	invalidates []Key
	target      func(A) string

	mu      sync.Mutex
	pending map[string]struct{}
}

type MutationOption[A any] func(*Mutation[A])

// WithInvalidates lists key prefixes to invalidate after success.
func WithInvalidates[A any](keys ...Key) MutationOption[A] {
	return func(m *Mutation[A]) { m.invalidates = append(m.invalidates, keys...) }
}

// WithTarget groups arguments that address the same resource. The default
// target is the formatted argument.
func WithTarget[A any](target func(A) string) MutationOption[A] {
	return func(m *Mutation[A]) { m.target = target }
}

func NewMutation[A any](c *Client, name string, fn func(context.Context, A) error, opts ...MutationOption[A]) *Mutation[A] {
	m := &Mutation[A]{
		c:       c,
		name:    name,
		fn:      fn,
		target:  func(a A) string { return fmt.Sprint(a) },
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mutation[A]) Mutate(ctx context.Context, arg A) error {
	target := m.target(arg)

	m.mu.Lock()
	if _, busy := m.pending[target]; busy {
		m.mu.Unlock()
		return ErrMutationPending
	}
	m.pending[target] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, target)
		m.mu.Unlock()
	}()

	start := time.Now()
	err := m.fn(ctx, arg)
	if m.c.cfg.Observer != nil {
		m.c.cfg.Observer.MutationCompleted(m.name, time.Since(start), err)
	}
	if err != nil {
		return err
	}

	if len(m.invalidates) > 0 {
		m.c.Invalidate(m.invalidates...)
	}
	return nil
}

// IsPendingTarget reports whether a write for target is running.
func (m *Mutation[A]) IsPendingTarget(target string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[target]
	return ok
}
