package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceCommand struct {
	ID     string
	Action string
}

func TestMutationInvalidatesAfterSuccess(t *testing.T) {
	obs := &countingObserver{}
	cfg := testConfig()
	cfg.Observer = obs
	c := NewClient(cfg)
	defer c.Close()

	var services, status counter
	Fetch(context.Background(), c, NewKey("services"), services.fn("s"))
	Fetch(context.Background(), c, NewKey("systemStatus"), status.fn("st"))

	m := NewMutation(c, "service_control",
		func(context.Context, serviceCommand) error { return nil },
		WithInvalidates[serviceCommand](NewKey("services"), NewKey("systemStatus")),
	)

	require.NoError(t, m.Mutate(context.Background(), serviceCommand{ID: "redis", Action: "restart"}))

	Fetch(context.Background(), c, NewKey("services"), services.fn("s"))
	Fetch(context.Background(), c, NewKey("systemStatus"), status.fn("st"))

	assert.Equal(t, int32(2), services.calls.Load())
	assert.Equal(t, int32(2), status.calls.Load())
	assert.Equal(t, 1, obs.mutations["service_control:success"])
}

func TestMutationFailureLeavesCacheUntouched(t *testing.T) {
	c := NewClient(testConfig())
	defer c.Close()

	var services counter
	Fetch(context.Background(), c, NewKey("services"), services.fn("s"))

	errDenied := errors.New("denied")
	var attempts int
	m := NewMutation(c, "service_control",
		func(context.Context, string) error {
			attempts++
			return errDenied
		},
		WithInvalidates[string](NewKey("services")),
	)

	err := m.Mutate(context.Background(), "postgres")
	assert.ErrorIs(t, err, errDenied)
	assert.Equal(t, 1, attempts)

	r := Fetch(context.Background(), c, NewKey("services"), services.fn("s"))
	assert.Equal(t, int32(1), services.calls.Load())
	assert.False(t, r.Stale)
	assert.False(t, m.IsPendingTarget("postgres"))
}

func TestMutationRejectsDuplicateForSameTarget(t *testing.T) {
	c := NewClient(testConfig())
	defer c.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	m := NewMutation(c, "service_control",
		func(_ context.Context, cmd serviceCommand) error {
			if cmd.ID == "api-server" {
				close(started)
				<-release
			}
			return nil
		},
		WithTarget(func(cmd serviceCommand) string { return cmd.ID }),
	)

	done := make(chan error, 1)
	go func() {
		done <- m.Mutate(context.Background(), serviceCommand{ID: "api-server", Action: "stop"})
	}()
	<-started

	assert.True(t, m.IsPendingTarget("api-server"))
	assert.False(t, m.IsPendingTarget("redis"))

	err := m.Mutate(context.Background(), serviceCommand{ID: "api-server", Action: "restart"})
	assert.ErrorIs(t, err, ErrMutationPending)

	assert.NoError(t, m.Mutate(context.Background(), serviceCommand{ID: "redis", Action: "restart"}))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, m.IsPendingTarget("api-server"))
}
