package gateclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerRegistry_ExecuteSuccess(t *testing.T) {
	reg := newBreakerRegistry(DefaultCircuitBreakerConfig(), nil, nil)
	resp, err := reg.execute(context.Background(), "orders", func() (ResponseView, error) {
		return &fakeResponseView{status: 200}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status())
}

func TestBreakerRegistry_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}
	reg := newBreakerRegistry(cfg, nil, nil)
	failing := func() (ResponseView, error) { return nil, errors.New("connection refused") }

	for i := 0; i < 2; i++ {
		_, err := reg.execute(context.Background(), "orders", failing)
		assert.Error(t, err)
	}

	_, err := reg.execute(context.Background(), "orders", func() (ResponseView, error) {
		return &fakeResponseView{status: 200}, nil
	})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeTransport))
}

func TestBreakerRegistry_GroupsAreIndependent(t *testing.T) {
	cfg := CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}
	reg := newBreakerRegistry(cfg, nil, nil)
	failing := func() (ResponseView, error) { return nil, errors.New("boom") }

	_, err := reg.execute(context.Background(), "orders", failing)
	assert.Error(t, err)

	// "payments" group's breaker is unaffected by "orders" tripping.
	resp, err := reg.execute(context.Background(), "payments", func() (ResponseView, error) {
		return &fakeResponseView{status: 200}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status())
}
