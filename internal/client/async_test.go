package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_DeliversResult(t *testing.T) {
	results := make(chan int, 1)
	h := Go(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	}, func(v int, err error) {
		assert.NoError(t, err)
		results <- v
	})

	<-h.Done()
	assert.Equal(t, 42, <-results)
}

func TestGo_DeliversError(t *testing.T) {
	errs := make(chan error, 1)
	h := Go(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	}, func(_ int, err error) {
		errs <- err
	})

	<-h.Done()
	assert.EqualError(t, <-errs, "boom")
}

func TestGo_CancelStopsWorkAndSuppressesCompletion(t *testing.T) {
	stopped := make(chan struct{})
	called := make(chan struct{}, 1)

	h := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(stopped)
		return 1, nil // a result produced after cancellation must be dropped
	}, func(int, error) {
		called <- struct{}{}
	})

	assert.True(t, h.Cancel())

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("operation was not cancelled")
	}
	<-h.Done()

	select {
	case <-called:
		t.Fatal("completion ran after cancel")
	default:
	}
}

func TestGo_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := make(chan struct{}, 1)

	h := Go(ctx, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(int, error) {
		called <- struct{}{}
	})

	cancel()
	<-h.Done()
	assert.Empty(t, called)
}

func TestGo_CancelAfterCompletion(t *testing.T) {
	h := Go(context.Background(), func(ctx context.Context) (int, error) {
		return 1, nil
	}, nil)

	<-h.Done()
	require.False(t, h.Cancel())
}
