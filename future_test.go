package gateclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFuture_SettleThenWait(t *testing.T) {
	f := newFuture()
	resp := &httpResponseView{status: 200}
	f.settle(resp, nil)

	got, err := f.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestFuture_WaitBlocksUntilSettle(t *testing.T) {
	f := newFuture()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.settle(nil, assert.AnError)
	}()

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestFuture_WaitRespectsContextCancellation(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuture_DoubleSettleIsNoop(t *testing.T) {
	f := newFuture()
	f.settle(&httpResponseView{status: 200}, nil)
	f.settle(&httpResponseView{status: 500}, nil) // must not block or panic

	resp, err := f.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.Status())
}
