package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingPruner struct {
	calls atomic.Int32
	err   error
}

func (p *countingPruner) Prune(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestRunJanitorPrunesUntilCancelled(t *testing.T) {
	t.Parallel()

	p := &countingPruner{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, p, 5*time.Millisecond, nil)
		close(done)
	}()

	require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestRunJanitorKeepsGoingAfterErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	p := &countingPruner{err: errors.New("database is locked")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunJanitor(ctx, p, 5*time.Millisecond, zap.New(core))

	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	assert.NotZero(t, logs.FilterMessage("cache prune failed").Len())
}
