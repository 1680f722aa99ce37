package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopAlwaysMisses(t *testing.T) {
	t.Parallel()

	var store Store = Noop{}
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	hits, err := store.Increment(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, hits)
}
