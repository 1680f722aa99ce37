package pubsub

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishMarshalsPayload(t *testing.T) {
	t.Parallel()

	var got *pubsub.Message
	p := &Publisher{publish: func(_ context.Context, msg *pubsub.Message) (string, error) {
		got = msg
		return "msg-1", nil
	}}

	id, err := p.Publish(context.Background(), "crawl.completed", map[string]int{"theatres": 3})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"theatres":3}`, string(got.Data))
	assert.Equal(t, "crawl.completed", got.Attributes["event"])
}

func TestPublishWrapsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("deadline exceeded")
	p := &Publisher{publish: func(context.Context, *pubsub.Message) (string, error) { return "", boom }}
	_, err := p.Publish(context.Background(), "crawl.completed", struct{}{})
	assert.ErrorIs(t, err, boom)

	_, err = p.Publish(context.Background(), "crawl.completed", make(chan int))
	assert.Error(t, err)
}

func TestUnconfiguredPublisher(t *testing.T) {
	t.Parallel()

	p := New(nil)
	_, err := p.Publish(context.Background(), "crawl.completed", struct{}{})
	assert.Error(t, err)
	p.Stop()
}

func TestDialValidatesConfig(t *testing.T) {
	t.Parallel()

	_, _, err := Dial(context.Background(), Config{ProjectID: "p"})
	assert.Error(t, err)
}
