package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsByTopic(t *testing.T) {
	t.Parallel()
	pub := New()
	ctx := context.Background()

	id, err := pub.Publish(ctx, "funding-events", map[string]string{"company_name": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)
	_, err = pub.Publish(ctx, "other", "payload")
	require.NoError(t, err)

	assert.Len(t, pub.Messages(""), 2)
	events := pub.Messages("funding-events")
	require.Len(t, events, 1)
	assert.Equal(t, "memory-1", events[0].ID)

	events[0].Topic = "modified"
	assert.Equal(t, "funding-events", pub.Messages("funding-events")[0].Topic)
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()
	pub := New()
	boom := errors.New("down")
	pub.FailWith(boom)

	_, err := pub.Publish(context.Background(), "t", 1)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, pub.Messages(""))

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "t", 1)
	require.NoError(t, err)
}
