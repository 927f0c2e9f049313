package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "breach-reports", map[string]string{"category": "archive"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "breach-reports", msgs[0].Topic)
	assert.JSONEq(t, `{"category":"archive"}`, string(msgs[0].Data))

	var decoded map[string]string
	require.NoError(t, pub.Decode(0, &decoded))
	assert.Equal(t, "archive", decoded["category"])
	assert.Error(t, pub.Decode(5, &decoded))

	msgs[0].Topic = "modified"
	assert.Equal(t, "breach-reports", pub.Messages()[0].Topic, "Messages must return a copy")
}

func TestPublisherFailure(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("unavailable")
	pub.FailWith(boom)
	_, err := pub.Publish(context.Background(), "t", "x")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, pub.Messages())

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "t", "x")
	require.NoError(t, err)
}
