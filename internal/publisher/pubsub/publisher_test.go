package pubsub

import (
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// newFakePublisher returns a Publisher wired to an in-process Pub/Sub server
// with topic already created.
func newFakePublisher(t *testing.T, topic string) (*Publisher, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(t.Context(), "breachwatch-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = client.CreateTopic(t.Context(), topic)
	require.NoError(t, err)

	p, err := New(client, topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, srv
}

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "breach-reports")
	require.ErrorContains(t, err, "pubsub client is required")
}

func TestTopicRequiresName(t *testing.T) {
	t.Parallel()

	p := &Publisher{topics: map[string]*pubsub.Topic{}}
	_, err := p.topic("")
	require.ErrorContains(t, err, "topic name is required")
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	p := &Publisher{defaultTopic: "breach-reports", topics: map[string]*pubsub.Topic{}}
	_, err := p.Publish(t.Context(), "", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

func TestPublishDeliversJSON(t *testing.T) {
	t.Parallel()

	p, srv := newFakePublisher(t, "breach-reports")

	id, err := p.Publish(t.Context(), "", map[string]any{"category": "archive", "rows": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "application/json", msgs[0].Attributes["content-type"])

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "archive", got["category"])
	assert.InDelta(t, 3, got["rows"], 0)
}

func TestPublishReusesTopicHandle(t *testing.T) {
	t.Parallel()

	p, srv := newFakePublisher(t, "breach-reports")

	_, err := p.Publish(t.Context(), "breach-reports", "first")
	require.NoError(t, err)
	first := p.topics["breach-reports"]

	_, err = p.Publish(t.Context(), "", "second")
	require.NoError(t, err)

	assert.Len(t, p.topics, 1)
	assert.Same(t, first, p.topics["breach-reports"])
	assert.Len(t, srv.Messages(), 2)
}
