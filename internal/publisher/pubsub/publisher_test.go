package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublishToFakeServer(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	_, err := srv.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: "projects/test-project/topics/funding-events"})
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	pub := NewWithClient(client)
	t.Cleanup(func() { _ = pub.Close() })

	id, err := pub.Publish(ctx, "funding-events", map[string]string{"company_name": "Acme"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "Acme", got["company_name"])
}

func TestPublishRequiresClientAndTopic(t *testing.T) {
	t.Parallel()
	_, err := (&Publisher{}).Publish(context.Background(), "t", "x")
	require.Error(t, err)

	_, err = New(context.Background(), "")
	require.Error(t, err)
}

func TestCarrier(t *testing.T) {
	t.Parallel()
	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
