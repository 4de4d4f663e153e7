package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsEncodedMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "runs", map[string]string{"run_id": "r1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "runs-audit", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.JSONEq(t, `{"run_id":"r1"}`, string(msgs[0].Data))
	require.Equal(t, `"payload"`, string(msgs[1].Data))

	msgs[0].Topic = "modified"
	require.Equal(t, "runs", pub.Messages()[0].Topic, "Messages returns a copy")

	audit := pub.OnTopic("runs-audit")
	require.Len(t, audit, 1)
	require.Equal(t, "memory-2", audit[0].ID)
	require.Empty(t, pub.OnTopic("other"))
}

func TestPublisherRejectsUnencodablePayloads(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "runs", make(chan int))
	require.Error(t, err)
	require.Empty(t, pub.Messages())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pub.Publish(ctx, "runs", "late")
	require.ErrorIs(t, err, context.Canceled)
}
