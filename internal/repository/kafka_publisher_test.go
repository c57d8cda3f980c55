package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "TrendChart/pkg/kafka"
)

type sentMessage struct {
	topic   string
	key     string
	value   interface{}
	headers map[string]string
}

type fakeProducer struct {
	sent   []sentMessage
	closed bool
}

func (f *fakeProducer) PublishWithHeaders(_ context.Context, topic string, key []byte, value interface{}, headers map[string]string) error {
	f.sent = append(f.sent, sentMessage{topic: topic, key: string(key), value: value, headers: headers})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherForwardsTraceID(t *testing.T) {
	fp := &fakeProducer{}
	p := &KafkaPublisher{producer: fp, topic: "trendchart.results"}

	ctx := pkgkafka.WithTraceID(context.Background(), "trace-9")
	require.NoError(t, p.Publish(ctx, "req-1", map[string]string{"ok": "yes"}))
	require.NoError(t, p.Publish(context.Background(), "req-2", "plain"))
	require.NoError(t, p.Close())

	require.Len(t, fp.sent, 2)
	assert.Equal(t, "trendchart.results", fp.sent[0].topic)
	assert.Equal(t, "req-1", fp.sent[0].key)
	assert.Equal(t, map[string]string{"trace_id": "trace-9"}, fp.sent[0].headers)
	assert.Nil(t, fp.sent[1].headers)
	assert.True(t, fp.closed)
}
