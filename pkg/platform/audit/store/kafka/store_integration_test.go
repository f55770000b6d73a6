//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "gmq/pkg/platform/audit"
	"gmq/pkg/platform/audit/store/kafka"
	"gmq/pkg/testutil/containers"
)

func TestKafkaStoreProducesKeyedEvents(t *testing.T) {
	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	topic := "gmq.audit.test." + time.Now().Format("150405.000")
	store, err := kafka.New(ctx, broker.Brokers, topic, kafka.WithTopicLayout(1, 1))
	require.NoError(t, err)
	defer store.Close()

	// A second New against the same topic must tolerate it already existing.
	again, err := kafka.New(ctx, broker.Brokers, topic, kafka.WithTopicLayout(1, 1))
	require.NoError(t, err)
	again.Close()

	event := audit.Event{
		ID:            "evt-1",
		Action:        audit.ActionCertificateMailed,
		Category:      audit.CategoryCompliance,
		TransactionID: "PRCAP1",
		Timestamp:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "PRCAP1", string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, event, got)
}
