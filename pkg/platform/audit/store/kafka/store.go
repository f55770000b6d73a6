// Package kafka ships audit events to a Kafka topic, keyed by transaction id
// so every event of one request lands on the same partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "gmq/pkg/platform/audit"
)

// DefaultTopic receives audit events when none is configured.
const DefaultTopic = "gmq.audit"

type Store struct {
	client            *kgo.Client
	topic             string
	partitions        int32
	replicationFactor int16
}

type Option func(*Store)

// WithTopicLayout sets the partition count and replication factor used when
// the topic has to be created.
func WithTopicLayout(partitions int32, replicationFactor int16) Option {
	return func(s *Store) {
		s.partitions = partitions
		s.replicationFactor = replicationFactor
	}
}

// New connects to brokers and makes sure topic exists.
func New(ctx context.Context, brokers []string, topic string, opts ...Option) (*Store, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka audit store: no brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	s := &Store{topic: topic, partitions: 3, replicationFactor: 1}
	for _, opt := range opts {
		opt(s)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka audit store: %w", err)
	}
	s.client = client

	if err := s.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopic(ctx, s.partitions, s.replicationFactor, nil, s.topic)
	if err != nil {
		return fmt.Errorf("kafka audit store: create topic %s: %w", s.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafka audit store: create topic %s: %w", s.topic, resp.Err)
	}
	return nil
}

// Append produces one record and waits for the broker acknowledgement.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.TransactionID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Topic returns the destination topic.
func (s *Store) Topic() string { return s.topic }

func (s *Store) Close() {
	s.client.Close()
}
