// Package kafka publishes stored audit entries to a Kafka topic. Values of
// encrypted fields stay encrypted in the published message.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare/audit"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic receives audit entries unless Config.Topic is set.
const DefaultTopic = "remotecare.audit"

// Producer is the part of *kgo.Client used by the publisher.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Message is the JSON value of a published record.
type Message struct {
	ID              uuid.UUID       `json:"id"`
	AddedOn         time.Time       `json:"added_on"`
	AddedBy         string          `json:"added_by"`
	EncryptionKeyID *uuid.UUID      `json:"encryption_key_id,omitempty"`
	Entry           json.RawMessage `json:"entry"`
}

// Publisher implements audit.Publisher.
type Publisher struct {
	producer Producer
	topic    string
}

// Config holds the broker addresses and topic.
type Config struct {
	Brokers []string
	Topic   string
}

// NewClient returns a franz-go client producing to cfg.Topic by default.
func NewClient(cfg Config) (*kgo.Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topicOrDefault(cfg.Topic)),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	return client, nil
}

func NewPublisher(producer Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topicOrDefault(topic)}
}

func topicOrDefault(topic string) string {
	if topic == "" {
		return DefaultTopic
	}
	return topic
}

// Publish sends e synchronously. Records of the same object share a key so
// they keep their order within a partition.
func (p *Publisher) Publish(ctx context.Context, e *audit.Entry) error {
	value, err := json.Marshal(Message{
		ID:              e.ID,
		AddedOn:         e.AddedOn,
		AddedBy:         e.AddedBy,
		EncryptionKeyID: e.EncryptionKeyID,
		Entry:           json.RawMessage(e.JSON),
	})
	if err != nil {
		return fmt.Errorf("kafka: encode audit entry %s: %w", e.ID, err)
	}
	module, name := e.Object()
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(module + "." + name + ":" + e.ObjectID()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "entry_id", Value: []byte(e.ID.String())},
			{Key: "added", Value: []byte(fmt.Sprint(e.Added()))},
		},
		Timestamp: e.AddedOn,
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: publish audit entry %s: %w", e.ID, err)
	}
	return nil
}

// EnsureTopic creates topic when it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicas int16) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, partitions, replicas, nil, topicOrDefault(topic))
	if err != nil {
		return fmt.Errorf("kafka: create topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Decode reads a published message back into an entry.
func Decode(r *kgo.Record) (*audit.Entry, error) {
	var m Message
	if err := json.Unmarshal(r.Value, &m); err != nil {
		return nil, fmt.Errorf("kafka: decode audit message: %w", err)
	}
	return &audit.Entry{
		ID:              m.ID,
		AddedOn:         m.AddedOn,
		AddedBy:         m.AddedBy,
		EncryptionKeyID: m.EncryptionKeyID,
		JSON:            string(m.Entry),
	}, nil
}

var _ audit.Publisher = (*Publisher)(nil)
