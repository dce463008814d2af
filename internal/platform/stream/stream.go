// Package stream publishes committed issue events to Kafka for downstream
// consumers (notifications, analytics). Publishing is fire-and-forget from
// the service's point of view: events are queued in-process and a worker
// produces them, so the write path never blocks on the broker.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"tracker/internal/issue/models"
)

const inboxSize = 256

// Publisher queues issue events and produces them to a Kafka topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	inbox  chan models.IssueEvent
	logger *slog.Logger
}

// New connects to the brokers and ensures the topic exists. Returns nil when
// no brokers are configured; the caller runs without an event stream.
func New(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Publisher{
		client: client,
		topic:  topic,
		inbox:  make(chan models.IssueEvent, inboxSize),
		logger: logger,
	}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Publish queues one event. When the queue is full the event is dropped with
// a log line; the event log in postgres remains the source of truth.
func (p *Publisher) Publish(event models.IssueEvent) {
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("event stream queue full, dropping event",
			"issue_id", event.IssueID,
			"event_id", event.ID,
		)
	}
}

// Run produces queued events until the context is canceled. Events of one
// issue share a record key, so consumers see each issue's history in order.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-p.inbox:
			value, err := json.Marshal(event)
			if err != nil {
				p.logger.Error("failed to encode event", "error", err, "event_id", event.ID)
				continue
			}
			record := &kgo.Record{
				Topic: p.topic,
				Key:   []byte(strconv.FormatInt(event.IssueID, 10)),
				Value: value,
			}
			if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
				p.logger.Error("failed to produce event",
					"error", err,
					"issue_id", event.IssueID,
					"event_id", event.ID,
				)
			}
		}
	}
}

// Close flushes and closes the Kafka client.
func (p *Publisher) Close() {
	p.client.Close()
}
