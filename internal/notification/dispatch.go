package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// HTTPDispatcher posts receipts to the notification endpoint.
type HTTPDispatcher struct {
	endpoint string
	client   *http.Client
}

func NewHTTPDispatcher(endpoint string, timeout time.Duration) *HTTPDispatcher {
	return &HTTPDispatcher{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (d *HTTPDispatcher) Name() string { return "http" }

type httpPayload struct {
	RecipientAddress    string `json:"recipient_address"`
	TransferSummary     string `json:"transfer_summary"`
	SettlementReference string `json:"settlement_reference"`
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, msg Message) error {
	body, err := json.Marshal(httpPayload{
		RecipientAddress:    msg.RecipientAddress,
		TransferSummary:     msg.TransferSummary,
		SettlementReference: msg.SettlementReference,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", msg.SettlementReference)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// producer is the slice of *kgo.Client the Kafka dispatcher uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaDispatcher publishes receipts to a topic consumed by the mailer.
type KafkaDispatcher struct {
	topic    string
	producer producer
	client   *kgo.Client
}

// NewKafkaDispatcher connects to the brokers and makes sure the topic exists.
func NewKafkaDispatcher(ctx context.Context, brokers []string, topic string) (*KafkaDispatcher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := ensureTopic(ctx, kadm.NewClient(client), topic); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaDispatcher{topic: topic, producer: client, client: client}, nil
}

func ensureTopic(ctx context.Context, adm *kadm.Client, topic string) error {
	resp, err := adm.CreateTopic(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

func (d *KafkaDispatcher) Name() string { return "kafka" }

func (d *KafkaDispatcher) Dispatch(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{
		Topic: d.topic,
		Key:   []byte(msg.SessionID),
		Value: value,
	}
	if err := d.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

func (d *KafkaDispatcher) Close() {
	if d.client != nil {
		d.client.Close()
	}
}

// LogDispatcher writes receipts to the log; used in development.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Name() string { return "log" }

func (d *LogDispatcher) Dispatch(ctx context.Context, msg Message) error {
	d.logger.InfoContext(ctx, "confirmation receipt",
		"session_id", msg.SessionID,
		"recipient_address", msg.RecipientAddress,
		"transfer_summary", msg.TransferSummary,
		"settlement_reference", msg.SettlementReference,
	)
	return nil
}
