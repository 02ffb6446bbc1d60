package kafka

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"time"

	// Local Packages
	events "sslpay/events"

	// External Packages
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

type ProducerConfig struct {
	Brokers    []string
	Topic      string
	ClientName string
}

// Publisher mirrors every bus event onto a Kafka topic so downstream
// consumers (inventory, email, reconciliation) see payment outcomes
// without holding an in-process subscription. Delivery is fire-and-forget
// to match the bus's best-effort contract.
type Publisher struct {
	client *kgo.Client
	config *ProducerConfig
	logger *zap.Logger
}

// NewPublisher creates a producer with monitoring hooks attached.
func NewPublisher(conf *ProducerConfig, metrics *kprom.Metrics, logger *zap.Logger) (*Publisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),    // Connects to Kafka brokers
		kgo.ClientID(conf.ClientName),       // Names this producer
		kgo.DefaultProduceTopic(conf.Topic), // Routes records to the events topic
		kgo.WithHooks(metrics),              // Attaches monitoring hooks
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, config: conf, logger: logger}, nil
}

type envelope struct {
	Event string       `json:"event"`
	At    time.Time    `json:"at"`
	Data  events.Event `json:"data"`
}

// Handle is an events.Handler; subscribe it to the bus with SubscribeAll.
// Records are keyed by tran_id so every outcome of one transaction lands
// on the same partition in order.
func (p *Publisher) Handle(ctx context.Context, evt events.Event) error {
	value, err := json.Marshal(envelope{Event: evt.Name(), At: time.Now().UTC(), Data: evt})
	if err != nil {
		return err
	}

	record := &kgo.Record{Key: []byte(evt.Key()), Value: value}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("failed to produce event",
				zap.String("event", evt.Name()),
				zap.String("tran_id", evt.Key()),
				zap.Error(err))
		}
	})
	return nil
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka flush on shutdown failed", zap.Error(err))
	}
	p.client.Close()
}
