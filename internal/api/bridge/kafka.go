// Package bridge holds EventSink implementations for process targets
// other than a local child process (api.Helper already covers that
// case directly). Today that means publishing the same event envelope
// to a Kafka topic, for deployments that centralize BGP/BMP events
// through a broker instead of spawning a helper per box.
package bridge

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub000/internal/api"
)

// KafkaSink publishes encoded events to one topic. It implements the
// same Send(api.Event) shape as api.Helper so the reactor can route a
// peer's subscription to either without caring which.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	enc    api.Encoder
	logger *zap.Logger
}

// KafkaConfig is the subset of connection settings a producer needs.
type KafkaConfig struct {
	Brokers  []string
	ClientID string
	TLS      *tls.Config
	SASL     sasl.Mechanism
}

// NewKafkaSink connects a producer client to brokers and returns a
// sink that publishes to topic using enc to serialize each Event.
func NewKafkaSink(cfg KafkaConfig, topic string, enc api.Encoder, logger *zap.Logger) (*KafkaSink, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchMaxBytes(1 << 20),
	}
	if cfg.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(cfg.TLS))
	}
	if cfg.SASL != nil {
		opts = append(opts, kgo.SASL(cfg.SASL))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("bridge: kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, enc: enc, logger: logger}, nil
}

// Send encodes e and produces it asynchronously, logging (but not
// blocking the caller on) a delivery failure. The reactor's event fan
// out must not stall BGP processing on broker backpressure.
func (k *KafkaSink) Send(e api.Event) {
	record := &kgo.Record{Topic: k.topic, Key: []byte(e.PeerAddr), Value: k.enc.Encode(e)}
	k.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.logger.Warn("kafka produce failed", zap.String("topic", k.topic), zap.Error(err))
		}
	})
}

// Dead always reports false: a Kafka sink has no child process to
// exhaust a respawn budget on. Transient broker errors are handled by
// the client's own retry/backoff, per-record, inside Send.
func (k *KafkaSink) Dead() bool { return false }

// Close flushes and closes the underlying client.
func (k *KafkaSink) Close() {
	_ = k.client.Flush(context.Background())
	k.client.Close()
}
