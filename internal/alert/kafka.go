package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/config"
	kafkago "github.com/segmentio/kafka-go"
)

const defaultKafkaWriteTimeout = 10 * time.Second

type kafkaWriteMessage interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Kafka publishes each finding as one JSON message. The message key is the
// source file so a hashing balancer keeps a file's findings in order.
type Kafka struct {
	topic  string
	writer kafkaWriteMessage
}

// NewKafka builds a kafka sink from cfg.
func NewKafka(cfg config.KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka: brokers and topic are required")
	}
	balancer, err := kafkaBalancer(cfg.Balancer)
	if err != nil {
		return nil, err
	}
	timeout := defaultKafkaWriteTimeout
	if cfg.WriteTimeout != "" {
		if timeout, err = config.ParseDuration(cfg.WriteTimeout); err != nil {
			return nil, fmt.Errorf("kafka: write_timeout: %w", err)
		}
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     balancer,
		WriteTimeout: timeout,
		RequiredAcks: kafkago.RequireOne,
	}
	return &Kafka{topic: cfg.Topic, writer: w}, nil
}

func kafkaBalancer(name string) (kafkago.Balancer, error) {
	switch strings.ToLower(name) {
	case "", "leastbytes":
		return &kafkago.LeastBytes{}, nil
	case "roundrobin":
		return &kafkago.RoundRobin{}, nil
	case "hash":
		return &kafkago.Hash{}, nil
	case "crc32":
		return &kafkago.CRC32Balancer{}, nil
	case "murmur2":
		return &kafkago.Murmur2Balancer{}, nil
	default:
		return nil, fmt.Errorf("kafka: unknown balancer %q", name)
	}
}

// SendAlert publishes f.
func (k *Kafka) SendAlert(ctx context.Context, f anomaly.Finding) error {
	value, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("kafka: encode finding: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(f.Source()),
		Value: value,
		Time:  f.Time,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(f.Severity)},
			{Key: "rule", Value: []byte(f.Rule)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
