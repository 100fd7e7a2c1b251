package dispatch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// KafkaConfig configures the command producer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
	// SASLMechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512. Empty disables SASL.
	SASLMechanism string
	Username      string
	Password      string
	TLS           bool
}

// KafkaTransport publishes commands to a topic consumed by the agent
// runtime. Messages are keyed by agent so one agent's commands stay ordered.
type KafkaTransport struct {
	w       *kafka.Writer
	timeout time.Duration
}

// NewKafkaTransport creates a synchronous writer for cfg.Brokers/cfg.Topic.
func NewKafkaTransport(cfg KafkaConfig) (*KafkaTransport, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka transport needs brokers and a topic")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAgentdTimeout
	}
	transport, err := kafkaNetTransport(cfg, timeout)
	if err != nil {
		return nil, err
	}
	return &KafkaTransport{
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			Transport:    transport,
		},
		timeout: timeout,
	}, nil
}

func kafkaNetTransport(cfg KafkaConfig, timeout time.Duration) (*kafka.Transport, error) {
	mech, err := saslMechanism(cfg.SASLMechanism, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &kafka.Transport{
		TLS:         tlsConf,
		SASL:        mech,
		DialTimeout: timeout,
	}, nil
}

func saslMechanism(name, user, pass string) (sasl.Mechanism, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "":
		return nil, nil
	case "PLAIN":
		return plain.Mechanism{Username: user, Password: pass}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, user, pass)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, user, pass)
	default:
		return nil, fmt.Errorf("unsupported sasl mechanism: %s", name)
	}
}

func (k *KafkaTransport) Send(ctx context.Context, cmd Command) error {
	msg, err := buildMessage(cmd, time.Now())
	if err != nil {
		return err
	}
	var writeErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			slog.Debug("Kafka produce retry", "topic", k.w.Topic, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		writeCtx, cancel := context.WithTimeout(ctx, k.timeout)
		writeErr = k.w.WriteMessages(writeCtx, msg)
		cancel()
		if writeErr == nil {
			return nil
		}
		if !errors.Is(writeErr, kafka.NotLeaderForPartition) && !errors.Is(writeErr, kafka.LeaderNotAvailable) {
			break
		}
	}
	return fmt.Errorf("kafka produce %s: %w", cmd.Cmd, writeErr)
}

func (k *KafkaTransport) Close() error {
	return k.w.Close()
}

func buildMessage(cmd Command, now time.Time) (kafka.Message, error) {
	value, err := json.Marshal(cmd)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal command: %w", err)
	}
	key := cmd.Agent
	if key == "" {
		key = cmd.Cmd
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "cmd", Value: []byte(cmd.Cmd)},
			{Key: "trace_id", Value: []byte(cmd.TraceID)},
		},
		Time: now,
	}, nil
}
