package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer interface {
	Produce(ctx context.Context, key string, value []byte) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaProducer returns an async producer writing to topic. Delivery
// failures are reported through the logger only.
func NewKafkaProducer(brokerURLs []string, topic string, logger *zap.Logger) Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerURLs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Async:        true,
		Logger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
	writer.Completion = func(messages []kafka.Message, err error) {
		for _, msg := range messages {
			if err != nil {
				logger.Error("failed to write payment status event",
					zap.String("key", string(msg.Key)),
					zap.Error(err))
				continue
			}
			logger.Debug("payment status event written", zap.String("key", string(msg.Key)))
		}
	}
	return &kafkaProducer{writer: writer, logger: logger}
}

func (p *kafkaProducer) Produce(ctx context.Context, key string, value []byte) error {
	produceCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(produceCtx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("produce to kafka: %w", err)
	}
	return nil
}

func (p *kafkaProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	p.logger.Info("kafka producer closed")
	return nil
}

// NopProducer drops every event. It stands in when no broker is configured.
type NopProducer struct{}

func (NopProducer) Produce(ctx context.Context, key string, value []byte) error { return nil }
func (NopProducer) Close() error                                                { return nil }
