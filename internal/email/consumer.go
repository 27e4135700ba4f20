package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Deduper is the idempotency barrier the processor checks before sending.
type Deduper interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkAsProcessed(ctx context.Context, event EmailEvent) (bool, error)
}

// Processor delivers one email event with retries. It knows nothing about Kafka.
type Processor struct {
	sender     Sender
	dedup      Deduper
	maxRetries int
	backoff    time.Duration
	deadLetter func(EmailEvent, error)
	logger     *slog.Logger
}

// NewProcessor creates a Processor. deadLetter receives events that exhausted their retries.
func NewProcessor(sender Sender, dedup Deduper, maxRetries int, deadLetter func(EmailEvent, error), logger *slog.Logger) *Processor {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if deadLetter == nil {
		deadLetter = func(EmailEvent, error) {}
	}
	return &Processor{
		sender:     sender,
		dedup:      dedup,
		maxRetries: maxRetries,
		backoff:    time.Second,
		deadLetter: deadLetter,
		logger:     logger,
	}
}

// Process handles a raw event and reports whether its offset may be committed.
// Malformed, duplicate, delivered and dead-lettered events are all committed;
// a Redis failure is not, so the event is read again.
func (p *Processor) Process(ctx context.Context, raw []byte) bool {
	var event EmailEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		p.logger.Error("Failed to parse email event",
			"error", err,
			"raw_value", string(raw))
		return true
	}

	if event.MessageID == "" || event.Recipient == "" {
		p.logger.Error("Email event missing message_id or recipient",
			"messageID", event.MessageID,
			"type", event.EventType)
		return true
	}

	isProcessed, err := p.dedup.IsProcessed(ctx, event.MessageID)
	if err != nil {
		p.logger.Error("Failed to check idempotency",
			"messageID", event.MessageID,
			"error", err)
		return false
	}
	if isProcessed {
		p.logger.Warn("Duplicate email event detected, skipping",
			"messageID", event.MessageID,
			"type", event.EventType)
		return true
	}

	if err := p.sendWithRetry(ctx, event); err != nil {
		p.logger.Error("Failed to process email event after retries",
			"messageID", event.MessageID,
			"error", err)
		p.deadLetter(event, err)
		return true
	}

	if _, err := p.dedup.MarkAsProcessed(ctx, event); err != nil {
		p.logger.Error("Failed to mark as processed",
			"messageID", event.MessageID,
			"error", err)
		return false
	}

	p.logger.Info("Email event processed successfully",
		"messageID", event.MessageID,
		"type", event.EventType)
	return true
}

// sendWithRetry backs off linearly (1s, 2s, ...) between attempts.
func (p *Processor) sendWithRetry(ctx context.Context, event EmailEvent) error {
	var lastErr error

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		err := p.sender.Send(ctx, event.Message())
		if err == nil {
			if attempt > 1 {
				p.logger.Info("Email sent successfully after retry",
					"messageID", event.MessageID,
					"attempt", attempt)
			}
			return nil
		}

		lastErr = err
		p.logger.Warn("Failed to send email, will retry",
			"messageID", event.MessageID,
			"attempt", attempt,
			"maxRetries", p.maxRetries,
			"error", err)

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * p.backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers       string
	Topic         string
	DLQTopic      string
	ConsumerGroup string
	MaxRetries    int
}

// Consumer reads email events from Kafka and feeds them to a Processor.
type Consumer struct {
	consumer    *kafka.Consumer
	dlqProducer *kafka.Producer
	processor   *Processor
	config      *ConsumerConfig
	logger      *slog.Logger
}

// NewConsumer creates a new Kafka consumer with manual offset commits.
func NewConsumer(config *ConsumerConfig, sender Sender, dedup Deduper, logger *slog.Logger) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  config.Brokers,
		"group.id":           config.ConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	dlqProducer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": config.Brokers,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
	}

	consumer := &Consumer{
		consumer:    c,
		dlqProducer: dlqProducer,
		config:      config,
		logger:      logger,
	}
	consumer.processor = NewProcessor(sender, dedup, config.MaxRetries, consumer.sendToDLQ, logger)

	logger.Info("Kafka consumer initialized",
		"brokers", config.Brokers,
		"topic", config.Topic,
		"group", config.ConsumerGroup)

	return consumer, nil
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.config.Topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}

	c.logger.Info("Starting to consume messages", "topic", c.config.Topic)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer shutting down...")
			return nil
		default:
		}

		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Error("Error reading message", "error", err)
			continue
		}

		c.logger.Debug("Received email event",
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset)

		if c.processor.Process(ctx, msg.Value) {
			c.commitMessage(msg)
		}
	}
}

// sendToDLQ sends a failed message to the Dead Letter Queue
func (c *Consumer) sendToDLQ(event EmailEvent, processingError error) {
	jsonData, err := json.Marshal(map[string]any{
		"original_event": event,
		"error":          processingError.Error(),
		"failed_at":      time.Now().UTC(),
		"consumer_group": c.config.ConsumerGroup,
	})
	if err != nil {
		c.logger.Error("Failed to marshal DLQ event",
			"messageID", event.MessageID,
			"error", err)
		return
	}

	err = c.dlqProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &c.config.DLQTopic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.MessageID),
		Value: jsonData,
	}, nil)
	if err != nil {
		c.logger.Error("Failed to send to DLQ",
			"messageID", event.MessageID,
			"error", err)
		return
	}

	c.logger.Warn("Email event sent to DLQ",
		"messageID", event.MessageID,
		"dlq_topic", c.config.DLQTopic)
}

func (c *Consumer) commitMessage(msg *kafka.Message) {
	if _, err := c.consumer.CommitMessage(msg); err != nil {
		c.logger.Error("Failed to commit offset",
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset,
			"error", err)
	}
}

// Close flushes the DLQ producer and closes the consumer
func (c *Consumer) Close() {
	c.logger.Info("Closing Kafka consumer...")
	c.dlqProducer.Flush(5000)
	c.dlqProducer.Close()
	c.consumer.Close()
	c.logger.Info("Kafka consumer closed")
}
