package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	pkgkafka "github.com/utafrali/mobilebackend/pkg/kafka"
)

// TopicEmailRequested carries email requests to the mail worker.
var TopicEmailRequested = pkgkafka.Topic("notification", "email.requested")

// EmailQueue is the RabbitMQ queue used when email goes over AMQP.
const EmailQueue = "notification.email.requested"

const aggregateType = "notification"

// EventPublisher publishes Kafka events. *pkgkafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// KafkaEmailSender hands email notifications to the mail worker over Kafka.
type KafkaEmailSender struct {
	publisher EventPublisher
	source    string
}

// NewKafkaEmailSender creates an email sender publishing to TopicEmailRequested.
func NewKafkaEmailSender(publisher EventPublisher, source string) *KafkaEmailSender {
	return &KafkaEmailSender{publisher: publisher, source: source}
}

// Name returns the name of this sender.
func (s *KafkaEmailSender) Name() string {
	return "kafka-email"
}

// Send publishes n as an email request event.
func (s *KafkaEmailSender) Send(ctx context.Context, n *Notification) error {
	evt, err := pkgkafka.NewEvent(ctx, TopicEmailRequested, n.ID, aggregateType, s.source, n)
	if err != nil {
		return fmt.Errorf("create email event: %w", err)
	}
	if err := s.publisher.Publish(ctx, TopicEmailRequested, evt); err != nil {
		return fmt.Errorf("publish email event: %w", err)
	}
	return nil
}

// AMQPPublisher is the publishing half of an AMQP channel. *amqp.Channel
// satisfies it.
type AMQPPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPEmailSender hands email notifications to the mail worker over RabbitMQ.
type AMQPEmailSender struct {
	ch    AMQPPublisher
	queue string
}

// NewAMQPEmailSender creates an email sender publishing persistent messages
// to queue on the default exchange.
func NewAMQPEmailSender(ch AMQPPublisher, queue string) *AMQPEmailSender {
	return &AMQPEmailSender{ch: ch, queue: queue}
}

// Name returns the name of this sender.
func (s *AMQPEmailSender) Name() string {
	return "amqp-email"
}

// Send publishes n as a JSON message.
func (s *AMQPEmailSender) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Timestamp:    time.Now().UTC(),
		Type:         n.Kind,
		Body:         body,
	}
	if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish email request: %w", err)
	}
	return nil
}

// AMQPConn is an open RabbitMQ connection with the channel used for
// publishing email requests.
type AMQPConn struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

// DialAMQP connects to RabbitMQ and declares the durable email queue.
func DialAMQP(url, queue string) (*AMQPConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &AMQPConn{conn: conn, Channel: ch}, nil
}

// Ping reports whether the connection is still open.
func (c *AMQPConn) Ping(_ context.Context) error {
	if c.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

// Close closes the channel and the connection.
func (c *AMQPConn) Close() error {
	_ = c.Channel.Close()
	return c.conn.Close()
}
