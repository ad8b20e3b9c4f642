package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/mobilebackend/internal/domain"
	pkgkafka "github.com/utafrali/mobilebackend/pkg/kafka"
)

// Kafka topics for domain events.
var (
	TopicUserRegistered      = pkgkafka.Topic("user", "registered")
	TopicUserVerified        = pkgkafka.Topic("user", "verified")
	TopicUserPasswordChanged = pkgkafka.Topic("user", "password_changed")
	TopicUserDeleted         = pkgkafka.Topic("user", "deleted")
	TopicPaymentSucceeded    = pkgkafka.Topic("payment", "succeeded")
	TopicPaymentFailed       = pkgkafka.Topic("payment", "failed")
)

// Aggregate types.
const (
	AggregateTypeUser    = "user"
	AggregateTypePayment = "payment"
)

// Source identifies events originating from this backend.
const Source = "mobile-backend"

// UserData is the payload of every user event.
type UserData struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

// PaymentData is the payload of payment events.
type PaymentData struct {
	UID    string          `json:"uid"`
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	Status string          `json:"status"`
	BillID string          `json:"bill_id,omitempty"`
	Email  string          `json:"email,omitempty"`
}

// Publisher is the Kafka side of the producer. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new domain event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publishUser(ctx, TopicUserRegistered, user)
}

// PublishUserVerified publishes a user.verified event.
func (p *Producer) PublishUserVerified(ctx context.Context, user *domain.User) error {
	return p.publishUser(ctx, TopicUserVerified, user)
}

// PublishUserPasswordChanged publishes a user.password_changed event.
func (p *Producer) PublishUserPasswordChanged(ctx context.Context, user *domain.User) error {
	return p.publishUser(ctx, TopicUserPasswordChanged, user)
}

// PublishUserDeleted publishes a user.deleted event.
func (p *Producer) PublishUserDeleted(ctx context.Context, user *domain.User) error {
	return p.publishUser(ctx, TopicUserDeleted, user)
}

// PublishPaymentSucceeded publishes a payment.succeeded event.
func (p *Producer) PublishPaymentSucceeded(ctx context.Context, payment *domain.Payment) error {
	return p.publishPayment(ctx, TopicPaymentSucceeded, payment)
}

// PublishPaymentFailed publishes a payment.failed event.
func (p *Producer) PublishPaymentFailed(ctx context.Context, payment *domain.Payment) error {
	return p.publishPayment(ctx, TopicPaymentFailed, payment)
}

func (p *Producer) publishUser(ctx context.Context, topic string, user *domain.User) error {
	data := UserData{
		ID:         user.ID,
		Email:      user.Email,
		Mobile:     user.Mobile,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		IsVerified: user.IsVerified,
	}
	return p.publish(ctx, topic, user.ID, AggregateTypeUser, data)
}

func (p *Producer) publishPayment(ctx context.Context, topic string, payment *domain.Payment) error {
	data := PaymentData{
		UID:    payment.UID,
		Amount: payment.Amount,
		Method: string(payment.Method),
		Status: string(payment.Status),
		Email:  payment.Email,
	}
	if payment.BillID != nil {
		data.BillID = *payment.BillID
	}
	return p.publish(ctx, topic, payment.UID, AggregateTypePayment, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(ctx, topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
