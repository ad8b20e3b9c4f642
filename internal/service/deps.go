package service

import (
	"context"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/notify"
)

// UserEvents publishes account lifecycle events. *event.Producer satisfies it.
type UserEvents interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserVerified(ctx context.Context, user *domain.User) error
	PublishUserPasswordChanged(ctx context.Context, user *domain.User) error
	PublishUserDeleted(ctx context.Context, user *domain.User) error
}

// PaymentEvents publishes payment settlement events. *event.Producer
// satisfies it.
type PaymentEvents interface {
	PublishPaymentSucceeded(ctx context.Context, payment *domain.Payment) error
	PublishPaymentFailed(ctx context.Context, payment *domain.Payment) error
}

// Notifier queues notifications for asynchronous delivery.
// *notify.Dispatcher satisfies it.
type Notifier interface {
	Enqueue(ctx context.Context, n *notify.Notification) bool
}
