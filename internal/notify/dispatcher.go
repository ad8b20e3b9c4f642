package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/mobilebackend/pkg/logger"
)

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type job struct {
	n             *Notification
	correlationID string
}

// Dispatcher delivers notifications on a bounded queue drained by a fixed
// number of workers. Callers never wait for delivery.
type Dispatcher struct {
	senders map[string]Sender
	jobs    chan job
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts cfg.Workers workers delivering through senders, keyed
// by channel.
func NewDispatcher(cfg DispatcherConfig, senders map[string]Sender, logger *slog.Logger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		senders: senders,
		jobs:    make(chan job, cfg.QueueSize),
		timeout: cfg.SendTimeout,
		logger:  logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue queues n for delivery and reports whether it was accepted. A full
// queue or a closed dispatcher drops the notification.
func (d *Dispatcher) Enqueue(ctx context.Context, n *Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, n, "closed")
		return false
	}

	select {
	case d.jobs <- job{n: n, correlationID: logger.CorrelationIDFromContext(ctx)}:
		queueDepth.Inc()
		return true
	default:
		d.drop(ctx, n, "queue_full")
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) drop(ctx context.Context, n *Notification, reason string) {
	droppedTotal.WithLabelValues(n.Channel, reason).Inc()
	d.logger.WarnContext(ctx, "notification dropped",
		slog.String("notification_id", n.ID),
		slog.String("channel", n.Channel),
		slog.String("kind", n.Kind),
		slog.String("reason", reason),
	)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		queueDepth.Dec()
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx := context.Background()
	if j.correlationID != "" {
		ctx = logger.WithCorrelationID(ctx, j.correlationID)
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	n := j.n
	sender, ok := d.senders[n.Channel]
	if !ok {
		dispatchedTotal.WithLabelValues(n.Channel, "no_sender").Inc()
		d.logger.ErrorContext(ctx, "no sender for notification channel",
			slog.String("notification_id", n.ID),
			slog.String("channel", n.Channel),
		)
		return
	}

	if err := sender.Send(ctx, n); err != nil {
		dispatchedTotal.WithLabelValues(n.Channel, "error").Inc()
		d.logger.ErrorContext(ctx, "failed to send notification",
			slog.String("notification_id", n.ID),
			slog.String("channel", n.Channel),
			slog.String("kind", n.Kind),
			slog.String("sender", sender.Name()),
			slog.String("error", err.Error()),
		)
		return
	}

	dispatchedTotal.WithLabelValues(n.Channel, "sent").Inc()
	d.logger.InfoContext(ctx, "notification sent",
		slog.String("notification_id", n.ID),
		slog.String("channel", n.Channel),
		slog.String("kind", n.Kind),
		slog.String("sender", sender.Name()),
	)
}
