package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/infrastructure/config"
	"github.com/erp/customer/internal/infrastructure/logger"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Notification outcomes reported to NotificationObserver
const (
	OutcomeSent     = "sent"
	OutcomeLimited  = "limited"
	OutcomeFailed   = "failed"
	OutcomeOpen     = "open"
	OutcomeFallback = "fallback"
)

// Breaker defaults used when the configuration leaves them unset
const (
	DefaultBreakerFailures    = 5
	DefaultBreakerOpenTimeout = 30 * time.Second
	DefaultBreakerHalfOpenMax = 1
)

const breakerName = "mail"

// Mail is the message announcing a new customer to sales
type Mail struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewCustomerMail builds the mail announcing c
func NewCustomerMail(c customer.Customer, from, to string) Mail {
	return Mail{
		To:      to,
		From:    from,
		Subject: fmt.Sprintf("New customer %s", c.ID),
		Body:    fmt.Sprintf("<b>New customer:</b> <i>%s</i>", c.LastName),
	}
}

// Publisher sends a keyed message
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Fallback receives mails the broker did not take and reports whether it
// delivered them
type Fallback interface {
	Send(ctx context.Context, mail Mail) bool
}

// NotificationObserver counts notification outcomes
type NotificationObserver interface {
	ObserveNotification(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveNotification(string) {}

// MailNotifier publishes a mail to Kafka for every new customer. A circuit
// breaker stops calling a failing broker and a rate limiter caps the send
// rate. Mails that are limited, rejected by the open breaker or not accepted
// by the broker go to the fallback.
type MailNotifier struct {
	publisher Publisher
	fallback  Fallback
	breaker   *gobreaker.CircuitBreaker[struct{}]
	limiter   *rate.Limiter
	from      string
	to        string
	observer  NotificationObserver
	logger    *zap.Logger
}

// NotifierOption configures a MailNotifier
type NotifierOption func(*MailNotifier)

// WithObserver sets the outcome observer
func WithObserver(o NotificationObserver) NotifierOption {
	return func(n *MailNotifier) {
		if o != nil {
			n.observer = o
		}
	}
}

// WithLimiter replaces the limiter built from configuration
func WithLimiter(l *rate.Limiter) NotifierOption {
	return func(n *MailNotifier) {
		if l != nil {
			n.limiter = l
		}
	}
}

// WithNotifierLogger sets the logger
func WithNotifierLogger(l *zap.Logger) NotifierOption {
	return func(n *MailNotifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewMailNotifier creates a notifier. A non-positive rate disables limiting;
// unset breaker settings use the Default* values.
func NewMailNotifier(publisher Publisher, fallback Fallback, cfg config.MailConfig, opts ...NotifierOption) *MailNotifier {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	n := &MailNotifier{
		publisher: publisher,
		fallback:  fallback,
		limiter:   rate.NewLimiter(limit, burst),
		from:      cfg.From,
		to:        cfg.Sales,
		observer:  nopObserver{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.breaker = gobreaker.NewCircuitBreaker[struct{}](n.breakerSettings(cfg))
	return n
}

func (n *MailNotifier) breakerSettings(cfg config.MailConfig) gobreaker.Settings {
	failures := uint32(DefaultBreakerFailures)
	if cfg.BreakerFailures > 0 {
		failures = uint32(cfg.BreakerFailures)
	}
	halfOpen := uint32(DefaultBreakerHalfOpenMax)
	if cfg.BreakerHalfOpenRequests > 0 {
		halfOpen = uint32(cfg.BreakerHalfOpenRequests)
	}
	timeout := DefaultBreakerOpenTimeout
	if cfg.BreakerOpenTimeout > 0 {
		timeout = cfg.BreakerOpenTimeout
	}
	return gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: halfOpen,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			n.logger.Warn("Mail circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

var _ customer.Notifier = (*MailNotifier)(nil)

// Notify never reports failure; undeliverable mails go to the fallback
func (n *MailNotifier) Notify(ctx context.Context, c customer.Customer) {
	mail := NewCustomerMail(c, n.from, n.to)

	if !n.limiter.Allow() {
		n.observer.ObserveNotification(OutcomeLimited)
		logger.WithLogger(ctx, n.logger).Warn("New customer mail rate limited",
			zap.String("customer_id", c.ID))
		n.toFallback(ctx, mail)
		return
	}

	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.publisher.Publish(ctx, c.ID, mail)
	})
	switch {
	case err == nil:
		n.observer.ObserveNotification(OutcomeSent)
		return
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		n.observer.ObserveNotification(OutcomeOpen)
		logger.WithLogger(ctx, n.logger).Warn("Mail circuit breaker open, skipping broker",
			zap.String("customer_id", c.ID))
	default:
		n.observer.ObserveNotification(OutcomeFailed)
		logger.WithLogger(ctx, n.logger).Warn("Failed to publish new customer mail",
			zap.String("customer_id", c.ID),
			zap.Error(err))
	}
	n.toFallback(ctx, mail)
}

func (n *MailNotifier) toFallback(ctx context.Context, mail Mail) {
	if n.fallback != nil && n.fallback.Send(ctx, mail) {
		n.observer.ObserveNotification(OutcomeFallback)
	}
}
