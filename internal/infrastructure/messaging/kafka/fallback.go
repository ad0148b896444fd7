package kafka

import (
	"context"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LoggingFallback records mails that could not be delivered
type LoggingFallback struct {
	logger *zap.Logger
}

// NewLoggingFallback creates a fallback writing to l
func NewLoggingFallback(l *zap.Logger) *LoggingFallback {
	if l == nil {
		l = zap.NewNop()
	}
	return &LoggingFallback{logger: l}
}

// Send logs mail at error level. The mail is not delivered, so it returns false.
func (f *LoggingFallback) Send(ctx context.Context, mail Mail) bool {
	logger.WithLogger(ctx, f.logger).Error("New customer mail not delivered",
		zap.String("to", mail.To),
		zap.String("from", mail.From),
		zap.String("subject", mail.Subject),
		zap.String("body", mail.Body))
	return false
}

// LogNotifier is the notifier used when Kafka is disabled
type LogNotifier struct {
	fallback *LoggingFallback
	from     string
	to       string
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(l *zap.Logger, from, to string) *LogNotifier {
	return &LogNotifier{fallback: NewLoggingFallback(l), from: from, to: to}
}

var _ customer.Notifier = (*LogNotifier)(nil)

// Notify logs the mail for c
func (n *LogNotifier) Notify(ctx context.Context, c customer.Customer) {
	n.fallback.Send(ctx, NewCustomerMail(c, n.from, n.to))
}
