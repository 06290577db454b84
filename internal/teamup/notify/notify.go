// Package notify delivers best-effort email notifications about account and
// team events.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/teamup/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultTimeout bounds a single Dispatch call.
const DefaultTimeout = 10 * time.Second

// Message is a single outbound email. HTML is optional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Notifier sends a message. Implementations must be safe for concurrent use.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "teamup",
	Name:      "notifications_total",
	Help:      "Notifications dispatched, by result.",
}, []string{"result"})

// Dispatch sends msg through n and never fails the caller. Errors are logged
// with the request logger and counted.
func Dispatch(ctx context.Context, n Notifier, msg Message) {
	if n == nil || msg.To == "" {
		notificationsTotal.WithLabelValues("skipped").Inc()
		return
	}

	// Sends outlive the request that triggered them.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
	defer cancel()

	log := slogx.FromContext(ctx)
	if err := n.Send(ctx, msg); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		log.Warn("notification failed",
			slog.String("subject", msg.Subject),
			slog.Any("error", err),
		)
		return
	}

	notificationsTotal.WithLabelValues("sent").Inc()
	log.Debug("notification sent", slog.String("subject", msg.Subject))
}

// LogNotifier writes messages to a logger instead of sending them. It is the
// development default.
type LogNotifier struct {
	Logger *slog.Logger
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*SMTPNotifier)(nil)
)

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	log := n.Logger
	if log == nil {
		log = slogx.FromContext(ctx)
	}
	log.Info("email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
	)
	return nil
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, msg Message) error

func (f Func) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
