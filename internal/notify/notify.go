// Package notify builds and delivers change notifications.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yoshidak/webwatch/internal/watch"
)

// Notifier sends at-most-once change notifications through a Pusher.
// Delivery failures are reported to the caller but never retried here;
// the next detected change produces the next message.
type Notifier struct {
	pusher    watch.Pusher
	recipient string
	logger    *zap.Logger
}

// New creates a Notifier.
func New(pusher watch.Pusher, recipient string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pusher: pusher, recipient: recipient, logger: logger}
}

// Message renders the notification body for a changed target.
func Message(target watch.MonitorTarget) string {
	return fmt.Sprintf("📡 更新検知\n%s\n%s", target.Label(), target.URL)
}

// NotifyChange pushes a change message for the target.
func (n *Notifier) NotifyChange(ctx context.Context, target watch.MonitorTarget) error {
	text := Message(target)
	if err := n.pusher.Push(ctx, n.recipient, text); err != nil {
		n.logger.Warn("notification push failed",
			zap.String("word", target.Word),
			zap.String("url", target.URL),
			zap.Error(err),
		)
		return fmt.Errorf("push notification: %w", err)
	}
	n.logger.Info("notification sent",
		zap.String("word", target.Word),
		zap.String("url", target.URL),
	)
	return nil
}

// LogPusher is a Pusher that only logs, for dry runs and local work.
type LogPusher struct {
	Logger *zap.Logger
}

// Push logs the message instead of delivering it.
func (p *LogPusher) Push(_ context.Context, recipient string, text string) error {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification (log backend)",
		zap.String("recipient", recipient),
		zap.String("text", text),
	)
	return nil
}
