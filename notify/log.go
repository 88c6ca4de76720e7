package notify

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/selfauth"
)

// LogNotifier records that a message would have been sent. Tokens are not
// logged, so links issued while it is configured cannot be used.
type LogNotifier struct {
	Logger *slog.Logger
}

var _ selfauth.Notifier = LogNotifier{}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n LogNotifier) SendWelcome(ctx context.Context, email, _ string) error {
	n.logger().InfoContext(ctx, "notification suppressed", "kind", "welcome", "email", email)
	return nil
}

func (n LogNotifier) SendPasswordReset(ctx context.Context, email, _, _ string) error {
	n.logger().InfoContext(ctx, "notification suppressed", "kind", "password_reset", "email", email)
	return nil
}

func (n LogNotifier) SendMagicLink(ctx context.Context, email, _, _ string) error {
	n.logger().InfoContext(ctx, "notification suppressed", "kind", "magic_link", "email", email)
	return nil
}
