package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LogNotifier writes codes to the log instead of delivering them. It stands
// in for SMTP in development.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendCode(ctx context.Context, msg Message) error {
	if msg.Channel != ChannelEmail {
		return fmt.Errorf("%w: %s", ErrNotImplemented, msg.Channel)
	}

	n.logger.Info("one-time code issued",
		zap.String("kind", string(msg.Kind)),
		zap.String("destination", msg.Destination),
		zap.String("code", msg.Code),
	)
	return nil
}
