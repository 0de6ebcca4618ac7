package notify

import (
	"context"

	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Bot = (*LogBot)(nil)

// LogBot writes notifications to the logger instead of a chat backend.
// Useful for dry runs and local development.
type LogBot struct {
	logger *zap.Logger
}

// NewLogBot creates a LogBot. A nil logger discards everything.
func NewLogBot(logger *zap.Logger) *LogBot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogBot{logger: logger}
}

// Send logs the card fields and always succeeds.
func (b *LogBot) Send(_ context.Context, ev Event) Result {
	card := BuildLarkCard(ev)
	b.logger.Info("notification",
		zap.String("title", card.Content.Post.ZhCN.Title),
		zap.String("user", ev.User),
		zap.String("description", ev.Description),
		zap.String("event_time", FormatEventTime(ev.EventTime)),
	)
	return Result{Code: 0, Msg: "logged"}
}

// Type returns the backend identifier.
func (b *LogBot) Type() string {
	return TypeLog
}
