package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backend type identifiers accepted by New.
const (
	TypeLark = "lark"
	TypeLog  = "log"
)

// DefaultTimeout bounds one outbound notification round trip.
const DefaultTimeout = 10 * time.Second

var (
	// ErrInvalidURL is returned when the backend address is not an absolute
	// http(s) URL.
	ErrInvalidURL = errors.New("invalid bot url")
	// ErrUnknownType is returned for an unsupported backend type.
	ErrUnknownType = errors.New("unknown bot type")
)

// Bot delivers events to one notification backend.
// Implementations must be safe for concurrent use.
type Bot interface {
	// Send delivers ev and reports the outcome. It never returns an error:
	// failures are carried in the Result.
	Send(ctx context.Context, ev Event) Result
	// Type returns the backend identifier (e.g., "lark", "log").
	Type() string
}

// Config selects and configures the notification backend.
type Config struct {
	Type    string        `mapstructure:"type"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// New builds the backend selected by cfg.Type. The returned Bot is
// instrumented with Prometheus counters.
func New(cfg Config, logger *zap.Logger) (Bot, error) {
	var (
		bot Bot
		err error
	)
	switch cfg.Type {
	case TypeLark, "":
		bot, err = NewLarkBot(cfg)
	case TypeLog:
		bot = NewLogBot(logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(bot), nil
}
