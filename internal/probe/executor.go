package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/HerbHall/larkwatch/internal/notify"
	"go.uber.org/zap"
)

// LaunchFailureUser is the Event.User of a command that could not be started.
const LaunchFailureUser = "larkwatch-probe"

// MaxOutputBytes caps the captured stderr embedded in an Event.
const MaxOutputBytes = 4096

const truncatedMarker = "...(truncated)"

// Outcome classifies one command execution.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeExitFailure
	OutcomeLaunchFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeExitFailure:
		return "exit_failure"
	case OutcomeLaunchFailure:
		return "launch_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Execution is the classified result of running one command.
type Execution struct {
	Outcome  Outcome
	ExitCode int
	Stderr   string // sanitized, see sanitizeOutput
	Err      error  // launch error, set for OutcomeLaunchFailure
	Duration time.Duration
	// Notified is true when a failure Event was handed to the bot.
	Notified bool
	Result   notify.Result
}

// Executor runs probe commands and reports failures to a Bot.
type Executor struct {
	bot    notify.Bot
	logger *zap.Logger
	now    func() time.Time
}

// NewExecutor creates an executor that reports failures to bot.
func NewExecutor(bot notify.Bot, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		bot:    bot,
		logger: logger,
		now:    time.Now,
	}
}

// Execute runs cmd to completion and classifies the outcome. Stdout is
// discarded and stderr captured. The command is not tied to any context and
// runs in its own process group: once started it always runs to completion.
func Execute(cmd []string) Execution {
	if len(cmd) == 0 {
		return Execution{Outcome: OutcomeLaunchFailure, ExitCode: -1, Err: errors.New("empty command")}
	}

	var stderr bytes.Buffer
	c := exec.Command(cmd[0], cmd[1:]...) //nolint:gosec // G204: commands come from the operator's task file
	c.Stdout = io.Discard
	c.Stderr = &stderr
	detach(c)

	start := time.Now()
	err := c.Run()
	elapsed := time.Since(start)

	if err == nil {
		return Execution{Outcome: OutcomeSuccess, Duration: elapsed}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Execution{
			Outcome:  OutcomeExitFailure,
			ExitCode: exitErr.ExitCode(),
			Stderr:   sanitizeOutput(stderr.Bytes()),
			Duration: elapsed,
		}
	}

	return Execution{
		Outcome:  OutcomeLaunchFailure,
		ExitCode: -1,
		Err:      err,
		Duration: elapsed,
	}
}

// Run executes task's command and, on failure, sends exactly one Event for
// it. The notification outcome is logged and otherwise dropped.
func (e *Executor) Run(ctx context.Context, task TaskConfig) Execution {
	log := e.logger.With(
		zap.String("task", task.Name),
		zap.String("command", task.CommandLine()),
	)

	res := Execute(task.Command)
	observeRun(task.Name, res)

	var ev notify.Event
	switch res.Outcome {
	case OutcomeSuccess:
		log.Info("command succeeded", zap.Duration("duration", res.Duration))
		return res
	case OutcomeExitFailure:
		ev = notify.Event{
			Event:       task.Name,
			EventTime:   e.now(),
			User:        task.CommandLine(),
			Description: fmt.Sprintf("probe result: code=%d, stderr=%s", res.ExitCode, res.Stderr),
		}
	case OutcomeLaunchFailure:
		ev = notify.Event{
			Event:       task.Name,
			EventTime:   e.now(),
			User:        LaunchFailureUser,
			Description: fmt.Sprintf("probe failed: err=%v", res.Err),
		}
	}

	if e.bot == nil {
		log.Warn("command failed, no bot configured",
			zap.Stringer("outcome", res.Outcome),
			zap.Int("exit_code", res.ExitCode),
		)
		return res
	}

	res.Result = e.bot.Send(ctx, ev)
	res.Notified = true

	fields := []zap.Field{
		zap.Stringer("outcome", res.Outcome),
		zap.Int("exit_code", res.ExitCode),
		zap.Int("notify_code", res.Result.Code),
		zap.String("notify_msg", res.Result.Msg),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	if res.Result.OK() {
		log.Info("command failed, notification sent", fields...)
	} else {
		log.Warn("command failed, notification not delivered", fields...)
	}
	return res
}

// sanitizeOutput replaces invalid UTF-8, trims surrounding whitespace and
// caps the text at MaxOutputBytes without splitting a rune.
func sanitizeOutput(b []byte) string {
	s := strings.TrimSpace(strings.ToValidUTF8(string(b), string(utf8.RuneError)))
	if len(s) <= MaxOutputBytes {
		return s
	}
	cut := MaxOutputBytes - len(truncatedMarker)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedMarker
}
