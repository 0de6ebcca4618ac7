package probe

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Validation errors for TaskConfig.
var (
	ErrNoName          = errors.New("task name is empty")
	ErrInvalidInterval = errors.New("task interval must be positive")
	ErrShortCommand    = errors.New("task command needs a program and at least one argument")
)

// TaskConfig describes one probe. Tasks are loaded once at startup and never
// changed afterwards.
type TaskConfig struct {
	Name     string
	Interval time.Duration
	Command  []string
}

// Validate reports why the task cannot be scheduled, or nil.
func (t TaskConfig) Validate() error {
	switch {
	case strings.TrimSpace(t.Name) == "":
		return ErrNoName
	case t.Interval <= 0:
		return fmt.Errorf("%w: %s", ErrInvalidInterval, t.Interval)
	case len(t.Command) < 2:
		return fmt.Errorf("%w: got %d element(s)", ErrShortCommand, len(t.Command))
	}
	return nil
}

// CommandLine returns the command joined with single spaces.
func (t TaskConfig) CommandLine() string {
	return strings.Join(t.Command, " ")
}

// maxDurationSeconds is the largest whole-second value a time.Duration holds.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Duration is a YAML duration that accepts Go duration strings ("5s",
// "1m30s") or bare integers meaning seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	raw := strings.TrimSpace(node.Value)
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs <= 0 || secs > maxDurationSeconds {
			return fmt.Errorf("line %d: duration out of range: %d", node.Line, secs)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, raw, err)
	}
	*d = Duration(v)
	return nil
}

// taskEntry is one record of the task file.
type taskEntry struct {
	Name     string    `yaml:"name"`
	Interval *Duration `yaml:"interval"`
	// Duration is the legacy field name, in seconds.
	Duration *Duration `yaml:"duration"`
	Cmd      []string  `yaml:"cmd"`
}

func (e taskEntry) config() TaskConfig {
	var interval time.Duration
	switch {
	case e.Interval != nil:
		interval = time.Duration(*e.Interval)
	case e.Duration != nil:
		interval = time.Duration(*e.Duration)
	}
	return TaskConfig{
		Name:     e.Name,
		Interval: interval,
		Command:  e.Cmd,
	}
}

// LoadTasks reads the YAML task list at path. An unreadable file is an
// error. A document that is not a list yields no tasks; entries that fail
// to decode or validate are skipped. Both cases are logged.
func LoadTasks(path string, logger *zap.Logger) ([]TaskConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	return ParseTasks(content, logger), nil
}

// ParseTasks decodes a YAML task list. See LoadTasks.
func ParseTasks(content []byte, logger *zap.Logger) []TaskConfig {
	if logger == nil {
		logger = zap.NewNop()
	}

	var nodes []yaml.Node
	if err := yaml.Unmarshal(content, &nodes); err != nil {
		logger.Warn("cannot parse task file, no probes will run", zap.Error(err))
		return nil
	}

	tasks := make([]TaskConfig, 0, len(nodes))
	for i := range nodes {
		var entry taskEntry
		if err := nodes[i].Decode(&entry); err != nil {
			logger.Warn("skipping unparsable task entry",
				zap.Int("index", i),
				zap.Int("line", nodes[i].Line),
				zap.Error(err),
			)
			continue
		}
		cfg := entry.config()
		if err := cfg.Validate(); err != nil {
			logger.Warn("skipping invalid task",
				zap.Int("index", i),
				zap.String("task", cfg.Name),
				zap.Error(err),
			)
			continue
		}
		tasks = append(tasks, cfg)
	}
	return tasks
}
