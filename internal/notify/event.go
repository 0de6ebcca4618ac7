// Package notify turns probe failures and relayed notices into chat
// notifications and normalizes every delivery outcome into a Result.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CodeDispatchFailure is returned in Result.Code when the notification never
// produced a backend answer (transport, encoding or decoding failure).
// Any other code comes from the backend itself.
const CodeDispatchFailure = -1

// ErrMissingField is returned when a decoded Event lacks a required field.
var ErrMissingField = errors.New("missing required field")

// eventTimeLayouts are tried in order when decoding event_time.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

// Event describes a detected condition. It is built once at the point of
// detection and never modified afterwards.
type Event struct {
	Event       string    `json:"event"`
	EventTime   time.Time `json:"event_time"`
	User        string    `json:"user"`
	Description string    `json:"description"`
}

// UnmarshalJSON requires all four fields and accepts a few timestamp layouts
// besides RFC 3339.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Event       *string `json:"event"`
		EventTime   *string `json:"event_time"`
		User        *string `json:"user"`
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Event == nil:
		return fmt.Errorf("%w: event", ErrMissingField)
	case raw.EventTime == nil:
		return fmt.Errorf("%w: event_time", ErrMissingField)
	case raw.User == nil:
		return fmt.Errorf("%w: user", ErrMissingField)
	case raw.Description == nil:
		return fmt.Errorf("%w: description", ErrMissingField)
	}

	ts, err := parseEventTime(*raw.EventTime)
	if err != nil {
		return err
	}

	*e = Event{
		Event:       *raw.Event,
		EventTime:   ts,
		User:        *raw.User,
		Description: *raw.Description,
	}
	return nil
}

func parseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid event_time %q: want RFC 3339", s)
}

// Result is the normalized outcome of one Send call.
type Result struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// OK reports whether the backend accepted the notification.
func (r Result) OK() bool {
	return r.Code == 0
}

// failure builds a dispatcher-level Result from err.
func failure(err error) Result {
	return Result{Code: CodeDispatchFailure, Msg: err.Error(), Data: nil}
}
