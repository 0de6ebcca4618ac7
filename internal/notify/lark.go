package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// TitlePrefix is prepended to Event.Event to build the card title.
const TitlePrefix = "【NOTICE】"

// eventTimeFormat drops seconds on purpose: cards show minute granularity.
const eventTimeFormat = "2006-01-02 15:04"

// maxResponseBytes caps how much of the backend answer is decoded.
const maxResponseBytes = 1 << 20

// Compile-time interface guard.
var _ Bot = (*LarkBot)(nil)

// LarkMessage is the JSON body of a Lark custom-bot "post" message.
type LarkMessage struct {
	MsgType string      `json:"msg_type"`
	Content LarkContent `json:"content"`
}

// LarkContent wraps the localized post bodies.
type LarkContent struct {
	Post LarkPostLocales `json:"post"`
}

// LarkPostLocales holds one post per locale. Only zh_cn is sent.
type LarkPostLocales struct {
	ZhCN LarkPost `json:"zh_cn"`
}

// LarkPost is a titled rich-text body made of rows of elements.
type LarkPost struct {
	Title   string          `json:"title"`
	Content [][]LarkElement `json:"content"`
}

// LarkElement is one inline element of a post row.
type LarkElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// FormatEventTime renders t in local time at minute granularity.
func FormatEventTime(t time.Time) string {
	return t.Local().Format(eventTimeFormat)
}

// BuildLarkCard converts ev into the Lark post card: title is TitlePrefix
// plus the event name, followed by user, description and event time rows.
func BuildLarkCard(ev Event) LarkMessage {
	row := func(text string) []LarkElement {
		return []LarkElement{{Tag: "text", Text: text}}
	}
	return LarkMessage{
		MsgType: "post",
		Content: LarkContent{
			Post: LarkPostLocales{
				ZhCN: LarkPost{
					Title: TitlePrefix + ev.Event,
					Content: [][]LarkElement{
						row(ev.User),
						row(ev.Description),
						row(FormatEventTime(ev.EventTime)),
					},
				},
			},
		},
	}
}

// LarkBot posts events to a Lark custom-bot webhook.
// One http.Client is shared by all callers.
type LarkBot struct {
	client *http.Client
	url    string
}

// NewLarkBot validates cfg.URL and creates the webhook backend.
func NewLarkBot(cfg Config) (*LarkBot, error) {
	if err := validateURL(cfg.URL); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LarkBot{
		client: &http.Client{Timeout: timeout},
		url:    cfg.URL,
	}, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// Send posts the card for ev. Transport and decoding failures yield
// CodeDispatchFailure; a decoded backend answer is returned as is.
func (b *LarkBot) Send(ctx context.Context, ev Event) Result {
	res, err := b.request(ctx, ev)
	if err != nil {
		return failure(err)
	}
	return res
}

func (b *LarkBot) request(ctx context.Context, ev Event) (Result, error) {
	body, err := json.Marshal(BuildLarkCard(ev))
	if err != nil {
		return Result{}, fmt.Errorf("marshal lark card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create lark request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("lark POST: %w", err)
	}
	defer resp.Body.Close()

	return decodeResult(io.LimitReader(resp.Body, maxResponseBytes))
}

// decodeResult requires the {code, msg, data} shape; anything else is a
// decode failure.
func decodeResult(r io.Reader) (Result, error) {
	var raw struct {
		Code *int            `json:"code"`
		Msg  *string         `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("decode lark response: %w", err)
	}
	if raw.Code == nil || raw.Msg == nil {
		return Result{}, errors.New("decode lark response: missing code or msg")
	}

	res := Result{Code: *raw.Code, Msg: *raw.Msg}
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		var data any
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return Result{}, fmt.Errorf("decode lark response data: %w", err)
		}
		res.Data = data
	}
	return res, nil
}

// Type returns the backend identifier.
func (b *LarkBot) Type() string {
	return TypeLark
}
