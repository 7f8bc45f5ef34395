package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/devblac/ibc-watch/internal/ibc"
)

// EventPayload is the data passed to sinks.
type EventPayload struct {
	RuleID              string
	EventID             string
	ChainID             string
	CounterpartyChainID string
	Name                string
	SpecID              string
	ClientType          string
	ProvableHeight      string
	TxHash              string
	Fields              map[string]any
	Event               ibc.ChainEvent
}

type Sender interface {
	Send(ctx context.Context, payload EventPayload) error
}

// StatusError is returned when a sink endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("sink http status %d", e.Code) }

// StatusCode extracts the HTTP status of a failed send, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

type httpSender struct {
	url       string
	method    string
	render    *template.Template
	client    *http.Client
	headers   map[string]string
	withEvent bool
}

// NewWebhookSender builds a generic HTTP sink. The body carries the rendered text and the full
// canonical event.
func NewWebhookSender(url, method, tmpl string, headers map[string]string) (Sender, error) {
	s, err := newHTTPSender(url, method, tmpl, headers)
	if err != nil {
		return nil, err
	}
	s.withEvent = true
	return s, nil
}

func newHTTPSender(url, method, tmpl string, headers map[string]string) (*httpSender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url required")
	}
	if method == "" {
		method = http.MethodPost
	}
	t, err := parseTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	return &httpSender{
		url:     url,
		method:  strings.ToUpper(method),
		render:  t,
		client:  defaultClient(),
		headers: headers,
	}, nil
}

// NewSlackSender builds a Slack-compatible webhook sink.
func NewSlackSender(url, tmpl string) (Sender, error) {
	return newHTTPSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
}

// NewTeamsSender builds a Teams-compatible webhook sink.
func NewTeamsSender(url, tmpl string) (Sender, error) {
	// Teams accepts simple {text: "..."} payloads.
	return newHTTPSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
}

func (s *httpSender) Send(ctx context.Context, payload EventPayload) error {
	bodyStr, err := executeTemplate(s.render, payload)
	if err != nil {
		return err
	}
	body := map[string]any{"text": bodyStr}
	if s.withEvent {
		body["rule_id"] = payload.RuleID
		body["event_id"] = payload.EventID
		body["event"] = payload.Event
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

type writerSender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSender writes one JSON line per event, {"rule_id", "event_id", "event"}.
func NewWriterSender(w io.Writer) Sender {
	return &writerSender{w: w}
}

func (s *writerSender) Send(_ context.Context, payload EventPayload) error {
	line, err := json.Marshal(map[string]any{
		"rule_id":  payload.RuleID,
		"event_id": payload.EventID,
		"event":    payload.Event,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func parseTemplate(tmpl string) (*template.Template, error) {
	if tmpl == "" {
		tmpl = "{{.ChainID}} {{.Name}} {{.TxHash}}"
	}
	funcs := template.FuncMap{
		"pretty_json": func(v any) string {
			out, _ := json.MarshalIndent(v, "", "  ")
			return string(out)
		},
		"short_hash": func(h string) string {
			if len(h) <= 10 {
				return h
			}
			return h[:6] + "..." + h[len(h)-4:]
		},
	}
	return template.New("msg").Funcs(funcs).Parse(tmpl)
}

func executeTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func defaultClient() *http.Client {
	return &http.Client{
		Timeout: 8 * time.Second,
	}
}
