package graphdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/emergent-company/emergent.graphcore/internal/config"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
)

// Client is a Driver speaking JSON to the graph engine's HTTP gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

// NewClient creates a gateway client from config
func NewClient(cfg *config.Config, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Graph.RequestTimeout,
		},
		baseURL: strings.TrimRight(cfg.Graph.BaseURL(), "/"),
		log:     log.With(logger.Scope("graphdb")),
	}
}

// Error is a failed gateway call
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph engine %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("graph engine: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps gateway error codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSyntax:
		return e.Code == "syntax_error"
	case ErrTxClosed:
		return e.Code == "transaction_closed" || e.Code == "transaction_not_found"
	case ErrSessionExpired:
		return e.Code == "session_not_found"
	case ErrUnavailable:
		return e.Code == "unavailable" || e.StatusCode == http.StatusServiceUnavailable
	}
	return false
}

// do sends in as JSON and decodes the response into out (either may be nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{
			StatusCode: http.StatusServiceUnavailable,
			Code:       "unavailable",
			Message:    fmt.Sprintf("graph engine unreachable at %s", c.baseURL),
			Err:        err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	c.log.Debug("gateway call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return c.handleErrorResponse(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) handleErrorResponse(status int, body []byte) *Error {
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	e := &Error{StatusCode: status}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		e.Code = errResp.Error.Code
		e.Message = errResp.Error.Message
	} else {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	c.log.Warn("graph engine error",
		slog.Int("status_code", status),
		slog.String("code", e.Code),
		slog.String("message", e.Message),
	)
	return e
}

// Session opens a session on database.
func (c *Client) Session(ctx context.Context, database string) (Session, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", map[string]string{"database": database}, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.New("graph engine returned an empty session id")
	}
	return &httpSession{client: c, id: resp.ID}, nil
}

type httpSession struct {
	client *Client
	id     string
}

func (s *httpSession) Transaction(ctx context.Context, typ TxType, opts TxOptions) (Transaction, error) {
	in := struct {
		Type  string `json:"type"`
		Infer bool   `json:"infer"`
	}{Type: typ.String(), Infer: opts.Infer}
	var resp struct {
		ID string `json:"id"`
	}
	path := "/v1/sessions/" + url.PathEscape(s.id) + "/transactions"
	if err := s.client.do(ctx, http.MethodPost, path, in, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.New("graph engine returned an empty transaction id")
	}
	return &httpTx{client: s.client, id: resp.ID, typ: typ}, nil
}

func (s *httpSession) Close(ctx context.Context) error {
	err := s.client.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(s.id), nil, nil)
	if errors.Is(err, ErrSessionExpired) {
		return nil
	}
	return err
}

type httpTx struct {
	client *Client
	id     string
	typ    TxType

	mu   sync.Mutex
	done bool
}

func (t *httpTx) Type() TxType { return t.typ }

func (t *httpTx) path(suffix string) string {
	return "/v1/transactions/" + url.PathEscape(t.id) + suffix
}

func (t *httpTx) isDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// markDone flips the tx to done and reports whether it was open.
func (t *httpTx) markDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

type queryResponse struct {
	Kind   string   `json:"kind"`
	Rows   []Row    `json:"rows"`
	Value  *float64 `json:"value"`
	Groups []Group  `json:"groups"`
}

func (t *httpTx) run(ctx context.Context, query, want string) (*queryResponse, error) {
	if t.isDone() {
		return nil, ErrTxClosed
	}
	var resp queryResponse
	if err := t.client.do(ctx, http.MethodPost, t.path("/query"), map[string]string{"query": query}, &resp); err != nil {
		return nil, err
	}
	if resp.Kind != want {
		return nil, fmt.Errorf("graph engine answered %q to a %s query", resp.Kind, want)
	}
	return &resp, nil
}

func (t *httpTx) Query(ctx context.Context, query string) ([]Row, error) {
	resp, err := t.run(ctx, query, "rows")
	if err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

func (t *httpTx) Aggregate(ctx context.Context, query string) (float64, error) {
	resp, err := t.run(ctx, query, "aggregate")
	if err != nil {
		return 0, err
	}
	// The engine answers no number for an aggregate over an empty match.
	if resp.Value == nil {
		return 0, nil
	}
	return *resp.Value, nil
}

func (t *httpTx) Group(ctx context.Context, query string) ([]Group, error) {
	resp, err := t.run(ctx, query, "groups")
	if err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

func (t *httpTx) Attributes(ctx context.Context, iid string) ([]Concept, error) {
	if t.isDone() {
		return nil, ErrTxClosed
	}
	var resp struct {
		Attributes []Concept `json:"attributes"`
	}
	if err := t.client.do(ctx, http.MethodGet, t.path("/concepts/"+url.PathEscape(iid)+"/attributes"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Attributes, nil
}

func (t *httpTx) Explain(ctx context.Context, explainable string) ([]Explanation, error) {
	if t.isDone() {
		return nil, ErrTxClosed
	}
	var resp struct {
		Explanations []Explanation `json:"explanations"`
	}
	if err := t.client.do(ctx, http.MethodPost, t.path("/explain"), map[string]string{"explainable": explainable}, &resp); err != nil {
		return nil, err
	}
	return resp.Explanations, nil
}

func (t *httpTx) Commit(ctx context.Context) error {
	if t.typ != Write {
		return fmt.Errorf("commit on %s transaction", t.typ)
	}
	if !t.markDone() {
		return ErrTxClosed
	}
	return t.client.do(ctx, http.MethodPost, t.path("/commit"), nil, nil)
}

func (t *httpTx) Close(ctx context.Context) error {
	if !t.markDone() {
		return nil
	}
	err := t.client.do(ctx, http.MethodDelete, t.path(""), nil, nil)
	if errors.Is(err, ErrTxClosed) {
		return nil
	}
	return err
}
