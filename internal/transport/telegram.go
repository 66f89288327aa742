// Package transport issues Bot API calls for built requests.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"tgbatch/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client dispatches requests to the Telegram Bot API.
type Client struct {
	token      string
	endpoint   string
	http       *http.Client
	maxRetries int
	backoff    func(int) time.Duration
	logger     *slog.Logger
}

// Config configures a Client. Zero values fall back to the Bot API
// endpoint, a pooled HTTP client, and no retries.
type Config struct {
	Token string
	// APIEndpoint is a printf template taking the token and the method name.
	APIEndpoint string
	Timeout     time.Duration
	MaxRetries  int
	// RetryBackoff overrides the wait before retry n (n >= 1).
	RetryBackoff func(int) time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewHTTPClient(cfg.Timeout)
	}
	if cfg.RetryBackoff == nil {
		cfg.RetryBackoff = defaultBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		token:      cfg.Token,
		endpoint:   cfg.APIEndpoint,
		http:       cfg.HTTPClient,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		logger:     cfg.Logger,
	}
}

// Dispatch implements domain.Dispatcher. The body is sent as multipart form
// data when req.Multipart is set and as JSON otherwise.
func (c *Client) Dispatch(ctx context.Context, req domain.Request) (json.RawMessage, error) {
	target := fmt.Sprintf(c.endpoint, c.token, req.Endpoint)
	if len(req.Query) > 0 {
		qs, err := encodeQuery(req.Query)
		if err != nil {
			return nil, &domain.TransportError{Endpoint: req.Endpoint, Err: err}
		}
		target += "?" + qs
	}

	var (
		payload     []byte
		contentType string
		err         error
	)
	if req.Multipart {
		payload, contentType, err = encodeMultipart(req.Body)
	} else {
		payload, contentType, err = encodeJSON(req.Body)
	}
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, &domain.TransportError{Endpoint: req.Endpoint, Err: err}
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	buildReq := func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", contentType)
		r.Header.Set("Accept", "application/json")
		return r, nil
	}

	start := time.Now()
	resp, err := doWithRetry(ctx, c.http, buildReq, retryPolicy{
		maxRetries: c.maxRetries,
		backoff:    c.backoff,
		token:      c.token,
	}, c.logger)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: req.Endpoint, Err: redact(err, c.token)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Endpoint: req.Endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	c.logger.Debug("telegram call finished",
		"endpoint", req.Endpoint,
		"status", resp.StatusCode,
		"multipart", req.Multipart,
		"duration", time.Since(start),
	)
	return decodeResponse(req.Endpoint, resp.StatusCode, body)
}

// decodeResponse checks the Bot API envelope and returns the body unchanged
// on success.
func decodeResponse(endpoint string, status int, body []byte) (json.RawMessage, error) {
	var env tgbotapi.APIResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &domain.TransportError{
			Endpoint:   endpoint,
			StatusCode: status,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	if status < 200 || status >= 300 || !env.Ok {
		te := &domain.TransportError{
			Endpoint:    endpoint,
			StatusCode:  status,
			Code:        env.ErrorCode,
			Description: env.Description,
		}
		if env.Parameters != nil {
			te.RetryAfter = env.Parameters.RetryAfter
		}
		return nil, te
	}
	return json.RawMessage(body), nil
}
