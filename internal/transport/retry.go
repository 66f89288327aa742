package transport

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// defaultBackoff grows quadratically with jitter.
func defaultBackoff(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * time.Second
	jitter := time.Duration(rand.Int64N(int64(base/2 + 1)))
	return base + jitter
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// retryPolicy bounds doWithRetry. token is scrubbed from logged errors,
// since url.Error carries the full request URL.
type retryPolicy struct {
	maxRetries int
	backoff    func(int) time.Duration
	token      string
}

// doWithRetry executes a request, retrying network failures, 5xx and 429 up
// to maxRetries times. The last response is returned unread so the caller
// can decode the provider's error description.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error),
	policy retryPolicy, logger *slog.Logger) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			wait := policy.backoff(attempt)
			logger.Warn("retrying request", "attempt", attempt+1, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			if attempt < policy.maxRetries && ctx.Err() == nil {
				logger.Warn("request failed, will retry", "attempt", attempt+1, "err", redact(err, policy.token))
				continue
			}
			return nil, err
		}

		if retryableStatus(resp.StatusCode) && attempt < policy.maxRetries {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			logger.Warn("server error, will retry", "status", resp.StatusCode)
			continue
		}
		return resp, nil
	}
}
