package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"tgbatch/internal/domain"
)

// Echo is a dry-run dispatcher: it answers with the request it would have
// sent instead of calling the Bot API. Attachments are described, not read.
type Echo struct{}

// Dispatch implements domain.Dispatcher without any network call.
func (Echo) Dispatch(_ context.Context, req domain.Request) (json.RawMessage, error) {
	encoding := "json"
	if req.Multipart {
		encoding = "multipart"
	}
	data, err := json.Marshal(map[string]any{
		"ok":     true,
		"dryRun": true,
		"request": map[string]any{
			"method":   req.Method,
			"endpoint": req.Endpoint,
			"encoding": encoding,
			"body":     req.Body,
			"query":    req.Query,
		},
	})
	if err != nil {
		return nil, &domain.TransportError{Endpoint: req.Endpoint, Err: fmt.Errorf("encode dry run: %w", err)}
	}
	return data, nil
}
