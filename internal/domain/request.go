package domain

import (
	"context"
	"encoding/json"
)

// FileOptions describes an attachment part of a multipart request.
type FileOptions struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// FormFile is an attachment merged into a request body under the
// operation's attachment field. The source is opened only at dispatch.
type FormFile struct {
	Source  BinaryData
	Options FileOptions
}

// MarshalJSON renders the descriptor without the bytes.
func (f FormFile) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Options FileOptions `json:"options"`
	}{f.Options})
}

// Request is the outbound call built for one item.
// Query is always non-nil even though no current operation fills it.
type Request struct {
	Method    string
	Endpoint  string
	Body      map[string]any
	Query     map[string]any
	Multipart bool
}

// Outcome is one output record. Index points at the originating input item.
type Outcome struct {
	Index int    `json:"index"`
	JSON  any    `json:"json"`
	Error string `json:"error,omitempty"`
}

func (o Outcome) Failed() bool { return o.Error != "" }

// ParameterResolver reads a named parameter for an item index, returning
// fallback when the parameter is not set. It has no side effects.
type ParameterResolver interface {
	Param(name string, index int, fallback any) any
}

// Dispatcher issues a single provider call and returns the raw response body.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (json.RawMessage, error)
}
