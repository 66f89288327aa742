package domain

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// BinaryData is a named attachment carried by an input item. The bytes come
// from Path, Base64 or Data, in that order of precedence, and are read
// lazily so a bad attachment fails only its own item.
type BinaryData struct {
	Data     []byte
	Base64   string
	Path     string
	MimeType string
	FileName string
}

// Open returns a reader over the attachment bytes. The caller closes it.
func (b BinaryData) Open() (io.ReadCloser, error) {
	switch {
	case b.Path != "":
		f, err := os.Open(b.Path)
		if err != nil {
			return nil, fmt.Errorf("open attachment %s: %w", b.Path, err)
		}
		return f, nil
	case b.Base64 != "":
		raw, err := base64.StdEncoding.DecodeString(b.Base64)
		if err != nil {
			return nil, fmt.Errorf("decode base64 attachment: %w", err)
		}
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

// InputItem is one record of a batch. The pipeline never mutates it.
type InputItem struct {
	JSON   map[string]any
	Binary map[string]BinaryData
}

// ItemState tracks an item through the executor.
type ItemState int

const (
	StatePending ItemState = iota
	StateBuilding
	StateDispatching
	StateSucceeded
	StateFailed
)

func (s ItemState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateBuilding:
		return "building"
	case StateDispatching:
		return "dispatching"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition follows s.
func (s ItemState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
