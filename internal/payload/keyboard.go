package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"tgbatch/internal/domain"
)

// InlineKeyboardMarkup is the reply_markup block of an inline keyboard.
// Buttons are kept as decoded JSON objects so fields the Bot API adds later
// (web_app, copy_text, ...) reach Telegram unchanged.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]map[string]any `json:"inline_keyboard"`
}

// ParseInlineKeyboard decodes a JSON 2-D array of button objects. Numbers
// are kept as json.Number so re-encoding yields the same text.
func ParseInlineKeyboard(raw string) ([][]map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, keyboardError("inline keyboard JSON is empty", nil)
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var rows [][]map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, keyboardError("must be an array of button rows", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, keyboardError("unexpected data after the button rows", err)
	}
	if rows == nil {
		return nil, keyboardError("must be an array of button rows", nil)
	}
	for i, row := range rows {
		if row == nil {
			return nil, keyboardError(fmt.Sprintf("row %d is not an array", i), nil)
		}
		for j, button := range row {
			if button == nil {
				return nil, keyboardError(fmt.Sprintf("button %d of row %d is not an object", j, i), nil)
			}
		}
	}
	return rows, nil
}

func keyboardError(msg string, err error) error {
	return &domain.ValidationError{Field: "inlineKeyboardJSON", Message: msg, Err: err}
}

// keyboardSource accepts either JSON text or an already decoded structure.
func keyboardSource(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return "", keyboardError("cannot encode keyboard", err)
		}
		return string(data), nil
	}
}
