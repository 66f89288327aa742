package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"tgbatch/internal/domain"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeJSON renders the body as application/json.
func encodeJSON(body map[string]any) ([]byte, string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("encode json body: %w", err)
	}
	return data, "application/json", nil
}

// encodeMultipart renders the body as multipart/form-data. Scalars are sent
// as text, nested values as JSON text, and domain.FormFile values as file
// parts. Fields are written in key order.
func encodeMultipart(body map[string]any) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, key := range sortedKeys(body) {
		switch v := body[key].(type) {
		case domain.FormFile:
			if err := writeFilePart(w, key, v); err != nil {
				return nil, "", err
			}
		default:
			s, err := formValue(v)
			if err != nil {
				return nil, "", fmt.Errorf("encode field %s: %w", key, err)
			}
			if err := w.WriteField(key, s); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, field string, f domain.FormFile) error {
	src, err := f.Source.Open()
	if err != nil {
		return &domain.ValidationError{Field: field, Message: "cannot read attachment", Err: err}
	}
	defer src.Close()

	contentType := f.Options.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(f.Options.Filename)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return &domain.ValidationError{Field: field, Message: "cannot read attachment", Err: err}
	}
	return nil
}

// formValue renders one form field.
func formValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func encodeQuery(query map[string]any) (string, error) {
	values := url.Values{}
	for _, key := range sortedKeys(query) {
		s, err := formValue(query[key])
		if err != nil {
			return "", fmt.Errorf("encode query %s: %w", key, err)
		}
		values.Set(key, s)
	}
	return values.Encode(), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
