package transport

import (
	"net/url"
	"strings"
)

// redact strips the bot token from error text; url.Error embeds the full
// URL, possibly with the token path-escaped.
func redact(err error, token string) error {
	if err == nil || token == "" {
		return err
	}
	msg := err.Error()
	forms := []string{token}
	if escaped := url.PathEscape(token); escaped != token {
		forms = append(forms, escaped)
	}
	replaced := msg
	for _, f := range forms {
		replaced = strings.ReplaceAll(replaced, f, "<token>")
	}
	if replaced == msg {
		return err
	}
	return redactedError{msg: replaced, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.err }
