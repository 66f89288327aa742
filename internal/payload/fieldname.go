package payload

import (
	"strings"

	"tgbatch/internal/domain"
)

// FieldName returns the multipart field an operation's attachment is posted
// under: the method name without its "send" prefix, lower-cased.
func FieldName(op domain.OperationKind) (string, error) {
	if _, ok := recognized[op]; !ok {
		return "", &domain.UnsupportedOperationError{Operation: string(op)}
	}
	return strings.ToLower(strings.TrimPrefix(string(op), "send")), nil
}
