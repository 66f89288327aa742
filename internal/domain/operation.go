package domain

// OperationKind selects the Bot API method a whole batch targets.
type OperationKind string

const (
	SendMessage     OperationKind = "sendMessage"
	EditMessageText OperationKind = "editMessageText"
)

func (o OperationKind) String() string { return string(o) }

// Operations lists the supported operations in display order.
func Operations() []OperationKind {
	return []OperationKind{EditMessageText, SendMessage}
}

// ParseOperation checks s against the supported operations.
func ParseOperation(s string) (OperationKind, error) {
	switch op := OperationKind(s); op {
	case SendMessage, EditMessageText:
		return op, nil
	}
	return "", &UnsupportedOperationError{Operation: s}
}
