package payload

import "tgbatch/internal/domain"

// Reply markup modes.
const (
	ReplyMarkupNone         = "none"
	ReplyMarkupInlineKBJSON = "inlineKeyboardJSON"
)

// Message types for editMessageText.
const (
	MessageTypeMessage       = "message"
	MessageTypeInlineMessage = "inlineMessage"
)

// operationOptions lists what an operation accepts beyond its required fields.
type operationOptions struct {
	endpoint         string
	additionalFields map[string]bool
	replyMarkup      bool
}

var recognized = map[domain.OperationKind]operationOptions{
	domain.SendMessage: {
		endpoint: "sendMessage",
		additionalFields: map[string]bool{
			"disable_notification":     true,
			"disable_web_page_preview": true,
			"reply_to_message_id":      true,
			"message_thread_id":        true,
		},
		replyMarkup: true,
	},
	domain.EditMessageText: {
		endpoint: "editMessageText",
		additionalFields: map[string]bool{
			"disable_web_page_preview": true,
			"reply_to_message_id":      true,
		},
		replyMarkup: true,
	},
}

// AdditionalFields returns the optional body fields op accepts.
func AdditionalFields(op domain.OperationKind) []string {
	opts, ok := recognized[op]
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(opts.additionalFields))
	for _, name := range []string{"disable_notification", "disable_web_page_preview", "reply_to_message_id", "message_thread_id"} {
		if opts.additionalFields[name] {
			fields = append(fields, name)
		}
	}
	return fields
}
