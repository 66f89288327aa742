// Package payload turns an input item into a Bot API request.
package payload

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tgbatch/internal/domain"
	"tgbatch/internal/params"
)

// DefaultBinaryProperty is the item binary key used when binaryPropertyName is unset.
const DefaultBinaryProperty = "data"

// Builder assembles one request per item for a fixed operation and binary mode.
type Builder struct {
	op       domain.OperationKind
	binary   bool
	opts     operationOptions
	resolver domain.ParameterResolver
}

// NewBuilder fails with *domain.UnsupportedOperationError for unknown operations.
func NewBuilder(op domain.OperationKind, binary bool, resolver domain.ParameterResolver) (*Builder, error) {
	opts, ok := recognized[op]
	if !ok {
		return nil, &domain.UnsupportedOperationError{Operation: string(op)}
	}
	return &Builder{op: op, binary: binary, opts: opts, resolver: resolver}, nil
}

// Build produces the request for the item at index. A fresh body and query
// map are allocated on every call.
func (b *Builder) Build(index int, item domain.InputItem) (domain.Request, error) {
	req := domain.Request{
		Method:   http.MethodPost,
		Endpoint: b.opts.endpoint,
		Body:     map[string]any{},
		Query:    map[string]any{},
	}

	switch b.op {
	case domain.EditMessageText:
		if err := b.editTarget(req.Body, index); err != nil {
			return domain.Request{}, err
		}
	case domain.SendMessage:
		chatID, err := b.required("chatId", index)
		if err != nil {
			return domain.Request{}, err
		}
		req.Body["chat_id"] = chatID
	}

	text, err := b.required("text", index)
	if err != nil {
		return domain.Request{}, err
	}
	req.Body["text"] = text

	if err := b.addAdditionalFields(req.Body, index); err != nil {
		return domain.Request{}, err
	}

	if b.binary {
		if err := b.attach(&req, index, item); err != nil {
			return domain.Request{}, err
		}
	}
	return req, nil
}

func (b *Builder) editTarget(body map[string]any, index int) error {
	messageType := params.String(b.resolver, "messageType", index, MessageTypeMessage)
	switch messageType {
	case MessageTypeInlineMessage:
		id, err := b.required("inlineMessageId", index)
		if err != nil {
			return err
		}
		body["inline_message_id"] = id
	case MessageTypeMessage:
		chatID, err := b.required("chatId", index)
		if err != nil {
			return err
		}
		messageID, err := b.required("messageId", index)
		if err != nil {
			return err
		}
		body["chat_id"] = chatID
		body["message_id"] = messageID
	default:
		return &domain.ValidationError{Field: "messageType", Message: fmt.Sprintf("unknown message type %q", messageType)}
	}
	return nil
}

func (b *Builder) required(name string, index int) (string, error) {
	v := params.String(b.resolver, name, index, "")
	if strings.TrimSpace(v) == "" {
		return "", &domain.ValidationError{Field: name, Message: "required parameter is empty"}
	}
	return v, nil
}

// addAdditionalFields merges the recognized optional fields and the reply
// markup block into body.
func (b *Builder) addAdditionalFields(body map[string]any, index int) error {
	for name, v := range params.Collection(b.resolver, "additionalFields", index) {
		if b.opts.additionalFields[name] {
			body[name] = v
		}
	}

	if !b.opts.replyMarkup {
		return nil
	}
	switch mode := params.String(b.resolver, "replyMarkup", index, ReplyMarkupNone); mode {
	case ReplyMarkupNone, "":
		return nil
	case ReplyMarkupInlineKBJSON:
		raw, err := keyboardSource(b.resolver.Param("inlineKeyboardJSON", index, nil))
		if err != nil {
			return err
		}
		rows, err := ParseInlineKeyboard(raw)
		if err != nil {
			return err
		}
		body["reply_markup"] = InlineKeyboardMarkup{InlineKeyboard: rows}
		return nil
	default:
		return &domain.ValidationError{Field: "replyMarkup", Message: fmt.Sprintf("unknown reply markup %q", mode)}
	}
}

// attach resolves the item's attachment and switches the request to
// multipart. Multipart fields must be strings, so disable_notification is
// stringified here and only here.
func (b *Builder) attach(req *domain.Request, index int, item domain.InputItem) error {
	property := params.String(b.resolver, "binaryPropertyName", index, DefaultBinaryProperty)
	data, ok := item.Binary[property]
	if !ok {
		return &domain.ValidationError{
			Field:   "binaryPropertyName",
			Message: fmt.Sprintf("item has no binary property %q", property),
		}
	}

	field, err := FieldName(b.op)
	if err != nil {
		return err
	}

	filename := params.String(b.resolver, "additionalFields.fileName", index, "")
	if filename == "" {
		filename = data.FileName
	}
	if filename == "" {
		return &domain.ValidationError{
			Field: "fileName",
			Message: fmt.Sprintf("file name is needed to %s; set it on the binary property or in additionalFields.fileName",
				b.op),
		}
	}

	req.Body["disable_notification"] = stringFlag(req.Body["disable_notification"])
	req.Body[field] = domain.FormFile{
		Source: data,
		Options: domain.FileOptions{
			Filename:    filename,
			ContentType: data.MimeType,
		},
	}
	req.Multipart = true
	return nil
}

// stringFlag renders a flag as "true" or "false" for form encoding. Absent
// or empty means "false"; any other unparseable text counts as set.
func stringFlag(v any) string {
	s := strings.TrimSpace(params.ToString(v))
	if s == "" {
		return "false"
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return strconv.FormatBool(b)
	}
	return "true"
}
