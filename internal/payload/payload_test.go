package payload

import (
	"encoding/json"
	"errors"
	"testing"

	"tgbatch/internal/domain"
	"tgbatch/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverFor(items ...map[string]any) *params.Resolver {
	return params.NewResolver(nil, items)
}

func mustBuilder(t *testing.T, op domain.OperationKind, binary bool, r domain.ParameterResolver) *Builder {
	t.Helper()
	b, err := NewBuilder(op, binary, r)
	require.NoError(t, err)
	return b
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %T: %v", err, err)
	assert.Equal(t, field, verr.Field)
}

// --- FieldName ---

func TestFieldName(t *testing.T) {
	name, err := FieldName(domain.SendMessage)
	require.NoError(t, err)
	assert.Equal(t, "message", name)

	name, err = FieldName(domain.EditMessageText)
	require.NoError(t, err)
	assert.Equal(t, "editmessagetext", name)
}

func TestFieldName_Unsupported(t *testing.T) {
	_, err := FieldName(domain.OperationKind("sendPhoto"))
	var uerr *domain.UnsupportedOperationError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "sendPhoto", uerr.Operation)
}

func TestNewBuilder_Unsupported(t *testing.T) {
	_, err := NewBuilder("deleteMessage", false, resolverFor())
	var uerr *domain.UnsupportedOperationError
	assert.True(t, errors.As(err, &uerr))
}

// --- sendMessage ---

func TestBuild_SendMessage(t *testing.T) {
	r := resolverFor(map[string]any{"chatId": "123", "text": "hello"})
	req, err := mustBuilder(t, domain.SendMessage, false, r).Build(0, domain.InputItem{})
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "sendMessage", req.Endpoint)
	assert.False(t, req.Multipart)
	assert.Equal(t, map[string]any{"chat_id": "123", "text": "hello"}, req.Body)
	assert.NotNil(t, req.Query)
	assert.Empty(t, req.Query)
}

func TestBuild_SendMessage_RequiresChatAndText(t *testing.T) {
	b := mustBuilder(t, domain.SendMessage, false, resolverFor(
		map[string]any{"text": "no chat"},
		map[string]any{"chatId": "1"},
	))

	_, err := b.Build(0, domain.InputItem{})
	requireValidation(t, err, "chatId")

	_, err = b.Build(1, domain.InputItem{})
	requireValidation(t, err, "text")
}

func TestBuild_SendMessage_AdditionalFields(t *testing.T) {
	r := resolverFor(map[string]any{
		"chatId": "1",
		"text":   "t",
		"additionalFields": map[string]any{
			"disable_notification":     true,
			"disable_web_page_preview": true,
			"reply_to_message_id":      7,
			"message_thread_id":        9,
			"fileName":                 "ignored.txt",
			"parse_mode":               "HTML",
		},
	})
	req, err := mustBuilder(t, domain.SendMessage, false, r).Build(0, domain.InputItem{})
	require.NoError(t, err)

	assert.Equal(t, true, req.Body["disable_notification"])
	assert.Equal(t, true, req.Body["disable_web_page_preview"])
	assert.Equal(t, 7, req.Body["reply_to_message_id"])
	assert.Equal(t, 9, req.Body["message_thread_id"])
	assert.NotContains(t, req.Body, "fileName")
	assert.NotContains(t, req.Body, "parse_mode")
}

func TestBuild_SendMessage_InlineKeyboardUnmodified(t *testing.T) {
	const kb = `[[{"text":"A","callback_data":"1"}]]`
	r := resolverFor(map[string]any{
		"chatId":             "1",
		"text":               "t",
		"replyMarkup":        ReplyMarkupInlineKBJSON,
		"inlineKeyboardJSON": kb,
	})
	req, err := mustBuilder(t, domain.SendMessage, false, r).Build(0, domain.InputItem{})
	require.NoError(t, err)

	markup, ok := req.Body["reply_markup"].(InlineKeyboardMarkup)
	require.True(t, ok)
	rows, err := json.Marshal(markup.InlineKeyboard)
	require.NoError(t, err)
	assert.JSONEq(t, kb, string(rows))

	body, err := json.Marshal(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chat_id":"1","text":"t","reply_markup":{"inline_keyboard":`+kb+`}}`, string(body))
}

func TestBuild_InlineKeyboardKeepsUnknownButtonFields(t *testing.T) {
	const kb = `[[{"text":"Open","web_app":{"url":"https://example.com"}},{"text":"C","copy_text":{"text":"x"}}]]`
	r := resolverFor(map[string]any{
		"chatId":             "1",
		"text":               "t",
		"replyMarkup":        ReplyMarkupInlineKBJSON,
		"inlineKeyboardJSON": kb,
	})
	req, err := mustBuilder(t, domain.SendMessage, false, r).Build(0, domain.InputItem{})
	require.NoError(t, err)

	markup, err := json.Marshal(req.Body["reply_markup"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"inline_keyboard":`+kb+`}`, string(markup))
}

func TestBuild_ReplyMarkupNone(t *testing.T) {
	r := resolverFor(map[string]any{
		"chatId":             "1",
		"text":               "t",
		"replyMarkup":        ReplyMarkupNone,
		"inlineKeyboardJSON": "not even json",
	})
	req, err := mustBuilder(t, domain.SendMessage, false, r).Build(0, domain.InputItem{})
	require.NoError(t, err)
	assert.NotContains(t, req.Body, "reply_markup")
}

func TestBuild_MalformedKeyboardFailsItem(t *testing.T) {
	r := resolverFor(
		map[string]any{"chatId": "1", "text": "t", "replyMarkup": ReplyMarkupInlineKBJSON, "inlineKeyboardJSON": `{"text":"flat"}`},
		map[string]any{"chatId": "1", "text": "t", "replyMarkup": ReplyMarkupInlineKBJSON, "inlineKeyboardJSON": `[[{"text":`},
		map[string]any{"chatId": "1", "text": "t", "replyMarkup": ReplyMarkupInlineKBJSON},
	)
	b := mustBuilder(t, domain.SendMessage, false, r)
	for i := 0; i < 3; i++ {
		_, err := b.Build(i, domain.InputItem{})
		requireValidation(t, err, "inlineKeyboardJSON")
	}
}

func TestBuild_UnknownReplyMarkup(t *testing.T) {
	r := resolverFor(map[string]any{"chatId": "1", "text": "t", "replyMarkup": "forceReply"})
	_, err := mustBuilder(t, domain.SendMessage, false, r).Build(0, domain.InputItem{})
	requireValidation(t, err, "replyMarkup")
}

func TestBuild_KeyboardAsDecodedStructure(t *testing.T) {
	r := resolverFor(map[string]any{
		"chatId":      "1",
		"text":        "t",
		"replyMarkup": ReplyMarkupInlineKBJSON,
		"inlineKeyboardJSON": []any{
			[]any{map[string]any{"text": "Site", "url": "https://example.com"}},
		},
	})
	req, err := mustBuilder(t, domain.SendMessage, false, r).Build(0, domain.InputItem{})
	require.NoError(t, err)
	markup := req.Body["reply_markup"].(InlineKeyboardMarkup)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "https://example.com", markup.InlineKeyboard[0][0]["url"])
}

// --- editMessageText ---

func TestBuild_EditMessageText(t *testing.T) {
	r := resolverFor(map[string]any{
		"messageType": MessageTypeMessage,
		"chatId":      "55",
		"messageId":   101,
		"text":        "edited",
		"additionalFields": map[string]any{
			"disable_notification":     true,
			"disable_web_page_preview": true,
			"reply_to_message_id":      3,
			"message_thread_id":        4,
		},
	})
	req, err := mustBuilder(t, domain.EditMessageText, false, r).Build(0, domain.InputItem{})
	require.NoError(t, err)

	assert.Equal(t, "editMessageText", req.Endpoint)
	assert.Equal(t, "55", req.Body["chat_id"])
	assert.Equal(t, "101", req.Body["message_id"])
	assert.Equal(t, "edited", req.Body["text"])
	assert.Equal(t, true, req.Body["disable_web_page_preview"])
	assert.Equal(t, 3, req.Body["reply_to_message_id"])
	assert.NotContains(t, req.Body, "disable_notification")
	assert.NotContains(t, req.Body, "message_thread_id")
}

func TestBuild_EditMessageText_DefaultMessageType(t *testing.T) {
	r := resolverFor(map[string]any{"chatId": "55", "messageId": "9", "text": "x"})
	req, err := mustBuilder(t, domain.EditMessageText, false, r).Build(0, domain.InputItem{})
	require.NoError(t, err)
	assert.Equal(t, "9", req.Body["message_id"])
}

func TestBuild_EditMessageText_MissingIDsRejected(t *testing.T) {
	b := mustBuilder(t, domain.EditMessageText, false, resolverFor(
		map[string]any{"messageType": "message", "messageId": "1", "text": "x"},
		map[string]any{"messageType": "message", "chatId": "1", "text": "x"},
		map[string]any{"messageType": "message", "chatId": "1", "messageId": "  ", "text": "x"},
	))

	_, err := b.Build(0, domain.InputItem{})
	requireValidation(t, err, "chatId")
	_, err = b.Build(1, domain.InputItem{})
	requireValidation(t, err, "messageId")
	_, err = b.Build(2, domain.InputItem{})
	requireValidation(t, err, "messageId")
}

func TestBuild_EditMessageText_InlineMessage(t *testing.T) {
	r := resolverFor(
		map[string]any{"messageType": MessageTypeInlineMessage, "inlineMessageId": "AAA", "text": "x", "chatId": "ignored"},
		map[string]any{"messageType": MessageTypeInlineMessage, "text": "x"},
	)
	b := mustBuilder(t, domain.EditMessageText, false, r)

	req, err := b.Build(0, domain.InputItem{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"inline_message_id": "AAA", "text": "x"}, req.Body)

	_, err = b.Build(1, domain.InputItem{})
	requireValidation(t, err, "inlineMessageId")
}

func TestBuild_EditMessageText_UnknownMessageType(t *testing.T) {
	r := resolverFor(map[string]any{"messageType": "photo", "text": "x"})
	_, err := mustBuilder(t, domain.EditMessageText, false, r).Build(0, domain.InputItem{})
	requireValidation(t, err, "messageType")
}

// --- binary mode ---

func binaryItem(fileName string) domain.InputItem {
	return domain.InputItem{Binary: map[string]domain.BinaryData{
		"data": {Data: []byte("payload"), MimeType: "text/plain", FileName: fileName},
	}}
}

func TestBuild_Binary_AttachesFormFile(t *testing.T) {
	r := resolverFor(map[string]any{"chatId": "1", "text": "t"})
	req, err := mustBuilder(t, domain.SendMessage, true, r).Build(0, binaryItem("a.txt"))
	require.NoError(t, err)

	assert.True(t, req.Multipart)
	ff, ok := req.Body["message"].(domain.FormFile)
	require.True(t, ok)
	assert.Equal(t, "a.txt", ff.Options.Filename)
	assert.Equal(t, "text/plain", ff.Options.ContentType)
	assert.Equal(t, []byte("payload"), ff.Source.Data)
}

func TestBuild_Binary_FilenameOverrideWins(t *testing.T) {
	r := resolverFor(map[string]any{
		"chatId":           "1",
		"text":             "t",
		"additionalFields": map[string]any{"fileName": "override.bin"},
	})
	req, err := mustBuilder(t, domain.SendMessage, true, r).Build(0, binaryItem("own.txt"))
	require.NoError(t, err)
	assert.Equal(t, "override.bin", req.Body["message"].(domain.FormFile).Options.Filename)
}

func TestBuild_Binary_MissingFilename(t *testing.T) {
	r := resolverFor(map[string]any{"chatId": "1", "text": "t"})
	_, err := mustBuilder(t, domain.SendMessage, true, r).Build(0, binaryItem(""))
	requireValidation(t, err, "fileName")
}

func TestBuild_Binary_MissingProperty(t *testing.T) {
	r := resolverFor(map[string]any{"chatId": "1", "text": "t", "binaryPropertyName": "attachment"})
	_, err := mustBuilder(t, domain.SendMessage, true, r).Build(0, binaryItem("a.txt"))
	requireValidation(t, err, "binaryPropertyName")
}

func TestBuild_Binary_CustomProperty(t *testing.T) {
	r := resolverFor(map[string]any{"chatId": "1", "text": "t", "binaryPropertyName": "doc"})
	item := domain.InputItem{Binary: map[string]domain.BinaryData{"doc": {FileName: "doc.pdf", MimeType: "application/pdf"}}}
	req, err := mustBuilder(t, domain.SendMessage, true, r).Build(0, item)
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", req.Body["message"].(domain.FormFile).Options.Filename)
}

// Property name and file name override are resolved for each item, not
// taken from the first item for the whole batch.
func TestBuild_Binary_PropertyAndFileNamePerItem(t *testing.T) {
	r := resolverFor(
		map[string]any{"chatId": "1", "text": "t", "binaryPropertyName": "a",
			"additionalFields": map[string]any{"fileName": "first.txt"}},
		map[string]any{"chatId": "1", "text": "t", "binaryPropertyName": "b",
			"additionalFields": map[string]any{"fileName": "second.txt"}},
	)
	b := mustBuilder(t, domain.SendMessage, true, r)
	items := []domain.InputItem{
		{Binary: map[string]domain.BinaryData{"a": {Data: []byte("A")}}},
		{Binary: map[string]domain.BinaryData{"b": {Data: []byte("B")}}},
	}

	for i, want := range []struct{ name, data string }{{"first.txt", "A"}, {"second.txt", "B"}} {
		req, err := b.Build(i, items[i])
		require.NoError(t, err, "item %d", i)
		ff := req.Body["message"].(domain.FormFile)
		assert.Equal(t, want.name, ff.Options.Filename, "item %d", i)
		assert.Equal(t, []byte(want.data), ff.Source.Data, "item %d", i)
	}

	// Item 1 carries property "b" only; item 0's "a" must not leak into it.
	_, err := b.Build(1, items[0])
	requireValidation(t, err, "binaryPropertyName")
}

func TestBuild_Binary_DisableNotificationAlwaysString(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"absent", nil, "false"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"string true", "true", "true"},
		{"string TRUE", "TRUE", "true"},
		{"number one", 1, "true"},
		{"number zero", 0, "false"},
		{"empty string", "", "false"},
		{"odd text", "yes", "true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := map[string]any{}
			if tc.value != nil {
				fields["disable_notification"] = tc.value
			}
			r := resolverFor(map[string]any{"chatId": "1", "text": "t", "additionalFields": fields})
			req, err := mustBuilder(t, domain.SendMessage, true, r).Build(0, binaryItem("a.txt"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, req.Body["disable_notification"])
		})
	}
}

func TestBuild_Binary_EditGetsDisableNotificationFalse(t *testing.T) {
	r := resolverFor(map[string]any{"chatId": "1", "messageId": "2", "text": "t"})
	req, err := mustBuilder(t, domain.EditMessageText, true, r).Build(0, binaryItem("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "false", req.Body["disable_notification"])
	assert.IsType(t, domain.FormFile{}, req.Body["editmessagetext"])
}

func TestBuild_JSONModeKeepsNativeBool(t *testing.T) {
	r := resolverFor(map[string]any{
		"chatId":           "1",
		"text":             "t",
		"additionalFields": map[string]any{"disable_notification": true},
	})
	req, err := mustBuilder(t, domain.SendMessage, false, r).Build(0, binaryItem("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, true, req.Body["disable_notification"])
	assert.NotContains(t, req.Body, "message")
}

func TestBuild_FreshBodyPerCall(t *testing.T) {
	r := resolverFor(
		map[string]any{"chatId": "1", "text": "a", "additionalFields": map[string]any{"reply_to_message_id": 5}},
		map[string]any{"chatId": "2", "text": "b"},
	)
	b := mustBuilder(t, domain.SendMessage, false, r)

	first, err := b.Build(0, domain.InputItem{})
	require.NoError(t, err)
	second, err := b.Build(1, domain.InputItem{})
	require.NoError(t, err)

	assert.Contains(t, first.Body, "reply_to_message_id")
	assert.NotContains(t, second.Body, "reply_to_message_id")
}

// --- inline keyboard ---

func TestParseInlineKeyboard_RoundTrip(t *testing.T) {
	inputs := []string{
		`[[{"text":"A","callback_data":"1"}]]`,
		`[[{"text":"1","callback_data":"11"},{"text":"2","callback_data":"21"}],[{"text":"link","url":"https://example.com/x"}]]`,
		`[]`,
		`[[]]`,
		`[[{"text":"Open","web_app":{"url":"https://example.com"}},{"text":"C","copy_text":{"text":"x"}}]]`,
		`[[{"text":"Pick","switch_inline_query_chosen_chat":{"query":"q","allow_user_chats":true}}]]`,
		`[[{"text":"Pay","pay":true,"callback_data":"x","extra":{"n":12345678901234567890,"f":1.50}}]]`,
	}
	for _, in := range inputs {
		rows, err := ParseInlineKeyboard(in)
		require.NoError(t, err, in)
		out, err := json.Marshal(rows)
		require.NoError(t, err)
		assert.JSONEq(t, in, string(out))

		again, err := ParseInlineKeyboard(string(out))
		require.NoError(t, err)
		assert.Equal(t, rows, again)
	}
}

func TestParseInlineKeyboard_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "null", `{"a":1}`, `[{"text":"flat"}]`, `[[1,2]]`, `[[`,
		`[null]`, `[[null]]`, `[[{"text":"a"}]] [[]]`} {
		_, err := ParseInlineKeyboard(in)
		var verr *domain.ValidationError
		assert.True(t, errors.As(err, &verr), "input %q should fail with ValidationError", in)
	}
}

func TestAdditionalFields(t *testing.T) {
	assert.Equal(t, []string{"disable_notification", "disable_web_page_preview", "reply_to_message_id", "message_thread_id"},
		AdditionalFields(domain.SendMessage))
	assert.Equal(t, []string{"disable_web_page_preview", "reply_to_message_id"},
		AdditionalFields(domain.EditMessageText))
	assert.Nil(t, AdditionalFields("nope"))
}
