package chat

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// DefaultAllowedMIMETypes lists the attachment types accepted over chat.
var DefaultAllowedMIMETypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"video/mp4",
	"video/webm",
	"video/quicktime",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/zip",
	"text/plain",
	"text/csv",
}

// IncomingAttachment is a decoded, validated upload.
type IncomingAttachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// ValidatedMessage is the only shape send_message handlers operate on.
type ValidatedMessage struct {
	Text        string
	Attachments []IncomingAttachment
}

type rawAttachment struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required"`
	Data string `json:"data" validate:"required"`
}

// MessageValidator checks send_message payloads.
type MessageValidator struct {
	maxBytes int
	allowed  map[string]struct{}
	validate *validator.Validate
}

// NewMessageValidator builds a validator with a per-attachment size cap and
// a MIME allow-list. A nil list uses DefaultAllowedMIMETypes.
func NewMessageValidator(maxBytes int, allowedTypes []string) *MessageValidator {
	if allowedTypes == nil {
		allowedTypes = DefaultAllowedMIMETypes
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return &MessageValidator{
		maxBytes: maxBytes,
		allowed:  allowed,
		validate: validator.New(),
	}
}

// Validate decodes and checks the raw message text and attachment list.
// Either may be absent, but not both empty.
func (v *MessageValidator) Validate(rawText, rawAttachments json.RawMessage) (ValidatedMessage, error) {
	var out ValidatedMessage

	if present(rawText) {
		var text string
		if err := json.Unmarshal(rawText, &text); err != nil {
			return out, apperrors.NewValidationError("message must be a string", map[string]any{"field": "message"})
		}
		out.Text = strings.TrimSpace(text)
	}

	if present(rawAttachments) {
		var items []json.RawMessage
		if err := json.Unmarshal(rawAttachments, &items); err != nil {
			return out, apperrors.NewValidationError("attachments must be an array", map[string]any{"field": "attachments"})
		}
		for i, item := range items {
			att, err := v.attachment(item)
			if err != nil {
				return ValidatedMessage{}, apperrors.NewValidationError(
					fmt.Sprintf("attachment %d: %s", i, err.Error()),
					map[string]any{"field": "attachments", "index": i},
				)
			}
			out.Attachments = append(out.Attachments, att)
		}
	}

	if out.Text == "" && len(out.Attachments) == 0 {
		return ValidatedMessage{}, apperrors.NewValidationError("message text or at least one attachment is required", nil)
	}
	return out, nil
}

func (v *MessageValidator) attachment(item json.RawMessage) (IncomingAttachment, error) {
	var raw rawAttachment
	if err := json.Unmarshal(item, &raw); err != nil {
		return IncomingAttachment{}, errors.New("must be an object with string name, type and data")
	}
	raw.Name = strings.TrimSpace(raw.Name)
	raw.Type = strings.TrimSpace(raw.Type)
	if err := v.validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return IncomingAttachment{}, fmt.Errorf("%s is required", strings.ToLower(verrs[0].Field()))
		}
		return IncomingAttachment{}, err
	}

	mimeType, _, err := mime.ParseMediaType(raw.Type)
	if err != nil {
		return IncomingAttachment{}, fmt.Errorf("type %q is not a valid MIME type", raw.Type)
	}
	if _, ok := v.allowed[mimeType]; !ok {
		return IncomingAttachment{}, fmt.Errorf("type %q is not allowed", mimeType)
	}

	data, err := v.decode(raw.Data)
	if err != nil {
		return IncomingAttachment{}, err
	}
	return IncomingAttachment{Name: raw.Name, MimeType: mimeType, Data: data}, nil
}

// decode accepts plain base64 or a data URL carrying base64.
func (v *MessageValidator) decode(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		if idx := strings.Index(encoded, ";base64,"); idx >= 0 {
			encoded = encoded[idx+len(";base64,"):]
		}
	}
	// MIME-wrapped base64 carries line breaks that decoding skips
	encoded = strings.NewReplacer("\r", "", "\n", "").Replace(encoded)
	if base64.StdEncoding.DecodedLen(len(encoded))-2 > v.maxBytes {
		return nil, fmt.Errorf("exceeds %d bytes", v.maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("data is not valid base64")
	}
	if len(data) == 0 {
		return nil, errors.New("data is empty")
	}
	if len(data) > v.maxBytes {
		return nil, fmt.Errorf("exceeds %d bytes", v.maxBytes)
	}
	return data, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// EscapeHTML neutralizes markup in chat text before it is stored.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}
