package model

import (
	"encoding/base64"
)

// ContentType enumerates the supported content block variants.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeImage      ContentType = "image"
	ContentTypeAttachment ContentType = "attachment"
)

// Conversation roles. Only user and bot turns are forwarded to the provider;
// system and instruction text is carried separately in the request.
const (
	RoleUser        = "user"
	RoleBot         = "bot"
	RoleAssistant   = "assistant"
	RoleSystem      = "system"
	RoleInstruction = "instruction"
)

// Content is one typed unit of message content: text, an inline image, or a
// document attachment. Image and attachment bodies are base64 encoded.
type Content struct {
	ContentType ContentType `json:"content_type"`
	// MediaType is the image MIME type, e.g. "image/png". Required when
	// ContentType is image.
	MediaType string `json:"media_type,omitempty"`
	// FileName is the attachment file name including its extension.
	FileName string `json:"file_name,omitempty"`
	Body     string `json:"body"`
}

// Validate enforces the structural invariants of the three known content
// variants. Unrecognized variants pass here on purpose: the schema enumeration
// is closed, so composition rejects them with an unsupported-content error
// instead.
func (c *Content) Validate() error {
	switch c.ContentType {
	case ContentTypeImage:
		if c.MediaType == "" {
			return &ValidationError{Field: "media_type", Reason: "media_type is required if content_type is image"}
		}
		if !isBase64(c.Body) {
			return &ValidationError{Field: "body", Reason: "body must be a valid base64 string if content_type is image"}
		}
	case ContentTypeAttachment:
		if !isBase64(c.Body) {
			return &ValidationError{Field: "body", Reason: "body must be a valid base64 string if content_type is attachment"}
		}
	}
	return nil
}

// isBase64 reports whether s decodes as standard base64. The decoded bytes
// are discarded so they can never leak into error messages.
func isBase64(s string) bool {
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

// Message is one conversation turn: a role and its ordered content blocks.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// IsConversationTurn reports whether the message is forwarded to the provider
// as a conversation turn. System and instruction roles are excluded from the
// wire payload.
func (m *Message) IsConversationTurn() bool {
	return m.Role != RoleSystem && m.Role != RoleInstruction
}

// Usage is the normalized token usage record of a provider response.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}
