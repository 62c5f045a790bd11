package model

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentValidate(t *testing.T) {
	validBody := base64.StdEncoding.EncodeToString([]byte("payload"))

	tests := []struct {
		name    string
		content Content
		wantErr string
	}{
		{
			name:    "text passes",
			content: Content{ContentType: ContentTypeText, Body: "hello"},
		},
		{
			name:    "image requires media type",
			content: Content{ContentType: ContentTypeImage, Body: validBody},
			wantErr: "media_type is required",
		},
		{
			name:    "image with media type and valid base64 passes",
			content: Content{ContentType: ContentTypeImage, MediaType: "image/png", Body: validBody},
		},
		{
			name:    "image with invalid base64 fails",
			content: Content{ContentType: ContentTypeImage, MediaType: "image/png", Body: "not base64!!!"},
			wantErr: "valid base64",
		},
		{
			name:    "attachment with valid base64 passes",
			content: Content{ContentType: ContentTypeAttachment, FileName: "a.txt", Body: validBody},
		},
		{
			name:    "attachment with invalid base64 fails",
			content: Content{ContentType: ContentTypeAttachment, FileName: "a.txt", Body: "???"},
			wantErr: "valid base64",
		},
		{
			// The enumeration is closed, so unknown variants are rejected by
			// the composer instead of here.
			name:    "unknown variant passes validation",
			content: Content{ContentType: "video", Body: "whatever"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.content.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestValidationErrorNeverLeaksBody(t *testing.T) {
	content := Content{ContentType: ContentTypeAttachment, FileName: "a.txt", Body: "secret-but-not-base64!!"}
	err := content.Validate()
	require.Error(t, err)
	require.NotContains(t, err.Error(), "secret")
}

func TestIsConversationTurn(t *testing.T) {
	require.True(t, (&Message{Role: RoleUser}).IsConversationTurn())
	require.True(t, (&Message{Role: RoleBot}).IsConversationTurn())
	require.True(t, (&Message{Role: RoleAssistant}).IsConversationTurn())
	require.False(t, (&Message{Role: RoleSystem}).IsConversationTurn())
	require.False(t, (&Message{Role: RoleInstruction}).IsConversationTurn())
}
