package bedrock

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bedrockchat/relay/common/config"
	relaymodel "github.com/bedrockchat/relay/relay/model"
)

func textMessage(role, body string) relaymodel.Message {
	return relaymodel.Message{
		Role:    role,
		Content: []relaymodel.Content{{ContentType: relaymodel.ContentTypeText, Body: body}},
	}
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestComposeTextOnly(t *testing.T) {
	request, err := Compose(
		[]relaymodel.Message{textMessage(relaymodel.RoleUser, "Hello")},
		ModelClaudeV3Haiku, "", false, nil)
	require.NoError(t, err)

	require.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", request.ModelID)
	require.Len(t, request.Messages, 1)
	require.Equal(t, relaymodel.RoleUser, request.Messages[0].Role)
	require.Len(t, request.Messages[0].Content, 1)
	require.NotNil(t, request.Messages[0].Content[0].Text)
	require.Equal(t, "Hello", *request.Messages[0].Content[0].Text)
	require.Empty(t, request.System)
	require.False(t, request.Stream)

	require.Equal(t, 2000, request.InferenceConfig.MaxTokens)
	require.Equal(t, 250, request.AdditionalModelRequestFields.TopK)
}

func TestComposeInstructionGoesToSystem(t *testing.T) {
	request, err := Compose(
		[]relaymodel.Message{textMessage(relaymodel.RoleUser, "Hi")},
		ModelClaudeV3Sonnet, "You are terse.", true, nil)
	require.NoError(t, err)
	require.Equal(t, []SystemContentBlock{{Text: "You are terse."}}, request.System)
	require.True(t, request.Stream)
}

func TestComposeExcludesSystemAndInstructionRoles(t *testing.T) {
	request, err := Compose([]relaymodel.Message{
		textMessage(relaymodel.RoleSystem, "hidden"),
		textMessage(relaymodel.RoleInstruction, "also hidden"),
		textMessage(relaymodel.RoleUser, "question"),
		textMessage(relaymodel.RoleBot, "answer"),
	}, ModelClaudeV3Haiku, "", false, nil)
	require.NoError(t, err)
	require.Len(t, request.Messages, 2)
	require.Equal(t, relaymodel.RoleUser, request.Messages[0].Role)
	require.Equal(t, relaymodel.RoleBot, request.Messages[1].Role)
}

func TestComposeAttachment(t *testing.T) {
	body := base64.StdEncoding.EncodeToString([]byte("quarterly numbers"))

	tests := []struct {
		fileName   string
		wantFormat string
		wantName   string
	}{
		{"My Report (Final) v2!!.TXT", "txt", "My Report (Final) v2"},
		{"report.pdf", "pdf", "report"},
		{"data.csv", "csv", "data"},
		{"notes.unknownext", "txt", "notes"},
		{"no_extension", "txt", "noextension"},
		{"  spaced   out .md", "md", "spaced out"},
	}
	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			request, err := Compose([]relaymodel.Message{{
				Role: relaymodel.RoleUser,
				Content: []relaymodel.Content{{
					ContentType: relaymodel.ContentTypeAttachment,
					FileName:    tt.fileName,
					Body:        body,
				}},
			}}, ModelClaudeV35Sonnet, "", false, nil)
			require.NoError(t, err)

			doc := request.Messages[0].Content[0].Document
			require.NotNil(t, doc)
			require.Equal(t, tt.wantFormat, doc.Format)
			require.Equal(t, tt.wantName, doc.Name)
			require.Equal(t, []byte("quarterly numbers"), doc.Source.Bytes)
		})
	}
}

func TestComposeImageFormat(t *testing.T) {
	data := pngBytes(t, 2, 2)
	body := base64.StdEncoding.EncodeToString(data)

	tests := []struct {
		mediaType  string
		wantFormat string
	}{
		{"image/png", "png"},
		{"image/jpg", "jpeg"},
		{"image/webp", "webp"},
		// Unhelpful media types fall back to sniffing the payload.
		{"application/octet-stream", "png"},
	}
	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			request, err := Compose([]relaymodel.Message{{
				Role: relaymodel.RoleUser,
				Content: []relaymodel.Content{{
					ContentType: relaymodel.ContentTypeImage,
					MediaType:   tt.mediaType,
					Body:        body,
				}},
			}}, ModelClaudeV3Haiku, "", false, nil)
			require.NoError(t, err)

			img := request.Messages[0].Content[0].Image
			require.NotNil(t, img)
			require.Equal(t, tt.wantFormat, img.Format)
			require.Equal(t, data, img.Source.Bytes)
		})
	}
}

func TestComposeImageRejectsUnrecognizablePayload(t *testing.T) {
	body := base64.StdEncoding.EncodeToString([]byte("not an image at all"))
	_, err := Compose([]relaymodel.Message{{
		Role: relaymodel.RoleUser,
		Content: []relaymodel.Content{{
			ContentType: relaymodel.ContentTypeImage,
			MediaType:   "image/tiff",
			Body:        body,
		}},
	}}, ModelClaudeV3Haiku, "", false, nil)
	require.Error(t, err)
	var unsupported *relaymodel.UnsupportedContentError
	require.ErrorAs(t, err, &unsupported)
}

func TestComposeImageSizeLimit(t *testing.T) {
	orig := config.MaxInlineImageSizeMB
	config.MaxInlineImageSizeMB = 1
	defer func() { config.MaxInlineImageSizeMB = orig }()

	// Random pixels barely compress, so this lands well above 1MB.
	body := base64.StdEncoding.EncodeToString(pngBytes(t, 800, 800))
	_, err := Compose([]relaymodel.Message{{
		Role: relaymodel.RoleUser,
		Content: []relaymodel.Content{{
			ContentType: relaymodel.ContentTypeImage,
			MediaType:   "image/png",
			Body:        body,
		}},
	}}, ModelClaudeV3Haiku, "", false, nil)
	require.Error(t, err)
	var validationErr *relaymodel.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestComposeRejectsInvalidContent(t *testing.T) {
	_, err := Compose([]relaymodel.Message{{
		Role: relaymodel.RoleUser,
		Content: []relaymodel.Content{{
			ContentType: relaymodel.ContentTypeImage,
			Body:        base64.StdEncoding.EncodeToString([]byte("x")),
		}},
	}}, ModelClaudeV3Haiku, "", false, nil)
	require.Error(t, err)
	var validationErr *relaymodel.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestComposeRejectsUnknownContentType(t *testing.T) {
	_, err := Compose([]relaymodel.Message{{
		Role:    relaymodel.RoleUser,
		Content: []relaymodel.Content{{ContentType: "video", Body: "whatever"}},
	}}, ModelClaudeV3Haiku, "", false, nil)
	require.Error(t, err)
	var unsupported *relaymodel.UnsupportedContentError
	require.ErrorAs(t, err, &unsupported)
}

func TestComposeRejectsUnknownAlias(t *testing.T) {
	_, err := Compose(
		[]relaymodel.Message{textMessage(relaymodel.RoleUser, "hi")},
		ModelName("gpt-4o"), "", false, nil)
	require.Error(t, err)
	var configErr *relaymodel.ConfigurationError
	require.ErrorAs(t, err, &configErr)
}

func TestComposeAppliesGenerationOverrides(t *testing.T) {
	maxTokens := 100
	topP := 0.5
	request, err := Compose(
		[]relaymodel.Message{textMessage(relaymodel.RoleUser, "hi")},
		ModelClaudeV3Haiku, "", false,
		&GenerationParams{MaxTokens: &maxTokens, TopP: &topP})
	require.NoError(t, err)
	require.Equal(t, 100, request.InferenceConfig.MaxTokens)
	require.InDelta(t, 0.5, request.InferenceConfig.TopP, 1e-9)
	// top_k is not caller-overridable and keeps its default.
	require.Equal(t, 250, request.AdditionalModelRequestFields.TopK)
}

func TestSanitizeDocumentName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Report (Final) v2!!.TXT", "My Report (Final) v2"},
		{"résumé.pdf", "rsum"},
		{"a  b   c.txt", "a b c"},
		{"[draft] plan-2024.md", "[draft] plan-2024"},
		{"...", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, sanitizeDocumentName(tt.in), "input %q", tt.in)
	}
}
