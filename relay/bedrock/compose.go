package bedrock

import (
	"encoding/base64"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/bedrockchat/relay/common/config"
	imgutil "github.com/bedrockchat/relay/common/image"
	"github.com/bedrockchat/relay/common/logger"
	relaymodel "github.com/bedrockchat/relay/relay/model"
)

// converseDocumentFormats are the document formats the Converse API accepts.
// Anything else is sent as plain text.
var converseDocumentFormats = map[string]string{
	"pdf":  "pdf",
	"csv":  "csv",
	"doc":  "doc",
	"docx": "docx",
	"xls":  "xls",
	"xlsx": "xlsx",
	"html": "html",
	"txt":  "txt",
	"md":   "md",
}

// converseImageFormats are the inline image formats the Converse API accepts.
var converseImageFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

var (
	invalidDocumentNameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-\(\)\[\]]`)
	whitespaceRun            = regexp.MustCompile(`\s+`)
)

// documentFormat maps an attachment file extension to a Converse document
// format, falling back to txt for anything unrecognized or missing.
func documentFormat(ext string) string {
	if format, ok := converseDocumentFormats[strings.ToLower(ext)]; ok {
		return format
	}
	return "txt"
}

// sanitizeDocumentName strips the extension and rewrites the remaining stem
// into a name the Converse API accepts: only alphanumerics, whitespace,
// hyphens, parentheses and square brackets, with no consecutive whitespace.
func sanitizeDocumentName(fileName string) string {
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	stem = invalidDocumentNameChars.ReplaceAllString(stem, "")
	stem = whitespaceRun.ReplaceAllString(stem, " ")
	return strings.TrimSpace(stem)
}

// imageWireFormat derives the Converse image format from the declared media
// type, e.g. "image/png" -> "png". When the subtype is not a format the API
// accepts, the decoded bytes are sniffed as a last resort so that loosely
// declared media types (e.g. "image/jpg", "application/octet-stream") still
// compose.
func imageWireFormat(mediaType string, data []byte) (string, error) {
	subtype := strings.ToLower(mediaType)
	if i := strings.Index(subtype, "/"); i >= 0 {
		subtype = subtype[i+1:]
	}
	if subtype == "jpg" {
		subtype = "jpeg"
	}
	if converseImageFormats[subtype] {
		return subtype, nil
	}
	sniffed, err := imgutil.SniffFormat(data)
	if err != nil {
		return "", errors.Wrapf(err, "media type %q is not a supported image format", mediaType)
	}
	return sniffed, nil
}

// Compose builds the full Converse request from a validated message history,
// a logical model name, an optional system instruction and optional
// generation parameter overrides. It is a pure transformation: no IO happens
// here.
func Compose(
	messages []relaymodel.Message,
	model ModelName,
	instruction string,
	stream bool,
	params *GenerationParams,
) (*ConverseRequest, error) {
	var wireMessages []ConverseMessage
	for mi := range messages {
		message := &messages[mi]
		if !message.IsConversationTurn() {
			continue
		}
		blocks := make([]ContentBlock, 0, len(message.Content))
		for ci := range message.Content {
			content := &message.Content[ci]
			if err := content.Validate(); err != nil {
				return nil, errors.Wrapf(err, "message %d content %d", mi, ci)
			}
			switch content.ContentType {
			case relaymodel.ContentTypeText:
				text := content.Body
				blocks = append(blocks, ContentBlock{Text: &text})
			case relaymodel.ContentTypeImage:
				block, err := composeImageBlock(content)
				if err != nil {
					return nil, errors.Wrapf(err, "message %d content %d", mi, ci)
				}
				blocks = append(blocks, block)
			case relaymodel.ContentTypeAttachment:
				data, err := base64.StdEncoding.DecodeString(content.Body)
				if err != nil {
					return nil, errors.Wrap(err, "decode attachment body")
				}
				ext := strings.TrimPrefix(filepath.Ext(content.FileName), ".")
				blocks = append(blocks, ContentBlock{Document: &DocumentBlock{
					Format: documentFormat(ext),
					Name:   sanitizeDocumentName(content.FileName),
					Source: BytesSource{Bytes: data},
				}})
			default:
				return nil, errors.WithStack(&relaymodel.UnsupportedContentError{
					ContentType: string(content.ContentType),
				})
			}
		}
		wireMessages = append(wireMessages, ConverseMessage{Role: message.Role, Content: blocks})
	}

	modelID, err := ModelID(model)
	if err != nil {
		return nil, err
	}

	inference, additional := DefaultGenerationConfig().Merge(params).Split()

	request := &ConverseRequest{
		ModelID:                      modelID,
		Messages:                     wireMessages,
		InferenceConfig:              inference,
		AdditionalModelRequestFields: additional,
		System:                       []SystemContentBlock{},
		Stream:                       stream,
	}
	if instruction != "" {
		request.System = append(request.System, SystemContentBlock{Text: instruction})
	}
	return request, nil
}

func composeImageBlock(content *relaymodel.Content) (ContentBlock, error) {
	data, err := base64.StdEncoding.DecodeString(content.Body)
	if err != nil {
		return ContentBlock{}, errors.Wrap(err, "decode image body")
	}
	if maxBytes := config.MaxInlineImageSizeMB * 1024 * 1024; maxBytes > 0 && len(data) > maxBytes {
		return ContentBlock{}, errors.WithStack(&relaymodel.ValidationError{
			Field:  "body",
			Reason: "inline image exceeds the configured size limit",
		})
	}
	format, err := imageWireFormat(content.MediaType, data)
	if err != nil {
		return ContentBlock{}, errors.WithStack(&relaymodel.UnsupportedContentError{
			ContentType: content.MediaType,
		})
	}
	if config.DebugEnabled {
		if width, height, err := imgutil.Size(data); err == nil {
			logger.Logger.Debug("composed inline image",
				zap.String("format", format),
				zap.Int("width", width),
				zap.Int("height", height))
		}
	}
	return ContentBlock{Image: &ImageBlock{
		Format: format,
		Source: BytesSource{Bytes: data},
	}}, nil
}
