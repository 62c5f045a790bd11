package bedrock

import (
	relaymodel "github.com/bedrockchat/relay/relay/model"
)

// ConverseRequest is the normalized wire request handed to the invocation
// boundary. Field names are fixed by the Converse API contract.
type ConverseRequest struct {
	ModelID                      string                       `json:"model_id"`
	Messages                     []ConverseMessage            `json:"messages"`
	InferenceConfig              InferenceConfig              `json:"inference_config"`
	AdditionalModelRequestFields AdditionalModelRequestFields `json:"additional_model_request_fields"`
	System                       []SystemContentBlock         `json:"system"`
	Stream                       bool                         `json:"stream"`
}

// ConverseMessage is one conversation turn on the wire.
type ConverseMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a tagged union; exactly one member is set.
type ContentBlock struct {
	Text     *string        `json:"text,omitempty"`
	Image    *ImageBlock    `json:"image,omitempty"`
	Document *DocumentBlock `json:"document,omitempty"`
}

type ImageBlock struct {
	Format string      `json:"format"`
	Source BytesSource `json:"source"`
}

type DocumentBlock struct {
	Format string      `json:"format"`
	Name   string      `json:"name"`
	Source BytesSource `json:"source"`
}

type BytesSource struct {
	Bytes []byte `json:"bytes"`
}

type SystemContentBlock struct {
	Text string `json:"text"`
}

// InferenceConfig carries the standard, provider-recognized generation
// parameters. top_k is intentionally not representable here.
type InferenceConfig struct {
	MaxTokens     int      `json:"maxTokens"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"topP"`
	StopSequences []string `json:"stopSequences"`
}

// AdditionalModelRequestFields carries provider-specific parameters that must
// stay outside the standard inference configuration.
type AdditionalModelRequestFields struct {
	TopK int `json:"top_k"`
}

// ConverseResponse is the normalized provider response.
type ConverseResponse struct {
	Output     ConverseOutput  `json:"output"`
	StopReason string          `json:"stopReason"`
	Usage      relaymodel.Usage `json:"usage"`
}

type ConverseOutput struct {
	Message OutputMessage `json:"message"`
}

type OutputMessage struct {
	Content []OutputContent `json:"content"`
	Role    string          `json:"role"`
}

type OutputContent struct {
	Text string `json:"text"`
}
