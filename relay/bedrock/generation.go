package bedrock

import (
	"github.com/bedrockchat/relay/common/config"
)

// GenerationConfig is the internal, merged set of generation parameters.
// TopK lives here but never reaches the standard inference configuration on
// the wire: it is a provider-specific parameter carried in
// AdditionalModelRequestFields (see Split).
type GenerationConfig struct {
	MaxTokens     int      `json:"max_tokens"`
	TopK          int      `json:"top_k"`
	TopP          float64  `json:"top_p"`
	Temperature   float64  `json:"temperature"`
	StopSequences []string `json:"stop_sequences"`
}

var defaultClaudeGenerationConfig = GenerationConfig{
	MaxTokens:     2000,
	TopK:          250,
	TopP:          0.999,
	Temperature:   0.6,
	StopSequences: []string{"Human: ", "Assistant: "},
}

var defaultMistralGenerationConfig = GenerationConfig{
	MaxTokens:     4096,
	TopK:          50,
	TopP:          0.9,
	Temperature:   0.5,
	StopSequences: []string{"[INST]", "[/INST]"},
}

// DefaultGenerationConfig returns the family defaults selected by the
// ENABLE_MISTRAL flag at process start.
func DefaultGenerationConfig() GenerationConfig {
	base := defaultClaudeGenerationConfig
	if config.EnableMistral {
		base = defaultMistralGenerationConfig
	}
	// Copy the stop sequences so callers can never mutate the shared defaults.
	base.StopSequences = append([]string(nil), base.StopSequences...)
	return base
}

// GenerationParams are the caller-overridable generation parameters. Nil
// fields keep the family default. TopK is deliberately absent: it always
// comes from the defaults and is not caller-overridable through this path.
type GenerationParams struct {
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// Merge overlays the caller-supplied parameters on top of the receiver. The
// merge is shallow: each supplied field replaces the default wholesale.
func (g GenerationConfig) Merge(params *GenerationParams) GenerationConfig {
	if params == nil {
		return g
	}
	if params.MaxTokens != nil {
		g.MaxTokens = *params.MaxTokens
	}
	if params.Temperature != nil {
		g.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		g.TopP = *params.TopP
	}
	if params.StopSequences != nil {
		g.StopSequences = append([]string(nil), params.StopSequences...)
	}
	return g
}

// Split separates the standard inference parameters from the
// provider-specific additional fields. Because the two results are distinct
// types, top_k can never appear inside the inference configuration.
func (g GenerationConfig) Split() (InferenceConfig, AdditionalModelRequestFields) {
	inference := InferenceConfig{
		MaxTokens:     g.MaxTokens,
		Temperature:   g.Temperature,
		TopP:          g.TopP,
		StopSequences: g.StopSequences,
	}
	additional := AdditionalModelRequestFields{TopK: g.TopK}
	return inference, additional
}
