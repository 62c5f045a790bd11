package config

import (
	"fmt"
	"strings"

	"github.com/bedrockchat/relay/common/env"
)

// DefaultBedrockRegionTable is the baked-in region table used when
// BEDROCK_REGION is unset. The mandatory "default" entry is the region every
// model without a specific entry is invoked in.
const DefaultBedrockRegionTable = `{
    "claude-v3-sonnet": "us-east-2",
    "claude-v3.5-sonnet": "us-east-1",
    "claude-v3-opus": "us-west-2",
    "default": "us-west-2"
}`

var (
	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)

	// BedrockRegionRaw is the JSON region table keyed by logical model name.
	// Overridable through BEDROCK_REGION; parsed once at startup and never
	// mutated afterwards.
	BedrockRegionRaw = func() string {
		v := strings.TrimSpace(env.String("BEDROCK_REGION", ""))
		if v == "" {
			return DefaultBedrockRegionTable
		}
		return v
	}()

	// BedrockPricingRaw optionally replaces the baked-in pricing table with a
	// JSON document keyed by region, then logical model, then {input, output}.
	BedrockPricingRaw = strings.TrimSpace(env.String("BEDROCK_PRICING", ""))

	// EnableMistral selects the Mistral family generation defaults instead of
	// the Claude ones. Evaluated once at process start.
	EnableMistral = env.Bool("ENABLE_MISTRAL", false)

	// BedrockAccessKey and BedrockSecretKey pin static AWS credentials for the
	// Bedrock clients. When empty the default credential chain applies.
	BedrockAccessKey = strings.TrimSpace(env.String("BEDROCK_ACCESS_KEY", ""))
	BedrockSecretKey = strings.TrimSpace(env.String("BEDROCK_SECRET_KEY", ""))

	// MaxInlineImageSizeMB limits the decoded size (MB) of images inlined into
	// a converse request to prevent oversized payloads from overwhelming the
	// upstream provider.
	MaxInlineImageSizeMB = func() int {
		v := env.Int("MAX_INLINE_IMAGE_SIZE_MB", 30)
		if v < 0 {
			panic("MAX_INLINE_IMAGE_SIZE_MB must not be negative")
		}
		return v
	}()

	// EmbeddingModelID is the Bedrock model used for document embeddings.
	EmbeddingModelID = env.String("EMBEDDING_MODEL_ID", "cohere.embed-multilingual-v3")

	// EmbeddingBatchSize caps how many documents go into a single embedding
	// invocation. The bound exists because of the endpoint's payload-size
	// limit, not a rate limit.
	EmbeddingBatchSize = func() int {
		v := env.Int("EMBEDDING_BATCH_SIZE", 10)
		if v <= 0 {
			panic(fmt.Sprintf("EMBEDDING_BATCH_SIZE must be positive, got %d", v))
		}
		return v
	}()

	// EmbeddingConcurrency sets how many embedding chunks may be in flight at
	// once. Results are reassembled in document order regardless.
	EmbeddingConcurrency = func() int {
		v := env.Int("EMBEDDING_CONCURRENCY", 1)
		if v <= 0 {
			return 1
		}
		return v
	}()

	// ApproximateTokenEnabled skips the tiktoken encoder and estimates token
	// counts from byte length instead.
	ApproximateTokenEnabled = env.Bool("APPROXIMATE_TOKEN", false)
)
