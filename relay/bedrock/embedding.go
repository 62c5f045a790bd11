package bedrock

import (
	"context"
	"encoding/json"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"golang.org/x/sync/errgroup"

	"github.com/bedrockchat/relay/common/config"
	relaymodel "github.com/bedrockchat/relay/relay/model"
)

// SupportedEmbeddingModelID is the only embedding model the batcher supports.
// Configuring any other id is a deployment bug, not a per-call error.
const SupportedEmbeddingModelID = "cohere.embed-multilingual-v3"

const (
	embeddingInputTypeDocument = "search_document"
	embeddingInputTypeQuery    = "search_query"
)

// ModelInvoker is the subset of the Bedrock runtime client the embedder
// needs. It is satisfied by *bedrockruntime.Client.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type cohereEmbeddingRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereEmbeddingResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embedder turns documents into embedding vectors, splitting the input into
// bounded batches so a single invocation never exceeds the endpoint's
// payload-size limit.
type Embedder struct {
	client      ModelInvoker
	modelID     string
	batchSize   int
	concurrency int
}

type EmbedderOption func(*Embedder)

// WithBatchSize overrides how many documents go into one invocation.
func WithBatchSize(n int) EmbedderOption {
	return func(e *Embedder) { e.batchSize = n }
}

// WithConcurrency overrides how many batch invocations may run at once.
func WithConcurrency(n int) EmbedderOption {
	return func(e *Embedder) { e.concurrency = n }
}

func NewEmbedder(client ModelInvoker, modelID string, opts ...EmbedderOption) (*Embedder, error) {
	if modelID != SupportedEmbeddingModelID {
		return nil, errors.WithStack(&relaymodel.ConfigurationError{
			Key:    modelID,
			Reason: "unsupported embedding model, only " + SupportedEmbeddingModelID + " is supported",
		})
	}
	e := &Embedder{
		client:      client,
		modelID:     modelID,
		batchSize:   config.EmbeddingBatchSize,
		concurrency: config.EmbeddingConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.batchSize <= 0 {
		return nil, errors.WithStack(&relaymodel.ConfigurationError{
			Key:    "batch_size",
			Reason: "embedding batch size must be positive",
		})
	}
	if e.concurrency <= 0 {
		e.concurrency = 1
	}
	return e, nil
}

// EmbedDocuments returns one vector per document, in document order. Chunks
// may be invoked concurrently, but reassembly is positional so concurrency
// can never reorder the result.
func (e *Embedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	chunks := chunkDocuments(documents, e.batchSize)
	results := make([][][]float64, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			vectors, err := e.invoke(gctx, chunk, embeddingInputTypeDocument)
			if err != nil {
				return err
			}
			if len(vectors) != len(chunk) {
				return errors.Errorf("embedding endpoint returned %d vectors for %d documents",
					len(vectors), len(chunk))
			}
			results[i] = vectors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	embeddings := make([][]float64, 0, len(documents))
	for _, vectors := range results {
		embeddings = append(embeddings, vectors...)
	}
	return embeddings, nil
}

// EmbedQuery embeds a single search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.invoke(ctx, []string{text}, embeddingInputTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errors.Errorf("embedding endpoint returned %d vectors for a single query", len(vectors))
	}
	return vectors[0], nil
}

func (e *Embedder) invoke(ctx context.Context, texts []string, inputType string) ([][]float64, error) {
	payload, err := json.Marshal(cohereEmbeddingRequest{Texts: texts, InputType: inputType})
	if err != nil {
		return nil, errors.Wrap(err, "marshal embedding request")
	}
	output, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invoke embedding model %s", e.modelID)
	}
	var parsed cohereEmbeddingResponse
	if err := json.Unmarshal(output.Body, &parsed); err != nil {
		return nil, errors.Wrap(err, "parse embedding response")
	}
	return parsed.Embeddings, nil
}

func chunkDocuments(documents []string, size int) [][]string {
	chunks := make([][]string, 0, (len(documents)+size-1)/size)
	for start := 0; start < len(documents); start += size {
		end := start + size
		if end > len(documents) {
			end = len(documents)
		}
		chunks = append(chunks, documents[start:end])
	}
	return chunks
}
