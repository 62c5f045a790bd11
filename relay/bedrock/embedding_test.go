package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/require"
)

// fakeModelInvoker answers embedding invocations with one vector per text,
// each vector encoding the numeric document body, so ordering bugs surface
// immediately.
type fakeModelInvoker struct {
	mu         sync.Mutex
	batches    [][]string
	inputTypes []string
	failAfter  int
}

func (f *fakeModelInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	var request cohereEmbeddingRequest
	if err := json.Unmarshal(params.Body, &request); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.batches = append(f.batches, request.Texts)
	f.inputTypes = append(f.inputTypes, request.InputType)
	calls := len(f.batches)
	f.mu.Unlock()

	if f.failAfter > 0 && calls > f.failAfter {
		return nil, fmt.Errorf("throttled")
	}

	response := cohereEmbeddingResponse{Embeddings: make([][]float64, 0, len(request.Texts))}
	for _, text := range request.Texts {
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, err
		}
		response.Embeddings = append(response.Embeddings, []float64{float64(n)})
	}
	body, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}
	return &bedrockruntime.InvokeModelOutput{
		Body:        body,
		ContentType: aws.String("application/json"),
	}, nil
}

func numberedDocuments(n int) []string {
	documents := make([]string, n)
	for i := range documents {
		documents[i] = strconv.Itoa(i)
	}
	return documents
}

func TestNewEmbedderRejectsUnsupportedModel(t *testing.T) {
	_, err := NewEmbedder(&fakeModelInvoker{}, "amazon.titan-embed-text-v1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported embedding model")
}

func TestEmbedDocumentsBatchesOfTen(t *testing.T) {
	fake := &fakeModelInvoker{}
	embedder, err := NewEmbedder(fake, SupportedEmbeddingModelID, WithBatchSize(10))
	require.NoError(t, err)

	vectors, err := embedder.EmbedDocuments(context.Background(), numberedDocuments(23))
	require.NoError(t, err)

	// 23 documents with batch size 10 means exactly three calls of 10, 10, 3.
	require.Len(t, fake.batches, 3)
	require.Len(t, fake.batches[0], 10)
	require.Len(t, fake.batches[1], 10)
	require.Len(t, fake.batches[2], 3)
	for _, inputType := range fake.inputTypes {
		require.Equal(t, "search_document", inputType)
	}

	require.Len(t, vectors, 23)
	for i, vector := range vectors {
		require.Equal(t, []float64{float64(i)}, vector)
	}
}

func TestEmbedDocumentsPreservesOrderWhenConcurrent(t *testing.T) {
	fake := &fakeModelInvoker{}
	embedder, err := NewEmbedder(fake, SupportedEmbeddingModelID, WithBatchSize(3), WithConcurrency(4))
	require.NoError(t, err)

	vectors, err := embedder.EmbedDocuments(context.Background(), numberedDocuments(25))
	require.NoError(t, err)
	require.Len(t, vectors, 25)
	for i, vector := range vectors {
		require.Equal(t, float64(i), vector[0])
	}
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	fake := &fakeModelInvoker{}
	embedder, err := NewEmbedder(fake, SupportedEmbeddingModelID)
	require.NoError(t, err)

	vectors, err := embedder.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, vectors)
	require.Empty(t, fake.batches)
}

func TestEmbedDocumentsPropagatesProviderError(t *testing.T) {
	fake := &fakeModelInvoker{failAfter: 1}
	embedder, err := NewEmbedder(fake, SupportedEmbeddingModelID, WithBatchSize(5))
	require.NoError(t, err)

	_, err = embedder.EmbedDocuments(context.Background(), numberedDocuments(12))
	require.Error(t, err)
	require.Contains(t, err.Error(), "throttled")
}

func TestEmbedQuery(t *testing.T) {
	fake := &fakeModelInvoker{}
	embedder, err := NewEmbedder(fake, SupportedEmbeddingModelID)
	require.NoError(t, err)

	vector, err := embedder.EmbedQuery(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, []float64{7}, vector)
	require.Equal(t, []string{"search_query"}, fake.inputTypes)
}

func TestChunkDocuments(t *testing.T) {
	chunks := chunkDocuments(numberedDocuments(7), 3)
	require.Len(t, chunks, 3)
	require.Equal(t, []string{"0", "1", "2"}, chunks[0])
	require.Equal(t, []string{"3", "4", "5"}, chunks[1])
	require.Equal(t, []string{"6"}, chunks[2])
}
