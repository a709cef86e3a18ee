package ollama

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per input text, in input order. The batch fails as
// a unit when the provider response does not line up with the inputs.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var response embedResponse
	err := e.client.call(ctx, "ollama_embed", "/api/embed", embedRequest{
		Model: e.client.embedModel,
		Input: texts,
	}, &response)
	if err != nil {
		return nil, err
	}

	if err := validateEmbeddings(response.Embeddings, len(texts), e.client.embedDims); err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "ollama embed", err)
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func validateEmbeddings(vectors [][]float32, want, dims int) error {
	if len(vectors) != want {
		return fmt.Errorf("got %d embeddings for %d inputs", len(vectors), want)
	}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return fmt.Errorf("embedding %d is empty", i)
		}
		if dims > 0 && len(vec) != dims {
			return fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(vec), dims)
		}
		for _, v := range vec {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return fmt.Errorf("embedding %d has non-finite component", i)
			}
		}
	}
	return nil
}
