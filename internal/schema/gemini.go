package schema

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

const DefaultEmbeddingModel = "text-embedding-004"

type GeminiEmbedder struct {
	model *genai.EmbeddingModel
}

func NewGeminiEmbedder(client *genai.Client, modelName string) *GeminiEmbedder {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}
	return &GeminiEmbedder{model: client.EmbeddingModel(modelName)}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	return embeddingValues(res)
}

func embeddingValues(res *genai.EmbedContentResponse) ([]float32, error) {
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}
