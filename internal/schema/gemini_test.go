package schema

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestEmbeddingValues(t *testing.T) {
	got, err := embeddingValues(&genai.EmbedContentResponse{
		Embedding: &genai.ContentEmbedding{Values: []float32{0.25, -0.5, 1}},
	})
	if err != nil {
		t.Fatalf("embeddingValues() error = %v", err)
	}
	if len(got) != 3 || got[1] != -0.5 {
		t.Fatalf("embeddingValues() = %v", got)
	}

	for _, res := range []*genai.EmbedContentResponse{nil, {}, {Embedding: &genai.ContentEmbedding{}}} {
		if _, err := embeddingValues(res); err == nil {
			t.Fatalf("embeddingValues(%#v) expected error", res)
		}
	}
}
