package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

const DefaultGeminiModel = "gemini-1.5-flash-latest"

type GeminiConfig struct {
	Model       string
	Temperature float32
}

// GeminiCompleter sends prompts to a Gemini generative model. The client is owned by the
// caller.
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiCompleter(client *genai.Client, cfg GeminiConfig) (*GeminiCompleter, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiCompleter{client: client, model: model, temperature: cfg.Temperature}, nil
}

func (c *GeminiCompleter) Model() string {
	return c.model
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	model := c.client.GenerativeModel(c.model)
	if strings.TrimSpace(prompt.System) != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(prompt.System)},
		}
	}
	temperature := c.temperature
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temperature}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt.User))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return candidateText(resp)
}

// candidateText joins the text parts of the first candidate, skipping non-text parts.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if value, ok := part.(genai.Text); ok {
			text.WriteString(string(value))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text.String(), nil
}
