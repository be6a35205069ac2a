package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient generates answers through Google's Gemini API.
type GeminiClient struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
}

// NewGeminiClient creates a Gemini-backed client. The API key is required;
// callers that have no key should run without a client instead.
func NewGeminiClient(ctx context.Context, apiKey, model string, maxOutputTokens int) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{
		client:          client,
		model:           model,
		maxOutputTokens: int32(maxOutputTokens),
	}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		MaxOutputTokens:   g.maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return text, nil
}

func (g *GeminiClient) Model() string {
	return g.model
}
