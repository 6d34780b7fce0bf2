package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/gorewood/microfactory/internal/output"
)

// googleModels is the part of genai.Models the client uses.
type googleModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func newGoogleModels(apiKey string, timeout time.Duration) (googleModels, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

func (c *Client) completeGoogle(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.google.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		buildGoogleConfig(req),
	)
	if err != nil {
		return nil, output.NewGenerationErrorWithCause("Gemini request failed", err)
	}
	return parseGoogleResponse(resp, c.model)
}

func buildGoogleConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		cfg.Temperature = &temp
	}
	return cfg
}

func parseGoogleResponse(resp *genai.GenerateContentResponse, model string) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, output.NewGenerationError("empty response from API")
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			content.WriteString(part.Text)
		}
	}
	if content.Len() == 0 {
		return nil, output.NewGenerationError("response contained no text content")
	}
	return &Response{Content: content.String(), Model: model}, nil
}
