package llm

import (
	"context"
	"encoding/json"

	"github.com/gorewood/microfactory/internal/output"
)

// Chat completions types, shared by OpenAI and OpenAI-compatible local
// servers (LM Studio, Ollama).
type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_completion_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) completeChat(ctx context.Context, req Request) (*Response, error) {
	headers := map[string]string{}
	if c.provider != ProviderLocal {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	respBody, err := c.doRequest(ctx, c.baseURL+"/chat/completions", c.buildChatRequest(req), headers)
	if err != nil {
		return nil, err
	}
	return parseChatResponse(respBody, c.model)
}

func (c *Client) buildChatRequest(req Request) chatRequest {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	// An empty model lets a local server use whatever it has loaded.
	model := c.model
	if c.provider == ProviderLocal && (model == "default" || model == "local") {
		model = ""
	}
	return chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

func parseChatResponse(respBody []byte, model string) (*Response, error) {
	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, output.NewGenerationErrorWithCause("failed to parse response", err)
	}
	if result.Error != nil {
		return nil, output.NewGenerationError("API error: " + result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, output.NewGenerationError("empty response from API")
	}

	used := model
	if used == "" || used == "default" {
		used = result.Model
	}
	if used == "" {
		used = "local"
	}
	return &Response{Content: result.Choices[0].Message.Content, Model: used}, nil
}
