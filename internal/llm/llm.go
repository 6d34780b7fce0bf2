// Package llm provides a minimal multi-provider LLM client.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorewood/microfactory/internal/output"
)

// Provider represents an LLM provider.
type Provider string

// Supported LLM providers.
const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderLocal     Provider = "local"
)

// Request represents an LLM completion request.
type Request struct {
	System      string  // System prompt
	Prompt      string  // User prompt
	Temperature float64 // Temperature (0 uses default)
	MaxTokens   int     // Max tokens (0 uses default)
}

// Response represents an LLM completion response.
type Response struct {
	Content string // Generated content
	Model   string // Model used
}

// HTTPDoer defines the HTTP operations required by Client.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures New.
type Options struct {
	// Model is a full model name, an alias ("mini") or a combined form
	// ("claude-haiku", "gemini-flash").
	Model    string
	Provider Provider
	Timeout  time.Duration
	// Getenv looks up API keys and LOCAL_LLM_URL. Defaults to os.Getenv.
	Getenv     func(string) string
	HTTPClient HTTPDoer
}

// Client is a provider-agnostic LLM client.
type Client struct {
	provider   Provider
	model      string
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	google     googleModels
}

// New creates a client for opts.Model.
// The provider is inferred from the model name when not set.
func New(opts Options) (*Client, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	provider, model := Resolve(opts.Model, opts.Provider)

	apiKey, err := apiKeyFor(provider, getenv)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		provider:   provider,
		model:      model,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
	switch provider {
	case ProviderAnthropic:
		c.baseURL = "https://api.anthropic.com/v1"
	case ProviderOpenAI:
		c.baseURL = "https://api.openai.com/v1"
	case ProviderLocal:
		c.baseURL = localServerURL(getenv)
	case ProviderGoogle:
		c.google, err = newGoogleModels(apiKey, timeout)
		if err != nil {
			return nil, output.NewGenerationErrorWithCause("failed to create Gemini client", err)
		}
	}
	return c, nil
}

// Provider returns the resolved provider.
func (c *Client) Provider() Provider { return c.provider }

// Model returns the resolved model name.
func (c *Client) Model() string { return c.model }

// Complete generates a completion for the given request.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	switch c.provider {
	case ProviderAnthropic:
		return c.completeAnthropic(ctx, req)
	case ProviderOpenAI, ProviderLocal:
		return c.completeChat(ctx, req)
	case ProviderGoogle:
		return c.completeGoogle(ctx, req)
	default:
		return nil, output.NewUserError(fmt.Sprintf("unsupported provider: %s", c.provider))
	}
}

// Resolve returns the provider and full model name for a model string.
func Resolve(model string, provider Provider) (Provider, string) {
	if provider == "" {
		provider, model = parseProviderPrefix(model)
	}
	if provider == "" {
		provider = inferProvider(model)
	}
	return provider, resolveModelAlias(model, provider)
}

// providerPrefixes maps explicit prefixes to providers for combined format
// parsing. "claude-" and "gemini-" also begin real model names, so they are
// only split off in front of an alias.
var providerPrefixes = []struct {
	prefix     string
	provider   Provider
	partOfName bool
}{
	{"claude-", ProviderAnthropic, true},
	{"anthropic-", ProviderAnthropic, false},
	{"gemini-", ProviderGoogle, true},
	{"google-", ProviderGoogle, false},
	{"openai-", ProviderOpenAI, false},
	{"local-", ProviderLocal, false},
}

// parseProviderPrefix extracts provider from combined format like "claude-haiku".
func parseProviderPrefix(model string) (Provider, string) {
	lower := strings.ToLower(model)
	for _, p := range providerPrefixes {
		rest, ok := strings.CutPrefix(lower, p.prefix)
		if !ok {
			continue
		}
		if _, alias := modelAliases[p.provider][rest]; alias || !p.partOfName {
			return p.provider, model[len(p.prefix):]
		}
		return p.provider, model
	}
	return "", model
}

// providerPatterns are checked in order; first match wins.
var providerPatterns = []struct {
	substring string
	provider  Provider
}{
	{"claude", ProviderAnthropic},
	{"haiku", ProviderAnthropic},
	{"sonnet", ProviderAnthropic},
	{"opus", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"nano", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"flash", ProviderGoogle},
	{"qwen", ProviderLocal},
	{"llama", ProviderLocal},
	{"mistral", ProviderLocal},
	{"local", ProviderLocal},
}

func inferProvider(model string) Provider {
	lower := strings.ToLower(model)
	for _, p := range providerPatterns {
		if strings.Contains(lower, p.substring) {
			return p.provider
		}
	}
	return ProviderOpenAI
}

// modelAliases are shorthands; full names pass through.
var modelAliases = map[Provider]map[string]string{
	ProviderAnthropic: {
		"haiku":  "claude-haiku-4-5-20251001",
		"sonnet": "claude-sonnet-4-5-20250929",
		"opus":   "claude-opus-4-6",
	},
	ProviderOpenAI: {
		"nano": "gpt-5-nano",
		"mini": "gpt-5-mini",
		"gpt":  "gpt-5.2",
	},
	ProviderGoogle: {
		"flash":      "gemini-3-flash-preview",
		"flash-lite": "gemini-2.5-flash-lite",
		"pro":        "gemini-3-pro-preview",
	},
	ProviderLocal: {
		"local": "default",
	},
}

func resolveModelAlias(model string, provider Provider) string {
	if resolved, ok := modelAliases[provider][strings.ToLower(model)]; ok {
		return resolved
	}
	return model
}

// envVarForProvider maps providers to their API key environment variables.
var envVarForProvider = map[Provider]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGoogle:    "GOOGLE_API_KEY",
	ProviderLocal:     "",
}

func apiKeyFor(provider Provider, getenv func(string) string) (string, error) {
	envVar, ok := envVarForProvider[provider]
	if !ok {
		return "", output.NewUserError(fmt.Sprintf("unsupported provider: %s", provider))
	}
	if envVar == "" {
		return "not-needed", nil
	}
	key := getenv(envVar)
	if key == "" && provider == ProviderGoogle {
		key = getenv("GEMINI_API_KEY")
	}
	if key == "" {
		return "", output.NewUserError(envVar + " environment variable not set")
	}
	return key, nil
}

// localServerURL defaults to the LM Studio endpoint.
func localServerURL(getenv func(string) string) string {
	if u := getenv("LOCAL_LLM_URL"); u != "" {
		return strings.TrimSuffix(u, "/")
	}
	return "http://localhost:1234/v1"
}

// APIError is a non-200 response from a provider.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

// Permanent reports whether retrying cannot help: client errors other than
// rate limiting and timeouts.
func (e *APIError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500 &&
		e.Status != http.StatusTooManyRequests && e.Status != http.StatusRequestTimeout
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Permanent()
	}
	var exitErr *output.ExitError
	return errors.As(err, &exitErr) && exitErr.Code == output.ExitUserError
}

// doRequest performs an HTTP POST request with JSON body.
func (c *Client) doRequest(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, output.NewGenerationErrorWithCause("failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, output.NewGenerationErrorWithCause("failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, output.NewGenerationErrorWithCause("request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, output.NewGenerationErrorWithCause("failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Truncate error body to prevent sensitive data leakage and memory issues
		errBody := string(respBody)
		if len(errBody) > 500 {
			errBody = errBody[:500]
		}
		apiErr := &APIError{Status: resp.StatusCode, Body: errBody}
		return nil, output.NewGenerationErrorWithCause(apiErr.Error(), apiErr)
	}

	return respBody, nil
}

// ProviderInfo describes one provider for display.
type ProviderInfo struct {
	Provider Provider
	EnvVar   string
	Aliases  map[string]string
}

// ProviderInfos lists the supported providers in display order.
func ProviderInfos() []ProviderInfo {
	order := []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderLocal}
	infos := make([]ProviderInfo, 0, len(order))
	for _, p := range order {
		infos = append(infos, ProviderInfo{Provider: p, EnvVar: envVarForProvider[p], Aliases: modelAliases[p]})
	}
	return infos
}
