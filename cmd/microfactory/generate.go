package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gorewood/microfactory/internal/llm"
	"github.com/gorewood/microfactory/internal/output"
)

// generateFlags holds all flag values for the generate command.
type generateFlags struct {
	model       string
	provider    string
	system      string
	input       string
	temperature float64
	maxTokens   int
	timeout     int
}

func newGenerateCmd() *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate one LLM completion",
		Long: `Generate a completion with the same model client the pipeline uses.

Useful for trying a prompt or a model before a scheduled run.

Examples:
  microfactory generate "Suggest a small browser tool" --model haiku
  echo "Write a unit converter page" | microfactory generate --model gemini-flash
  microfactory generate --input prompt.md --model local --json

Environment variables:
  ANTHROPIC_API_KEY  Required for Anthropic models
  OPENAI_API_KEY     Required for OpenAI models
  GOOGLE_API_KEY     Required for Google models (GEMINI_API_KEY also accepted)
  LOCAL_LLM_URL      Local server URL (default: http://localhost:1234/v1)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "Model name or alias (default: configured model)")
	cmd.Flags().StringVarP(&flags.provider, "provider", "p", "", "Provider (anthropic, openai, google, local) - inferred if omitted")
	cmd.Flags().StringVarP(&flags.system, "system", "s", "", "System prompt")
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "Input file appended to the prompt")
	cmd.Flags().Float64Var(&flags.temperature, "temperature", 0, "Temperature (0.0-2.0, 0 uses model default)")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "Max tokens to generate (0 uses model default)")
	cmd.Flags().IntVar(&flags.timeout, "timeout", 120, "Request timeout in seconds")

	return cmd
}

func validateGenerateFlags(flags generateFlags) error {
	if flags.temperature < 0 || flags.temperature > 2 {
		return output.NewUserError("temperature must be between 0 and 2, got " + strconv.FormatFloat(flags.temperature, 'f', -1, 64))
	}
	if flags.timeout <= 0 {
		return output.NewUserError("timeout must be positive, got " + strconv.Itoa(flags.timeout))
	}
	if flags.maxTokens < 0 {
		return output.NewUserError("max-tokens must be non-negative, got " + strconv.Itoa(flags.maxTokens))
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string, flags generateFlags) error {
	printer := newPrinter(cmd)

	if err := validateGenerateFlags(flags); err != nil {
		return fail(printer, err)
	}

	promptText, err := buildPrompt(cmd, args, flags.input)
	if err != nil {
		return fail(printer, err)
	}
	if promptText == "" {
		return fail(printer, output.NewUserError("no prompt provided. Use argument, --input file, or pipe via stdin"))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fail(printer, err)
	}
	model, provider := cfg.LLM.Model, cfg.LLM.Provider
	if flags.model != "" {
		model, provider = flags.model, ""
	}
	if flags.provider != "" {
		provider = flags.provider
	}

	client, err := llm.New(llm.Options{
		Model:    model,
		Provider: llm.Provider(provider),
		Timeout:  time.Duration(flags.timeout) * time.Second,
	})
	if err != nil {
		return fail(printer, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(flags.timeout)*time.Second)
	defer cancel()

	resp, err := client.Complete(ctx, llm.Request{
		System:      flags.system,
		Prompt:      promptText,
		Temperature: flags.temperature,
		MaxTokens:   flags.maxTokens,
	})
	if err != nil {
		return fail(printer, output.NewGenerationErrorWithCause("generation failed", err))
	}

	if printer.IsJSON() {
		return printer.Success(map[string]any{
			"provider": string(client.Provider()),
			"model":    resp.Model,
			"content":  resp.Content,
		})
	}
	printer.Print("%s\n", resp.Content)
	return nil
}

// buildPrompt joins the prompt argument, the --input file and piped stdin.
func buildPrompt(cmd *cobra.Command, args []string, inputFile string) (string, error) {
	var parts []string
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		parts = append(parts, args[0])
	}
	if inputFile != "" {
		content, err := readInput(cmd, inputFile)
		if err != nil {
			return "", err
		}
		parts = append(parts, content)
	}
	if len(parts) == 0 {
		piped, err := readInput(cmd, "")
		if err != nil {
			return "", nil //nolint:nilerr // no stdin means no prompt, reported by the caller
		}
		parts = append(parts, strings.TrimSpace(piped))
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}
