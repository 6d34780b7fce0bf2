package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gorewood/microfactory/internal/extract"
	"github.com/gorewood/microfactory/internal/llm"
	"github.com/gorewood/microfactory/internal/output"
	"github.com/gorewood/microfactory/internal/prompt"
)

func TestPersona_Preamble(t *testing.T) {
	p := Persona{Role: "Market Analyst", Goal: "Find a niche.", Backstory: "Expert in web trends."}
	assert.Equal(t, "You are a Market Analyst. Your goal: Find a niche. Expert in web trends.", p.Preamble())
	assert.Equal(t, "", Persona{}.Preamble())
}

func TestFromTemplate(t *testing.T) {
	a, err := FromTemplate(&prompt.Template{Name: "schema", Role: "DBA", Kind: "SQL", Content: "Write {{idea}}"})
	require.NoError(t, err)
	assert.Equal(t, extract.KindSQL, a.Kind)
	assert.Equal(t, "DBA", a.Persona.Role)

	a, err = FromTemplate(&prompt.Template{Name: "custom", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, extract.KindText, a.Kind, "kind defaults to text")

	_, err = FromTemplate(&prompt.Template{Name: "bad", Kind: "pdf", Content: "x"})
	assert.ErrorContains(t, err, "bad")
}

func TestAgent_Instructions(t *testing.T) {
	a := Agent{
		Persona:        Persona{Role: "Full-Stack Developer"},
		Task:           "Build {{idea}}.",
		ExpectedOutput: "One html block.",
	}

	got := a.Instructions(map[string]string{"idea": "a tip calculator"})

	assert.Equal(t, "You are a Full-Stack Developer.\n\n## Task\n\nBuild a tip calculator.\n\n## Expected output\n\nOne html block.", got)
}

func TestAgent_Run_ExtractsPerKind(t *testing.T) {
	g := GeneratorFunc(func(context.Context, string) (string, error) {
		return "Here you go:\n```html\n<!DOCTYPE html><title>Tip</title>\n```\nEnjoy!", nil
	})

	body, fellBack, err := Agent{Kind: extract.KindHTML, Task: "x"}.Run(context.Background(), g, nil)
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, "<!DOCTYPE html><title>Tip</title>", body)
}

func TestAgent_Run_SanitizesText(t *testing.T) {
	g := GeneratorFunc(func(context.Context, string) (string, error) {
		return "Sure! Here's the idea:\n\nTip Calculator\nSplits bills.", nil
	})

	body, fellBack, err := Agent{Kind: extract.KindText, Task: "x"}.Run(context.Background(), g, nil)
	require.NoError(t, err)
	assert.True(t, fellBack)
	assert.Equal(t, "Tip Calculator\nSplits bills.", body)
}

type fakeCompleter struct {
	req  llm.Request
	resp *llm.Response
	err  error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.req = req
	return f.resp, f.err
}

func TestLLMGenerator(t *testing.T) {
	fc := &fakeCompleter{resp: &llm.Response{Content: "out", Model: "m"}}

	out, err := NewLLMGenerator(fc, 8000).Generate(context.Background(), "do it")
	require.NoError(t, err)
	assert.Equal(t, "out", out)
	assert.Equal(t, "do it", fc.req.Prompt)
	assert.Equal(t, 8000, fc.req.MaxTokens)
	assert.NotEmpty(t, fc.req.System)

	fc.err = errors.New("boom")
	_, err = NewLLMGenerator(fc, 0).Generate(context.Background(), "do it")
	assert.EqualError(t, err, "boom")
}

func TestWithRetry(t *testing.T) {
	transient := errors.New("503 overloaded")
	permanent := output.NewGenerationErrorWithCause("bad", &llm.APIError{Status: 400, Body: "bad"})

	tests := []struct {
		name      string
		errs      []error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{name: "first try", errs: nil, attempts: 3, wantCalls: 1},
		{name: "recovers", errs: []error{transient, transient}, attempts: 3, wantCalls: 3},
		{name: "exhausted", errs: []error{transient, transient, transient}, attempts: 3, wantCalls: 3, wantErr: transient},
		{name: "permanent stops", errs: []error{permanent}, attempts: 3, wantCalls: 1, wantErr: permanent},
		{name: "single attempt", errs: []error{transient}, attempts: 0, wantCalls: 1, wantErr: transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			g := GeneratorFunc(func(context.Context, string) (string, error) {
				calls++
				if calls <= len(tt.errs) {
					return "", tt.errs[calls-1]
				}
				return "ok", nil
			})

			out, err := WithRetry(g, tt.attempts, time.Millisecond, nil).Generate(context.Background(), "x")

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", out)
		})
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	g := GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		cancel()
		return "", errors.New("timeout")
	})

	_, err := WithRetry(g, 5, time.Hour, nil).Generate(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, strings.Contains(err.Error(), "timeout") || errors.Is(err, context.Canceled))
}
