// Package agent turns prompt templates into instructions for a text
// generation capability.
//
// An agent is not a type with behaviour: it is a persona plus a task, both
// read from a prompt template, rendered into one instruction string.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorewood/microfactory/internal/extract"
	"github.com/gorewood/microfactory/internal/llm"
	"github.com/gorewood/microfactory/internal/prompt"
)

// Generator produces text from instructions.
type Generator interface {
	Generate(ctx context.Context, instructions string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, instructions string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, instructions string) (string, error) {
	return f(ctx, instructions)
}

// Persona describes who the model plays.
type Persona struct {
	Role      string
	Goal      string
	Backstory string
}

// Preamble renders the persona as the opening of an instruction.
func (p Persona) Preamble() string {
	var b strings.Builder
	if p.Role != "" {
		fmt.Fprintf(&b, "You are a %s.", p.Role)
	}
	if p.Goal != "" {
		fmt.Fprintf(&b, " Your goal: %s.", strings.TrimSuffix(p.Goal, "."))
	}
	if p.Backstory != "" {
		b.WriteString(" " + p.Backstory)
	}
	return strings.TrimSpace(b.String())
}

// Agent is one step of the pipeline: a persona, a task and the kind of
// artifact its output is extracted as.
type Agent struct {
	Name           string
	Persona        Persona
	Task           string
	ExpectedOutput string
	Kind           extract.Kind
}

// FromTemplate builds an agent from a prompt template.
func FromTemplate(t *prompt.Template) (Agent, error) {
	kind := extract.KindText
	if t.Kind != "" {
		k, err := extract.ParseKind(t.Kind)
		if err != nil {
			return Agent{}, fmt.Errorf("template %s: %w", t.Name, err)
		}
		kind = k
	}
	return Agent{
		Name:           t.Name,
		Persona:        Persona{Role: t.Role, Goal: t.Goal, Backstory: t.Backstory},
		Task:           t.Content,
		ExpectedOutput: t.ExpectedOutput,
		Kind:           kind,
	}, nil
}

// Instructions renders the full instruction string with vars substituted
// into the task.
func (a Agent) Instructions(vars map[string]string) string {
	task := prompt.Render(&prompt.Template{Content: a.Task}, vars)

	var b strings.Builder
	if pre := a.Persona.Preamble(); pre != "" {
		b.WriteString(pre + "\n\n")
	}
	b.WriteString("## Task\n\n" + task)
	if a.ExpectedOutput != "" {
		b.WriteString("\n\n## Expected output\n\n" + a.ExpectedOutput)
	}
	return b.String()
}

// Run asks g for this agent's output and extracts it per the agent's kind.
// fellBack reports that no fenced block was found.
func (a Agent) Run(ctx context.Context, g Generator, vars map[string]string) (body string, fellBack bool, err error) {
	raw, err := g.Generate(ctx, a.Instructions(vars))
	if err != nil {
		return "", false, err
	}
	body, fellBack = extract.ExtractReport(raw, a.Kind)
	if a.Kind == extract.KindText {
		body = extract.Sanitize(body)
	}
	return body, fellBack, nil
}

// Completer is the part of llm.Client an LLMGenerator needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// LLMGenerator adapts an LLM client to Generator.
type LLMGenerator struct {
	client    Completer
	system    string
	maxTokens int
}

const defaultSystem = "Produce exactly the deliverable requested. No preamble, no closing remarks."

// NewLLMGenerator wraps client.
func NewLLMGenerator(client Completer, maxTokens int) *LLMGenerator {
	return &LLMGenerator{client: client, system: defaultSystem, maxTokens: maxTokens}
}

// Generate implements Generator.
func (g *LLMGenerator) Generate(ctx context.Context, instructions string) (string, error) {
	resp, err := g.client.Complete(ctx, llm.Request{
		System:    g.system,
		Prompt:    instructions,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
