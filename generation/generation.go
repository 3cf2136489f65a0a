// Package generation implements the Generation Driver: prompt assembly
// from planned/grounded context, history-aware non-streaming and
// streaming generation, and the per-query pipeline state machine.
// Grounded on the teacher's PromptTemplate variable-substitution contract
// (ai/model/chat/prompt_template.go, ai/evaluation/relevancy.go) adapted
// to this engine's literal {{context}}/{{question}} placeholder syntax —
// raw strings.ReplaceAll is used here instead of text/template because the
// placeholder syntax is pinned exactly rather than left to a templating
// engine's own delimiter conventions.
package generation

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
	"github.com/kojirag/vectra/events"
	"github.com/kojirag/vectra/history"
	"github.com/kojirag/vectra/llm"
)

// defaultPromptTemplate is used when no prompts.query override is
// configured.
const defaultPromptTemplate = `Answer the question using only the context below.

Context:
{{context}}

Question:
{{question}}`

// systemInstruction is the fixed system prompt for every generation call.
const systemInstruction = "You are a helpful RAG assistant."

// State is a stage of the per-query pipeline state machine (§4.9).
type State string

const (
	StatePending    State = "pending"
	StateRetrieving State = "retrieving"
	StateRewriting  State = "rewriting"
	StateReranking  State = "reranking"
	StatePlanning   State = "planning"
	StateGrounding  State = "grounding"
	StateGenerating State = "generating"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Result is the terminal output of a non-streaming generation call.
type Result struct {
	Answer  string
	Sources []document.RetrievedDoc
}

// Driver runs prompt assembly and generation against a backend.
type Driver struct {
	cfg     config.GenerationConfig
	prompts config.PromptsConfig
	backend llm.Backend
	history history.Store
	bus     *events.Bus
}

// New builds a Driver. history and bus may be nil; a nil history disables
// conversation-memory persistence, a nil bus disables lifecycle events.
func New(cfg config.GenerationConfig, prompts config.PromptsConfig, backend llm.Backend, hist history.Store, bus *events.Bus) *Driver {
	if bus == nil {
		bus = &events.Bus{}
	}
	return &Driver{cfg: cfg, prompts: prompts, backend: backend, history: hist, bus: bus}
}

// BuildPrompt substitutes {{context}} and {{question}} into the configured
// template (or the default) and, when transcript is non-empty, prepends a
// "Conversation:\n" block ahead of the rendered template.
func (d *Driver) BuildPrompt(contextText, questionText string, transcript string) string {
	template := d.prompts.Query
	if template == "" {
		template = defaultPromptTemplate
	}

	prompt := strings.ReplaceAll(template, "{{context}}", contextText)
	prompt = strings.ReplaceAll(prompt, "{{question}}", questionText)

	if transcript != "" {
		prompt = "Conversation:\n" + transcript + "\n\n" + prompt
	}
	return prompt
}

// JoinContext renders planned/grounded context parts into a single string
// for prompt substitution.
func JoinContext(parts []document.ContextPart) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Header)
		b.WriteString("\n")
		b.WriteString(p.Body)
	}
	return b.String()
}

// jsonAnswer is the shape expected when cfg.OutputFormat == json.
type jsonAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Generate runs a complete, non-streamed generation call, persisting the
// turn to history on success. Cancellation never mutates history.
func (d *Driver) Generate(ctx context.Context, sessionID, prompt string, sources []document.RetrievedDoc) (*Result, error) {
	d.bus.EmitGenerationStart(events.GenerationEvent{Prompt: prompt})

	raw, err := d.backend.Generate(ctx, prompt, systemInstruction)
	if err != nil {
		d.bus.EmitError(err)
		return nil, err
	}

	answer := raw
	if d.cfg.OutputFormat == config.OutputJSON {
		var parsed jsonAnswer
		if jsonErr := json.Unmarshal([]byte(extractJSON(raw)), &parsed); jsonErr == nil && parsed.Answer != "" {
			answer = parsed.Answer
		}
	}

	if ctx.Err() == nil && d.history != nil && sessionID != "" {
		_ = d.history.AddMessage(ctx, sessionID, history.RoleUser, prompt)
		_ = d.history.AddMessage(ctx, sessionID, history.RoleAssistant, answer)
	}

	d.bus.EmitGenerationEnd(events.GenerationEvent{Prompt: prompt, Answer: answer})
	return &Result{Answer: answer, Sources: sources}, nil
}

// GenerateStream runs an incremental generation call, accumulating the
// full answer and emitting onGenerationEnd/onError exactly once when the
// iterator is exhausted or fails.
func (d *Driver) GenerateStream(ctx context.Context, sessionID, prompt string) iter.Seq2[llm.StreamChunk, error] {
	d.bus.EmitGenerationStart(events.GenerationEvent{Prompt: prompt})

	return func(yield func(llm.StreamChunk, error) bool) {
		var fullAnswer strings.Builder
		var failed error

		for chunk, err := range d.backend.GenerateStream(ctx, prompt, systemInstruction) {
			if err != nil {
				failed = err
				d.bus.EmitError(err)
				yield(chunk, err)
				break
			}
			fullAnswer.WriteString(chunk.Delta)
			if !yield(chunk, nil) {
				return
			}
		}

		if failed == nil {
			answer := fullAnswer.String()
			if ctx.Err() == nil && d.history != nil && sessionID != "" {
				_ = d.history.AddMessage(ctx, sessionID, history.RoleUser, prompt)
				_ = d.history.AddMessage(ctx, sessionID, history.RoleAssistant, answer)
			}
			d.bus.EmitGenerationEnd(events.GenerationEvent{Prompt: prompt, Answer: answer})
		}
	}
}

// extractJSON returns the first top-level JSON object substring, tolerating
// model output that wraps the object in prose or a fenced code block.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
