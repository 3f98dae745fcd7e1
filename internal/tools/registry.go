package tools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Baughn/emul/internal/llm"
)

// Registry is the closed set of tools the model may call. Tools are wired in
// at startup; nothing registers at runtime.
type Registry struct {
	tools   map[string]Tool
	order   []string
	timeout time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{tools: make(map[string]Tool), timeout: timeout}
}

func (r *Registry) Register(tool Tool) {
	name := tool.Name()
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the tool declarations for the LLM request, in registration
// order so prompts stay stable between runs.
func (r *Registry) Specs() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// Outcome is what the orchestrator feeds back to the model. Err marks a
// failed call; the conversation run itself always continues.
type Outcome struct {
	Content string
	Image   *llm.ImageData
	Err     error
}

// Dispatch validates and executes one requested call. Unknown tools and bad
// arguments become error outcomes, never panics or run failures.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCall) Outcome {
	t, ok := r.tools[call.Function.Name]
	if !ok {
		return Outcome{Err: fmt.Errorf("unsupported tool %q", call.Function.Name)}
	}
	if err := validateArgs(t.Parameters(), call.Function.Arguments); err != nil {
		return Outcome{Err: err}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	res, err := t.Execute(ctx, call.Function.Arguments)
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Content: res.Content, Image: res.Image}
}

// validateArgs checks required keys and primitive types before a tool runs.
// Extra keys are tolerated; models like to invent them.
func validateArgs(schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	switch req := schema["required"].(type) {
	case []string:
		for _, k := range req {
			if _, ok := args[k]; !ok {
				return fmt.Errorf("%w: missing %q", ErrInvalidArgs, k)
			}
		}
	case []interface{}:
		for _, rk := range req {
			k, ok := rk.(string)
			if !ok {
				continue
			}
			if _, ok := args[k]; !ok {
				return fmt.Errorf("%w: missing %q", ErrInvalidArgs, k)
			}
		}
	}
	props, _ := schema["properties"].(map[string]interface{})
	for k, v := range args {
		pm, ok := props[k].(map[string]interface{})
		if !ok {
			continue
		}
		want, _ := pm["type"].(string)
		if !typeMatches(want, v) {
			return fmt.Errorf("%w: %q must be of type %s", ErrInvalidArgs, k, want)
		}
	}
	return nil
}

// JSON numbers decode as float64, so integer fields accept whole floats.
func typeMatches(want string, v interface{}) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		switch n := v.(type) {
		case float64:
			return n == math.Trunc(n)
		case int:
			return true
		default:
			return false
		}
	case "number":
		switch v.(type) {
		case float64, int:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}
