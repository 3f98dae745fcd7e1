package tools

import (
	"context"
	"errors"

	"github.com/Baughn/emul/internal/llm"
)

// ErrInvalidArgs marks argument validation failures. They go back to the
// model verbatim and are never retried.
var ErrInvalidArgs = errors.New("invalid arguments")

// Result is a successful tool outcome. Content is the reply fed back to the
// model; Image, when set, is injected into the next round as inline data.
type Result struct {
	Content string
	Image   *llm.ImageData
}

type Tool interface {
	Name() string
	Description() string
	// Parameters describes Execute's arguments as a JSON-schema object.
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (Result, error)
}
