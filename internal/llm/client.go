package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ImageData is a raw image handed to a multimodal model. The bot never
// decodes pixels, it only moves bytes plus a MIME type around.
type ImageData struct {
	MIME string
	Data []byte
}

// Message is one conversation turn in provider-neutral form.
type Message struct {
	Role    string
	Content string
	// Images ride on user turns, for tool results that fetched a picture.
	Images []ImageData
	// ToolCalls echo the calls an assistant turn asked for.
	ToolCalls []ToolCall
	// ToolCallID and Name tie a tool turn back to the call it answers.
	ToolCallID string
	Name       string
}

type Function struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

type Tool struct {
	Type     string
	Function Function
}

type FunctionCall struct {
	Name      string
	Arguments map[string]interface{}
}

type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

type Response struct {
	Content          string
	ToolCalls        []ToolCall
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
	GenerateWithTools(ctx context.Context, messages []Message, tools []Tool) (Response, error)
}
