package storage

import "time"

// Event is the audit record of one conversation run: what triggered the bot,
// what it answered, and which tools it touched on the way. One JSONL line
// per run keeps post-mortems cheap.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id"`
	Channel     string    `json:"channel"`
	Nick        string    `json:"nick"`
	Trigger     string    `json:"trigger"`
	UserMessage string    `json:"user_message,omitempty"`
	Reply       string    `json:"reply"`
	ToolCalls   []string  `json:"tool_calls,omitempty"`
	Model       string    `json:"model,omitempty"`
	TotalTokens int       `json:"total_tokens,omitempty"`
}

// Recorder abstracts persistence of run events.
// AppendInteraction should atomically append a new event.
// LoadInteractions should return events in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
