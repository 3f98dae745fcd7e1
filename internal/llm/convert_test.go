package llm

import (
	"testing"

	"google.golang.org/genai"
)

func TestToOpenAIMessagesToolPlumbing(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "roll some dice"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{
			ID:   "call-1",
			Type: "function",
			Function: FunctionCall{
				Name:      "roll_dice",
				Arguments: map[string]interface{}{"notation": "3d6"},
			},
		}}},
		{Role: RoleTool, ToolCallID: "call-1", Name: "roll_dice", Content: `{"result":"14"}`},
	}

	out := toOpenAIMessages(msgs)
	if len(out) != 4 {
		t.Fatalf("want 4 messages, got %d", len(out))
	}
	if len(out[2].ToolCalls) != 1 || out[2].ToolCalls[0].ID != "call-1" {
		t.Fatalf("assistant tool call lost: %+v", out[2])
	}
	if out[2].ToolCalls[0].Function.Arguments != `{"notation":"3d6"}` {
		t.Fatalf("arguments not re-marshaled: %q", out[2].ToolCalls[0].Function.Arguments)
	}
	if out[3].ToolCallID != "call-1" || out[3].Name != "roll_dice" {
		t.Fatalf("tool turn lost its linkage: %+v", out[3])
	}
}

func TestToOpenAIMessagesImages(t *testing.T) {
	msgs := []Message{{
		Role:    RoleUser,
		Content: "describe this",
		Images:  []ImageData{{MIME: "image/png", Data: []byte{1, 2, 3}}},
	}}

	out := toOpenAIMessages(msgs)
	if out[0].Content != "" || len(out[0].MultiContent) != 2 {
		t.Fatalf("image turn should become multi-part content: %+v", out[0])
	}
	url := out[0].MultiContent[1].ImageURL.URL
	if url != "data:image/png;base64,AQID" {
		t.Fatalf("unexpected data uri: %q", url)
	}
}

func TestParseJSONArgs(t *testing.T) {
	got := parseJSONArgs(`{"notation":"2d8+1"}`)
	if got["notation"] != "2d8+1" {
		t.Fatalf("unexpected args: %v", got)
	}
	if got := parseJSONArgs("not json"); len(got) != 0 {
		t.Fatalf("garbage should parse to an empty map, got %v", got)
	}
}

func TestSchemaFromMap(t *testing.T) {
	s := schemaFromMap(map[string]interface{}{
		"type":        "object",
		"description": "args",
		"properties": map[string]interface{}{
			"url":   map[string]interface{}{"type": "string", "description": "where"},
			"count": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"url"},
	})

	if s.Type != genai.TypeObject || s.Description != "args" {
		t.Fatalf("unexpected root: %+v", s)
	}
	if s.Properties["url"].Type != genai.TypeString || s.Properties["count"].Type != genai.TypeInteger {
		t.Fatalf("unexpected properties: %+v", s.Properties)
	}
	if len(s.Required) != 1 || s.Required[0] != "url" {
		t.Fatalf("unexpected required: %v", s.Required)
	}
	if schemaFromMap(nil) != nil {
		t.Fatalf("nil schema should stay nil")
	}
}

func TestToResponseMap(t *testing.T) {
	m := toResponseMap(`{"result":"ok"}`)
	if m["result"] != "ok" {
		t.Fatalf("json content should pass through: %v", m)
	}
	m = toResponseMap("plain text")
	if m["result"] != "plain text" {
		t.Fatalf("plain content should be wrapped: %v", m)
	}
}
