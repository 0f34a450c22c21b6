// Package openai defines the upstream Chat Completions wire schema: the
// request this proxy sends and the unary response / streamed chunk shapes
// it reads back. The structs are owned here rather than borrowed from an
// SDK so the request marshaller can guarantee field absence exactly where
// the translation contract requires it (an assistant message with only
// tool_calls must omit content, optional scalars must never appear as
// null).
package openai

import "encoding/json"

// Finish reasons reported by the upstream.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonFunctionCall  = "function_call"
	FinishReasonContentFilter = "content_filter"
)

// Message roles on the upstream side.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatRequest is the body of POST {base}/chat/completions.
type ChatRequest struct {
	Model         string         `json:"model"`
	Messages      []ChatMessage  `json:"messages"`
	MaxTokens     int64          `json:"max_tokens"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	Tools         []Tool         `json:"tools,omitempty"`
	ToolChoice    *ToolChoice    `json:"tool_choice,omitempty"`
}

// StreamOptions asks the upstream to report usage on the terminal chunk.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage is one upstream conversation entry. Content is a pointer so
// that "absent" and "empty string" remain distinguishable on the wire.
type ChatMessage struct {
	Role       string          `json:"role"`
	Content    *MessageContent `json:"content,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// MessageContent is either a bare string or an ordered list of parts.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// StringContent wraps a bare string as message content.
func StringContent(s string) *MessageContent {
	return &MessageContent{Text: s}
}

// PartsContent wraps a part list as message content.
func PartsContent(parts []ContentPart) *MessageContent {
	return &MessageContent{Parts: parts}
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &c.Parts)
	}
	return json.Unmarshal(data, &c.Text)
}

// Content part discriminators.
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ContentPart is one element of a multi-modal user message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartTypeText, Text: text}
}

// ImagePart builds an image_url content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartTypeImageURL, ImageURL: &ImageURL{URL: url}}
}

// ImageURL carries an http or data URL.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// Tool declares a function tool.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the function payload of a tool declaration.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolChoice is either the strings "auto"/"none" or a named function
// selector.
type ToolChoice struct {
	Mode     string
	Function *FunctionRef
}

// FunctionRef names a specific function.
type FunctionRef struct {
	Name string `json:"name"`
}

// ToolChoiceAuto is the plain "auto" choice.
func ToolChoiceAuto() *ToolChoice { return &ToolChoice{Mode: "auto"} }

// ToolChoiceFunction forces a specific function by name.
func ToolChoiceFunction(name string) *ToolChoice {
	return &ToolChoice{Function: &FunctionRef{Name: name}}
}

func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Function != nil {
		return json.Marshal(struct {
			Type     string      `json:"type"`
			Function FunctionRef `json:"function"`
		}{Type: "function", Function: *t.Function})
	}
	return json.Marshal(t.Mode)
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Mode)
	}
	var obj struct {
		Function *FunctionRef `json:"function"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Function = obj.Function
	return nil
}

// ToolCall is a complete tool invocation on a request or unary response.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-string arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatCompletion is the unary upstream response.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative; this proxy only reads index 0.
type Choice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// AssistantMessage is the message payload of a unary choice.
type AssistantMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Usage is the upstream token accounting.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ChatCompletionChunk is one streamed SSE record.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice is one streamed choice delta.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// ChunkDelta carries the incremental fields of a streamed choice. Fields
// appear once and may be absent on later chunks.
type ChunkDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is a partial tool call inside a streamed delta. The id and
// function name typically appear only on the first fragment for a given
// upstream index.
type ToolCallDelta struct {
	Index    int64             `json:"index"`
	ID       string            `json:"id,omitempty"`
	Type     string            `json:"type,omitempty"`
	Function FunctionCallDelta `json:"function"`
}

// FunctionCallDelta is the partial function payload of a tool call delta.
type FunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}
