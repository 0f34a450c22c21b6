// Package anthropic defines the wire schema of the Anthropic Messages API
// as seen by this proxy: the request body, the typed content block union,
// the response body, and the streaming event union. Decoding is strict:
// unknown `type` discriminators on content blocks and stream events are
// rejected so malformed requests fail fast with invalid_request_error
// instead of being silently forwarded.
package anthropic

import (
	"encoding/json"
	"fmt"
)

// Role values accepted on request messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block discriminators.
const (
	BlockTypeText       = "text"
	BlockTypeImage      = "image"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// Stop reasons emitted on responses.
const (
	StopReasonEndTurn         = "end_turn"
	StopReasonMaxTokens       = "max_tokens"
	StopReasonStopSequence    = "stop_sequence"
	StopReasonToolUse         = "tool_use"
	StopReasonContentFiltered = "content_filtered"
)

// MessagesRequest is the body of POST /v1/messages.
type MessagesRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	System        *SystemPrompt  `json:"system,omitempty"`
	MaxTokens     int64          `json:"max_tokens"`
	Stream        bool           `json:"stream,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	TopK          *int64         `json:"top_k,omitempty"`
	StopSequences []string       `json:"stop_sequences,omitempty"`
	Tools         []Tool         `json:"tools,omitempty"`
	ToolChoice    *ToolChoice    `json:"tool_choice,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// CountTokensRequest is the body of POST /v1/messages/count_tokens.
// It is the request subset relevant to prompt size.
type CountTokensRequest struct {
	Model      string        `json:"model"`
	Messages   []Message     `json:"messages"`
	System     *SystemPrompt `json:"system,omitempty"`
	Tools      []Tool        `json:"tools,omitempty"`
	ToolChoice *ToolChoice   `json:"tool_choice,omitempty"`
}

// CountTokensResponse is the body returned by count_tokens.
type CountTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

// SystemPrompt is either a bare string or an ordered list of text blocks.
type SystemPrompt struct {
	Text   string
	Blocks []TextBlock
	isList bool
}

// IsList reports whether the prompt arrived as a block list.
func (s *SystemPrompt) IsList() bool { return s.isList }

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		s.isList = false
		return json.Unmarshal(data, &s.Text)
	}
	var blocks []TextBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("system: expected string or array of text blocks: %w", err)
	}
	for i, b := range blocks {
		if b.Type != BlockTypeText {
			return fmt.Errorf("system[%d]: unsupported block type %q", i, b.Type)
		}
	}
	s.isList = true
	s.Blocks = blocks
	return nil
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.isList {
		return json.Marshal(s.Blocks)
	}
	return json.Marshal(s.Text)
}

// Message is one conversation turn.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent is either a bare string (shorthand for one text block) or
// an ordered list of typed blocks.
type MessageContent struct {
	Text   *string
	Blocks []ContentBlock
}

// IsString reports whether the content arrived as a bare string.
func (c *MessageContent) IsString() bool { return c.Text != nil }

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.Text = &s
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("content: expected string or array of blocks: %w", err)
	}
	blocks := make([]ContentBlock, 0, len(raws))
	for i, raw := range raws {
		block, err := decodeContentBlock(raw)
		if err != nil {
			return fmt.Errorf("content[%d]: %w", i, err)
		}
		blocks = append(blocks, block)
	}
	c.Blocks = blocks
	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	if c.Blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Blocks)
}

// ContentBlock is the closed sum of block kinds.
type ContentBlock interface {
	BlockType() string
}

func decodeContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case BlockTypeText:
		var b TextBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case BlockTypeImage:
		var b ImageBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		if b.Source.Type != ImageSourceBase64 {
			return nil, fmt.Errorf("unsupported image source type %q", b.Source.Type)
		}
		return b, nil
	case BlockTypeToolUse:
		var b ToolUseBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case BlockTypeToolResult:
		var b ToolResultBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown content block type %q", probe.Type)
	}
}

// TextBlock carries plain text.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextBlock) BlockType() string { return BlockTypeText }

// NewTextBlock builds a text block with the discriminator set.
func NewTextBlock(text string) TextBlock {
	return TextBlock{Type: BlockTypeText, Text: text}
}

// ImageBlock carries a base64 image source.
type ImageBlock struct {
	Type   string      `json:"type"`
	Source ImageSource `json:"source"`
}

func (ImageBlock) BlockType() string { return BlockTypeImage }

// ImageSourceBase64 is the only image source kind this proxy accepts.
const ImageSourceBase64 = "base64"

// ImageSource is the base64 source variant; other source kinds are
// rejected during decode.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ToolUseBlock is an assistant-authored tool invocation.
type ToolUseBlock struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (ToolUseBlock) BlockType() string { return BlockTypeToolUse }

// NewToolUseBlock builds a tool_use block with the discriminator set.
func NewToolUseBlock(id, name string, input map[string]any) ToolUseBlock {
	return ToolUseBlock{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock is a user-authored reply to a prior tool_use.
type ToolResultBlock struct {
	Type      string            `json:"type"`
	ToolUseID string            `json:"tool_use_id"`
	Content   ToolResultContent `json:"content"`
	IsError   bool              `json:"is_error,omitempty"`
}

func (ToolResultBlock) BlockType() string { return BlockTypeToolResult }

// ToolResultContent is either a bare string or a sequence of objects.
type ToolResultContent struct {
	Text  *string
	Parts []map[string]any
}

func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.Text = &s
		return nil
	}
	if err := json.Unmarshal(data, &c.Parts); err != nil {
		return fmt.Errorf("tool_result content: expected string or array of objects: %w", err)
	}
	return nil
}

func (c ToolResultContent) MarshalJSON() ([]byte, error) {
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	if c.Parts == nil {
		return []byte(`""`), nil
	}
	return json.Marshal(c.Parts)
}

// Tool is a caller-declared function tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// Tool choice discriminators.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceTool = "tool"
)

// ToolChoice selects how the model may use tools.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// MessagesResponse is the body of a non-streaming /v1/messages reply.
type MessagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   string         `json:"stop_reason,omitempty"`
	StopSequence *string        `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// Usage is the token accounting attached to responses.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Validate checks the request invariants that decoding alone cannot.
func (r *MessagesRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be a positive integer")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, msg := range r.Messages {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			return fmt.Errorf("messages[%d]: invalid role %q", i, msg.Role)
		}
	}
	if tc := r.ToolChoice; tc != nil {
		switch tc.Type {
		case ToolChoiceAuto, ToolChoiceAny:
		case ToolChoiceTool:
			if tc.Name == "" {
				return fmt.Errorf("tool_choice: name is required when type is %q", ToolChoiceTool)
			}
		default:
			return fmt.Errorf("tool_choice: unknown type %q", tc.Type)
		}
	}
	return nil
}
