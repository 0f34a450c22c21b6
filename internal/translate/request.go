// Package translate converts between the Anthropic Messages surface and
// the upstream Chat Completions surface, in both directions, for unary
// bodies, streamed events and error envelopes.
package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"claudebridge/internal/anthropic"
	"claudebridge/internal/config"
	"claudebridge/internal/openai"
)

// ToChatRequest builds the upstream Chat Completions request for a
// Messages request that has already been routed to upstreamModel.
func ToChatRequest(req *anthropic.MessagesRequest, upstreamModel string, provider config.Provider) (*openai.ChatRequest, error) {
	out := &openai.ChatRequest{
		Model:       upstreamModel,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
	}
	if req.Stream {
		out.Stream = true
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	if req.TopK != nil {
		logrus.Debugf("dropping top_k=%d: no upstream equivalent", *req.TopK)
	}

	if sys, ok := systemText(req.System); ok {
		out.Messages = append(out.Messages, openai.ChatMessage{
			Role:    openai.RoleSystem,
			Content: openai.StringContent(sys),
		})
	}

	for i, msg := range req.Messages {
		translated, err := translateMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		out.Messages = append(out.Messages, translated...)
	}

	for _, tool := range req.Tools {
		params := SanitizeSchema(tool.InputSchema)
		if provider == config.ProviderGemini {
			params = CleanSchemaForGemini(params)
		}
		out.Tools = append(out.Tools, openai.Tool{
			Type: "function",
			Function: openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}

	if tc := req.ToolChoice; tc != nil {
		switch tc.Type {
		case anthropic.ToolChoiceAuto:
			out.ToolChoice = openai.ToolChoiceAuto()
		case anthropic.ToolChoiceAny:
			logrus.Warn("tool_choice type \"any\" has no upstream equivalent, forwarding as \"auto\"")
			out.ToolChoice = openai.ToolChoiceAuto()
		case anthropic.ToolChoiceTool:
			out.ToolChoice = openai.ToolChoiceFunction(tc.Name)
		}
	}

	return out, nil
}

// systemText flattens a system prompt to a single string. The string form
// passes through verbatim; a block list is joined with newlines and
// trimmed, and an empty result means no system message.
func systemText(sys *anthropic.SystemPrompt) (string, bool) {
	if sys == nil {
		return "", false
	}
	if !sys.IsList() {
		return sys.Text, true
	}
	parts := make([]string, 0, len(sys.Blocks))
	for _, b := range sys.Blocks {
		parts = append(parts, b.Text)
	}
	joined := strings.TrimSpace(strings.Join(parts, "\n"))
	if joined == "" {
		return "", false
	}
	return joined, true
}

// translateMessage expands one Anthropic message into its upstream
// messages. A user turn carrying tool_result blocks fans out into one
// role:"tool" message per result, emitted before the remaining user
// content.
func translateMessage(msg anthropic.Message) ([]openai.ChatMessage, error) {
	switch msg.Role {
	case anthropic.RoleUser:
		return translateUserMessage(msg)
	case anthropic.RoleAssistant:
		m, err := translateAssistantMessage(msg)
		if err != nil {
			return nil, err
		}
		return []openai.ChatMessage{m}, nil
	default:
		return nil, fmt.Errorf("invalid role %q", msg.Role)
	}
}

func translateUserMessage(msg anthropic.Message) ([]openai.ChatMessage, error) {
	if msg.Content.IsString() {
		return []openai.ChatMessage{{
			Role:    openai.RoleUser,
			Content: openai.StringContent(*msg.Content.Text),
		}}, nil
	}

	var out []openai.ChatMessage
	var parts []openai.ContentPart
	for _, block := range msg.Content.Blocks {
		switch b := block.(type) {
		case anthropic.ToolResultBlock:
			out = append(out, openai.ChatMessage{
				Role:       openai.RoleTool,
				ToolCallID: b.ToolUseID,
				Content:    openai.StringContent(toolResultText(b.Content)),
			})
		case anthropic.TextBlock:
			parts = append(parts, openai.TextPart(b.Text))
		case anthropic.ImageBlock:
			media := b.Source.MediaType
			if media == "" {
				media = "image/jpeg"
			}
			url := fmt.Sprintf("data:%s;base64,%s", media, b.Source.Data)
			parts = append(parts, openai.ImagePart(url))
		default:
			return nil, fmt.Errorf("unsupported block type %q in user message", block.BlockType())
		}
	}

	if len(parts) > 0 {
		m := openai.ChatMessage{Role: openai.RoleUser}
		if len(parts) == 1 && parts[0].Type == openai.PartTypeText {
			m.Content = openai.StringContent(parts[0].Text)
		} else {
			m.Content = openai.PartsContent(parts)
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		// A user message with no blocks still occupies its turn.
		out = append(out, openai.ChatMessage{
			Role:    openai.RoleUser,
			Content: openai.StringContent(""),
		})
	}
	return out, nil
}

// toolResultText flattens tool_result content to the plain string the
// upstream tool role expects. Text entries in a part list are joined with
// newlines; a list without text entries is serialised as JSON.
func toolResultText(content anthropic.ToolResultContent) string {
	if content.Text != nil {
		return *content.Text
	}
	var texts []string
	for _, part := range content.Parts {
		if part["type"] == "text" {
			if s, ok := part["text"].(string); ok {
				texts = append(texts, s)
			}
		}
	}
	if len(texts) > 0 {
		return strings.Join(texts, "\n")
	}
	if len(content.Parts) == 0 {
		return ""
	}
	raw, err := json.Marshal(content.Parts)
	if err != nil {
		return ""
	}
	return string(raw)
}

func translateAssistantMessage(msg anthropic.Message) (openai.ChatMessage, error) {
	out := openai.ChatMessage{Role: openai.RoleAssistant}
	if msg.Content.IsString() {
		out.Content = openai.StringContent(*msg.Content.Text)
		return out, nil
	}

	var texts []string
	for _, block := range msg.Content.Blocks {
		switch b := block.(type) {
		case anthropic.TextBlock:
			texts = append(texts, b.Text)
		case anthropic.ToolUseBlock:
			input := b.Input
			if input == nil {
				input = map[string]any{}
			}
			args, err := json.Marshal(input)
			if err != nil {
				return openai.ChatMessage{}, fmt.Errorf("tool_use %s: encoding input: %w", b.ID, err)
			}
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   b.ID,
				Type: "function",
				Function: openai.FunctionCall{
					Name:      b.Name,
					Arguments: string(args),
				},
			})
		default:
			return openai.ChatMessage{}, fmt.Errorf("unsupported block type %q in assistant message", block.BlockType())
		}
	}

	switch {
	case len(texts) > 0:
		out.Content = openai.StringContent(strings.Join(texts, "\n"))
	case len(out.ToolCalls) > 0:
		// Content stays absent: an assistant turn that is purely tool
		// calls must not carry a content field.
	default:
		out.Content = openai.StringContent("")
	}
	return out, nil
}
