package translate

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"claudebridge/internal/anthropic"
	"claudebridge/internal/openai"
)

// StopReason maps an upstream finish reason onto the Anthropic stop
// reason vocabulary. Unknown values pass through unchanged.
func StopReason(finishReason string) string {
	switch finishReason {
	case openai.FinishReasonStop:
		return anthropic.StopReasonEndTurn
	case openai.FinishReasonLength:
		return anthropic.StopReasonMaxTokens
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return anthropic.StopReasonToolUse
	case openai.FinishReasonContentFilter:
		return anthropic.StopReasonContentFiltered
	default:
		return finishReason
	}
}

// NewMessageID generates a response id in the Anthropic shape.
func NewMessageID() string {
	return "msg_" + hex24()
}

func hex24() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:12])
}

// ToMessagesResponse converts a unary upstream completion into the
// Anthropic Messages response body. Only the first choice is read;
// callerModel is echoed back so the caller sees the model it asked for.
func ToMessagesResponse(completion *openai.ChatCompletion, callerModel string) (*anthropic.MessagesResponse, error) {
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("upstream response has no choices")
	}
	choice := completion.Choices[0]

	id := completion.ID
	if id == "" {
		id = NewMessageID()
	}

	var content []anthropic.ContentBlock
	if choice.Message.Content != "" {
		content = append(content, anthropic.NewTextBlock(choice.Message.Content))
	}
	for _, call := range choice.Message.ToolCalls {
		content = append(content, anthropic.NewToolUseBlock(call.ID, call.Function.Name, parseToolArguments(call.Function.Arguments)))
	}
	if len(content) == 0 {
		// The content array is never empty; a silent completion becomes
		// one empty text block.
		content = append(content, anthropic.NewTextBlock(""))
	}

	resp := &anthropic.MessagesResponse{
		ID:         id,
		Type:       "message",
		Role:       anthropic.RoleAssistant,
		Model:      callerModel,
		Content:    content,
		StopReason: StopReason(choice.FinishReason),
	}
	if usage := completion.Usage; usage != nil {
		resp.Usage = anthropic.Usage{
			InputTokens:  usage.PromptTokens,
			OutputTokens: usage.CompletionTokens,
		}
	}
	return resp, nil
}

// parseToolArguments decodes a tool call's JSON-string arguments. A body
// that is not a JSON object is preserved verbatim under _raw_arguments
// rather than failing the whole response.
func parseToolArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil || input == nil {
		logrus.Warnf("tool call arguments are not a JSON object, preserving raw text: %v", err)
		return map[string]any{"_raw_arguments": raw}
	}
	return input
}
