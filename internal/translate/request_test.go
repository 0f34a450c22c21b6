package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claudebridge/internal/anthropic"
	"claudebridge/internal/config"
	"claudebridge/internal/openai"
)

func decodeMessagesRequest(t *testing.T, body string) *anthropic.MessagesRequest {
	t.Helper()
	var req anthropic.MessagesRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func TestToChatRequestSimpleText(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "claude-sonnet-4-20250514",
		"max_tokens": 256,
		"system": "You are terse.",
		"messages": [{"role": "user", "content": "hello"}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", out.Model)
	assert.Equal(t, int64(256), out.MaxTokens)
	assert.False(t, out.Stream)
	assert.Nil(t, out.StreamOptions)

	require.Len(t, out.Messages, 2)
	assert.Equal(t, openai.RoleSystem, out.Messages[0].Role)
	assert.Equal(t, "You are terse.", out.Messages[0].Content.Text)
	assert.Equal(t, openai.RoleUser, out.Messages[1].Role)
	assert.Equal(t, "hello", out.Messages[1].Content.Text)
}

func TestToChatRequestSystemBlockList(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"system": [
			{"type": "text", "text": "first"},
			{"type": "text", "text": "second"}
		],
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "first\nsecond", out.Messages[0].Content.Text)
}

func TestToChatRequestStringSystemPassedVerbatim(t *testing.T) {
	// The string form is not trimmed or skipped; only the block-list
	// form has the empty-after-join skip.
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"system": "   ",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, openai.RoleSystem, out.Messages[0].Role)
	assert.Equal(t, "   ", out.Messages[0].Content.Text)
}

func TestToChatRequestBlankSystemBlockListSkipped(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"system": [{"type": "text", "text": " "}, {"type": "text", "text": ""}],
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, openai.RoleUser, out.Messages[0].Role)
}

func TestToChatRequestEmptyUserBlockList(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"messages": [{"role": "user", "content": []}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)

	// The turn is preserved as an empty user message, not dropped.
	require.Len(t, out.Messages, 1)
	assert.Equal(t, openai.RoleUser, out.Messages[0].Role)
	require.NotNil(t, out.Messages[0].Content)
	assert.Equal(t, "", out.Messages[0].Content.Text)
}

func TestToChatRequestToolResultOnlyEmitsNoUserMessage(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"messages": [{
			"role": "user",
			"content": [{"type": "tool_result", "tool_use_id": "c1", "content": "72F"}]
		}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)

	require.Len(t, out.Messages, 1)
	assert.Equal(t, openai.RoleTool, out.Messages[0].Role)
	assert.Equal(t, "c1", out.Messages[0].ToolCallID)
	assert.Equal(t, "72F", out.Messages[0].Content.Text)
}

func TestToChatRequestToolResultFanOut(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"messages": [{
			"role": "user",
			"content": [
				{"type": "text", "text": "here are the results"},
				{"type": "tool_result", "tool_use_id": "toolu_1", "content": "42"},
				{"type": "tool_result", "tool_use_id": "toolu_2", "content": [
					{"type": "text", "text": "a"},
					{"type": "text", "text": "b"}
				]}
			]
		}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)

	// Tool results come first, one role:tool message each, then the
	// remaining user content as a single message.
	assert.Equal(t, openai.RoleTool, out.Messages[0].Role)
	assert.Equal(t, "toolu_1", out.Messages[0].ToolCallID)
	assert.Equal(t, "42", out.Messages[0].Content.Text)

	assert.Equal(t, openai.RoleTool, out.Messages[1].Role)
	assert.Equal(t, "toolu_2", out.Messages[1].ToolCallID)
	assert.Equal(t, "a\nb", out.Messages[1].Content.Text)

	assert.Equal(t, openai.RoleUser, out.Messages[2].Role)
	assert.Equal(t, "here are the results", out.Messages[2].Content.Text)
}

func TestToChatRequestImageBecomesDataURL(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"messages": [{
			"role": "user",
			"content": [
				{"type": "text", "text": "what is this"},
				{"type": "image", "source": {"type": "base64", "media_type": "image/png", "data": "aGVsbG8="}}
			]
		}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)

	parts := out.Messages[0].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, openai.PartTypeText, parts[0].Type)
	assert.Equal(t, openai.PartTypeImageURL, parts[1].Type)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", parts[1].ImageURL.URL)
}

func TestToChatRequestSingleTextPartCollapsesToString(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"messages": [{
			"role": "user",
			"content": [{"type": "text", "text": "just text"}]
		}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Nil(t, out.Messages[0].Content.Parts)
	assert.Equal(t, "just text", out.Messages[0].Content.Text)
}

func TestToChatRequestAssistantToolUse(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"messages": [{
			"role": "assistant",
			"content": [
				{"type": "tool_use", "id": "toolu_9", "name": "get_weather", "input": {"city": "Paris"}}
			]
		}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)

	msg := out.Messages[0]
	assert.Equal(t, openai.RoleAssistant, msg.Role)
	// Content must be absent, not empty, when the turn is only tool calls.
	assert.Nil(t, msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "toolu_9", msg.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"city":"Paris"}`, msg.ToolCalls[0].Function.Arguments)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"content"`)
}

func TestToChatRequestAssistantTextAndToolUse(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"messages": [{
			"role": "assistant",
			"content": [
				{"type": "text", "text": "Let me check."},
				{"type": "text", "text": "One moment."},
				{"type": "tool_use", "id": "toolu_1", "name": "lookup", "input": {}}
			]
		}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	msg := out.Messages[0]
	require.NotNil(t, msg.Content)
	assert.Equal(t, "Let me check.\nOne moment.", msg.Content.Text)
	assert.Len(t, msg.ToolCalls, 1)
}

func TestToChatRequestEmptyAssistantContent(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"messages": [{"role": "assistant", "content": []}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	msg := out.Messages[0]
	require.NotNil(t, msg.Content)
	assert.Equal(t, "", msg.Content.Text)
}

func TestToChatRequestSamplingAndStops(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"temperature": 0.5, "top_p": 0.9, "top_k": 40,
		"stop_sequences": ["END", "STOP"],
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)

	require.NotNil(t, out.Temperature)
	assert.InDelta(t, 0.5, *out.Temperature, 1e-9)
	require.NotNil(t, out.TopP)
	assert.InDelta(t, 0.9, *out.TopP, 1e-9)
	assert.Equal(t, []string{"END", "STOP"}, out.Stop)

	// top_k has no upstream equivalent and never reaches the wire.
	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "top_k")
}

func TestToChatRequestStreamOptions(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10, "stream": true,
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	assert.True(t, out.Stream)
	require.NotNil(t, out.StreamOptions)
	assert.True(t, out.StreamOptions.IncludeUsage)
}

func TestToChatRequestToolsAndChoice(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"tools": [{
			"name": "get_weather",
			"description": "Weather lookup",
			"input_schema": {
				"type": "object",
				"properties": {"when": {"type": "string", "format": "date"}}
			}
		}],
		"tool_choice": {"type": "tool", "name": "get_weather"},
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)

	require.Len(t, out.Tools, 1)
	assert.Equal(t, "function", out.Tools[0].Type)
	assert.Equal(t, "get_weather", out.Tools[0].Function.Name)
	when := out.Tools[0].Function.Parameters["properties"].(map[string]any)["when"].(map[string]any)
	assert.NotContains(t, when, "format")

	require.NotNil(t, out.ToolChoice)
	raw, err := json.Marshal(out.ToolChoice)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"function","function":{"name":"get_weather"}}`, string(raw))
}

func TestToChatRequestToolChoiceAnyDowngradesToAuto(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"tool_choice": {"type": "any"},
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out, err := ToChatRequest(req, "gpt-4o", config.ProviderOpenAI)
	require.NoError(t, err)
	require.NotNil(t, out.ToolChoice)
	raw, err := json.Marshal(out.ToolChoice)
	require.NoError(t, err)
	assert.Equal(t, `"auto"`, string(raw))
}

func TestToChatRequestGeminiSchemaCleaning(t *testing.T) {
	req := decodeMessagesRequest(t, `{
		"model": "m", "max_tokens": 10,
		"tools": [{
			"name": "t",
			"input_schema": {
				"type": "object",
				"additionalProperties": false,
				"properties": {"x": {"type": "string", "default": "y"}}
			}
		}],
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out, err := ToChatRequest(req, "gemini-2.0-flash", config.ProviderGemini)
	require.NoError(t, err)
	params := out.Tools[0].Function.Parameters
	assert.NotContains(t, params, "additionalProperties")
	x := params["properties"].(map[string]any)["x"].(map[string]any)
	assert.NotContains(t, x, "default")
}
