// Package tokencount estimates prompt token usage for the count_tokens
// endpoint. The request is first translated to the upstream shape, so the
// count reflects what the upstream will actually be charged for.
package tokencount

import (
	"encoding/json"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"claudebridge/internal/openai"
)

// Per-message framing overhead applied on top of raw text tokens.
const messageOverhead = 3

var (
	encOnce sync.Once
	enc     tokenizer.Codec
)

func codec() tokenizer.Codec {
	encOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.O200kBase)
		if err != nil {
			return
		}
		enc = c
	})
	return enc
}

// Available reports whether the tokenizer could be initialised.
func Available() bool {
	return codec() != nil
}

// CountText counts tokens in a string. When a single count fails it falls
// back to the rough one-token-per-four-characters estimate.
func CountText(text string) int {
	if text == "" {
		return 0
	}
	if c := codec(); c != nil {
		if n, err := c.Count(text); err == nil {
			return n
		}
	}
	return (len(text) + 3) / 4
}

// EstimateChatTokens estimates the prompt size of a translated upstream
// request: every message's text, tool call payloads, and declared tool
// schemas. Image parts are not counted.
func EstimateChatTokens(req *openai.ChatRequest) int {
	total := 0

	for _, msg := range req.Messages {
		total += messageOverhead
		if msg.Content != nil {
			if msg.Content.Parts != nil {
				for _, part := range msg.Content.Parts {
					if part.Type == openai.PartTypeText {
						total += CountText(part.Text)
					}
				}
			} else {
				total += CountText(msg.Content.Text)
			}
		}
		for _, call := range msg.ToolCalls {
			total += CountText(call.Function.Name)
			total += CountText(call.Function.Arguments)
		}
	}

	for _, tool := range req.Tools {
		total += CountText(tool.Function.Name)
		total += CountText(tool.Function.Description)
		total += CountText(jsonText(tool.Function.Parameters))
	}

	return total
}

func jsonText(v any) string {
	if v == nil {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
