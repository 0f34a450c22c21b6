package anthropic

import (
	"encoding/json"
	"fmt"
)

// Stream event discriminators.
const (
	EventTypeMessageStart      = "message_start"
	EventTypeContentBlockStart = "content_block_start"
	EventTypeContentBlockDelta = "content_block_delta"
	EventTypeContentBlockStop  = "content_block_stop"
	EventTypeMessageDelta      = "message_delta"
	EventTypeMessageStop       = "message_stop"
	EventTypePing              = "ping"
	EventTypeError             = "error"
)

// Delta discriminators inside content_block_delta.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
)

// StreamEvent is the closed union of SSE events emitted on a streaming
// /v1/messages response.
type StreamEvent interface {
	EventType() string
}

// MessageStartEvent opens the stream. stop_reason and stop_sequence are
// emitted as explicit nulls, matching the Anthropic wire contract.
type MessageStartEvent struct {
	Type    string       `json:"type"`
	Message MessageStart `json:"message"`
}

func (MessageStartEvent) EventType() string { return EventTypeMessageStart }

// MessageStart is the message envelope carried by message_start.
type MessageStart struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// ContentBlockStartEvent opens a content block at an index.
type ContentBlockStartEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

func (ContentBlockStartEvent) EventType() string { return EventTypeContentBlockStart }

// ContentBlockDeltaEvent carries an incremental update for an open block.
type ContentBlockDeltaEvent struct {
	Type  string     `json:"type"`
	Index int        `json:"index"`
	Delta BlockDelta `json:"delta"`
}

func (ContentBlockDeltaEvent) EventType() string { return EventTypeContentBlockDelta }

// BlockDelta is the closed union of delta kinds.
type BlockDelta interface {
	DeltaType() string
}

// TextDelta appends text to an open text block.
type TextDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextDelta) DeltaType() string { return DeltaTypeText }

// NewTextDelta builds a text_delta with the discriminator set.
func NewTextDelta(text string) TextDelta {
	return TextDelta{Type: DeltaTypeText, Text: text}
}

// InputJSONDelta appends a raw JSON fragment to an open tool_use block.
type InputJSONDelta struct {
	Type        string `json:"type"`
	PartialJSON string `json:"partial_json"`
}

func (InputJSONDelta) DeltaType() string { return DeltaTypeInputJSON }

// NewInputJSONDelta builds an input_json_delta with the discriminator set.
func NewInputJSONDelta(fragment string) InputJSONDelta {
	return InputJSONDelta{Type: DeltaTypeInputJSON, PartialJSON: fragment}
}

// ContentBlockStopEvent closes a content block.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

func (ContentBlockStopEvent) EventType() string { return EventTypeContentBlockStop }

// MessageDeltaEvent carries the final stop_reason and incremental usage.
// stop_sequence is an explicit null per the wire contract.
type MessageDeltaEvent struct {
	Type  string       `json:"type"`
	Delta MessageDelta `json:"delta"`
	Usage DeltaUsage   `json:"usage"`
}

func (MessageDeltaEvent) EventType() string { return EventTypeMessageDelta }

// MessageDelta is the delta payload of message_delta.
type MessageDelta struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// DeltaUsage is the usage payload of message_delta. input_tokens is only
// present once the upstream has reported prompt tokens.
type DeltaUsage struct {
	OutputTokens int64 `json:"output_tokens"`
	InputTokens  int64 `json:"input_tokens,omitempty"`
}

// MessageStopEvent terminates the stream.
type MessageStopEvent struct {
	Type string `json:"type"`
}

func (MessageStopEvent) EventType() string { return EventTypeMessageStop }

// PingEvent is a keep-alive.
type PingEvent struct {
	Type string `json:"type"`
}

func (PingEvent) EventType() string { return EventTypePing }

// ErrorEvent carries an in-band error on an already-open stream.
type ErrorEvent struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

func (ErrorEvent) EventType() string { return EventTypeError }

// ParseStreamEvent decodes one SSE data payload into its typed event.
// Unknown event types are rejected.
func ParseStreamEvent(data []byte) (StreamEvent, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case EventTypeMessageStart:
		var ev MessageStartEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventTypeContentBlockStart:
		var raw struct {
			Type         string          `json:"type"`
			Index        int             `json:"index"`
			ContentBlock json.RawMessage `json:"content_block"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		block, err := decodeContentBlock(raw.ContentBlock)
		if err != nil {
			return nil, err
		}
		return ContentBlockStartEvent{Type: raw.Type, Index: raw.Index, ContentBlock: block}, nil
	case EventTypeContentBlockDelta:
		var raw struct {
			Type  string          `json:"type"`
			Index int             `json:"index"`
			Delta json.RawMessage `json:"delta"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		delta, err := decodeBlockDelta(raw.Delta)
		if err != nil {
			return nil, err
		}
		return ContentBlockDeltaEvent{Type: raw.Type, Index: raw.Index, Delta: delta}, nil
	case EventTypeContentBlockStop:
		var ev ContentBlockStopEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventTypeMessageDelta:
		var ev MessageDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventTypeMessageStop:
		return MessageStopEvent{Type: EventTypeMessageStop}, nil
	case EventTypePing:
		return PingEvent{Type: EventTypePing}, nil
	case EventTypeError:
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown stream event type %q", probe.Type)
	}
}

func decodeBlockDelta(raw json.RawMessage) (BlockDelta, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case DeltaTypeText:
		var d TextDelta
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case DeltaTypeInputJSON:
		var d InputJSONDelta
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown delta type %q", probe.Type)
	}
}
