package translate

import (
	"github.com/sirupsen/logrus"

	"claudebridge/internal/anthropic"
	"claudebridge/internal/openai"
)

// Sink receives the translated Anthropic stream events in order. The
// server adapts this to the SSE writer.
type Sink interface {
	Send(event anthropic.StreamEvent) error
}

const noOpenBlock = -1

// StreamTranslator restructures a flat upstream chunk stream into the
// bracketed Anthropic event stream. It guarantees that every emitted
// content_block_start is matched by a content_block_stop before the next
// block opens, that block indices start at 0 and increase monotonically,
// and that the stream always terminates with message_delta followed by
// message_stop, on success and on failure alike.
type StreamTranslator struct {
	sink        Sink
	callerModel string

	started   bool
	finished  bool
	messageID string

	openIndex int
	openKind  string
	nextIndex int

	// Upstream tool call index -> Anthropic block index.
	toolBlocks map[int64]int

	finishReason string
	usage        *openai.Usage
}

// NewStreamTranslator builds a translator that emits into sink, echoing
// callerModel on message_start.
func NewStreamTranslator(sink Sink, callerModel string) *StreamTranslator {
	return &StreamTranslator{
		sink:        sink,
		callerModel: callerModel,
		openIndex:   noOpenBlock,
		toolBlocks:  map[int64]int{},
	}
}

// Push feeds one upstream chunk through the state machine.
func (t *StreamTranslator) Push(chunk *openai.ChatCompletionChunk) error {
	if t.finished {
		return nil
	}
	if err := t.ensureStarted(chunk.ID); err != nil {
		return err
	}
	if chunk.Usage != nil {
		t.usage = chunk.Usage
	}
	if len(chunk.Choices) == 0 {
		return nil
	}
	// Once a finish reason is observed only usage-bearing chunks matter;
	// any further delta fields are ignored.
	if t.finishReason != "" {
		return nil
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		if err := t.pushText(choice.Delta.Content); err != nil {
			return err
		}
	}
	for _, call := range choice.Delta.ToolCalls {
		if err := t.pushToolCall(call); err != nil {
			return err
		}
	}
	if choice.FinishReason != "" {
		t.finishReason = choice.FinishReason
	}
	return nil
}

// Finish terminates the stream after the upstream ended normally. A
// stream that ended without a finish reason is reported as end_turn.
func (t *StreamTranslator) Finish() error {
	if t.finished {
		return nil
	}
	if err := t.ensureStarted(""); err != nil {
		return err
	}
	if err := t.closeOpenBlock(); err != nil {
		return err
	}

	stopReason := anthropic.StopReasonEndTurn
	if t.finishReason != "" {
		stopReason = StopReason(t.finishReason)
	}

	usage := anthropic.DeltaUsage{OutputTokens: 1}
	if t.usage != nil {
		usage.OutputTokens = t.usage.CompletionTokens
		usage.InputTokens = t.usage.PromptTokens
	}

	if err := t.send(anthropic.MessageDeltaEvent{
		Type:  anthropic.EventTypeMessageDelta,
		Delta: anthropic.MessageDelta{StopReason: stopReason, StopSequence: nil},
		Usage: usage,
	}); err != nil {
		return err
	}
	t.finished = true
	return t.send(anthropic.MessageStopEvent{Type: anthropic.EventTypeMessageStop})
}

// FailWith terminates an already-open stream with an in-band error. Any
// open block is closed first so the event bracketing stays valid, then
// the error event and message_stop are emitted.
func (t *StreamTranslator) FailWith(detail anthropic.ErrorDetail) error {
	if t.finished {
		return nil
	}
	if err := t.ensureStarted(""); err != nil {
		return err
	}
	if err := t.closeOpenBlock(); err != nil {
		return err
	}
	if err := t.send(anthropic.ErrorEvent{Type: anthropic.EventTypeError, Error: detail}); err != nil {
		return err
	}
	t.finished = true
	return t.send(anthropic.MessageStopEvent{Type: anthropic.EventTypeMessageStop})
}

// Finished reports whether the terminal events have been emitted.
func (t *StreamTranslator) Finished() bool { return t.finished }

func (t *StreamTranslator) ensureStarted(upstreamID string) error {
	if t.started {
		return nil
	}
	t.messageID = upstreamID
	if t.messageID == "" {
		t.messageID = NewMessageID()
	}
	t.started = true
	return t.send(anthropic.MessageStartEvent{
		Type: anthropic.EventTypeMessageStart,
		Message: anthropic.MessageStart{
			ID:      t.messageID,
			Type:    "message",
			Role:    anthropic.RoleAssistant,
			Model:   t.callerModel,
			Content: []anthropic.ContentBlock{},
		},
	})
}

func (t *StreamTranslator) pushText(text string) error {
	if t.openKind != anthropic.BlockTypeText {
		if err := t.closeOpenBlock(); err != nil {
			return err
		}
		if err := t.openBlock(anthropic.BlockTypeText, anthropic.NewTextBlock("")); err != nil {
			return err
		}
	}
	return t.send(anthropic.ContentBlockDeltaEvent{
		Type:  anthropic.EventTypeContentBlockDelta,
		Index: t.openIndex,
		Delta: anthropic.NewTextDelta(text),
	})
}

func (t *StreamTranslator) pushToolCall(call openai.ToolCallDelta) error {
	blockIndex, known := t.toolBlocks[call.Index]
	if !known {
		if err := t.closeOpenBlock(); err != nil {
			return err
		}
		id := call.ID
		if id == "" {
			id = "toolu_" + hex24()
		}
		block := anthropic.NewToolUseBlock(id, call.Function.Name, map[string]any{})
		if err := t.openBlock(anthropic.BlockTypeToolUse, block); err != nil {
			return err
		}
		t.toolBlocks[call.Index] = t.openIndex
		blockIndex = t.openIndex
	}

	if call.Function.Arguments == "" {
		return nil
	}
	if blockIndex != t.openIndex {
		logrus.Warnf("dropping tool call fragment for closed block %d (upstream index %d)", blockIndex, call.Index)
		return nil
	}
	return t.send(anthropic.ContentBlockDeltaEvent{
		Type:  anthropic.EventTypeContentBlockDelta,
		Index: blockIndex,
		Delta: anthropic.NewInputJSONDelta(call.Function.Arguments),
	})
}

func (t *StreamTranslator) openBlock(kind string, block anthropic.ContentBlock) error {
	index := t.nextIndex
	t.nextIndex++
	if err := t.send(anthropic.ContentBlockStartEvent{
		Type:         anthropic.EventTypeContentBlockStart,
		Index:        index,
		ContentBlock: block,
	}); err != nil {
		return err
	}
	t.openIndex = index
	t.openKind = kind
	return nil
}

func (t *StreamTranslator) closeOpenBlock() error {
	if t.openIndex == noOpenBlock {
		return nil
	}
	index := t.openIndex
	t.openIndex = noOpenBlock
	t.openKind = ""
	return t.send(anthropic.ContentBlockStopEvent{
		Type:  anthropic.EventTypeContentBlockStop,
		Index: index,
	})
}

func (t *StreamTranslator) send(event anthropic.StreamEvent) error {
	return t.sink.Send(event)
}
