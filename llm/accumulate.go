package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/truss-ai/truss/model"
)

// Accumulator assembles streamed chunks into a single assistant message.
// Content fragments concatenate in arrival order; tool-call fragments are
// buffered per call in first-seen order so the final list matches the
// provider's intent. Malformed chunks are skipped without aborting the
// stream.
type Accumulator struct {
	content strings.Builder
	sawText bool

	order   []string           // tool-call ids in first-seen order
	buffers map[string]*buffer // keyed by tool-call id
	byIndex map[int]string     // provider index -> id, for id-less fragments
	lastID  string
	synth   int
}

type buffer struct {
	name string
	args strings.Builder
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		buffers: make(map[string]*buffer),
		byIndex: make(map[int]string),
	}
}

// Add folds one chunk into the accumulated state. Chunks without choices are
// ignored.
func (a *Accumulator) Add(chunk Chunk) {
	if len(chunk.Choices) == 0 {
		return
	}
	delta := chunk.Choices[0].Delta
	if delta.Content != "" {
		a.sawText = true
		a.content.WriteString(delta.Content)
	}
	for _, tc := range delta.ToolCalls {
		a.addToolCallDelta(tc)
	}
}

func (a *Accumulator) addToolCallDelta(tc ToolCallDelta) {
	id := tc.ID
	if id == "" {
		// Fragments after the first omit the id; correlate through the
		// provider index, falling back to the most recent call.
		if tc.Index != nil {
			if mapped, ok := a.byIndex[*tc.Index]; ok {
				id = mapped
			}
		}
		if id == "" {
			id = a.lastID
		}
		if id == "" {
			a.synth++
			id = fmt.Sprintf("tool_call_%d", a.synth)
		}
	}
	buf, ok := a.buffers[id]
	if !ok {
		buf = &buffer{}
		a.buffers[id] = buf
		a.order = append(a.order, id)
	}
	if tc.Index != nil {
		a.byIndex[*tc.Index] = id
	}
	a.lastID = id
	if buf.name == "" && tc.Function.Name != "" {
		buf.name = tc.Function.Name
	}
	buf.args.WriteString(tc.Function.Arguments)
}

// Message finalizes the accumulated assistant message. Concatenated argument
// strings that fail to parse as JSON are retained verbatim under a raw
// sentinel key so no tool call is ever dropped.
func (a *Accumulator) Message() model.Message {
	msg := model.Message{Role: model.RoleAssistant}
	for _, id := range a.order {
		buf := a.buffers[id]
		msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
			ID:        id,
			Name:      buf.name,
			Arguments: finalizeArguments(buf.args.String()),
		})
	}
	switch {
	case a.sawText:
		msg.Content = model.String(a.content.String())
	case len(msg.ToolCalls) > 0:
		// Tool-only turn: content stays null.
	default:
		msg.Content = model.String("")
	}
	return msg
}

func finalizeArguments(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	wrapped, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		// Marshal of map[string]string cannot fail; keep the compiler
		// honest with an inert fallback.
		return json.RawMessage(`{}`)
	}
	return wrapped
}
