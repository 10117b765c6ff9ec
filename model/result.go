package model

import (
	"encoding/json"
	"fmt"
)

// ToolResultContent is the tagged union held by ToolCallResult.Content: tool
// handlers may return a plain string or a structured JSON value. Either
// variant serializes canonically to a string on the way to storage.
type ToolResultContent struct {
	text string
	raw  json.RawMessage
}

// TextContent wraps a plain string result.
func TextContent(s string) ToolResultContent {
	return ToolResultContent{text: s}
}

// JSONContent wraps a structured JSON result. The payload must be valid JSON.
func JSONContent(raw json.RawMessage) (ToolResultContent, error) {
	if !json.Valid(raw) {
		return ToolResultContent{}, fmt.Errorf("%w: tool result is not valid JSON", ErrInvalidInput)
	}
	return ToolResultContent{raw: raw}, nil
}

// IsJSON reports whether the content holds the structured variant.
func (c ToolResultContent) IsJSON() bool { return c.raw != nil }

// JSON returns the structured payload, or nil for the text variant.
func (c ToolResultContent) JSON() json.RawMessage { return c.raw }

// String renders the canonical string form: the raw JSON text for the
// structured variant, the string itself otherwise.
func (c ToolResultContent) String() string {
	if c.raw != nil {
		return string(c.raw)
	}
	return c.text
}

// MarshalJSON emits the structured payload verbatim or the string variant as
// a JSON string.
func (c ToolResultContent) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON restores the variant from the wire: JSON strings become the
// text variant, everything else the structured one.
func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ToolResultContent{text: s}
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: tool result content is not valid JSON", ErrInvalidInput)
	}
	*c = ToolResultContent{raw: append(json.RawMessage(nil), data...)}
	return nil
}
