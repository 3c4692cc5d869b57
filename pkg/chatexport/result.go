package chatexport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// errorPayload is written in place of the conversation list when an
// out-of-process extraction fails
type errorPayload struct {
	Error string `json:"error"`
}

// EncodeResult writes an extraction outcome in the wire form shared with
// out-of-process extractors: a JSON array of conversations, or an object
// with a single error field.
func EncodeResult(w io.Writer, conversations []Conversation, err error) error {
	enc := json.NewEncoder(w)
	if err != nil {
		return enc.Encode(errorPayload{Error: err.Error()})
	}
	if conversations == nil {
		conversations = []Conversation{}
	}
	return enc.Encode(conversations)
}

// DecodeResult reads the output of EncodeResult. A reported failure comes
// back as the same *ParseError the in-process Dispatcher would return.
func DecodeResult(data []byte) ([]Conversation, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty extraction result")
	}

	if trimmed[0] == '{' {
		var payload errorPayload
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode extraction error: %w", err)
		}
		if payload.Error == "" {
			return nil, fmt.Errorf("extraction result has no conversations and no error")
		}
		return nil, parseErrorFromMessage(payload.Error)
	}

	var conversations []Conversation
	if err := json.Unmarshal(trimmed, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode extraction result: %w", err)
	}
	return conversations, nil
}
