package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event is one wire frame. Name maps to the SSE "event" field and may
// be empty, in which case the frame is delivered on the unnamed
// channel and typed clients treat it as a diagnostic.
type Event struct {
	Name string
	Data any
}

// Hello is the unnamed frame written when a subscriber attaches.
type Hello struct {
	Stream string `json:"stream"`
}

func (e *Event) frame() (string, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer

	if e.Name != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.Name)
	}

	fmt.Fprintf(&buf, "data: %s\n\n", payload)

	return buf.String(), nil
}
