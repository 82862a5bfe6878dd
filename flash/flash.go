// Package flash holds one-shot notices shown on the next rendered page.
package flash

import (
	"encoding/json"
	"fmt"
)

type (
	Level int

	Message struct {
		Level Level  `json:"level"`
		Text  string `json:"text"`
	}

	// Queue keeps messages in the order they were pushed.
	Queue []Message
)

const (
	Success Level = iota + 1
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Error:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// CSSClass maps the level to the class used by the page layout.
func (l Level) CSSClass() string {
	switch l {
	case Success:
		return "is-success"
	case Error:
		return "is-danger"
	}
	return "is-info"
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(buf []byte) error {
	var name string
	if err := json.Unmarshal(buf, &name); err != nil {
		return err
	}
	switch name {
	case "success":
		*l = Success
	case "error":
		*l = Error
	default:
		return fmt.Errorf("flash: unknown level %q", name)
	}
	return nil
}

func (q *Queue) Push(level Level, text string) {
	*q = append(*q, Message{Level: level, Text: text})
}

// Drain returns every queued message and leaves the queue empty.
func (q *Queue) Drain() []Message {
	out := []Message(*q)
	*q = nil
	return out
}

func (q Queue) Len() int {
	return len(q)
}
