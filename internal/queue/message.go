package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidMessage = errors.New("invalid message")

// Message is a queued command. Header names the command and Body carries its
// JSON encoded argument.
type Message struct {
	Header    string    `json:"Header"`
	Body      string    `json:"Body"`
	Timestamp time.Time `json:"Timestamp"`
}

// NewMessage stamps a message with the current time.
func NewMessage(header, body string) Message {
	return Message{
		Header:    header,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func (m Message) Encode() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("unable to encode message: %w", err)
	}
	return string(raw), nil
}

// DecodeMessage parses a message, stamping it now if it carries no time.
func DecodeMessage(raw string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if m.Header == "" {
		return Message{}, fmt.Errorf("%w: empty header", ErrInvalidMessage)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return m, nil
}
