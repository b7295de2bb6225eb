package net

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidMessage = errors.New("invalid network message")
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
)

// Headers exchanged with clients.
const (
	HeaderMqPut          = "mqPut"
	HeaderRegisterTrader = "registerTrader"
	HeaderUpdateStocks   = "updateStocks"
	HeaderUpdateTrader   = "updateTrader"
)

// NetworkMessage is one frame on the wire: a JSON object terminated by a
// newline.
type NetworkMessage struct {
	Header string `json:"Header"`
	Body   string `json:"Body"`
}

func NewNetworkMessage(header, body string) NetworkMessage {
	return NetworkMessage{Header: header, Body: body}
}

// Encode renders the message as a single newline terminated frame.
func (m NetworkMessage) Encode() ([]byte, error) {
	if m.Header == "" {
		return nil, fmt.Errorf("%w: empty header", ErrInvalidMessage)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("unable to encode message: %w", err)
	}
	return append(raw, '\n'), nil
}

// DecodeNetworkMessage parses a single frame. Surrounding whitespace,
// including the frame terminator, is ignored.
func DecodeNetworkMessage(frame []byte) (NetworkMessage, error) {
	var m NetworkMessage
	if err := json.Unmarshal(bytes.TrimSpace(frame), &m); err != nil {
		return NetworkMessage{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if m.Header == "" {
		return NetworkMessage{}, fmt.Errorf("%w: empty header", ErrInvalidMessage)
	}
	return m, nil
}
