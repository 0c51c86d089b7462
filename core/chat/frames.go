package chat

import (
	"encoding/json"
)

// InboundFrame is the only frame clients may send.
type InboundFrame struct {
	Message *string `json:"message"`
}

// OutboundFrame is pushed to every member of a room's group.
type OutboundFrame struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// ParseInboundFrame extracts the message text of an inbound frame.
// Anything but a JSON object with a string `message` is ErrMalformedFrame.
func ParseInboundFrame(data []byte) (string, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", ErrMalformedFrame
	}
	if frame.Message == nil {
		return "", ErrMalformedFrame
	}
	return *frame.Message, nil
}
