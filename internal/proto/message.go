package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Envelope frames every live-channel message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeJoinGroup   = "join-group"
	InboundTypeLeaveGroup  = "leave-group"
	InboundTypeSendMessage = "send-message"

	OutboundTypeNewMessage = "new-message"
	OutboundTypeError      = "error"
)

// ErrInvalidGroupID is returned when a group reference cannot be parsed.
var ErrInvalidGroupID = errors.New("invalid group id")

// GroupRef is the payload of join-group and leave-group.
// Clients send either a bare id (42 or "42") or {"groupId": 42}.
type GroupRef struct {
	GroupID int64
}

func (g *GroupRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrInvalidGroupID
	}

	if data[0] == '{' {
		var obj struct {
			GroupID json.RawMessage `json:"groupId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if len(obj.GroupID) == 0 {
			return ErrInvalidGroupID
		}
		id, err := parseGroupID(obj.GroupID)
		if err != nil {
			return err
		}
		g.GroupID = id
		return nil
	}

	id, err := parseGroupID(data)
	if err != nil {
		return err
	}
	g.GroupID = id
	return nil
}

// parseGroupID accepts a JSON number or a JSON string holding a positive integer.
func parseGroupID(raw json.RawMessage) (int64, error) {
	var s string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
	} else {
		s = string(raw)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidGroupID
	}
	return id, nil
}

// SendMessageData is the payload of send-message.
type SendMessageData struct {
	GroupID GroupRef `json:"groupId"`
	Message string   `json:"message"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessageData is the wire shape of a chat message, pushed live and returned by history.
type MessageData struct {
	ID        int64   `json:"id"`
	UserID    int64   `json:"userId"`
	Username  string  `json:"username"`
	Avatar    *string `json:"avatar"`
	GroupID   int64   `json:"groupId"`
	Message   string  `json:"message"`
	Timestamp string  `json:"timestamp"`
	CreatedAt string  `json:"createdAt"`
}

// ErrorData describes a failed command. Sent to the issuing connection only.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
