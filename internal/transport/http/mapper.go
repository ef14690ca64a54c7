package http

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/squadchat/internal/core"
	"github.com/vovakirdan/squadchat/internal/proto"
	"github.com/vovakirdan/squadchat/internal/store"
)

const displayTimeLayout = "15:04"

// inboundToCommand maps a client envelope to a core command.
// Malformed payloads produce a protocol error for the sender instead of a command.
func inboundToCommand(env proto.Envelope) (*core.Command, *proto.ErrorData) {
	switch env.Type {
	case proto.InboundTypeJoinGroup, proto.InboundTypeLeaveGroup:
		var ref proto.GroupRef
		if err := json.Unmarshal(env.Data, &ref); err != nil {
			return nil, &proto.ErrorData{Code: core.ErrCodeBadRequest, Message: "groupId is required"}
		}
		kind := core.CommandJoinGroup
		if env.Type == proto.InboundTypeLeaveGroup {
			kind = core.CommandLeaveGroup
		}
		return &core.Command{Kind: kind, GroupID: ref.GroupID}, nil
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(env.Data, &data); err != nil || data.GroupID.GroupID <= 0 {
			return nil, &proto.ErrorData{Code: core.ErrCodeBadRequest, Message: "groupId and message are required"}
		}
		return &core.Command{
			Kind:    core.CommandSendMessage,
			GroupID: data.GroupID.GroupID,
			Text:    data.Message,
		}, nil
	default:
		return nil, &proto.ErrorData{Code: core.ErrCodeInvalidMessage, Message: "unknown message type"}
	}
}

func outboundFromEvent(event *core.Event, loc *time.Location) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeNewMessage,
			Data: messageData(event.Message, loc),
		}
	case core.EventError:
		if event.Error == nil {
			return errorOutbound(core.ErrCodeUnavailable, "unknown error")
		}
		return errorOutbound(event.Error.Code, event.Error.Message)
	default:
		return errorOutbound(core.ErrCodeUnavailable, "unknown event")
	}
}

func errorOutbound(code, message string) proto.Outbound {
	return proto.Outbound{
		Type: proto.OutboundTypeError,
		Data: proto.ErrorData{Code: code, Message: message},
	}
}

func messageData(m core.Message, loc *time.Location) proto.MessageData {
	return proto.MessageData{
		ID:        m.ID,
		UserID:    m.UserID,
		Username:  m.Username,
		Avatar:    m.Avatar,
		GroupID:   m.GroupID,
		Message:   m.Text,
		Timestamp: m.CreatedAt.In(loc).Format(displayTimeLayout),
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func messagesData(msgs []core.Message, loc *time.Location) []proto.MessageData {
	return lo.Map(msgs, func(m core.Message, _ int) proto.MessageData {
		return messageData(m, loc)
	})
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Avatar    *string `json:"avatar"`
	CreatedAt string  `json:"createdAt"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Avatar:    u.AvatarURL,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
	CreatorID   int64  `json:"creatorId"`
	CreatedAt   string `json:"createdAt"`
}

func groupResponse(g *store.Group) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Code:        strings.ToUpper(g.Code),
		Description: g.Description,
		IsPrivate:   g.IsPrivate,
		CreatorID:   g.CreatorID,
		CreatedAt:   g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GroupSummaryResponse is a group as listed for one of its members.
type GroupSummaryResponse struct {
	GroupResponse
	CreatorUsername string `json:"creatorUsername"`
	MemberCount     int    `json:"memberCount"`
	IsAdmin         bool   `json:"isAdmin"`
	JoinedAt        string `json:"joinedAt"`
}

func groupSummaryResponse(g *store.GroupSummary) GroupSummaryResponse {
	return GroupSummaryResponse{
		GroupResponse:   groupResponse(&g.Group),
		CreatorUsername: g.CreatorUsername,
		MemberCount:     g.MemberCount,
		IsAdmin:         g.IsAdmin,
		JoinedAt:        g.JoinedAt.UTC().Format(time.RFC3339),
	}
}

// MemberResponse represents a group member in API responses.
type MemberResponse struct {
	UserID   int64   `json:"userId"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar"`
	IsAdmin  bool    `json:"isAdmin"`
	JoinedAt string  `json:"joinedAt"`
}

func memberResponse(m *store.Member) MemberResponse {
	return MemberResponse{
		UserID:   m.UserID,
		Username: m.Username,
		Avatar:   m.AvatarURL,
		IsAdmin:  m.IsAdmin,
		JoinedAt: m.JoinedAt.UTC().Format(time.RFC3339),
	}
}
