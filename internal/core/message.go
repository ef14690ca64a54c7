package core

import (
	"time"

	"github.com/vovakirdan/squadchat/internal/store"
)

// Message is the domain model for a group chat message.
type Message struct {
	ID        int64
	GroupID   int64
	UserID    int64
	Username  string
	Avatar    *string
	Text      string
	CreatedAt time.Time
}

func messageFromStore(m *store.Message) Message {
	return Message{
		ID:        m.ID,
		GroupID:   m.GroupID,
		UserID:    m.UserID,
		Username:  m.Username,
		Avatar:    m.AvatarURL,
		Text:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}
