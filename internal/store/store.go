package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	AvatarURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Group represents a closed chat group.
type Group struct {
	ID          int64
	Name        string
	Code        string
	Description string
	IsPrivate   bool
	CreatorID   int64
	CreatedAt   time.Time
}

// GroupSummary is a group as listed for one of its members.
type GroupSummary struct {
	Group
	CreatorUsername string
	MemberCount     int
	IsAdmin         bool
	JoinedAt        time.Time
}

// Member is a group membership joined with the member's profile.
type Member struct {
	UserID    int64
	Username  string
	AvatarURL *string
	IsAdmin   bool
	JoinedAt  time.Time
}

// Message represents a persisted group message.
// Username and AvatarURL are filled from the author's profile on read.
type Message struct {
	ID        int64
	GroupID   int64
	UserID    int64
	Body      string
	CreatedAt time.Time

	Username  string
	AvatarURL *string
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateProfile changes the username and avatar of a user.
	UpdateProfile(ctx context.Context, id int64, username string, avatarURL *string) error
}

// GroupStore handles groups and their membership relation.
type GroupStore interface {
	// CreateGroup inserts a group and adds the creator as admin in one transaction.
	CreateGroup(ctx context.Context, g *Group) error

	// GetGroupByID retrieves a group by ID.
	GetGroupByID(ctx context.Context, id int64) (*Group, error)

	// GetGroupByCode retrieves a group by its join code.
	GetGroupByCode(ctx context.Context, code string) (*Group, error)

	// GroupExists reports whether a group with the given ID exists.
	GroupExists(ctx context.Context, id int64) (bool, error)

	// ListGroupsForUser lists the groups a user belongs to, most recently joined first.
	ListGroupsForUser(ctx context.Context, userID int64) ([]*GroupSummary, error)

	// AddMember adds a user to a group. Returns ErrConflict if already a member.
	AddMember(ctx context.Context, groupID, userID int64, isAdmin bool) error

	// RemoveMember removes a user from a group. Returns false if there was no membership.
	RemoveMember(ctx context.Context, groupID, userID int64) (bool, error)

	// IsMember checks if user is a member of the group.
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)

	// ListMembers lists the members of a group in join order.
	ListMembers(ctx context.Context, groupID int64) ([]*Member, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage atomically persists msg, sets msg.ID and fills the author fields.
	// On error nothing is recorded.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit messages of a group, skipping the offset newest ones,
	// in chronological order.
	ListMessages(ctx context.Context, groupID int64, limit, offset int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	GroupStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
