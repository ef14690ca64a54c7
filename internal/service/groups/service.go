package groups

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/squadchat/internal/store"
)

// Common errors for group operations.
var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("already a member of this group")
	ErrNotMember     = errors.New("not a member of this group")
	ErrInvalidName   = errors.New("group name must be 1-100 characters")
	ErrInvalidCode   = errors.New("invalid group code")
	ErrCodeExhausted = errors.New("could not generate a unique group code")
)

const (
	codeLength     = 6
	codeAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// codeByteLimit is the largest multiple of len(codeAlphabet) not above 256.
	codeByteLimit  = 256 - 256%len(codeAlphabet)
	maxCodeRetries = 10
	maxNameLength  = 100
)

// RoomEvictor removes a user's live connections from a group's room.
type RoomEvictor interface {
	EvictUser(groupID, userID int64) int
}

// Details is a group with its member list.
type Details struct {
	Group   *store.Group
	Members []*store.Member
}

// Service provides group directory business logic.
type Service struct {
	store   store.GroupStore
	evictor RoomEvictor
	log     *zerolog.Logger

	// newCode is swappable in tests.
	newCode func() (string, error)
}

// New creates a group directory service. evictor may be nil.
func New(st store.GroupStore, evictor RoomEvictor, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:   st,
		evictor: evictor,
		log:     logger,
		newCode: generateCode,
	}
}

// Create creates a group with a fresh join code and makes the creator its admin.
func (s *Service) Create(ctx context.Context, creatorID int64, name, description string, isPrivate bool) (*store.Group, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxNameLength {
		return nil, ErrInvalidName
	}

	for attempt := 0; attempt < maxCodeRetries; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		g := &store.Group{
			Name:        name,
			Code:        code,
			Description: strings.TrimSpace(description),
			IsPrivate:   isPrivate,
			CreatorID:   creatorID,
		}
		err = s.store.CreateGroup(ctx, g)
		if errors.Is(err, store.ErrConflict) {
			s.log.Debug().Str("code", code).Int("attempt", attempt+1).Msg("group code collision")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create group: %w", err)
		}

		s.log.Info().Int64("group_id", g.ID).Int64("user_id", creatorID).Msg("group created")
		return g, nil
	}
	return nil, ErrCodeExhausted
}

// Join adds userID to the group identified by code.
func (s *Service) Join(ctx context.Context, userID int64, code string) (*store.Group, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrInvalidCode
	}

	g, err := s.store.GetGroupByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	err = s.store.AddMember(ctx, g.ID, userID, false)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyMember
	}
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}

	s.log.Info().Int64("group_id", g.ID).Int64("user_id", userID).Msg("user joined group")
	return g, nil
}

// Leave removes userID from the group and drops their live room subscriptions.
func (s *Service) Leave(ctx context.Context, userID, groupID int64) error {
	removed, err := s.store.RemoveMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if !removed {
		return ErrNotMember
	}

	evicted := 0
	if s.evictor != nil {
		evicted = s.evictor.EvictUser(groupID, userID)
	}
	s.log.Info().
		Int64("group_id", groupID).
		Int64("user_id", userID).
		Int("connections_evicted", evicted).
		Msg("user left group")
	return nil
}

// ListForUser lists the groups userID belongs to.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*store.GroupSummary, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Details returns a group and its members. Only members may see it.
func (s *Service) Details(ctx context.Context, userID, groupID int64) (*Details, error) {
	g, err := s.store.GetGroupByID(ctx, groupID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	ok, err := s.store.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, ErrNotMember
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return &Details{Group: g, Members: members}, nil
}

func generateCode() (string, error) {
	return codeFrom(rand.Reader)
}

// codeFrom draws codeLength characters from r. Bytes at or above
// codeByteLimit are discarded so every character is equally likely.
func codeFrom(r io.Reader) (string, error) {
	code := make([]byte, 0, codeLength)
	buf := make([]byte, 2*codeLength)
	for len(code) < codeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= codeByteLimit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == codeLength {
				break
			}
		}
	}
	return string(code), nil
}
