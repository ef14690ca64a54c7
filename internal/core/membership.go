package core

import "context"

// MembershipReader is the part of the group directory the core depends on.
type MembershipReader interface {
	GroupExists(ctx context.Context, groupID int64) (bool, error)
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
}

// Authority answers membership questions against the group directory.
// It never caches, so joins and leaves are visible to the next call.
type Authority struct {
	dir MembershipReader
}

// NewAuthority creates a membership authority backed by dir.
func NewAuthority(dir MembershipReader) *Authority {
	return &Authority{dir: dir}
}

// IsMember reports whether userID belongs to groupID.
// Directory failures surface as ErrUnavailable, never as "not a member".
func (a *Authority) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	ok, err := a.dir.IsMember(ctx, groupID, userID)
	if err != nil {
		return false, unavailableError("check membership", err)
	}
	return ok, nil
}

// Authorize returns nil when userID may read and write groupID.
// The error kind is ErrNotFound, ErrForbidden or ErrUnavailable.
func (a *Authority) Authorize(ctx context.Context, groupID, userID int64) error {
	ok, err := a.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	exists, err := a.dir.GroupExists(ctx, groupID)
	if err != nil {
		return unavailableError("check group", err)
	}
	if !exists {
		return groupNotFoundError()
	}
	return forbiddenError()
}
