package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/squadchat/internal/store"
)

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens the SQLite database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection; it also keeps
	// ":memory:" databases alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, avatar_url, created_at, updated_at
		FROM users
		WHERE ` + where
	var user store.User
	var avatar sql.NullString
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.AvatarURL = nullableString(avatar)

	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

// UpdateProfile changes the username and avatar of a user.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id int64, username string, avatarURL *string) error {
	query := `UPDATE users SET username = ?, avatar_url = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, username, avatarURL, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user: %w", store.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user: %w", store.ErrNotFound)
	}
	return nil
}

// ==== GroupStore implementation ====

// CreateGroup inserts a group and adds the creator as admin in one transaction.
func (s *SQLiteStore) CreateGroup(ctx context.Context, g *store.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO chat_groups (name, code, description, is_private, creator_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, g.Name, g.Code, g.Description, g.IsPrivate, g.CreatorID, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert group: %w", store.ErrConflict)
		}
		return fmt.Errorf("insert group: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, is_admin, joined_at)
		VALUES (?, ?, 1, ?)
	`, id, g.CreatorID, now); err != nil {
		return fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	g.ID = id
	g.CreatedAt = now
	return nil
}

func (s *SQLiteStore) getGroup(ctx context.Context, where string, arg any) (*store.Group, error) {
	query := `
		SELECT id, name, code, description, is_private, creator_id, created_at
		FROM chat_groups
		WHERE ` + where
	var g store.Group
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&g.ID,
		&g.Name,
		&g.Code,
		&g.Description,
		&g.IsPrivate,
		&g.CreatorID,
		&g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query group: %w", err)
	}
	return &g, nil
}

// GetGroupByID retrieves a group by ID.
func (s *SQLiteStore) GetGroupByID(ctx context.Context, id int64) (*store.Group, error) {
	return s.getGroup(ctx, "id = ?", id)
}

// GetGroupByCode retrieves a group by its join code.
func (s *SQLiteStore) GetGroupByCode(ctx context.Context, code string) (*store.Group, error) {
	return s.getGroup(ctx, "code = ?", code)
}

// GroupExists reports whether a group with the given ID exists.
func (s *SQLiteStore) GroupExists(ctx context.Context, id int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chat_groups WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query group: %w", err)
	}
	return true, nil
}

// ListGroupsForUser lists the groups a user belongs to, most recently joined first.
func (s *SQLiteStore) ListGroupsForUser(ctx context.Context, userID int64) ([]*store.GroupSummary, error) {
	query := `
		SELECT g.id, g.name, g.code, g.description, g.is_private, g.creator_id, g.created_at,
		       u.username,
		       (SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id),
		       gm.is_admin, gm.joined_at
		FROM chat_groups g
		JOIN group_members gm ON gm.group_id = g.id AND gm.user_id = ?
		JOIN users u ON u.id = g.creator_id
		ORDER BY gm.joined_at DESC, g.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*store.GroupSummary, 0)
	for rows.Next() {
		var gs store.GroupSummary
		if err := rows.Scan(
			&gs.ID, &gs.Name, &gs.Code, &gs.Description, &gs.IsPrivate, &gs.CreatorID, &gs.CreatedAt,
			&gs.CreatorUsername,
			&gs.MemberCount,
			&gs.IsAdmin, &gs.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, &gs)
	}

	return groups, rows.Err()
}

// AddMember adds a user to a group. Returns store.ErrConflict if already a member.
func (s *SQLiteStore) AddMember(ctx context.Context, groupID, userID int64, isAdmin bool) error {
	query := `
		INSERT INTO group_members (group_id, user_id, is_admin, joined_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, groupID, userID, isAdmin, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert group member: %w", store.ErrConflict)
		}
		return fmt.Errorf("insert group member: %w", err)
	}

	return nil
}

// RemoveMember removes a user from a group.
func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, userID int64) (bool, error) {
	query := `
		DELETE FROM group_members
		WHERE group_id = ? AND user_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("delete group member: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rows > 0, nil
}

// IsMember checks if user is a member of the group.
func (s *SQLiteStore) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	query := `
		SELECT 1 FROM group_members
		WHERE group_id = ? AND user_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, groupID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}

	return true, nil
}

// ListMembers lists the members of a group in join order.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID int64) ([]*store.Member, error) {
	query := `
		SELECT gm.user_id, u.username, u.avatar_url, gm.is_admin, gm.joined_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = ?
		ORDER BY gm.joined_at ASC, gm.user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := make([]*store.Member, 0)
	for rows.Next() {
		var m store.Member
		var avatar sql.NullString
		if err := rows.Scan(&m.UserID, &m.Username, &avatar, &m.IsAdmin, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.AvatarURL = nullableString(avatar)
		members = append(members, &m)
	}

	return members, rows.Err()
}

// ==== MessageStore implementation ====

const selectMessage = `
	SELECT m.id, m.group_id, m.user_id, m.body, m.created_at, u.username, u.avatar_url
	FROM messages m
	JOIN users u ON u.id = m.user_id
`

func scanMessage(row interface{ Scan(...any) error }) (*store.Message, error) {
	var msg store.Message
	var avatar sql.NullString
	if err := row.Scan(&msg.ID, &msg.GroupID, &msg.UserID, &msg.Body, &msg.CreatedAt, &msg.Username, &avatar); err != nil {
		return nil, err
	}
	msg.AvatarURL = nullableString(avatar)
	return &msg, nil
}

// AppendMessage atomically persists msg and reads it back with its author profile.
// The insert and the read share one transaction so a failure records nothing.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (group_id, user_id, body, created_at)
		VALUES (?, ?, ?, ?)
	`, msg.GroupID, msg.UserID, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	saved, err := scanMessage(tx.QueryRowContext(ctx, selectMessage+` WHERE m.id = ?`, id))
	if err != nil {
		return fmt.Errorf("read back message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	*msg = *saved
	return nil
}

// ListMessages returns one page of a group's messages in chronological order.
// The newest rows are selected first so offset 0 is always the latest page.
func (s *SQLiteStore) ListMessages(ctx context.Context, groupID int64, limit, offset int) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, selectMessage+`
		WHERE m.group_id = ?
		ORDER BY m.id DESC
		LIMIT ? OFFSET ?
	`, groupID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}
