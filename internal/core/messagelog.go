package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/vovakirdan/squadchat/internal/metrics"
	"github.com/vovakirdan/squadchat/internal/store"
)

const (
	// DefaultMaxMessageLength is the maximum message length in characters.
	DefaultMaxMessageLength = 4000
	// DefaultPageSize is used when a history request omits the limit.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps a single history page.
	DefaultMaxPageSize = 200
)

// Page selects a window of a group's history, newest page first.
// Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// DefaultPage is the first page with the default size.
func DefaultPage() Page {
	return Page{Number: 1, Size: DefaultPageSize}
}

// LogConfig tunes MessageLog limits. Zero values pick defaults.
type LogConfig struct {
	MaxMessageLength int
	MaxPageSize      int
}

// MessageLog is the durable, per-group ordered message log.
// Appends in one group are serialized; different groups never contend.
type MessageLog struct {
	store     store.MessageStore
	authority *Authority
	locks     *groupLocks
	now       func() time.Time

	maxLength   int
	maxPageSize int
}

// NewMessageLog creates a message log over st, authorizing writers with authority.
func NewMessageLog(st store.MessageStore, authority *Authority, cfg LogConfig) *MessageLog {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = DefaultMaxPageSize
	}
	return &MessageLog{
		store:       st,
		authority:   authority,
		locks:       newGroupLocks(),
		now:         time.Now,
		maxLength:   cfg.MaxMessageLength,
		maxPageSize: cfg.MaxPageSize,
	}
}

// Append validates, authorizes and durably records a message.
// onCommit, if set, runs after the write commits and before the next append
// in the same group may start, so callers observe commit order.
// Once the store call starts it is not abandoned because ctx was cancelled.
func (l *MessageLog) Append(ctx context.Context, groupID, userID int64, body string, onCommit func(Message)) (*Message, error) {
	text, verr := l.validateBody(body)
	if verr != nil {
		metrics.AppendFailures.WithLabelValues(verr.Code).Inc()
		return nil, verr
	}

	if err := l.authority.Authorize(ctx, groupID, userID); err != nil {
		metrics.AppendFailures.WithLabelValues(AsCoreError(err).Code).Inc()
		return nil, err
	}

	seq := l.locks.lock(groupID)
	defer seq.unlock()

	rec := &store.Message{
		GroupID:   groupID,
		UserID:    userID,
		Body:      text,
		CreatedAt: seq.stamp(l.now().UTC()),
	}
	if err := l.store.AppendMessage(context.WithoutCancel(ctx), rec); err != nil {
		metrics.AppendFailures.WithLabelValues(ErrCodeUnavailable).Inc()
		return nil, unavailableError(fmt.Sprintf("append to group %d", groupID), err)
	}
	seq.last = rec.CreatedAt
	metrics.MessagesAppended.Inc()

	msg := messageFromStore(rec)
	if onCommit != nil {
		onCommit(msg)
	}
	return &msg, nil
}

// List returns one page of groupID's history in chronological order.
// It does not check membership; see History for the authorized read path.
func (l *MessageLog) List(ctx context.Context, groupID int64, page Page) ([]Message, error) {
	if err := l.validatePage(page); err != nil {
		return nil, err
	}

	offset := (page.Number - 1) * page.Size
	rows, err := l.store.ListMessages(ctx, groupID, page.Size, offset)
	if err != nil {
		return nil, unavailableError(fmt.Sprintf("list group %d", groupID), err)
	}

	return lo.Map(rows, func(m *store.Message, _ int) Message {
		return messageFromStore(m)
	}), nil
}

func (l *MessageLog) validateBody(body string) (string, *CoreError) {
	text := strings.TrimSpace(body)
	if text == "" {
		return "", validationError(ErrCodeEmptyMessage, "message cannot be empty")
	}
	if utf8.RuneCountInString(text) > l.maxLength {
		return "", validationError(ErrCodeMessageTooLong,
			fmt.Sprintf("message exceeds %d characters", l.maxLength))
	}
	return text, nil
}

func (l *MessageLog) validatePage(page Page) *CoreError {
	if page.Number < 1 {
		return validationError(ErrCodeInvalidPage, "page must be a positive integer")
	}
	if page.Size < 1 {
		return validationError(ErrCodeInvalidPage, "limit must be a positive integer")
	}
	if page.Size > l.maxPageSize {
		return validationError(ErrCodeInvalidPage,
			fmt.Sprintf("limit must not exceed %d", l.maxPageSize))
	}
	// the row offset (Number-1)*Size must fit in an int
	if page.Number-1 > math.MaxInt/page.Size {
		return validationError(ErrCodeInvalidPage, "page is out of range")
	}
	return nil
}
