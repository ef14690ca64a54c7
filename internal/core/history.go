package core

import "context"

// History is the membership-gated read path over the message log.
type History struct {
	log       *MessageLog
	authority *Authority
}

// NewHistory creates a history reader.
func NewHistory(log *MessageLog, authority *Authority) *History {
	return &History{log: log, authority: authority}
}

// Page returns one page of groupID's messages, oldest first, if userID is a member.
// Pagination is validated before membership is consulted.
func (h *History) Page(ctx context.Context, groupID, userID int64, page Page) ([]Message, error) {
	if err := h.log.validatePage(page); err != nil {
		return nil, err
	}
	if err := h.authority.Authorize(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return h.log.List(ctx, groupID, page)
}
