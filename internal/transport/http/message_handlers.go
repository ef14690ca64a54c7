package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/squadchat/internal/core"
)

// MessageHandlers serves group history and the synchronous send path.
type MessageHandlers struct {
	hub      *core.Hub
	history  *core.History
	defaults core.Page
	loc      *time.Location
	log      *zerolog.Logger
}

// NewMessageHandlers creates message handlers. Timestamps are rendered in loc.
func NewMessageHandlers(hub *core.Hub, history *core.History, defaults core.Page, loc *time.Location, logger *zerolog.Logger) *MessageHandlers {
	if defaults.Number <= 0 || defaults.Size <= 0 {
		defaults = core.DefaultPage()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MessageHandlers{
		hub:      hub,
		history:  history,
		defaults: defaults,
		loc:      loc,
		log:      logger,
	}
}

// PostMessageRequest represents the send message request body.
type PostMessageRequest struct {
	Message string `json:"message"`
}

// ListMessages returns one page of a group's history, oldest first.
// GET /api/groups/:groupId/messages?page=&limit=
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}

	page, ok := h.pageFromQuery(c)
	if !ok {
		return
	}

	msgs, err := h.history.Page(c.Request.Context(), groupID, id.UserID, page)
	if err != nil {
		respondCoreError(c, h.log, "list_messages", groupID, id.UserID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messagesData(msgs, h.loc)})
}

// PostMessage appends a message and broadcasts it to the group's room.
// POST /api/groups/:groupId/messages
func (h *MessageHandlers) PostMessage(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid post message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	msg, err := h.hub.SendMessage(c.Request.Context(), groupID, id.UserID, req.Message)
	if err != nil {
		respondCoreError(c, h.log, "post_message", groupID, id.UserID, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message sent successfully",
		"data":    messageData(*msg, h.loc),
	})
}

// pageFromQuery reads page and limit. Omitted values use the defaults;
// values that are not integers are rejected with 400.
func (h *MessageHandlers) pageFromQuery(c *gin.Context) (core.Page, bool) {
	page := h.defaults

	if raw, present := c.GetQuery("page"); present {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "page must be a positive integer", Code: core.ErrCodeInvalidPage})
			return page, false
		}
		page.Number = n
	}
	if raw, present := c.GetQuery("limit"); present {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Code: core.ErrCodeInvalidPage})
			return page, false
		}
		page.Size = n
	}
	return page, true
}
