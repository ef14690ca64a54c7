package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/squadchat/internal/service/groups"
	"github.com/vovakirdan/squadchat/internal/store"
)

// GroupHandlers provides HTTP handlers for the group directory.
type GroupHandlers struct {
	groups *groups.Service
	log    *zerolog.Logger
}

// NewGroupHandlers creates a new group handlers instance.
func NewGroupHandlers(svc *groups.Service, logger *zerolog.Logger) *GroupHandlers {
	return &GroupHandlers{
		groups: svc,
		log:    logger,
	}
}

// CreateGroupRequest represents the create group request body.
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,notblank,max=100"`
	Description string `json:"description" binding:"max=500"`
	IsPrivate   bool   `json:"isPrivate"`
}

// JoinGroupRequest represents the join group request body.
type JoinGroupRequest struct {
	Code string `json:"code" binding:"required,notblank,max=16"`
}

// CreateGroup handles group creation.
// POST /api/groups
func (h *GroupHandlers) CreateGroup(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	g, err := h.groups.Create(c.Request.Context(), id.UserID, req.Name, req.Description, req.IsPrivate)
	if err != nil {
		if errors.Is(err, groups.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Int64("user_id", id.UserID).Msg("failed to create group")
		respondInternal(c)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Group created successfully",
		"group":   groupResponse(g),
	})
}

// JoinGroup adds the caller to a group by its code.
// POST /api/groups/join
func (h *GroupHandlers) JoinGroup(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid join group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	g, err := h.groups.Join(c.Request.Context(), id.UserID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, groups.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
		case errors.Is(err, groups.ErrAlreadyMember):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "already a member of this group"})
		case errors.Is(err, groups.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid group code"})
		default:
			h.log.Error().Err(err).Int64("user_id", id.UserID).Msg("failed to join group")
			respondInternal(c)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Joined group successfully",
		"group":   groupResponse(g),
	})
}

// ListGroups lists the caller's groups.
// GET /api/groups
func (h *GroupHandlers) ListGroups(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	list, err := h.groups.ListForUser(c.Request.Context(), id.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", id.UserID).Msg("failed to list groups")
		respondInternal(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"groups": lo.Map(list, func(g *store.GroupSummary, _ int) GroupSummaryResponse {
			return groupSummaryResponse(g)
		}),
	})
}

// GetGroup returns a group with its members. Only members may see it.
// GET /api/groups/:groupId
func (h *GroupHandlers) GetGroup(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}

	details, err := h.groups.Details(c.Request.Context(), id.UserID, groupID)
	if err != nil {
		switch {
		case errors.Is(err, groups.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
		case errors.Is(err, groups.ErrNotMember):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this group"})
		default:
			h.log.Error().Err(err).Int64("group_id", groupID).Int64("user_id", id.UserID).Msg("failed to get group")
			respondInternal(c)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group": groupResponse(details.Group),
		"members": lo.Map(details.Members, func(m *store.Member, _ int) MemberResponse {
			return memberResponse(m)
		}),
	})
}

// LeaveGroup removes the caller from a group.
// DELETE /api/groups/:groupId/leave
func (h *GroupHandlers) LeaveGroup(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}

	if err := h.groups.Leave(c.Request.Context(), id.UserID, groupID); err != nil {
		if errors.Is(err, groups.ErrNotMember) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not a member of this group"})
			return
		}
		h.log.Error().Err(err).Int64("group_id", groupID).Int64("user_id", id.UserID).Msg("failed to leave group")
		respondInternal(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left group successfully"})
}

// groupIDParam parses :groupId and writes a 400 when it is not a positive integer.
func groupIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("groupId"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid group id"})
		return 0, false
	}
	return id, true
}
