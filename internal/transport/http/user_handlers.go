package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/squadchat/internal/store"
)

// UserHandlers provides HTTP handlers for user profiles.
type UserHandlers struct {
	store store.UserStore
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.UserStore, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		log:   logger,
	}
}

// UpdateProfileRequest represents the profile update body.
// An empty avatar clears it.
type UpdateProfileRequest struct {
	Username string  `json:"username" binding:"required,notblank,min=3,max=32"`
	Avatar   *string `json:"avatar" binding:"omitempty,max=512"`
}

// GetUser returns a user's public profile.
// GET /api/users/:id
func (h *UserHandlers) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	user, err := h.store.GetUserByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		respondInternal(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}

// UpdateProfile changes the caller's username and avatar.
// PUT /api/users/profile
func (h *UserHandlers) UpdateProfile(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid profile request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	username := strings.TrimSpace(req.Username)
	avatar := req.Avatar
	if avatar != nil {
		trimmed := strings.TrimSpace(*avatar)
		if trimmed == "" {
			avatar = nil
		} else {
			avatar = &trimmed
		}
	}

	ctx := c.Request.Context()
	if err := h.store.UpdateProfile(ctx, id.UserID, username, avatar); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "username already taken"})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Int64("user_id", id.UserID).Msg("failed to update profile")
			respondInternal(c)
		}
		return
	}

	user, err := h.store.GetUserByID(ctx, id.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", id.UserID).Msg("failed to reload profile")
		respondInternal(c)
		return
	}

	h.log.Info().Int64("user_id", id.UserID).Msg("profile updated")
	c.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}
