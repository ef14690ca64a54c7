package http

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type groupBody struct {
	Message string        `json:"message"`
	Group   GroupResponse `json:"group"`
}

type groupDetailsBody struct {
	Group   GroupResponse    `json:"group"`
	Members []MemberResponse `json:"members"`
}

type groupListBody struct {
	Groups []GroupSummaryResponse `json:"groups"`
}

func TestCreateAndJoinGroup(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")

	resp := env.do(http.MethodPost, "/api/groups", alice.Token, CreateGroupRequest{Name: "Squad", Description: "weekend"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	created := decode[groupBody](t, resp).Group
	require.Equal(t, "Squad", created.Name)
	require.Equal(t, alice.ID, created.CreatorID)
	require.Len(t, created.Code, 6)

	resp = env.do(http.MethodPost, "/api/groups/join", bob.Token, JoinGroupRequest{Code: strings.ToLower(created.Code)})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, created.ID, decode[groupBody](t, resp).Group.ID)

	resp = env.do(http.MethodPost, "/api/groups/join", bob.Token, JoinGroupRequest{Code: created.Code})
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = env.do(http.MethodPost, "/api/groups/join", bob.Token, JoinGroupRequest{Code: "ZZZZZZ"})
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.do(http.MethodPost, "/api/groups/join", bob.Token, map[string]string{"code": "  "})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(http.MethodGet, "/api/groups", bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[groupListBody](t, resp).Groups
	require.Len(t, list, 1)
	require.Equal(t, created.ID, list[0].ID)
	require.Equal(t, "alice", list[0].CreatorUsername)
	require.Equal(t, 2, list[0].MemberCount)
	require.False(t, list[0].IsAdmin)
}

func TestCreateGroupValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	for _, body := range []any{map[string]string{}, CreateGroupRequest{Name: "   "}, "[]"} {
		resp := env.do(http.MethodPost, "/api/groups", alice.Token, body)
		require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	}
}

func TestGroupDetailsMembersOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	mallory := env.register("mallory")
	g := env.groupWith(alice, bob)
	path := fmt.Sprintf("/api/groups/%d", g.ID)

	resp := env.do(http.MethodGet, path, bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	details := decode[groupDetailsBody](t, resp)
	require.Equal(t, g.ID, details.Group.ID)
	require.Len(t, details.Members, 2)
	require.Equal(t, alice.ID, details.Members[0].UserID)
	require.True(t, details.Members[0].IsAdmin)
	require.Equal(t, bob.ID, details.Members[1].UserID)

	resp = env.do(http.MethodGet, path, mallory.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodGet, "/api/groups/9999", alice.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestLeaveGroup(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	g := env.groupWith(alice, bob)
	path := fmt.Sprintf("/api/groups/%d/leave", g.ID)

	resp := env.do(http.MethodDelete, path, bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, "Left group successfully", decode[groupBody](t, resp).Message)

	resp = env.do(http.MethodDelete, path, bob.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.do(http.MethodPost, messagesPath(g.ID), bob.Token, map[string]string{"message": "still here?"})
	require.Equal(t, http.StatusForbidden, resp.Code)
}
