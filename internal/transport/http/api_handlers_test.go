package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type userBody struct {
	User UserResponse `json:"user"`
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Username: "alice", Password: "secret1"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	registered := decode[AuthResponse](t, resp)
	require.NotEmpty(t, registered.Token)
	require.Equal(t, "alice", registered.User.Username)
	require.Nil(t, registered.User.Avatar)

	resp = env.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Username: "alice", Password: "secret2"})
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "alice", Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.Code)
	loggedIn := decode[AuthResponse](t, resp)
	require.Equal(t, registered.User.ID, loggedIn.User.ID)

	resp = env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "alice", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "nobody", Password: "secret1"})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(http.MethodGet, "/api/auth/me", loggedIn.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "alice", decode[userBody](t, resp).User.Username)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body any
	}{
		{"missing password", map[string]string{"username": "alice"}},
		{"blank username", RegisterRequest{Username: "   ", Password: "secret1"}},
		{"short username", RegisterRequest{Username: "al", Password: "secret1"}},
		{"short password", RegisterRequest{Username: "alice", Password: "123"}},
		{"not json", "{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.do(http.MethodPost, "/api/auth/register", "", tc.body)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/auth/me", "/api/groups", "/api/users/1"} {
		resp := env.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.Code, path)
	}
}

func TestUserProfile(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	env.register("bob")

	resp := env.do(http.MethodGet, fmt.Sprintf("/api/users/%d", alice.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "alice", decode[userBody](t, resp).User.Username)

	resp = env.do(http.MethodGet, "/api/users/9999", alice.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.do(http.MethodGet, "/api/users/abc", alice.Token, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	avatar := "https://example.com/a.png"
	resp = env.do(http.MethodPut, "/api/users/profile", alice.Token, UpdateProfileRequest{Username: "alicia", Avatar: &avatar})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated := decode[userBody](t, resp).User
	require.Equal(t, "alicia", updated.Username)
	require.NotNil(t, updated.Avatar)
	require.Equal(t, avatar, *updated.Avatar)

	empty := ""
	resp = env.do(http.MethodPut, "/api/users/profile", alice.Token, UpdateProfileRequest{Username: "alicia", Avatar: &empty})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Nil(t, decode[userBody](t, resp).User.Avatar)

	resp = env.do(http.MethodPut, "/api/users/profile", alice.Token, UpdateProfileRequest{Username: "bob"})
	require.Equal(t, http.StatusConflict, resp.Code)
}
