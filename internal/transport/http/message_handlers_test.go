package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/squadchat/internal/core"
	"github.com/vovakirdan/squadchat/internal/proto"
)

type messagesBody struct {
	Messages []proto.MessageData `json:"messages"`
}

type postBody struct {
	Message string            `json:"message"`
	Data    proto.MessageData `json:"data"`
}

func messagesPath(groupID int64) string {
	return fmt.Sprintf("/api/groups/%d/messages", groupID)
}

func TestPostThenListMessages(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	g := env.groupWith(alice, bob)

	resp := env.do(http.MethodPost, messagesPath(g.ID), alice.Token, map[string]string{"message": "  hello  "})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	posted := decode[postBody](t, resp)
	require.Equal(t, "Message sent successfully", posted.Message)
	require.Equal(t, "hello", posted.Data.Message)
	require.Equal(t, alice.ID, posted.Data.UserID)
	require.Equal(t, "alice", posted.Data.Username)
	require.Equal(t, g.ID, posted.Data.GroupID)
	require.Nil(t, posted.Data.Avatar)
	require.Regexp(t, `^\d{2}:\d{2}$`, posted.Data.Timestamp)

	createdAt, err := time.Parse(time.RFC3339Nano, posted.Data.CreatedAt)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), createdAt, time.Minute)

	resp = env.do(http.MethodGet, messagesPath(g.ID)+"?page=1&limit=50", bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	listed := decode[messagesBody](t, resp)
	require.Len(t, listed.Messages, 1)
	require.Equal(t, posted.Data.ID, listed.Messages[0].ID)
	require.Equal(t, "hello", listed.Messages[0].Message)
}

func TestPostMessageNonMemberIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	mallory := env.register("mallory")
	g := env.groupWith(alice)

	resp := env.do(http.MethodPost, messagesPath(g.ID), mallory.Token, map[string]string{"message": "hi"})
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Equal(t, core.ErrCodeNotMember, decode[ErrorResponse](t, resp).Code)

	resp = env.do(http.MethodGet, messagesPath(g.ID), mallory.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodGet, messagesPath(g.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, decode[messagesBody](t, resp).Messages)
}

func TestPostMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	g := env.groupWith(alice)

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `{}`} {
		resp := env.do(http.MethodPost, messagesPath(g.ID), alice.Token, body)
		require.Equal(t, http.StatusBadRequest, resp.Code, body)
		require.Equal(t, core.ErrCodeEmptyMessage, decode[ErrorResponse](t, resp).Code, body)
	}

	resp := env.do(http.MethodPost, messagesPath(g.ID), alice.Token, `not json`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(http.MethodPost, messagesPath(999), alice.Token, map[string]string{"message": "hi"})
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.do(http.MethodPost, "/api/groups/abc/messages", alice.Token, map[string]string{"message": "hi"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListMessagesPagination(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	g := env.groupWith(alice)

	for i := 1; i <= 7; i++ {
		_, err := env.hub.SendMessage(context.Background(), g.ID, alice.ID, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	page := func(n, limit int) []string {
		resp := env.do(http.MethodGet, fmt.Sprintf("%s?page=%d&limit=%d", messagesPath(g.ID), n, limit), alice.Token, nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		var out []string
		for _, m := range decode[messagesBody](t, resp).Messages {
			out = append(out, m.Message)
		}
		return out
	}

	require.Equal(t, []string{"m5", "m6", "m7"}, page(1, 3))
	require.Equal(t, []string{"m2", "m3", "m4"}, page(2, 3))
	require.Equal(t, []string{"m1"}, page(3, 3))
	require.Empty(t, page(4, 3))

	// defaults apply when omitted
	resp := env.do(http.MethodGet, messagesPath(g.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, decode[messagesBody](t, resp).Messages, 7)

	for _, q := range []string{"page=0", "page=-1", "page=abc", "limit=0", "limit=x", "limit=101", "page=9223372036854775807&limit=50"} {
		resp := env.do(http.MethodGet, messagesPath(g.ID)+"?"+q, alice.Token, nil)
		require.Equal(t, http.StatusBadRequest, resp.Code, q)
		require.Equal(t, core.ErrCodeInvalidPage, decode[ErrorResponse](t, resp).Code, q)
	}
}

func TestMessagesRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	g := env.groupWith(alice)

	resp := env.do(http.MethodGet, messagesPath(g.ID), "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(http.MethodGet, messagesPath(g.ID), "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(http.MethodGet, messagesPath(999), alice.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
