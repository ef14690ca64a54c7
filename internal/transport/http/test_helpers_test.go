package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/squadchat/internal/auth"
	"github.com/vovakirdan/squadchat/internal/config"
	"github.com/vovakirdan/squadchat/internal/core"
	"github.com/vovakirdan/squadchat/internal/proto"
	"github.com/vovakirdan/squadchat/internal/service/groups"
	"github.com/vovakirdan/squadchat/internal/store"
	"github.com/vovakirdan/squadchat/internal/store/sqlite"
)

type testEnv struct {
	t       *testing.T
	store   store.Store
	auth    *auth.Service
	hub     *core.Hub
	groups  *groups.Service
	handler http.Handler
	ts      *httptest.Server
}

type testUser struct {
	ID    int64
	Token string
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	cfg.AllowedOrigins = nil
	cfg.HTTPRateLimit = 0
	cfg.MaxPageSize = 100
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})
	authority := core.NewAuthority(st)
	msgLog := core.NewMessageLog(st, authority, core.LogConfig{
		MaxMessageLength: cfg.MaxMessageLength,
		MaxPageSize:      cfg.MaxPageSize,
	})
	hub := core.NewHub(msgLog, authority, &disabledLogger)
	groupService := groups.New(st, hub, &disabledLogger)

	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	server, err := NewServer(Deps{
		Hub:     hub,
		History: core.NewHistory(msgLog, authority),
		Auth:    authService,
		Groups:  groupService,
		Users:   st,
	}, &cfg, &disabledLogger)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-hubDone
	})

	return &testEnv{
		t:       t,
		store:   st,
		auth:    authService,
		hub:     hub,
		groups:  groupService,
		handler: server.Handler,
		ts:      ts,
	}
}

func (e *testEnv) register(name string) testUser {
	e.t.Helper()

	token, user, err := e.auth.Register(context.Background(), name, "password123")
	require.NoError(e.t, err)
	return testUser{ID: user.ID, Token: token}
}

// groupWith creates a group owned by owner and joins the other users to it.
func (e *testEnv) groupWith(owner testUser, others ...testUser) *store.Group {
	e.t.Helper()

	g, err := e.groups.Create(context.Background(), owner.ID, "squad", "", false)
	require.NoError(e.t, err)
	for _, u := range others {
		_, err := e.groups.Join(context.Background(), u.ID, g.Code)
		require.NoError(e.t, err)
	}
	return g
}

// do runs a request against the router. body may be nil, a string or any JSON-marshalable value.
func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &v), resp.Body.String())
	return v
}

func (e *testEnv) dial(ctx context.Context, token string) *websocket.Conn {
	e.t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// waitRoomSize waits until groupID's room has n subscribed connections.
func (e *testEnv) waitRoomSize(groupID int64, n int) {
	e.t.Helper()

	require.Eventually(e.t, func() bool {
		return len(e.hub.Router().MembersOf(groupID)) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func sendEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(proto.Envelope{Type: typ, Data: raw})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))
}

type rawOutbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) rawOutbound {
	t.Helper()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var out rawOutbound
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// expectSilence fails if conn receives anything within d.
// The read deadline closes conn, so call it last on a connection.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.Error(t, err, "unexpected frame: %s", data)
}
