package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/squadchat/internal/auth"
	"github.com/vovakirdan/squadchat/internal/core"
	"github.com/vovakirdan/squadchat/internal/metrics"
	"github.com/vovakirdan/squadchat/internal/proto"
	"github.com/vovakirdan/squadchat/internal/utils"
)

const writeTimeout = 10 * time.Second

var (
	errSlowConsumer = errors.New("slow consumer")
	errClientClosed = errors.New("client closed by hub")
)

// WSOptions tunes the live channel.
type WSOptions struct {
	OriginPatterns    []string
	MaxMessageBytes   int64
	ClientBuffer      int
	MessagesPerMinute int
	Location          *time.Location
}

// WSHandler authenticates, upgrades and bridges a WebSocket to a core.Client.
type WSHandler struct {
	hub   *core.Hub
	authn auth.Authenticator
	opts  WSOptions
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authn auth.Authenticator, opts WSOptions, logger *zerolog.Logger) *WSHandler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &WSHandler{hub: hub, authn: authn, opts: opts, log: logger}
}

// wsCredential returns the bearer header token, falling back to the token query parameter.
func wsCredential(r *stdhttp.Request) string {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return r.URL.Query().Get("token")
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id, err := h.authn.Verify(wsCredential(r))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws authentication failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stdhttp.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "authentication required", Code: core.ErrCodeUnauthorized})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", id.UserID).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), id.UserID, id.Username, h.opts.ClientBuffer)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	logger := h.log.With().Str("conn_id", client.ID).Int64("user_id", id.UserID).Logger()
	logger.Debug().Msg("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel()
	<-errCh

	status, reason := closeStatus(err)
	if status == websocket.StatusInternalError || status == websocket.StatusPolicyViolation {
		logger.Warn().Err(err).Msg("ws connection closed with error")
	} else {
		logger.Debug().Msg("ws disconnected")
	}
	_ = conn.Close(status, reason)
}

// closeStatus picks the close frame for the error that ended a connection.
func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errSlowConsumer):
		return websocket.StatusPolicyViolation, "slow consumer"
	case errors.Is(err, errClientClosed):
		return websocket.StatusGoingAway, "server closing connection"
	}

	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return s, "closing"
	case websocket.StatusMessageTooBig:
		return s, "message too big"
	}
	return websocket.StatusInternalError, "internal error"
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newConnRateLimiter(h.opts.MessagesPerMinute)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var env proto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			if werr := h.writeError(ctx, conn, core.ErrCodeInvalidMessage, "malformed message"); werr != nil {
				return werr
			}
			continue
		}

		cmd, protoErr := inboundToCommand(env)
		if protoErr != nil {
			logger.Debug().Str("type", env.Type).Str("code", protoErr.Code).Msg("rejected inbound")
			if err := h.writeError(ctx, conn, protoErr.Code, protoErr.Message); err != nil {
				return err
			}
			continue
		}

		if cmd.Kind == core.CommandSendMessage && !limiter.allow() {
			metrics.RateLimitHits.WithLabelValues("ws").Inc()
			if err := h.writeError(ctx, conn, core.ErrCodeRateLimited, "too many messages, slow down"); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return closedReason(client)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := h.write(ctx, conn, outboundFromEvent(event, h.opts.Location)); err != nil {
				return err
			}
		case <-client.Done():
			return closedReason(client)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func closedReason(client *core.Client) error {
	if client.Slow() {
		return errSlowConsumer
	}
	return errClientClosed
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, code, message string) error {
	return h.write(ctx, conn, errorOutbound(code, message))
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
