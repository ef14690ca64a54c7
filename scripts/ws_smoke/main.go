package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/squadchat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", os.Getenv("SQUADCHAT_TOKEN"), "bearer token (defaults to $SQUADCHAT_TOKEN)")
	group := flag.Int64("group", 0, "group id to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" || *group <= 0 {
		return fmt.Errorf("both -token and -group are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + *token}},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeJoinGroup, *group); err != nil {
		return err
	}
	if err := send(ctx, conn, proto.InboundTypeSendMessage, map[string]any{
		"groupId": *group,
		"message": *text,
	}); err != nil {
		return err
	}

	for {
		var out struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch out.Type {
		case proto.OutboundTypeError:
			var e proto.ErrorData
			_ = json.Unmarshal(out.Data, &e)
			return fmt.Errorf("server error %s: %s", e.Code, e.Message)
		case proto.OutboundTypeNewMessage:
			var msg proto.MessageData
			if err := json.Unmarshal(out.Data, &msg); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			log.Printf("received id=%d group=%d user=%s: %s", msg.ID, msg.GroupID, msg.Username, msg.Message)
			if msg.Message == *text {
				log.Printf("smoke ok")
				return nil
			}
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Envelope{Type: typ, Data: raw}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}
