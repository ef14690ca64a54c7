package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/squadchat/internal/proto"
)

type outbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", os.Getenv("SQUADCHAT_TOKEN"), "bearer token (defaults to $SQUADCHAT_TOKEN)")
	group := flag.Int64("group", 0, "group id to chat in")
	flag.Parse()

	if *token == "" || *group <= 0 {
		return errors.New("both -token and -group are required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
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

	fmt.Printf("Connected to %s in group %d\n", *addr, *group)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *group)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
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

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch out.Type {
		case proto.OutboundTypeNewMessage:
			var msg proto.MessageData
			if err := json.Unmarshal(out.Data, &msg); err != nil {
				log.Printf("unmarshal new-message: %v", err)
				continue
			}
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp, msg.Username, msg.Message)
		case proto.OutboundTypeError:
			var e proto.ErrorData
			if err := json.Unmarshal(out.Data, &e); err != nil {
				log.Printf("unmarshal error: %v", err)
				continue
			}
			fmt.Printf("! %s: %s\n", e.Code, e.Message)
		default:
			fmt.Printf("type=%s data=%s\n", out.Type, out.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, group int64) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := send(ctx, conn, proto.InboundTypeSendMessage, map[string]any{
				"groupId": group,
				"message": text,
			}); err != nil {
				log.Printf("%v", err)
				return
			}
		}
	}
}
