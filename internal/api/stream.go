package api

import (
	"net/http"
	"time"

	"mentalgoals/internal/model"
	"mentalgoals/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// StreamActiveChallenge pushes the owner's active challenge once on connect
// and again on every change. A nil challenge means none is active.
func (r *challengeRoutes) StreamActiveChallenge(c *gin.Context) {
	log := logger.Logger()

	owner, ok := ownerOf(c)
	if !ok {
		return
	}

	// Only the latest state matters, so a slow reader sees intermediate
	// updates collapsed.
	updates := make(chan *model.Challenge, 1)
	unsubscribe := r.cs.SubscribeActive(owner, func(ch *model.Challenge) {
		for {
			select {
			case updates <- ch:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	// Loaded after subscribing so no change between the two is missed.
	current, err := r.cs.ActiveChallenge(c.Request.Context(), owner)
	if err != nil {
		respondError(c, "failed to get active challenge", err, zap.String("owner", owner))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Info("websocket unexpected close", zap.String("owner", owner), zap.Error(err))
				}
				return
			}
		}
	}()

	if err := sendActive(conn, current); err != nil {
		log.Error("failed to send active challenge", zap.String("owner", owner), zap.Error(err))
		return
	}

	for {
		select {
		case <-closed:
			return
		case ch := <-updates:
			if err := sendActive(conn, ch); err != nil {
				log.Error("failed to send active challenge", zap.String("owner", owner), zap.Error(err))
				return
			}
		}
	}
}

func sendActive(conn *websocket.Conn, c *model.Challenge) error {
	data, err := json.Marshal(Message{
		Type: "active_challenge",
		Payload: map[string]any{
			"challenge": c,
		},
	})
	if err != nil {
		return err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
