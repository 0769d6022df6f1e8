package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMessage はクライアントから届く操作です
// {"type": "open"|"flag"|"bot", "x": 1, "y": 1}
type clientMessage struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wsClient は書き込みを直列化します
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsClient) send(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, b)
}

func (w *wsClient) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.send(b)
}

// HandleStream は盤面の更新を websocket で配信し、操作も受け付けます
func (s *Server) HandleStream(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.log.WithField("session", session.ID)
	log.Debug("websocket connected")
	defer log.Debug("websocket disconnected")

	client := &wsClient{conn: conn}
	updates, cancel := session.Subscribe()
	defer cancel()

	if err := client.sendJSON(stateMessage{Type: "state", Game: session.View()}); err != nil {
		return
	}

	go func() {
		for b := range updates {
			if err := client.send(b); err != nil {
				return
			}
		}
		// セッションが閉じられたら接続も閉じる
		conn.Close()
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := applyMessage(session, msg); err != nil {
			log.WithFields(logrus.Fields{"type": msg.Type, "x": msg.X, "y": msg.Y}).WithError(err).Debug("move rejected")
			if client.sendJSON(errorMessage{Type: "error", Message: err.Error()}) != nil {
				return
			}
		}
	}
}

func applyMessage(session *Session, msg clientMessage) error {
	var err error
	switch msg.Type {
	case "open":
		_, err = session.Open(msg.X, msg.Y)
	case "flag":
		_, err = session.ToggleFlag(msg.X, msg.Y)
	case "bot":
		_, _, err = session.BotStep()
	default:
		err = errors.Errorf("unknown message type %q", msg.Type)
	}
	return err
}
