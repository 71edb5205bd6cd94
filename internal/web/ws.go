package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/1ureka/janken/internal/app"
	"github.com/1ureka/janken/internal/rules"
	"github.com/1ureka/janken/internal/util"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// The page is only ever served to the local browser.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// command is sent by the page.
type command struct {
	Action string `json:"action"` // "select" or "newGame"
	Hand   string `json:"hand,omitempty"`
}

// reply reports a rejected command back to the page.
type reply struct {
	Error string `json:"error"`
}

// serveWS streams room snapshots to the page and applies its commands.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogDebug("websocket upgrade failed: %v", err)
		return
	}

	updates, cancel := s.room.Subscribe()
	replies := make(chan reply, 4)

	go s.writePump(conn, updates, replies)
	s.readPump(conn, replies)

	cancel()
}

func (s *Server) readPump(conn *websocket.Conn, replies chan<- reply) {
	defer conn.Close()

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				util.LogDebug("websocket closed: %v", err)
			}
			return
		}

		if err := s.apply(cmd); err != nil {
			select {
			case replies <- reply{Error: err.Error()}:
			default:
			}
		}
	}
}

func (s *Server) apply(cmd command) error {
	switch cmd.Action {
	case "select":
		hand, err := rules.ParseHand(cmd.Hand)
		if err != nil {
			return err
		}
		return s.room.Select(hand)
	case "newGame":
		return s.room.StartNewGame()
	default:
		return errors.New("unknown action " + cmd.Action)
	}
}

// writePump is the only writer on conn. It ends when the subscription is
// cancelled or a write fails.
func (s *Server) writePump(conn *websocket.Conn, updates <-chan app.Snapshot, replies <-chan reply) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		var msg any
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			msg = snap
		case rep := <-replies:
			msg = rep
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
