package realtime

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// clientMessage ist eine Steuer-Nachricht vom Client
type clientMessage struct {
	Type  string `json:"type"` // join, leave
	Topic string `json:"topic"`
}

// ackMessage bestätigt join/leave oder meldet einen Fehler
type ackMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Error string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS übernimmt die Verbindung eines authentifizierten Nutzers
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️  WebSocket-Upgrade fehlgeschlagen: %v", err)
		return
	}

	sub := h.Subscribe(userID, 64)
	acks := make(chan ackMessage, 8)
	done := make(chan struct{})

	go writePump(conn, sub, acks, done)
	readPump(conn, sub, acks)

	sub.Close()
	close(done)
}

func readPump(conn *websocket.Conn, sub *Subscription, acks chan<- ackMessage) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️  WebSocket %s: %v", sub.UserID(), err)
			}
			return
		}

		ack := ackMessage{Type: msg.Type, Topic: msg.Topic}
		switch msg.Type {
		case "join":
			if err := sub.Join(msg.Topic); err != nil {
				ack.Type, ack.Error = "error", err.Error()
			}
		case "leave":
			sub.Leave(msg.Topic)
		default:
			ack.Type, ack.Error = "error", "unbekannter typ: "+msg.Type
		}

		select {
		case acks <- ack:
		default:
		}
	}
}

func writePump(conn *websocket.Conn, sub *Subscription, acks <-chan ackMessage, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-sub.C():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case ack := <-acks:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ack); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
