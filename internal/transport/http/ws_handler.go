package http

import (
	"encoding/json"
	"log"
	"net/http"

	"live-quiz-service/internal/app"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	session  *app.Session
	upgrader websocket.Upgrader
}

func NewWSHandler(session *app.Session) *WSHandler {
	return &WSHandler{
		session: session,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

type answerPayload struct {
	Index  int `json:"index"`
	Choice int `json:"choice"`
}

type joinedPayload struct {
	ID string `json:"id"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the live
// session. Every connection gets a fresh identifier; the first join message
// fixes its role. Malformed or unexpected messages are absorbed silently.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var cancel func()
	var pumpDone chan struct{}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "join":
			if cancel != nil {
				continue // already joined
			}
			var payload joinPayload
			_ = json.Unmarshal(inbound.Payload, &payload)
			switch app.ParseRole(payload.Role) {
			case app.RoleHost:
				snapshot, updates, cancelFn := h.session.JoinHost(connID)
				cancel = cancelFn
				send <- outboundMessage[any]{Type: "state", Payload: snapshot}
				pumpDone = forward("state", updates, send, closeSignals)
			default:
				welcome, updates, cancelFn := h.session.JoinPlayer(connID, payload.Name)
				cancel = cancelFn
				send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{ID: connID}}
				send <- outboundMessage[any]{Type: "question", Payload: welcome}
				pumpDone = forward("question", updates, send, closeSignals)
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				continue
			}
			h.session.Submit(connID, payload.Index, payload.Choice)
		case "next":
			h.session.Advance()
		case "prev":
			h.session.Retreat()
		default:
			// absorb unknown message types
		}
	}

	close(closeSignals)
	if cancel != nil {
		cancel()
	}
	if pumpDone != nil {
		<-pumpDone
	}
	close(send)
	<-writerDone
}

// forward relays session updates onto the connection's send queue until the
// updates channel closes or the connection shuts down.
func forward[T any](typ string, updates <-chan T, send chan<- outboundMessage[any], closeSignals <-chan struct{}) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: typ, Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()
	return done
}
