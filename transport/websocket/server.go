package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxFrameSize = 512
)

type roomRegistry interface {
	GetRoom(id string) (*session.Room, error)
}

// Gateway binds WebSocket connections to rooms: one read loop per
// connection translating frames into room commands, one write pump
// relaying room events back out.
type Gateway struct {
	logger   *slog.Logger
	rooms    roomRegistry
	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, rooms roomRegistry) *Gateway {
	return &Gateway{
		logger: logger.With("component", "gateway"),
		rooms:  rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

func (that *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ws/{room_id}", that.handleConnection)
}

func (that *Gateway) handleConnection(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleConnection")

	roomID := r.PathValue("room_id")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	room, err := that.rooms.GetRoom(roomID)
	if err != nil {
		that.refuse(conn, "room not found: "+roomID)
		return
	}

	member, err := room.Attach()
	if err != nil {
		that.refuse(conn, "room is closed: "+roomID)
		return
	}

	log.Info("connection established", "roomID", room.ID())

	go that.writePump(conn, member)
	that.readLoop(conn, room, member)
}

// refuse is used before a member exists; at that point no write pump is
// running, so writing directly to the connection is safe.
func (that *Gateway) refuse(conn *websocket.Conn, message string) {
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(session.Event{Type: session.EventError, Message: message})
}

// readLoop consumes client frames until the connection drops, then
// synthesizes a leave for the member.
func (that *Gateway) readLoop(conn *websocket.Conn, room *session.Room, member *session.Member) {
	defer func() {
		room.Detach(member)
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		that.dispatch(room, member, data)
	}
}

// dispatch turns one inbound frame into a room command. Malformed frames
// only produce an error back to the sender; room state is untouched.
func (that *Gateway) dispatch(room *session.Room, member *session.Member, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		room.SendError(member, "malformed message")
		return
	}

	switch frame.Type {
	case actionJoinRoom:
		room.Join(member, frame.PlayerName)
	case actionMakeMove:
		if frame.Row == nil || frame.Col == nil {
			room.SendError(member, "make_move requires row and col")
			return
		}
		room.Move(member, *frame.Row, *frame.Col)
	case actionResetGame:
		room.Reset(member)
	default:
		room.SendError(member, "unknown message type: "+frame.Type)
	}
}

// writePump relays room events to the connection and keeps it alive with
// pings. It owns all writes, so no room work ever blocks on network I/O.
func (that *Gateway) writePump(conn *websocket.Conn, member *session.Member) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-member.Events():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
