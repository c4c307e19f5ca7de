package websocket

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/registry"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/session"
)

const readWait = 2 * time.Second

type testEnv struct {
	server *httptest.Server
	rooms  *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	rooms := registry.New(logger, nil)

	mux := http.NewServeMux()
	New(logger, rooms).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{server: server, rooms: rooms}
}

func (that *testEnv) dial(t *testing.T, roomID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(that.server.URL, "http") + "/api/ws/" + roomID

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() { conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) session.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readWait)))

	var event session.Event
	require.NoError(t, conn.ReadJSON(&event))

	return event
}

func readEventOfType(t *testing.T, conn *websocket.Conn, eventType string) session.Event {
	t.Helper()

	for {
		event := readEvent(t, conn)
		if event.Type == eventType {
			return event
		}
	}
}

// readJoinOf waits for the player_joined frame announcing the given player,
// skipping join frames of other members.
func readJoinOf(t *testing.T, conn *websocket.Conn, name string) session.Event {
	t.Helper()

	for {
		event := readEventOfType(t, conn, session.EventPlayerJoined)
		if event.Player != nil && event.Player.Name == name {
			return event
		}
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(readWait)))
	require.NoError(t, conn.WriteJSON(frame))
}

func TestGateway_UnknownRoom(t *testing.T) {
	env := newTestEnv(t)

	// When: connecting to a room id that was never created
	conn := env.dial(t, "NOSUCH")

	// Then: the connection is refused with an error frame
	event := readEvent(t, conn)
	assert.Equal(t, session.EventError, event.Type)
	assert.Contains(t, event.Message, "not found")
}

func TestGateway_JoinAndMove(t *testing.T) {
	env := newTestEnv(t)

	room, err := env.rooms.CreateRoom()
	require.NoError(t, err)

	// Given: Alice and Bob connected to the room
	alice := env.dial(t, room.ID())
	bob := env.dial(t, room.ID())

	// When: both join
	writeFrame(t, alice, map[string]any{"type": "join_room", "player_name": "Alice"})
	joined := readEventOfType(t, alice, session.EventPlayerJoined)

	// Then: Alice is X
	require.NotNil(t, joined.Player)
	assert.Equal(t, "Alice", joined.Player.Name)
	assert.Equal(t, entity.PlayerX, joined.Player.Mark)

	writeFrame(t, bob, map[string]any{"type": "join_room", "player_name": "Bob"})
	joined = readJoinOf(t, bob, "Bob")

	// And: Bob is O
	require.NotNil(t, joined.Player)
	assert.Equal(t, entity.PlayerO, joined.Player.Mark)

	// When: Alice plays (0,0)
	writeFrame(t, alice, map[string]any{"type": "make_move", "row": 0, "col": 0})

	// Then: both clients see the move with the turn passed to O
	for _, conn := range []*websocket.Conn{alice, bob} {
		update := readEventOfType(t, conn, session.EventGameUpdate)
		for update.GameState.Board[0][0] == entity.EmptyCell {
			update = readEventOfType(t, conn, session.EventGameUpdate)
		}

		assert.Equal(t, entity.PlayerX, update.GameState.Board[0][0])
		assert.Equal(t, entity.PlayerO, update.GameState.CurrentPlayer)
		assert.False(t, update.GameState.GameOver)
	}
}

func TestGateway_MalformedFrames(t *testing.T) {
	env := newTestEnv(t)

	room, err := env.rooms.CreateRoom()
	require.NoError(t, err)

	conn := env.dial(t, room.ID())

	t.Run("Unknown frame type produces an error frame only", func(t *testing.T) {
		// When: sending a frame with an unsupported type
		writeFrame(t, conn, map[string]any{"type": "dance"})

		// Then: the sender gets an error frame
		event := readEventOfType(t, conn, session.EventError)
		assert.Contains(t, event.Message, "unknown message type")
	})

	t.Run("Invalid JSON produces an error frame and keeps the connection", func(t *testing.T) {
		// When: sending a text frame that is not JSON
		require.NoError(t, conn.SetWriteDeadline(time.Now().Add(readWait)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))

		// Then: the sender gets an error frame
		event := readEventOfType(t, conn, session.EventError)
		assert.Contains(t, event.Message, "malformed")

		// And: the connection still works afterwards
		writeFrame(t, conn, map[string]any{"type": "join_room", "player_name": "Alice"})
		joined := readEventOfType(t, conn, session.EventPlayerJoined)
		assert.Equal(t, "Alice", joined.Player.Name)
	})

	t.Run("Move without coordinates is rejected", func(t *testing.T) {
		// When: sending make_move without row/col
		writeFrame(t, conn, map[string]any{"type": "make_move"})

		// Then: the sender gets an error frame
		event := readEventOfType(t, conn, session.EventError)
		assert.Contains(t, event.Message, "row and col")
	})
}

func TestGateway_DisconnectSynthesizesLeave(t *testing.T) {
	env := newTestEnv(t)

	room, err := env.rooms.CreateRoom()
	require.NoError(t, err)

	// Given: a started game over two connections
	alice := env.dial(t, room.ID())
	bob := env.dial(t, room.ID())

	writeFrame(t, alice, map[string]any{"type": "join_room", "player_name": "Alice"})
	readJoinOf(t, alice, "Alice")
	writeFrame(t, bob, map[string]any{"type": "join_room", "player_name": "Bob"})
	readJoinOf(t, bob, "Bob")

	// When: Alice's connection drops mid-game
	alice.Close()

	// Then: Bob receives the abandonment signal, not a win or a draw
	event := readEventOfType(t, bob, session.EventOpponentLeft)
	require.NotNil(t, event.GameState)
	assert.True(t, event.GameState.GameOver)
	assert.Nil(t, event.GameState.Winner)
	assert.False(t, event.GameState.IsDraw)
}
