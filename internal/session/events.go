package session

import "github.com/rocketscienceinc/tictactoe-rooms-backend/internal/entity"

const (
	EventPlayerJoined = "player_joined"
	EventGameUpdate   = "game_update"
	EventGameReset    = "game_reset"
	EventOpponentLeft = "opponent_left"
	EventError        = "error"
)

// Event is a server-to-client frame. The zero fields are omitted, so the
// wire shape depends only on the event type.
type Event struct {
	Type      string            `json:"type"`
	Player    *entity.Player    `json:"player,omitempty"`
	GameState *entity.GameState `json:"game_state,omitempty"`
	Message   string            `json:"message,omitempty"`
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}
