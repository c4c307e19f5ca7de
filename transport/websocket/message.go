package websocket

const (
	actionJoinRoom  = "join_room"
	actionMakeMove  = "make_move"
	actionResetGame = "reset_game"
)

// clientFrame is the union of all client-to-server frames; the type field
// selects which of the remaining fields matter.
type clientFrame struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name,omitempty"`
	Row        *int   `json:"row,omitempty"`
	Col        *int   `json:"col,omitempty"`
}
