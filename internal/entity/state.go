package entity

import "time"

// GameState is the wire projection of a room's authoritative state. It is
// recomputed after every mutation and never stored on its own.
type GameState struct {
	Board         Board   `json:"board"`
	CurrentPlayer string  `json:"current_player"`
	GameOver      bool    `json:"game_over"`
	Winner        *string `json:"winner"`
	IsDraw        bool    `json:"is_draw"`
}

// MatchRecord describes a finished match, written to the archive when a
// room reaches the finished state.
type MatchRecord struct {
	RoomID     string    `json:"room_id"`
	Winner     string    `json:"winner,omitempty"`
	IsDraw     bool      `json:"is_draw"`
	Abandoned  bool      `json:"abandoned"`
	Moves      int       `json:"moves"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
