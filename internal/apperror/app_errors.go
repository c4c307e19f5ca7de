package apperror

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomClosed   = errors.New("room is closed")

	ErrGameIsNotStarted = errors.New("game is not started")
	ErrGameFinished     = errors.New("game is already finished")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrNotInGame        = errors.New("you are not a player in this game")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("cell is out of range")
	ErrAlreadyJoined    = errors.New("player already joined")

	ErrNoLegalMove       = errors.New("no legal move available")
	ErrInvalidDifficulty = errors.New("unknown difficulty")
	ErrInvalidBoard      = errors.New("invalid board")
)
