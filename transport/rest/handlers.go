package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/session"
)

const aiMoveTimeout = 2 * time.Second

type roomRegistry interface {
	CreateRoom() (*session.Room, error)
	GetRoom(id string) (*session.Room, error)
}

type botService interface {
	ChooseMove(board entity.Board, difficulty string) (row, col int, err error)
}

type Handlers struct {
	logger *slog.Logger
	rooms  roomRegistry
	bot    botService
}

func NewHandlers(logger *slog.Logger, rooms roomRegistry, bot botService) *Handlers {
	return &Handlers{
		logger: logger.With("component", "rest"),
		rooms:  rooms,
		bot:    bot,
	}
}

func (that *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", that.handleHealth)
	mux.HandleFunc("POST /api/create-room", that.handleCreateRoom)
	mux.HandleFunc("GET /api/room/{room_id}", that.handleGetRoom)
	mux.HandleFunc("POST /api/ai-move", that.handleAIMove)
}

func (that *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (that *Handlers) handleCreateRoom(w http.ResponseWriter, _ *http.Request) {
	log := that.logger.With("method", "handleCreateRoom")

	room, err := that.rooms.CreateRoom()
	if err != nil {
		log.Error("failed to create room", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"room_id": room.ID()})
}

func (that *Handlers) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleGetRoom")

	room, err := that.rooms.GetRoom(r.PathValue("room_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, apperror.ErrRoomNotFound.Error())
		return
	}

	info, err := room.Snapshot()
	if err != nil {
		// Shut down between lookup and snapshot.
		writeError(w, http.StatusNotFound, apperror.ErrRoomNotFound.Error())
		return
	}

	log.Debug("room snapshot served", "roomID", info.RoomID)

	writeJSON(w, http.StatusOK, info)
}

type aiMoveRequest struct {
	Board [][]string `json:"board"`
}

// handleAIMove computes a move for the single-player path. No room is
// involved: the board arrives in the request and the reply is one cell.
func (that *Handlers) handleAIMove(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleAIMove")

	difficulty := r.URL.Query().Get("difficulty")
	if difficulty == "" {
		difficulty = "hard"
	}

	var req aiMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperror.ErrInvalidBoard.Error())
		return
	}

	board, err := parseBoard(req.Board)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), aiMoveTimeout)
	defer cancel()

	row, col, err := that.chooseMove(ctx, board, difficulty)
	switch {
	case errors.Is(err, apperror.ErrInvalidDifficulty), errors.Is(err, apperror.ErrNoLegalMove):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "move computation timed out")
		return
	case err != nil:
		log.Error("failed to choose move", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to choose move")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"row": row, "col": col})
}

// chooseMove runs the search off the request goroutine so the caller blocks
// with a bounded timeout instead of indefinitely.
func (that *Handlers) chooseMove(ctx context.Context, board entity.Board, difficulty string) (int, int, error) {
	type result struct {
		row, col int
		err      error
	}

	resCh := make(chan result, 1)
	go func() {
		row, col, err := that.bot.ChooseMove(board, difficulty)
		resCh <- result{row: row, col: col, err: err}
	}()

	select {
	case res := <-resCh:
		return res.row, res.col, res.err
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

func parseBoard(cells [][]string) (entity.Board, error) {
	var board entity.Board

	if len(cells) != 3 {
		return board, apperror.ErrInvalidBoard
	}

	for row := range cells {
		if len(cells[row]) != 3 {
			return board, apperror.ErrInvalidBoard
		}

		for col, cell := range cells[row] {
			switch cell {
			case entity.EmptyCell, entity.PlayerX, entity.PlayerO:
				board[row][col] = cell
			default:
				return board, apperror.ErrInvalidBoard
			}
		}
	}

	return board, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
