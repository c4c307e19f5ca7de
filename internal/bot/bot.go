package bot

import (
	"math/rand"

	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/entity"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Stumble probabilities per difficulty: the chance of playing a uniformly
// random legal move instead of the optimal one.
const (
	mediumRandomChance = 0.20
	easyRandomChance   = 0.70
)

type Service interface {
	ChooseMove(board entity.Board, difficulty string) (row, col int, err error)
}

type service struct {
	chance     func() float64
	pickRandom func(n int) int
}

func New() Service {
	return &service{
		chance:     rand.Float64, //nolint: gosec // game moves need no crypto rand
		pickRandom: rand.Intn,    //nolint: gosec // same
	}
}

// ChooseMove picks a move for whichever mark is to play on the given board.
// X moves first, so equal mark counts mean X is to play.
func (that *service) ChooseMove(board entity.Board, difficulty string) (int, int, error) {
	if winner, draw := board.Evaluate(); winner != entity.EmptyCell || draw {
		return 0, 0, apperror.ErrNoLegalMove
	}

	moves := availableMoves(board)
	if len(moves) == 0 {
		return 0, 0, apperror.ErrNoLegalMove
	}

	var randomChance float64
	switch difficulty {
	case DifficultyHard:
		randomChance = 0
	case DifficultyMedium:
		randomChance = mediumRandomChance
	case DifficultyEasy:
		randomChance = easyRandomChance
	default:
		return 0, 0, apperror.ErrInvalidDifficulty
	}

	if randomChance > 0 && that.chance() < randomChance {
		move := moves[that.pickRandom(len(moves))]
		return move[0], move[1], nil
	}

	move := bestMove(board, markToPlay(board))
	return move[0], move[1], nil
}

func availableMoves(board entity.Board) [][2]int {
	moves := make([][2]int, 0, 9)
	for row := range board {
		for col := range board[row] {
			if board[row][col] == entity.EmptyCell {
				moves = append(moves, [2]int{row, col})
			}
		}
	}
	return moves
}

func markToPlay(board entity.Board) string {
	var xCount, oCount int
	for _, row := range board {
		for _, cell := range row {
			switch cell {
			case entity.PlayerX:
				xCount++
			case entity.PlayerO:
				oCount++
			}
		}
	}

	if xCount == oCount {
		return entity.PlayerX
	}
	return entity.PlayerO
}

const (
	scoreWin  = 10
	scoreLoss = -10
	infinity  = 1000
)

// bestMove runs a full-depth minimax for the given mark. Ties are broken
// deterministically: the first best-scoring move in row-major order wins.
func bestMove(board entity.Board, mark string) [2]int {
	bestScore := -infinity
	var best [2]int

	for _, move := range availableMoves(board) {
		next := board
		next[move[0]][move[1]] = mark

		score := minimax(next, entity.ToggleMark(mark), mark, 1, -infinity, infinity)
		if score > bestScore {
			bestScore = score
			best = move
		}
	}

	return best
}

// minimax scores a position for the given mark with alpha-beta pruning.
// A win at depth d scores scoreWin-d, a loss scoreLoss+d, a draw 0, which
// biases the search toward faster wins and slower losses.
func minimax(board entity.Board, turn, mark string, depth, alpha, beta int) int {
	switch winner, draw := board.Evaluate(); {
	case winner == mark:
		return scoreWin - depth
	case winner != entity.EmptyCell:
		return scoreLoss + depth
	case draw:
		return 0
	}

	maximizing := turn == mark

	best := infinity
	if maximizing {
		best = -infinity
	}

	for _, move := range availableMoves(board) {
		next := board
		next[move[0]][move[1]] = turn

		score := minimax(next, entity.ToggleMark(turn), mark, depth+1, alpha, beta)

		if maximizing {
			best = max(best, score)
			alpha = max(alpha, score)
		} else {
			best = min(best, score)
			beta = min(beta, score)
		}

		if beta <= alpha {
			break
		}
	}

	return best
}
