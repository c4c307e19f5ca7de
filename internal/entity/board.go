package entity

const (
	PlayerX   = "X"
	PlayerO   = "O"
	EmptyCell = "-"
)

const (
	StatusWaiting    = "waiting"
	StatusReady      = "ready"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

// Board is a 3x3 grid of cells, each holding PlayerX, PlayerO or EmptyCell.
// The array value semantics make it cheap to copy for search.
type Board [3][3]string

var winLines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

func NewBoard() Board {
	var board Board
	for row := range board {
		for col := range board[row] {
			board[row][col] = EmptyCell
		}
	}
	return board
}

// Winner returns the mark holding a completed line, or EmptyCell when no
// line is complete. The alternating-turn rule guarantees at most one winner.
func (that Board) Winner() string {
	for _, line := range winLines {
		a := that[line[0][0]][line[0][1]]
		b := that[line[1][0]][line[1][1]]
		c := that[line[2][0]][line[2][1]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	return EmptyCell
}

func (that Board) IsFull() bool {
	for _, row := range that {
		for _, cell := range row {
			if cell == EmptyCell {
				return false
			}
		}
	}

	return true
}

// Evaluate reports the result of the board: the winning mark if a line is
// complete, otherwise whether the board is drawn. winner == EmptyCell and
// draw == false means the game is still ongoing.
func (that Board) Evaluate() (winner string, draw bool) {
	if w := that.Winner(); w != EmptyCell {
		return w, false
	}

	return EmptyCell, that.IsFull()
}

// ToggleMark returns the opposing mark.
func ToggleMark(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
