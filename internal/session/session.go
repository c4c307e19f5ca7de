package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/entity"
)

const (
	commandBuffer = 32
	eventBuffer   = 16

	archiveTimeout = 5 * time.Second
)

// Recorder archives finished matches. Implementations must be safe for
// concurrent use; a nil Recorder disables archiving.
type Recorder interface {
	Save(ctx context.Context, record *entity.MatchRecord) error
}

// Member is one connected client of a room. Events published by the room
// loop are delivered through a buffered channel; a member that cannot keep
// up is dropped rather than allowed to stall the room.
type Member struct {
	events chan Event
	once   sync.Once

	// player is owned by the room loop; nil until the member joins.
	player *entity.Player
}

// Events returns the stream of room events for this member. The channel is
// closed when the member is dropped or the room shuts down.
func (that *Member) Events() <-chan Event {
	return that.events
}

func (that *Member) close() {
	that.once.Do(func() {
		close(that.events)
	})
}

// Info is a synchronous snapshot of a room, served by the room loop.
type Info struct {
	RoomID    string            `json:"room_id"`
	Status    string            `json:"status"`
	Players   []*entity.Player  `json:"players"`
	GameState *entity.GameState `json:"game_state"`

	Members   int       `json:"-"`
	CreatedAt time.Time `json:"-"`
}

type commandKind int

const (
	cmdAttach commandKind = iota
	cmdDetach
	cmdJoin
	cmdMove
	cmdReset
	cmdSnapshot
	cmdErrorTo
)

type command struct {
	kind   commandKind
	member *Member

	name     string // join
	row, col int    // move
	message  string // errorTo

	attachReply   chan *Member
	snapshotReply chan Info
}

// Room is the authoritative state machine for one match. All commands are
// processed by a single goroutine in arrival order, so two near-simultaneous
// moves, or a move racing a disconnect, never interleave.
type Room struct {
	id        string
	logger    *slog.Logger
	recorder  Recorder
	onEmpty   func(roomID string)
	createdAt time.Time

	commands chan command
	done     chan struct{}
	closing  sync.Once

	// Everything below is owned by the run loop.
	status    string
	board     entity.Board
	turn      string
	winner    string
	draw      bool
	abandoned bool
	moves     int
	startedAt time.Time

	players    []*entity.Player
	members    map[*Member]struct{}
	hadMembers bool
}

// NewRoom creates a room in the waiting state and starts its command loop.
// onEmpty is called once, from the loop, when the last member disconnects.
func NewRoom(logger *slog.Logger, id string, recorder Recorder, onEmpty func(roomID string)) *Room {
	room := &Room{
		id:        id,
		logger:    logger.With("component", "room", "roomID", id),
		recorder:  recorder,
		onEmpty:   onEmpty,
		createdAt: time.Now(),

		commands: make(chan command, commandBuffer),
		done:     make(chan struct{}),

		status:  entity.StatusWaiting,
		board:   entity.NewBoard(),
		turn:    entity.PlayerX,
		members: make(map[*Member]struct{}),
	}

	go room.run()

	return room
}

func (that *Room) ID() string { return that.id }

func (that *Room) CreatedAt() time.Time { return that.createdAt }

// Shutdown stops the command loop and drops every member. Safe to call more
// than once and from any goroutine.
func (that *Room) Shutdown() {
	that.closing.Do(func() {
		close(that.done)
	})
}

// Attach registers a new connection with the room. The member must be
// detached when its connection closes.
func (that *Room) Attach() (*Member, error) {
	reply := make(chan *Member, 1)
	if !that.enqueue(command{kind: cmdAttach, attachReply: reply}) {
		return nil, apperror.ErrRoomClosed
	}

	select {
	case member := <-reply:
		return member, nil
	case <-that.done:
		return nil, apperror.ErrRoomClosed
	}
}

// Detach removes a connection. If the member had joined as a player this is
// a leave transition; the last member leaving destroys the room.
func (that *Room) Detach(member *Member) {
	that.enqueue(command{kind: cmdDetach, member: member})
}

func (that *Room) Join(member *Member, name string) {
	that.enqueue(command{kind: cmdJoin, member: member, name: name})
}

func (that *Room) Move(member *Member, row, col int) {
	that.enqueue(command{kind: cmdMove, member: member, row: row, col: col})
}

func (that *Room) Reset(member *Member) {
	that.enqueue(command{kind: cmdReset, member: member})
}

// SendError delivers an error event to a single member through the room
// loop, keeping all writes to the member channel serialized.
func (that *Room) SendError(member *Member, message string) {
	that.enqueue(command{kind: cmdErrorTo, member: member, message: message})
}

// Snapshot returns the room's current state. It is served in command order,
// so it reflects every move accepted before the call.
func (that *Room) Snapshot() (Info, error) {
	reply := make(chan Info, 1)
	if !that.enqueue(command{kind: cmdSnapshot, snapshotReply: reply}) {
		return Info{}, apperror.ErrRoomClosed
	}

	select {
	case info := <-reply:
		return info, nil
	case <-that.done:
		return Info{}, apperror.ErrRoomClosed
	}
}

func (that *Room) enqueue(cmd command) bool {
	select {
	case that.commands <- cmd:
		return true
	case <-that.done:
		return false
	}
}

func (that *Room) run() {
	defer func() {
		for member := range that.members {
			member.close()
		}
	}()

	for {
		select {
		case cmd := <-that.commands:
			that.handle(cmd)
		case <-that.done:
			return
		}
	}
}

func (that *Room) handle(cmd command) {
	switch cmd.kind {
	case cmdAttach:
		member := &Member{events: make(chan Event, eventBuffer)}
		that.members[member] = struct{}{}
		that.hadMembers = true
		cmd.attachReply <- member
	case cmdDetach:
		that.detach(cmd.member)
	case cmdJoin:
		that.join(cmd.member, cmd.name)
	case cmdMove:
		that.move(cmd.member, cmd.row, cmd.col)
	case cmdReset:
		that.reset(cmd.member)
	case cmdSnapshot:
		cmd.snapshotReply <- that.info()
	case cmdErrorTo:
		that.sendTo(cmd.member, errorEvent(cmd.message))
	}
}

func (that *Room) join(member *Member, name string) {
	if _, ok := that.members[member]; !ok {
		return
	}

	if member.player != nil {
		that.sendTo(member, errorEvent(apperror.ErrAlreadyJoined.Error()))
		return
	}

	if len(that.players) >= 2 {
		that.sendTo(member, errorEvent(apperror.ErrRoomFull.Error()))
		return
	}

	player := &entity.Player{
		ID:   uuid.NewString(),
		Name: name,
		Mark: that.freeMark(),
	}

	member.player = player
	that.players = append(that.players, player)

	if len(that.players) == 2 {
		// Ready is transient: with both seats taken the game starts at once.
		that.status = entity.StatusReady
		that.startGame()
	}

	that.logger.Info("player joined", "player", player.Name, "mark", player.Mark, "status", that.status)

	that.broadcast(Event{Type: EventPlayerJoined, Player: player})
	that.broadcast(Event{Type: EventGameUpdate, GameState: that.snapshot()})
}

func (that *Room) move(member *Member, row, col int) {
	if _, ok := that.members[member]; !ok {
		return
	}

	if err := that.validateMove(member, row, col); err != nil {
		that.sendTo(member, errorEvent(err.Error()))
		return
	}

	that.board[row][col] = member.player.Mark
	that.moves++
	that.turn = entity.ToggleMark(that.turn)

	if winner, draw := that.board.Evaluate(); winner != entity.EmptyCell || draw {
		that.finish(winner, draw, false)
	}

	that.broadcast(Event{Type: EventGameUpdate, GameState: that.snapshot()})
}

func (that *Room) validateMove(member *Member, row, col int) error {
	if member.player == nil {
		return apperror.ErrNotInGame
	}

	switch that.status {
	case entity.StatusInProgress:
	case entity.StatusFinished:
		return apperror.ErrGameFinished
	default:
		return apperror.ErrGameIsNotStarted
	}

	if row < 0 || row > 2 || col < 0 || col > 2 {
		return apperror.ErrInvalidCell
	}

	if member.player.Mark != that.turn {
		return apperror.ErrNotYourTurn
	}

	if that.board[row][col] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	return nil
}

func (that *Room) reset(member *Member) {
	if _, ok := that.members[member]; !ok {
		return
	}

	if member.player == nil {
		that.sendTo(member, errorEvent(apperror.ErrNotInGame.Error()))
		return
	}

	if that.status != entity.StatusInProgress && that.status != entity.StatusFinished {
		that.sendTo(member, errorEvent(apperror.ErrGameIsNotStarted.Error()))
		return
	}

	if len(that.players) == 2 {
		that.startGame()
	} else {
		// The opponent is gone; wait for a new one on a clean board.
		that.clearGame()
		that.status = entity.StatusWaiting
	}

	that.logger.Info("game reset", "status", that.status)

	that.broadcast(Event{Type: EventGameReset, GameState: that.snapshot()})
}

func (that *Room) detach(member *Member) {
	if _, ok := that.members[member]; !ok {
		return
	}

	delete(that.members, member)
	member.close()

	if player := member.player; player != nil {
		that.removePlayer(player)

		if that.status == entity.StatusInProgress {
			// No winner is asserted: the game ends as abandoned and the
			// survivor gets an explicit signal the evaluator cannot express.
			that.finish(entity.EmptyCell, false, true)
			that.broadcast(Event{Type: EventOpponentLeft, GameState: that.snapshot()})
		}

		that.logger.Info("player left", "player", player.Name, "status", that.status)
	}

	if len(that.members) == 0 && that.hadMembers {
		that.logger.Info("room empty, shutting down")

		if that.onEmpty != nil {
			that.onEmpty(that.id)
		}

		that.Shutdown()
	}
}

func (that *Room) removePlayer(player *entity.Player) {
	for i, p := range that.players {
		if p == player {
			that.players = append(that.players[:i], that.players[i+1:]...)
			return
		}
	}
}

func (that *Room) freeMark() string {
	for _, player := range that.players {
		if player.Mark == entity.PlayerX {
			return entity.PlayerO
		}
	}
	return entity.PlayerX
}

func (that *Room) startGame() {
	that.clearGame()
	that.status = entity.StatusInProgress
	that.startedAt = time.Now()
}

func (that *Room) clearGame() {
	that.board = entity.NewBoard()
	that.turn = entity.PlayerX
	that.winner = ""
	that.draw = false
	that.abandoned = false
	that.moves = 0
}

func (that *Room) finish(winner string, draw, abandoned bool) {
	that.status = entity.StatusFinished
	that.draw = draw
	that.abandoned = abandoned
	if winner != entity.EmptyCell {
		that.winner = winner
	}

	that.archive()
}

// archive hands the finished match to the recorder off the command loop so
// a slow store never delays the next command.
func (that *Room) archive() {
	if that.recorder == nil {
		return
	}

	record := &entity.MatchRecord{
		RoomID:     that.id,
		Winner:     that.winner,
		IsDraw:     that.draw,
		Abandoned:  that.abandoned,
		Moves:      that.moves,
		StartedAt:  that.startedAt,
		FinishedAt: time.Now(),
	}

	logger := that.logger

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if err := that.recorder.Save(ctx, record); err != nil {
			logger.Error("failed to archive match", "error", err)
		}
	}()
}

func (that *Room) snapshot() *entity.GameState {
	state := &entity.GameState{
		Board:         that.board,
		CurrentPlayer: that.turn,
		GameOver:      that.status == entity.StatusFinished,
		IsDraw:        that.draw,
	}

	if that.winner != "" {
		winner := that.winner
		state.Winner = &winner
	}

	return state
}

func (that *Room) info() Info {
	players := make([]*entity.Player, len(that.players))
	copy(players, that.players)

	return Info{
		RoomID:    that.id,
		Status:    that.status,
		Players:   players,
		GameState: that.snapshot(),
		Members:   len(that.members),
		CreatedAt: that.createdAt,
	}
}

// broadcast delivers an event to every member best-effort. A member whose
// buffer is full is dropped so a stalled connection cannot block the room.
func (that *Room) broadcast(event Event) {
	var dropped []*Member

	for member := range that.members {
		select {
		case member.events <- event:
		default:
			dropped = append(dropped, member)
		}
	}

	for _, member := range dropped {
		that.logger.Warn("dropping slow member")
		that.detach(member)
	}
}

func (that *Room) sendTo(member *Member, event Event) {
	if _, ok := that.members[member]; !ok {
		return
	}

	select {
	case member.events <- event:
	default:
		that.logger.Warn("dropping slow member")
		that.detach(member)
	}
}
