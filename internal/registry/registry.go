package registry

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/session"
)

// Room codes skip I, L, O, 0 and 1 so they stay unambiguous when re-typed.
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 6

	maxCreateAttempts = 10
)

// ErrOutOfRoomIDs means the generator kept colliding with live rooms. This
// is a resource-exhaustion condition, not a client error.
var ErrOutOfRoomIDs = errors.New("could not allocate a unique room id")

// Registry is the concurrent store of live rooms. Lookups and creations
// only touch the map; they never block on room-internal work.
type Registry struct {
	logger   *slog.Logger
	recorder session.Recorder

	mu    sync.RWMutex
	rooms map[string]*session.Room
}

func New(logger *slog.Logger, recorder session.Recorder) *Registry {
	return &Registry{
		logger:   logger.With("component", "registry"),
		recorder: recorder,
		rooms:    make(map[string]*session.Room),
	}
}

// CreateRoom registers an empty waiting room under a fresh code. Codes are
// never reused while the room is live.
func (that *Registry) CreateRoom() (*session.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		id, err := generateRoomCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate room code: %w", err)
		}

		if _, exists := that.rooms[id]; exists {
			continue
		}

		room := session.NewRoom(that.logger, id, that.recorder, that.Remove)
		that.rooms[id] = room

		that.logger.Info("room created", "roomID", id)

		return room, nil
	}

	return nil, ErrOutOfRoomIDs
}

// GetRoom looks up a live room. Ids are case-normalized, so codes may be
// re-typed in any case.
func (that *Registry) GetRoom(id string) (*session.Room, error) {
	id = strings.ToUpper(id)

	that.mu.RLock()
	room, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return room, nil
}

// Remove drops a room from the registry. The room itself calls this when
// its last member disconnects.
func (that *Registry) Remove(id string) {
	that.mu.Lock()
	delete(that.rooms, strings.ToUpper(id))
	that.mu.Unlock()

	that.logger.Info("room removed", "roomID", id)
}

func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}

// RunJanitor evicts rooms that were created over HTTP but never joined.
// Rooms with members clean themselves up on last disconnect.
func (that *Registry) RunJanitor(done <-chan struct{}, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			that.evictIdle(maxIdle)
		case <-done:
			return
		}
	}
}

func (that *Registry) evictIdle(maxIdle time.Duration) {
	that.mu.RLock()
	rooms := make([]*session.Room, 0, len(that.rooms))
	for _, room := range that.rooms {
		rooms = append(rooms, room)
	}
	that.mu.RUnlock()

	for _, room := range rooms {
		if time.Since(room.CreatedAt()) < maxIdle {
			continue
		}

		info, err := room.Snapshot()
		if err != nil {
			// Already shut down; make sure it is unregistered.
			that.Remove(room.ID())
			continue
		}

		if info.Status == entity.StatusWaiting && info.Members == 0 {
			that.logger.Info("evicting idle room", "roomID", room.ID())
			room.Shutdown()
			that.Remove(room.ID())
		}
	}
}

func generateRoomCode() (string, error) {
	var builder strings.Builder

	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		builder.WriteByte(codeAlphabet[n.Int64()])
	}

	return builder.String(), nil
}
