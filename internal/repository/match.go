package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-rooms-backend/internal/entity"
)

var ErrNoMatches = errors.New("no matches found")

// MatchRepository archives finished matches. Live room state never touches
// the store; only completed games are written, so losing the archive never
// affects play.
type MatchRepository interface {
	Save(ctx context.Context, record *entity.MatchRecord) error
	GetByRoom(ctx context.Context, roomID string) ([]entity.MatchRecord, error)
}

type dbMatch struct {
	client *redis.Client
}

func NewMatchRepository(client *redis.Client) MatchRepository {
	return &dbMatch{
		client: client,
	}
}

func (that *dbMatch) Save(ctx context.Context, record *entity.MatchRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal match record: %w", err)
	}

	matchKey := "matches:" + record.RoomID
	if err = that.client.RPush(ctx, matchKey, recordJSON).Err(); err != nil {
		return fmt.Errorf("failed to push match record: %w", err)
	}

	return nil
}

func (that *dbMatch) GetByRoom(ctx context.Context, roomID string) ([]entity.MatchRecord, error) {
	matchKey := "matches:" + roomID

	values, err := that.client.LRange(ctx, matchKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read match records: %w", err)
	}

	if len(values) == 0 {
		return nil, ErrNoMatches
	}

	records := make([]entity.MatchRecord, 0, len(values))
	for _, value := range values {
		var record entity.MatchRecord
		if err = json.Unmarshal([]byte(value), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}
