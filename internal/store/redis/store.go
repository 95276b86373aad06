package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
)

// Store handles Redis operations for the notification list.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// PushSignal prepends ev to the signal list and trims it to capacity
// entries, dropping the oldest ones.
func (s *Store) PushSignal(ctx context.Context, ev domain.Event, capacity int64) error {
	if capacity <= 0 {
		return fmt.Errorf("signal list capacity must be > 0, got %d", capacity)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, SignalsKey(), data)
	pipe.LTrim(ctx, SignalsKey(), 0, capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push signal: %w", err)
	}
	return nil
}

// RecentSignals returns up to n events, newest first. Entries that do not
// decode are skipped.
func (s *Store) RecentSignals(ctx context.Context, n int64) ([]domain.Event, error) {
	if n <= 0 {
		return []domain.Event{}, nil
	}

	raw, err := s.client.LRange(ctx, SignalsKey(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read signals: %w", err)
	}

	events := make([]domain.Event, 0, len(raw))
	for _, r := range raw {
		var ev domain.Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
