// Package cache implements the flash store on Redis lists.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-flash-service/pkg/flash"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// ListClient defines the subset of Redis list commands we need.
type ListClient interface {
	// Append adds value to the tail of the list and sets the TTL.
	Append(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Drain reads the whole list and removes it in one step.
	Drain(ctx context.Context, key string) ([]string, error)
}

// FlashStore keeps each user's pending flashes as a list of encoded pairs.
// Unconsumed flashes expire after ttl.
type FlashStore struct {
	client ListClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewFlashStore(client ListClient, ttl time.Duration, logger *slog.Logger) *FlashStore {
	return &FlashStore{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "RedisFlashStore"),
	}
}

func (s *FlashStore) Push(ctx context.Context, user urn.URN, item flash.Item) error {
	entry, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode flash: %w", err)
	}
	if err := s.client.Append(ctx, s.key(user), entry, s.ttl); err != nil {
		return fmt.Errorf("failed to push flash for %s: %w", user.String(), err)
	}
	return nil
}

// Consume drains the user's list and returns it as one encoded batch.
// Corrupt entries are logged and dropped; the rest are still delivered.
func (s *FlashStore) Consume(ctx context.Context, user urn.URN) ([]byte, error) {
	entries, err := s.client.Drain(ctx, s.key(user))
	if err != nil {
		return nil, fmt.Errorf("failed to consume flashes for %s: %w", user.String(), err)
	}
	batch := make(flash.Batch, 0, len(entries))
	for i, e := range entries {
		item, err := flash.DecodeItem([]byte(e))
		if err != nil {
			s.logger.Warn("Dropping corrupt flash entry", "user", user.String(), "index", i, "err", err)
			continue
		}
		batch = append(batch, item)
	}
	return flash.EncodeBatch(batch)
}

func (s *FlashStore) key(user urn.URN) string {
	return fmt.Sprintf("flash:pending:%s", user.String())
}
