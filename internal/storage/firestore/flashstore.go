// Package firestore implements the flash store on Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/tinywideclouds/go-flash-service/pkg/flash"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// FlashStore implements dispatch.FlashStore using Google Cloud Firestore.
type FlashStore struct {
	client *firestore.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewFlashStore(client *firestore.Client, logger *slog.Logger) *FlashStore {
	return &FlashStore{
		client: client,
		now:    time.Now,
		logger: logger.With("component", "FirestoreFlashStore"),
	}
}

// flashRecord is the internal DB representation.
type flashRecord struct {
	Category  string    `firestore:"category"`
	Message   string    `firestore:"message"`
	CreatedAt time.Time `firestore:"created_at"`
}

func (s *FlashStore) Push(ctx context.Context, user urn.URN, item flash.Item) error {
	record := flashRecord{
		Category:  item.Category,
		Message:   item.Message,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.flashesCollection(user).Doc(uuid.NewString()).Set(ctx, record); err != nil {
		return fmt.Errorf("failed to push flash for %s: %w", user.String(), err)
	}
	return nil
}

// Consume reads and deletes the user's flashes in one transaction, oldest first.
func (s *FlashStore) Consume(ctx context.Context, user urn.URN) ([]byte, error) {
	query := s.flashesCollection(user).OrderBy("created_at", firestore.Asc)

	var batch flash.Batch
	var dropped []string
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// The function may be retried; start from scratch each time.
		batch = batch[:0]
		dropped = dropped[:0]
		var refs []*firestore.DocumentRef

		iter := tx.Documents(query)
		defer iter.Stop()
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return fmt.Errorf("firestore iteration failed: %w", err)
			}
			// Corrupt rows are deleted with the rest so they cannot block later loads.
			refs = append(refs, doc.Ref)

			var record flashRecord
			if err := doc.DataTo(&record); err != nil {
				dropped = append(dropped, doc.Ref.ID)
				continue
			}
			batch = append(batch, flash.Item{Category: record.Category, Message: record.Message})
		}

		for _, ref := range refs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume flashes for %s: %w", user.String(), err)
	}
	for _, id := range dropped {
		s.logger.Warn("Dropping corrupt flash entry", "user", user.String(), "doc_id", id)
	}
	return flash.EncodeBatch(batch)
}

// flashesCollection: users/{userURN}/flashes
func (s *FlashStore) flashesCollection(user urn.URN) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(user.String()).Collection("flashes")
}
