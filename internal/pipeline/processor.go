package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-flash-service/pkg/dispatch"
	"github.com/tinywideclouds/go-flash-service/pkg/flash"
)

// NewProcessor parks each request in the store until the recipient's next page load.
func NewProcessor(store dispatch.FlashStore, logger *slog.Logger) messagepipeline.StreamProcessor[flash.Request] {
	return func(ctx context.Context, original messagepipeline.Message, request *flash.Request) error {
		procLogger := logger.With(
			"recipient_id", request.RecipientID,
			"pubsub_msg_id", original.ID,
		)

		recipient, err := flash.ParseRecipient(request.RecipientID)
		if err != nil {
			// The transformer validates this; reaching here means a bug upstream.
			return fmt.Errorf("invalid recipient: %w", err)
		}

		if err := store.Push(ctx, recipient, request.Item()); err != nil {
			procLogger.Error("Failed to store flash", "err", err)
			return err // Retryable
		}
		procLogger.Info("Flash stored", "category", request.Item().ResolvedCategory())
		return nil
	}
}
