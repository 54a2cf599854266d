// Package pipeline ingests flash requests from Pub/Sub into the flash store.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-flash-service/pkg/flash"
)

// FlashRequestTransformer unmarshals and validates a raw message payload into
// a flash.Request. Invalid messages are skipped with an error so the
// StreamingService can Nack them towards the DLQ.
func FlashRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*flash.Request, bool, error) {
	var req flash.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal flash request from message %s: %w", msg.ID, err)
	}
	if _, err := flash.ParseRecipient(req.RecipientID); err != nil {
		return nil, true, fmt.Errorf("invalid recipient_id in message %s: %w", msg.ID, err)
	}
	if req.Message == "" {
		return nil, true, fmt.Errorf("empty message in message %s", msg.ID)
	}
	return &req, false, nil
}
