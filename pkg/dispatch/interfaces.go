package dispatch

import (
	"context"
	"errors"

	"github.com/tinywideclouds/go-flash-service/pkg/flash"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// ErrPresenterGone is returned (possibly wrapped) by a Presenter that can
// never deliver again. The rest of the batch goes to the alert fallback.
var ErrPresenterGone = errors.New("presenter gone")

// Presenter is a page's toast capability (e.g. a websocket toast frame or a
// browser push notification).
type Presenter interface {
	// Present shows one message. Its latency is the presenter's business;
	// callers only rely on invocation order.
	Present(ctx context.Context, message, category string) error
}

// Alerter is the degraded fallback used when a page has no Presenter.
// Alerts are shown synchronously and in order.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// FlashStore parks flash messages until the recipient's next page load.
type FlashStore interface {
	// Push appends an item to the user's pending batch.
	Push(ctx context.Context, user urn.URN, item flash.Item) error

	// Consume returns the user's pending batch in its wire encoding and
	// removes it, so each flash is handed out once.
	Consume(ctx context.Context, user urn.URN) ([]byte, error)
}
