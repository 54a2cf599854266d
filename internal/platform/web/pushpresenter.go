// Package web presents toasts as browser push notifications (VAPID).
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/tinywideclouds/go-flash-service/pkg/dispatch"
)

// ErrSubscriptionGone is returned when the push service reports the
// subscription no longer exists (404/410). It wraps dispatch.ErrPresenterGone.
var ErrSubscriptionGone = fmt.Errorf("push subscription gone: %w", dispatch.ErrPresenterGone)

// VapidKeys identifies this server to push services.
type VapidKeys struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
}

// Subscription is the PushSubscription a page obtained from its service worker.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Valid reports whether all fields needed for delivery are present.
func (s Subscription) Valid() bool {
	return s.Endpoint != "" && s.Keys.P256dh != "" && s.Keys.Auth != ""
}

// PushPresenter implements dispatch.Presenter for a single page's subscription.
type PushPresenter struct {
	sub        *webpush.Subscription
	keys       VapidKeys
	logger     *slog.Logger
	httpClient *http.Client
}

// NewPushPresenter creates a presenter for sub. A nil httpClient gets a default client.
func NewPushPresenter(sub Subscription, keys VapidKeys, httpClient *http.Client, logger *slog.Logger) *PushPresenter {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &PushPresenter{
		sub: &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.Keys.P256dh,
				Auth:   sub.Keys.Auth,
			},
		},
		keys:       keys,
		logger:     logger.With("component", "PushPresenter"),
		httpClient: httpClient,
	}
}

func (p *PushPresenter) Present(ctx context.Context, message, category string) error {
	payload, err := json.Marshal(map[string]any{
		"notification": map[string]string{
			"title": category,
			"body":  message,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, p.sub, &webpush.Options{
		Subscriber:      p.keys.SubscriberEmail,
		VAPIDPublicKey:  p.keys.PublicKey,
		VAPIDPrivateKey: p.keys.PrivateKey,
		TTL:             60,
		HTTPClient:      p.httpClient,
	})
	if err != nil {
		return fmt.Errorf("web push transport error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		p.logger.Warn("WebPush rejected", "status", resp.StatusCode, "endpoint", p.sub.Endpoint)
		return fmt.Errorf("web push rejected with status %d", resp.StatusCode)
	}
}
