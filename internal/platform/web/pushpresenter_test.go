package web_test

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-flash-service/internal/platform/web"
	"github.com/tinywideclouds/go-flash-service/pkg/dispatch"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newSubscription builds a subscription with real browser-side keys so that
// payload encryption succeeds.
func newSubscription(t *testing.T, endpoint string) web.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	var sub web.Subscription
	sub.Endpoint = endpoint
	sub.Keys.P256dh = base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
	sub.Keys.Auth = base64.RawURLEncoding.EncodeToString(auth)
	return sub
}

func TestPushPresenter_Present(t *testing.T) {
	// Simulates the browser vendor's push service.
	pushService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/success":
			w.WriteHeader(http.StatusCreated)
		case "/expired":
			w.WriteHeader(http.StatusGone)
		case "/error":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer pushService.Close()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	keys := web.VapidKeys{
		PublicKey:       publicKey,
		PrivateKey:      privateKey,
		SubscriberEmail: "test-runner@tinywideclouds.com",
	}
	ctx := context.Background()

	testCases := []struct {
		name    string
		path    string
		wantErr error
		anyErr  bool
	}{
		{name: "Delivered", path: "/success"},
		{name: "Expired subscription", path: "/expired", wantErr: web.ErrSubscriptionGone},
		{name: "Unknown subscription", path: "/missing", wantErr: web.ErrSubscriptionGone},
		{name: "Push service failure", path: "/error", anyErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sub := newSubscription(t, pushService.URL+tc.path)
			require.True(t, sub.Valid())

			presenter := web.NewPushPresenter(sub, keys, pushService.Client(), newTestLogger())
			err := presenter.Present(ctx, "Saved", "success")

			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
				assert.ErrorIs(t, err, dispatch.ErrPresenterGone)
			case tc.anyErr:
				assert.Error(t, err)
				assert.NotErrorIs(t, err, web.ErrSubscriptionGone)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubscription_Valid(t *testing.T) {
	var sub web.Subscription
	assert.False(t, sub.Valid())

	sub.Endpoint = "https://push.example/abc"
	sub.Keys.P256dh = "key"
	assert.False(t, sub.Valid())

	sub.Keys.Auth = "auth"
	assert.True(t, sub.Valid())
}
