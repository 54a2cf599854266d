package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-flash-service/internal/page"
	"github.com/tinywideclouds/go-flash-service/internal/platform/web"
	"github.com/tinywideclouds/go-flash-service/pkg/dispatch"
	"github.com/tinywideclouds/go-flash-service/pkg/flash"
)

// Dispatcher is the subset of the notification dispatcher the handler drives.
type Dispatcher interface {
	DispatchFlash(ctx context.Context, s *page.Session, raw []byte) error
	DispatchTemplateError(ctx context.Context, s *page.Session, message string) error
}

// ClientFrame is anything the page sends. Only Type is always set.
type ClientFrame struct {
	Type string `json:"type"`

	// hello fields
	Toast            bool              `json:"toast,omitempty"`
	PushSubscription *web.Subscription `json:"push_subscription,omitempty"`
	Flashes          string            `json:"flashes,omitempty"`
	TemplateError    string            `json:"template_error,omitempty"`
}

// HandlerConfig configures the session endpoint.
type HandlerConfig struct {
	// AllowedOrigins restricts the Origin header on upgrade. Empty means same host only.
	AllowedOrigins []string
	// Vapid enables web push as a presenter for pages that send a subscription.
	Vapid *web.VapidKeys
}

// Handler serves one page session per websocket connection.
type Handler struct {
	dispatcher Dispatcher
	store      dispatch.FlashStore
	vapid      *web.VapidKeys
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

func NewHandler(cfg HandlerConfig, dispatcher Dispatcher, store dispatch.FlashStore, logger *slog.Logger) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		store:      store,
		vapid:      cfg.Vapid,
		logger:     logger.With("component", "SessionHandler"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(cfg.AllowedOrigins) > 0 {
		origins := cfg.AllowedOrigins
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, origin)
		}
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserHandleFromContext(r.Context())
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userURN, err := flash.ParseRecipient(userID)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid user")
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("Websocket upgrade failed", "err", err)
		return
	}
	defer wsConn.Close()

	// Closing the socket ends the page; pending deliveries are abandoned.
	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	conn := NewConn(wsConn)
	sess := page.NewSession(uuid.NewString(), NewAlertFallback(conn))
	log := h.logger.With("session_id", sess.ID(), "user", userURN.String())
	log.Debug("Page session opened")

	helloSeen := false
	for {
		var frame ClientFrame
		if err := wsConn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				log.Warn("Page session read failed", "err", err)
			}
			log.Debug("Page session closed")
			return
		}

		switch frame.Type {
		case TypeHello:
			if helloSeen {
				log.Debug("Ignoring duplicate hello")
				continue
			}
			helloSeen = true
			h.onHello(ctx, &wg, sess, conn, userURN, frame, log)
		case TypeContentLoaded:
			sess.MarkContentLoaded()
		default:
			log.Debug("Ignoring unknown frame", "type", frame.Type)
		}
	}
}

func (h *Handler) onHello(
	ctx context.Context,
	wg *sync.WaitGroup,
	sess *page.Session,
	conn *Conn,
	user urn.URN,
	frame ClientFrame,
	log *slog.Logger,
) {
	switch {
	case frame.Toast:
		sess.InstallPresenter(NewToastPresenter(conn))
	case frame.PushSubscription != nil && frame.PushSubscription.Valid() && h.vapid != nil:
		sess.InstallPresenter(web.NewPushPresenter(*frame.PushSubscription, *h.vapid, nil, h.logger))
	}

	// Flashes embedded in the page win over the store.
	raw := []byte(frame.Flashes)
	if len(raw) == 0 && h.store != nil {
		var err error
		raw, err = h.store.Consume(ctx, user)
		if err != nil {
			log.Error("Failed to load pending flashes", "err", err)
			raw = nil
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := h.dispatcher.DispatchFlash(ctx, sess, raw); err != nil {
			// The dispatcher has already logged the decode failure.
			var malformed *flash.MalformedBatchError
			if errors.As(err, &malformed) {
				return
			}
			log.Error("Flash dispatch failed", "err", err)
		}
	}()

	if frame.TemplateError != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.dispatcher.DispatchTemplateError(ctx, sess, frame.TemplateError); err != nil {
				log.Error("Template error dispatch failed", "err", err)
			}
		}()
	}
}
