// Package ws carries page sessions over websockets: the page reports its
// capabilities and content-loaded signal, the server sends toast and alert frames.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Frame types.
const (
	TypeHello         = "hello"
	TypeContentLoaded = "content_loaded"
	TypeToast         = "toast"
	TypeAlert         = "alert"
)

// ToastFrame asks the page to show a toast.
type ToastFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// AlertFrame asks the page to show a blocking dialog.
type AlertFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Conn serializes writes to a websocket; gorilla allows one concurrent writer.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// NewConn takes over all writes to ws. Reads stay with the caller.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// WriteJSON sends v as one text frame. The write deadline is writeWait or
// the ctx deadline, whichever is sooner.
func (c *Conn) WriteJSON(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

// ToastPresenter shows toasts on the page at the other end of the socket.
type ToastPresenter struct {
	conn *Conn
}

func NewToastPresenter(conn *Conn) *ToastPresenter {
	return &ToastPresenter{conn: conn}
}

func (p *ToastPresenter) Present(ctx context.Context, message, category string) error {
	return p.conn.WriteJSON(ctx, ToastFrame{Type: TypeToast, Message: message, Category: category})
}

// AlertFallback shows blocking dialogs on the page at the other end of the socket.
type AlertFallback struct {
	conn *Conn
}

func NewAlertFallback(conn *Conn) *AlertFallback {
	return &AlertFallback{conn: conn}
}

func (a *AlertFallback) Alert(ctx context.Context, text string) error {
	return a.conn.WriteJSON(ctx, AlertFrame{Type: TypeAlert, Text: text})
}
