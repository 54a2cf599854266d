// Package page holds the per-page-load state the dispatcher works against.
package page

import (
	"sync"

	"github.com/tinywideclouds/go-flash-service/pkg/dispatch"
	"github.com/tinywideclouds/go-flash-service/pkg/flash"
)

// State is the dispatch lifecycle of one batch kind within a page session.
type State int

const (
	Unregistered State = iota
	Registered
	Draining
	Drained
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registered:
		return "registered"
	case Draining:
		return "draining"
	case Drained:
		return "drained"
	default:
		return "unknown"
	}
}

// Session is the state of a single page load: dispatch guards, the
// content-loaded signal and the presentation capabilities. Nothing in it
// survives the page.
type Session struct {
	id      string
	alerter dispatch.Alerter

	mu        sync.Mutex
	states    map[flash.Kind]State
	presenter dispatch.Presenter

	loadedOnce sync.Once
	loaded     chan struct{}
}

// NewSession creates a session whose fallback is alerter.
func NewSession(id string, alerter dispatch.Alerter) *Session {
	return &Session{
		id:      id,
		alerter: alerter,
		states:  make(map[flash.Kind]State),
		loaded:  make(chan struct{}),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Claim sets the dispatch guard for kind. It returns false if the guard was
// already set, in which case the caller must do nothing.
func (s *Session) Claim(kind flash.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[kind] != Unregistered {
		return false
	}
	s.states[kind] = Registered
	return true
}

// State reports where kind is in its lifecycle.
func (s *Session) State(kind flash.Kind) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[kind]
}

// Advance moves kind forward to next. Transitions never go backwards.
func (s *Session) Advance(kind flash.Kind, next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next > s.states[kind] {
		s.states[kind] = next
	}
}

// MarkContentLoaded fires the content-loaded signal. Repeated calls are ignored.
func (s *Session) MarkContentLoaded() {
	s.loadedOnce.Do(func() { close(s.loaded) })
}

// ContentLoaded is closed once the page reports its content has loaded.
func (s *Session) ContentLoaded() <-chan struct{} {
	return s.loaded
}

// InstallPresenter makes p the page's toast capability.
func (s *Session) InstallPresenter(p dispatch.Presenter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presenter = p
}

// Presenter returns the installed toast capability, if any.
func (s *Session) Presenter() (dispatch.Presenter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presenter, s.presenter != nil
}

// Alerter returns the fallback fixed at construction. It may be nil.
func (s *Session) Alerter() dispatch.Alerter { return s.alerter }
