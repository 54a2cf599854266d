// Package dispatcher delivers flash and template-error batches to a page,
// staggered in time, through the page's toast capability or its alert fallback.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tinywideclouds/go-flash-service/internal/clock"
	"github.com/tinywideclouds/go-flash-service/internal/page"
	"github.com/tinywideclouds/go-flash-service/pkg/dispatch"
	"github.com/tinywideclouds/go-flash-service/pkg/flash"
)

// Default timings.
const (
	DefaultFlashDelay = 100 * time.Millisecond
	DefaultErrorDelay = 500 * time.Millisecond
	DefaultStagger    = 300 * time.Millisecond
)

// Config controls dispatch timing and the fallback shape.
type Config struct {
	// FlashDelay is waited after content-loaded before a flash batch drains.
	FlashDelay time.Duration
	// ErrorDelay is the same for template errors. It is longer so that late
	// page scripts have time to report their toast capability.
	ErrorDelay time.Duration
	// Stagger separates successive toasts of one flash batch.
	Stagger time.Duration
	// ConsolidateFallback shows a whole batch in one alert instead of one per item.
	ConsolidateFallback bool
}

// DefaultConfig returns the standard timings with one alert per item.
func DefaultConfig() Config {
	return Config{
		FlashDelay: DefaultFlashDelay,
		ErrorDelay: DefaultErrorDelay,
		Stagger:    DefaultStagger,
	}
}

type Dispatcher struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Dispatcher. A nil clock means the wall clock.
func New(cfg Config, clk clock.Clock, logger *slog.Logger) *Dispatcher {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Dispatcher{
		cfg:    cfg,
		clock:  clk,
		logger: logger.With("component", "Dispatcher"),
	}
}

// DispatchFlash drains an encoded flash batch into the session.
//
// Only the first call per session does anything. It waits for the page's
// content-loaded signal, decodes the batch, waits FlashDelay and then
// presents item i at i*Stagger after draining starts. A decode failure is
// returned as *flash.MalformedBatchError and nothing is shown. Cancelling
// ctx abandons whatever has not been shown yet and is not an error.
func (d *Dispatcher) DispatchFlash(ctx context.Context, s *page.Session, raw []byte) error {
	if !s.Claim(flash.KindFlash) {
		return nil
	}
	defer s.Advance(flash.KindFlash, page.Drained)

	if !d.awaitContentLoaded(ctx, s) {
		return nil
	}

	batch, err := flash.DecodeBatch(raw)
	if err != nil {
		d.logger.Error("Dropping malformed flash batch", "session_id", s.ID(), "err", err)
		return err
	}
	return d.drain(ctx, s, flash.KindFlash, batch, d.cfg.FlashDelay, d.cfg.Stagger)
}

// DispatchTemplateError shows a template render error once per session,
// ErrorDelay after content-loaded.
func (d *Dispatcher) DispatchTemplateError(ctx context.Context, s *page.Session, message string) error {
	if !s.Claim(flash.KindTemplateError) {
		return nil
	}
	defer s.Advance(flash.KindTemplateError, page.Drained)

	if !d.awaitContentLoaded(ctx, s) {
		return nil
	}
	return d.drain(ctx, s, flash.KindTemplateError, flash.TemplateError(message), d.cfg.ErrorDelay, 0)
}

func (d *Dispatcher) awaitContentLoaded(ctx context.Context, s *page.Session) bool {
	select {
	case <-s.ContentLoaded():
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) drain(ctx context.Context, s *page.Session, kind flash.Kind, batch flash.Batch, delay, stagger time.Duration) error {
	if len(batch) == 0 {
		return nil
	}
	log := d.logger.With("session_id", s.ID(), "kind", string(kind))

	if err := d.clock.Sleep(ctx, delay); err != nil {
		return nil
	}

	// The capability is checked once; a presenter installed mid-drain is not picked up.
	presenter, ok := s.Presenter()
	if !ok {
		log.Error("Toast capability not installed; falling back to alerts", "count", len(batch))
		s.Advance(kind, page.Draining)
		d.alertAll(ctx, s, log, batch)
		return nil
	}

	log.Info("Dispatching notifications", "count", len(batch))
	s.Advance(kind, page.Draining)

	start := d.clock.Now()
	for i, item := range batch {
		due := start.Add(time.Duration(i) * stagger)
		if wait := due.Sub(d.clock.Now()); wait > 0 {
			if err := d.clock.Sleep(ctx, wait); err != nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		category := item.ResolvedCategory()
		log.Info("Presenting notification", "index", i, "category", category)
		if err := presenter.Present(ctx, item.Message, category); err != nil {
			if errors.Is(err, dispatch.ErrPresenterGone) {
				log.Warn("Toast capability gone; falling back to alerts", "index", i, "remaining", len(batch)-i, "err", err)
				d.alertAll(ctx, s, log, batch[i:])
				return nil
			}
			log.Warn("Presenter failed", "index", i, "err", err)
		}
	}
	return nil
}

func (d *Dispatcher) alertAll(ctx context.Context, s *page.Session, log *slog.Logger, batch flash.Batch) {
	alerter := s.Alerter()
	if alerter == nil {
		log.Error("No alert fallback available; notifications lost", "count", len(batch))
		return
	}

	if d.cfg.ConsolidateFallback {
		lines := make([]string, len(batch))
		for i, item := range batch {
			log.Info("Alerting notification", "index", i, "category", item.ResolvedCategory(), "consolidated", true)
			lines[i] = item.AlertText()
		}
		if err := alerter.Alert(ctx, strings.Join(lines, "\n")); err != nil {
			log.Warn("Alert failed", "err", err)
		}
		return
	}

	for i, item := range batch {
		if ctx.Err() != nil {
			return
		}
		log.Info("Alerting notification", "index", i, "category", item.ResolvedCategory())
		if err := alerter.Alert(ctx, item.AlertText()); err != nil {
			log.Warn("Alert failed", "index", i, "err", err)
		}
	}
}
