package page_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tinywideclouds/go-flash-service/internal/page"
	"github.com/tinywideclouds/go-flash-service/pkg/flash"
)

type nopPresenter struct{}

func (nopPresenter) Present(context.Context, string, string) error { return nil }

func TestSession_Claim(t *testing.T) {
	s := page.NewSession("s-1", nil)

	assert.Equal(t, page.Unregistered, s.State(flash.KindFlash))
	assert.True(t, s.Claim(flash.KindFlash))
	assert.False(t, s.Claim(flash.KindFlash), "second claim must be refused")
	assert.Equal(t, page.Registered, s.State(flash.KindFlash))

	// Guards are per kind.
	assert.True(t, s.Claim(flash.KindTemplateError))
}

func TestSession_ClaimIsExclusiveUnderConcurrency(t *testing.T) {
	s := page.NewSession("s-1", nil)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Claim(flash.KindFlash) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestSession_AdvanceNeverGoesBack(t *testing.T) {
	s := page.NewSession("s-1", nil)
	s.Claim(flash.KindFlash)

	s.Advance(flash.KindFlash, page.Drained)
	s.Advance(flash.KindFlash, page.Draining)
	assert.Equal(t, page.Drained, s.State(flash.KindFlash))
	assert.Equal(t, "drained", s.State(flash.KindFlash).String())
}

func TestSession_ContentLoaded(t *testing.T) {
	s := page.NewSession("s-1", nil)

	select {
	case <-s.ContentLoaded():
		t.Fatal("signal fired before MarkContentLoaded")
	default:
	}

	s.MarkContentLoaded()
	s.MarkContentLoaded()

	select {
	case <-s.ContentLoaded():
	default:
		t.Fatal("signal did not fire")
	}
}

func TestSession_Presenter(t *testing.T) {
	s := page.NewSession("s-1", nil)

	_, ok := s.Presenter()
	assert.False(t, ok)

	s.InstallPresenter(nopPresenter{})
	p, ok := s.Presenter()
	assert.True(t, ok)
	assert.NotNil(t, p)
}
