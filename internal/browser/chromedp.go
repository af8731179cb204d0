package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

// PoolConfig controls the behavior of a Pool.
type PoolConfig struct {
	MaxParallel int
	UserAgent   string
}

// Pool is a Browser implementation backed by a single long-lived headless
// Chrome instance, allocated once and shared across pages (spec.md §4.3).
type Pool struct {
	cfg         PoolConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewPool starts the shared allocator and returns a ready Pool.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Pool{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close tears down the shared allocator and every page it owns.
func (p *Pool) Close() {
	p.allocCancel()
}

// page is the Pool's Page implementation. Its chromedp context stays open
// across repeated Navigate/Evaluate calls until ReleasePage, so one
// pipeline stage can navigate, scroll and re-read the same tab; the
// fallback ladder's later stages and its retries acquire a fresh page.
type page struct {
	pageID  string
	ctx     context.Context
	cancel  context.CancelFunc
	release func()
	once    sync.Once
}

func (p *page) id() string { return p.pageID }

// AcquirePage reserves a pool slot and opens a fresh tab.
func (p *Pool) AcquirePage(ctx context.Context) (Page, error) {
	if err := p.acquireSlot(ctx); err != nil {
		return nil, err
	}

	taskCtx, cancel := chromedp.NewContext(p.allocator)
	if err := chromedp.Run(taskCtx, network.Enable()); err != nil {
		cancel()
		p.releaseSlot()
		return nil, fmt.Errorf("enable network domain: %w", err)
	}
	if p.cfg.UserAgent != "" {
		if err := chromedp.Run(taskCtx, emulation.SetUserAgentOverride(p.cfg.UserAgent)); err != nil {
			cancel()
			p.releaseSlot()
			return nil, fmt.Errorf("set user-agent: %w", err)
		}
	}

	pg := &page{
		pageID:  uuid.NewString(),
		ctx:     taskCtx,
		cancel:  cancel,
		release: p.releaseSlot,
	}
	return pg, nil
}

// Navigate loads url in the given page, bounded by timeout.
func (p *Pool) Navigate(ctx context.Context, pg Page, url string, timeout time.Duration) error {
	tp, err := asPage(pg)
	if err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(tp.ctx, timeout)
	defer cancel()

	err = chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

// Evaluate runs script against the current page document and returns its
// JS return value decoded into a generic Go value.
func (p *Pool) Evaluate(ctx context.Context, pg Page, script string) (any, error) {
	tp, err := asPage(pg)
	if err != nil {
		return nil, err
	}
	var result any
	if err := chromedp.Run(tp.ctx, chromedp.Evaluate(script, &result)); err != nil {
		return nil, fmt.Errorf("evaluate script: %w", err)
	}
	return result, nil
}

// ReleasePage cancels the page's chromedp context and frees its pool slot.
// Safe to call more than once.
func (p *Pool) ReleasePage(pg Page) {
	tp, err := asPage(pg)
	if err != nil {
		return
	}
	tp.once.Do(func() {
		tp.cancel()
		tp.release()
	})
}

func asPage(pg Page) (*page, error) {
	tp, ok := pg.(*page)
	if !ok {
		return nil, fmt.Errorf("browser: page handle from a different Browser implementation")
	}
	return tp, nil
}

func (p *Pool) acquireSlot(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	select {
	case p.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (p *Pool) releaseSlot() {
	if p.limiter == nil {
		return
	}
	select {
	case <-p.limiter:
	default:
	}
}
