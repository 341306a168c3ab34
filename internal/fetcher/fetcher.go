// Package fetcher resolves the rows of a sheet through an ordered chain of
// strategies: the in-process cache, the remote spreadsheet and the last
// saved snapshot. Resolution never fails; problems are reported as
// diagnostics next to whatever data could be found.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"posreports/internal/cache"
	"posreports/internal/core"
	"posreports/internal/log"
	"posreports/internal/observability"
	"posreports/internal/resilience"
	ports "posreports/internal/sheets"
)

// Strategy names, also reported as Result.Source.
const (
	SourceCache    = "cache"
	SourceRemote   = "remote"
	SourceSnapshot = "snapshot"
	SourceNone     = "none"
)

type Config struct {
	// Locators maps each sheet type to its spreadsheet URL or id.
	Locators  map[core.SheetType]string
	CacheTTL  time.Duration
	CacheSize int
	// Timeout bounds a single remote attempt. Zero means no extra bound.
	Timeout time.Duration
	Retry   resilience.Config
}

func DefaultConfig() Config {
	return Config{
		Locators:  map[core.SheetType]string{},
		CacheTTL:  5 * time.Minute,
		CacheSize: 8,
		Timeout:   30 * time.Second,
	}
}

// Result is the outcome of resolving one sheet.
type Result struct {
	SheetType core.SheetType
	Rows      []core.Row
	// Present is false only when the sales sheet could not be found anywhere.
	Present     bool
	Source      string
	CapturedAt  time.Time
	Diagnostics []Diagnostic
}

// Outcome is the data a strategy found.
type Outcome struct {
	Rows       []core.Row
	CapturedAt time.Time
}

// Strategy is one step of the fallback chain. Any error means "try the next one".
type Strategy interface {
	Name() string
	Rows(ctx context.Context, sheet core.SheetType) (Outcome, error)
}

type Fetcher struct {
	cfg     Config
	source  ports.RowSource
	store   ports.SnapshotStore
	cache   *cache.LRUCache[Outcome]
	group   singleflight.Group
	breaker *gobreaker.CircuitBreaker
	metrics *observability.Metrics
	logger  *log.Logger
	now     func() time.Time
}

type Option func(*Fetcher)

func WithMetrics(m *observability.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithClock replaces time.Now for capture stamps and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// New builds a Fetcher. store may be nil, in which case no snapshot is ever
// read or written.
func New(cfg Config, source ports.RowSource, store ports.SnapshotStore, opts ...Option) *Fetcher {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = func(err error) bool { return !permanent(err) }
	}

	f := &Fetcher{
		cfg:    cfg,
		source: source,
		store:  store,
		logger: log.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.WithComponent(log.ComponentFetcher)
	f.cache = cache.NewLRUCache[Outcome](cfg.CacheSize, cfg.CacheTTL, cache.WithClock(f.now))
	f.breaker = resilience.NewCircuitBreaker("sheets", func(err error) bool {
		return err == nil || permanent(err)
	})
	return f
}

// Cache exposes the row cache so a cache.Manager can clean it.
func (f *Fetcher) Cache() cache.Cleaner {
	return f.cache
}

// Chain returns the strategies tried for a fetch: the snapshot alone when
// offline, otherwise cache, remote and snapshot in that order.
func (f *Fetcher) Chain(offline bool) []Strategy {
	if offline {
		return []Strategy{snapshotStrategy{f}}
	}
	return []Strategy{cacheStrategy{f}, remoteStrategy{f}, snapshotStrategy{f}}
}

// Fetch resolves the rows of sheet.
func (f *Fetcher) Fetch(ctx context.Context, sheet core.SheetType, offline bool) Result {
	return f.Resolve(ctx, sheet, f.Chain(offline))
}

// Refresh drops the cached rows for sheet and reloads them from the remote
// spreadsheet, falling back to the snapshot.
func (f *Fetcher) Refresh(ctx context.Context, sheet core.SheetType) Result {
	f.Invalidate(sheet)
	return f.Resolve(ctx, sheet, []Strategy{remoteStrategy{f}, snapshotStrategy{f}})
}

// Invalidate drops the cached rows for sheet.
func (f *Fetcher) Invalidate(sheet core.SheetType) {
	f.cache.Delete(string(sheet))
}

// InvalidateAll drops every cached sheet.
func (f *Fetcher) InvalidateAll() {
	f.cache.Purge()
}

// Resolve tries chain in order and returns the first strategy's data. When
// every strategy misses, main resolves to no rows and sales to absent.
func (f *Fetcher) Resolve(ctx context.Context, sheet core.SheetType, chain []Strategy) Result {
	res := Result{SheetType: sheet}
	for _, s := range chain {
		out, err := s.Rows(ctx, sheet)
		if err == nil {
			res.Rows = out.Rows
			res.Present = true
			res.Source = s.Name()
			res.CapturedAt = out.CapturedAt
			f.metrics.IncFetch(string(sheet), s.Name())
			f.logger.DebugContext(ctx, "Rows resolved",
				log.NewFields().WithFetch(string(sheet), s.Name(), len(out.Rows)).ToSlice()...)
			return res
		}
		if d, ok := diagnose(err); ok {
			res.Diagnostics = append(res.Diagnostics, d)
			f.metrics.IncDiagnostic(string(sheet), d.Kind)
			f.logger.WarnContext(ctx, "Fetch strategy failed, falling back",
				log.FieldSheetType, sheet,
				log.FieldStrategy, s.Name(),
				log.FieldDiagnostic, d.Kind,
				log.FieldError, err)
		}
	}

	res.Source = SourceNone
	if sheet == core.SheetMain {
		res.Present = true
		res.Rows = []core.Row{}
	}
	f.metrics.IncFetch(string(sheet), SourceNone)
	return res
}

type cacheStrategy struct{ f *Fetcher }

func (cacheStrategy) Name() string { return SourceCache }

func (s cacheStrategy) Rows(_ context.Context, sheet core.SheetType) (Outcome, error) {
	out, ok := s.f.cache.Get(string(sheet))
	if !ok {
		s.f.metrics.IncCacheMiss(string(sheet))
		return Outcome{}, errCacheMiss
	}
	s.f.metrics.IncCacheHit(string(sheet))
	return out, nil
}

type remoteStrategy struct{ f *Fetcher }

func (remoteStrategy) Name() string { return SourceRemote }

// Rows loads the sheet once per concurrent burst of callers; a successful
// load is saved as a snapshot and cached.
func (s remoteStrategy) Rows(ctx context.Context, sheet core.SheetType) (Outcome, error) {
	f := s.f
	locator := strings.TrimSpace(f.cfg.Locators[sheet])
	if locator == "" {
		return Outcome{}, fmt.Errorf("%w: no spreadsheet configured for the %s sheet", core.ErrConfigurationMissing, sheet)
	}
	if f.source == nil {
		return Outcome{}, fmt.Errorf("%w: no remote source", core.ErrConfigurationMissing)
	}

	ch := f.group.DoChan(string(sheet), func() (any, error) {
		// The flight is shared by every waiting caller; one of them going
		// away must not fail it for the rest. cfg.Timeout still bounds it.
		flightCtx := context.WithoutCancel(ctx)
		raw, err := f.callRemote(flightCtx, locator)
		if err != nil {
			return Outcome{}, err
		}
		out := Outcome{Rows: dropHeader(raw), CapturedAt: f.now()}
		f.saveSnapshot(flightCtx, sheet, out)
		f.cache.Set(string(sheet), out)
		return out, nil
	})
	select {
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("%w: %v", core.ErrRemoteTransient, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return Outcome{}, r.Err
		}
		return r.Val.(Outcome), nil
	}
}

func (f *Fetcher) callRemote(ctx context.Context, locator string) ([][]any, error) {
	v, err := f.breaker.Execute(func() (any, error) {
		var rows [][]any
		err := resilience.RetryWithBackoff(ctx, f.cfg.Retry, func() error {
			callCtx, cancel := f.attemptContext(ctx)
			defer cancel()
			var err error
			rows, err = f.source.FetchRows(callCtx, locator)
			return err
		})
		return rows, err
	})
	switch {
	case err == nil:
		return v.([][]any), nil
	case resilience.IsOpen(err):
		return nil, fmt.Errorf("%w: %v", core.ErrRemoteTransient, err)
	case permanent(err), errors.Is(err, core.ErrRemoteTransient):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %v", core.ErrRemoteTransient, err)
	}
}

func (f *Fetcher) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.cfg.Timeout)
}

func (f *Fetcher) saveSnapshot(ctx context.Context, sheet core.SheetType, out Outcome) {
	if f.store == nil {
		return
	}
	err := f.store.Save(ctx, core.Snapshot{SheetType: sheet, CapturedAt: out.CapturedAt, Rows: out.Rows})
	switch {
	case err == nil:
		f.metrics.IncSnapshotSave(string(sheet), "saved")
	case errors.Is(err, core.ErrStaleSnapshot):
		f.metrics.IncSnapshotSave(string(sheet), "stale")
		f.logger.DebugContext(ctx, "Newer snapshot already stored", log.FieldSheetType, sheet)
	default:
		f.metrics.IncSnapshotSave(string(sheet), "error")
		f.logger.WarnContext(ctx, "Snapshot save failed", log.FieldSheetType, sheet, log.FieldError, err)
	}
}

type snapshotStrategy struct{ f *Fetcher }

func (snapshotStrategy) Name() string { return SourceSnapshot }

func (s snapshotStrategy) Rows(ctx context.Context, sheet core.SheetType) (Outcome, error) {
	if s.f.store == nil {
		return Outcome{}, errNoSnapshot
	}
	snap, ok, err := s.f.store.Load(ctx, sheet)
	if err != nil {
		return Outcome{}, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return Outcome{}, errNoSnapshot
	}
	rows := snap.Rows
	if rows == nil {
		rows = []core.Row{}
	}
	return Outcome{Rows: rows, CapturedAt: snap.CapturedAt}, nil
}

// dropHeader converts the raw worksheet values to rows, skipping the header row.
func dropHeader(raw [][]any) []core.Row {
	if len(raw) <= 1 {
		return []core.Row{}
	}
	rows := make([]core.Row, 0, len(raw)-1)
	for _, r := range raw[1:] {
		rows = append(rows, core.Row(r))
	}
	return rows
}
