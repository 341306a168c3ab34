package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"posreports/internal/core"
	"posreports/internal/observability"
	"posreports/internal/resilience"
	"posreports/internal/sheets/memory"
	"posreports/internal/snapshot"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	source  *memory.Source
	store   *snapshot.FileStore
	clock   *testClock
	metrics *observability.Metrics
	fetcher *Fetcher
}

func newFixture(t *testing.T, locators map[core.SheetType]string, retry resilience.Config) *fixture {
	t.Helper()
	store, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fx := &fixture{
		source:  memory.New(),
		store:   store,
		clock:   &testClock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
		metrics: observability.NewMetrics(),
	}
	cfg := DefaultConfig()
	cfg.Locators = locators
	cfg.Retry = retry
	fx.fetcher = New(cfg, fx.source, store, WithClock(fx.clock.now), WithMetrics(fx.metrics))
	return fx
}

var mainSheet = [][]any{
	{"Date", "Invoice", "Amount"},
	{"15-JUN-25 05.10.52 PM", 1001.0, 50.0},
	{"15-JUN-25 05.11.00 PM", "1002", "25"},
}

func TestFetchRemoteStripsHeaderCachesAndSnapshots(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[core.SheetType]string{core.SheetMain: "main-sheet"}, resilience.Config{})
	fx.source.Put("main-sheet", mainSheet)

	res := fx.fetcher.Fetch(ctx, core.SheetMain, false)
	if res.Source != SourceRemote || !res.Present || len(res.Rows) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Rows[0][1] != 1001.0 {
		t.Fatalf("header not stripped: %v", res.Rows[0])
	}
	if !res.CapturedAt.Equal(fx.clock.now()) {
		t.Fatalf("captured at %v", res.CapturedAt)
	}

	again := fx.fetcher.Fetch(ctx, core.SheetMain, false)
	if again.Source != SourceCache || len(again.Rows) != 2 {
		t.Fatalf("expected cache hit, got %+v", again)
	}
	if fx.source.Calls("main-sheet") != 1 {
		t.Fatalf("remote called %d times", fx.source.Calls("main-sheet"))
	}

	snap, ok, err := fx.store.Load(ctx, core.SheetMain)
	if err != nil || !ok || len(snap.Rows) != 2 {
		t.Fatalf("snapshot not written: %+v ok=%v err=%v", snap, ok, err)
	}
	if fx.metrics.FetchCount("main", SourceCache) != 1 || fx.metrics.FetchCount("main", SourceRemote) != 1 {
		t.Fatalf("fetch metrics not recorded")
	}
}

func TestFetchCacheExpires(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[core.SheetType]string{core.SheetMain: "main-sheet"}, resilience.Config{})
	fx.source.Put("main-sheet", mainSheet)

	fx.fetcher.Fetch(ctx, core.SheetMain, false)
	fx.clock.advance(5 * time.Minute)
	res := fx.fetcher.Fetch(ctx, core.SheetMain, false)
	if res.Source != SourceRemote || fx.source.Calls("main-sheet") != 2 {
		t.Fatalf("expected a second remote call after the TTL, source=%s calls=%d", res.Source, fx.source.Calls("main-sheet"))
	}
}

func TestFetchFallsBackToSnapshotWithDiagnostic(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[core.SheetType]string{core.SheetSales: "sales-sheet"}, resilience.Config{})

	captured := time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)
	rows := []core.Row{{"14-JUN-25 09.00.00 AM", "A1", "Coffee", "2"}}
	if err := fx.store.Save(ctx, core.Snapshot{SheetType: core.SheetSales, CapturedAt: captured, Rows: rows}); err != nil {
		t.Fatal(err)
	}

	res := fx.fetcher.Fetch(ctx, core.SheetSales, false)
	if res.Source != SourceSnapshot || !res.Present || len(res.Rows) != 1 {
		t.Fatalf("expected snapshot fallback, got %+v", res)
	}
	if !res.CapturedAt.Equal(captured) {
		t.Fatalf("captured at %v", res.CapturedAt)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != KindRemoteNotFound {
		t.Fatalf("diagnostics = %+v", res.Diagnostics)
	}
	if fx.metrics.DiagnosticCount("sales", KindRemoteNotFound) != 1 {
		t.Fatalf("diagnostic metric not recorded")
	}
}

func TestFetchOfflineUsesSnapshotOnly(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[core.SheetType]string{core.SheetMain: "main-sheet"}, resilience.Config{})
	fx.source.Put("main-sheet", mainSheet)

	online := fx.fetcher.Fetch(ctx, core.SheetMain, false)
	offline := fx.fetcher.Fetch(ctx, core.SheetMain, true)
	if offline.Source != SourceSnapshot {
		t.Fatalf("offline fetch must not use cache or remote, got %s", offline.Source)
	}
	if len(offline.Rows) != len(online.Rows) || offline.Rows[1][1] != "1002" {
		t.Fatalf("offline rows %v, online rows %v", offline.Rows, online.Rows)
	}
	if fx.source.Calls("main-sheet") != 1 {
		t.Fatalf("remote called %d times", fx.source.Calls("main-sheet"))
	}
}

func TestFetchNothingAvailable(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[core.SheetType]string{}, resilience.Config{})

	main := fx.fetcher.Fetch(ctx, core.SheetMain, false)
	if !main.Present || main.Rows == nil || len(main.Rows) != 0 || main.Source != SourceNone {
		t.Fatalf("main should resolve to empty rows, got %+v", main)
	}
	if len(main.Diagnostics) != 1 || main.Diagnostics[0].Kind != KindConfigurationMissing {
		t.Fatalf("diagnostics = %+v", main.Diagnostics)
	}

	sales := fx.fetcher.Fetch(ctx, core.SheetSales, false)
	if sales.Present || sales.Rows != nil {
		t.Fatalf("sales should be absent, got %+v", sales)
	}

	offline := fx.fetcher.Fetch(ctx, core.SheetSales, true)
	if offline.Present || len(offline.Diagnostics) != 0 {
		t.Fatalf("offline without snapshot: %+v", offline)
	}
}

func TestFetchRetriesTransientErrorsOnly(t *testing.T) {
	ctx := context.Background()
	retry := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}

	fx := newFixture(t, map[core.SheetType]string{core.SheetMain: "main-sheet"}, retry)
	fx.source.Fail("main-sheet", errors.New("connection reset by peer"))
	res := fx.fetcher.Fetch(ctx, core.SheetMain, false)
	if fx.source.Calls("main-sheet") != 3 {
		t.Fatalf("transient error should be retried, calls=%d", fx.source.Calls("main-sheet"))
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != KindRemoteUnavailable {
		t.Fatalf("diagnostics = %+v", res.Diagnostics)
	}

	fx = newFixture(t, map[core.SheetType]string{core.SheetMain: "main-sheet"}, retry)
	fx.source.Fail("main-sheet", fmt.Errorf("%w: rejected", core.ErrCredentialInvalid))
	res = fx.fetcher.Fetch(ctx, core.SheetMain, false)
	if fx.source.Calls("main-sheet") != 1 {
		t.Fatalf("credential errors must not be retried, calls=%d", fx.source.Calls("main-sheet"))
	}
	if res.Diagnostics[0].Kind != KindCredentialInvalid {
		t.Fatalf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestFetchOpenBreakerIsTransient(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[core.SheetType]string{core.SheetMain: "main-sheet"}, resilience.Config{})
	fx.source.Fail("main-sheet", errors.New("timeout"))

	for i := 0; i < 5; i++ {
		fx.fetcher.Fetch(ctx, core.SheetMain, false)
	}
	calls := fx.source.Calls("main-sheet")
	res := fx.fetcher.Fetch(ctx, core.SheetMain, false)
	if fx.source.Calls("main-sheet") != calls {
		t.Fatalf("open breaker should not call the remote")
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != KindRemoteUnavailable {
		t.Fatalf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestRefreshBypassesCache(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, map[core.SheetType]string{core.SheetMain: "main-sheet"}, resilience.Config{})
	fx.source.Put("main-sheet", mainSheet)
	fx.fetcher.Fetch(ctx, core.SheetMain, false)

	fx.source.Put("main-sheet", append(mainSheet[:1:1], []any{"16-JUN-25 10.00.00 AM", "2001", "10"}))
	fx.clock.advance(time.Second)

	res := fx.fetcher.Refresh(ctx, core.SheetMain)
	if res.Source != SourceRemote || len(res.Rows) != 1 || res.Rows[0][1] != "2001" {
		t.Fatalf("refresh result %+v", res)
	}
	if cached := fx.fetcher.Fetch(ctx, core.SheetMain, false); cached.Source != SourceCache || cached.Rows[0][1] != "2001" {
		t.Fatalf("refresh should repopulate the cache, got %+v", cached)
	}
}

type gatedSource struct {
	mu      sync.Mutex
	calls   int
	ctxErr  error
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSource) FetchRows(ctx context.Context, _ string) ([][]any, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		close(g.entered)
	}
	<-g.release
	g.mu.Lock()
	g.ctxErr = ctx.Err()
	g.mu.Unlock()
	return mainSheet, nil
}

func TestConcurrentFetchesShareOneRemoteCall(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.Locators = map[core.SheetType]string{core.SheetMain: "main-sheet"}
	f := New(cfg, src, nil)

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.Fetch(context.Background(), core.SheetMain, false)
		}(i)
	}
	<-src.entered
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if src.calls != 1 {
		t.Fatalf("expected one remote call, got %d", src.calls)
	}
	for i, r := range results {
		if len(r.Rows) != 2 {
			t.Fatalf("result %d: %+v", i, r)
		}
	}
}

func TestCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.Locators = map[core.SheetType]string{core.SheetMain: "main-sheet"}
	f := New(cfg, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Result, 1)
	go func() { first <- f.Fetch(ctx, core.SheetMain, false) }()
	<-src.entered
	cancel()
	if res := <-first; res.Source == SourceRemote {
		t.Fatalf("cancelled caller should not wait for the remote load, got %+v", res)
	}

	second := make(chan Result, 1)
	go func() { second <- f.Fetch(context.Background(), core.SheetMain, false) }()
	time.Sleep(20 * time.Millisecond)
	close(src.release)

	res := <-second
	if len(res.Rows) != 2 || (res.Source != SourceRemote && res.Source != SourceCache) {
		t.Fatalf("second caller should get the shared load, got %+v", res)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if src.calls != 1 {
		t.Fatalf("expected one remote call, got %d", src.calls)
	}
	if src.ctxErr != nil {
		t.Fatalf("shared load saw a cancelled context: %v", src.ctxErr)
	}
}
