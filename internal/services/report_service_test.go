package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"posreports/internal/amqp"
	"posreports/internal/core"
	"posreports/internal/dates"
	"posreports/internal/fetcher"
	"posreports/internal/observability"
	"posreports/internal/reports"
)

type fakeRows struct {
	mu          sync.Mutex
	results     map[core.SheetType]fetcher.Result
	invalidated []core.SheetType
	refreshed   []core.SheetType
	offline     []bool
}

func (f *fakeRows) Fetch(_ context.Context, sheet core.SheetType, offline bool) fetcher.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = append(f.offline, offline)
	if res, ok := f.results[sheet]; ok {
		return res
	}
	if sheet == core.SheetMain {
		return fetcher.Result{SheetType: sheet, Present: true, Rows: []core.Row{}, Source: fetcher.SourceNone}
	}
	return fetcher.Result{SheetType: sheet, Source: fetcher.SourceNone}
}

func (f *fakeRows) Refresh(ctx context.Context, sheet core.SheetType) fetcher.Result {
	f.mu.Lock()
	f.refreshed = append(f.refreshed, sheet)
	f.mu.Unlock()
	return f.Fetch(ctx, sheet, false)
}

func (f *fakeRows) Invalidate(sheet core.SheetType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, sheet)
}

type fakePublisher struct {
	err  error
	sent []*amqp.RefreshMessage
}

func (p *fakePublisher) PublishRefresh(_ context.Context, msg *amqp.RefreshMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

var testNow = time.Date(2025, time.June, 27, 12, 0, 0, 0, time.UTC)

func newService(rows RowFetcher, pub Publisher) *ReportService {
	engine := reports.NewEngine(dates.NewNormalizer(time.UTC), core.DefaultDisplay(), func() time.Time { return testNow })
	return NewReportService(rows, engine, pub, observability.NewMetrics(), nil)
}

func mainResult(rows ...core.Row) fetcher.Result {
	return fetcher.Result{
		SheetType:  core.SheetMain,
		Rows:       rows,
		Present:    true,
		Source:     fetcher.SourceRemote,
		CapturedAt: testNow,
	}
}

func TestSearchInvoicesResponse(t *testing.T) {
	rows := &fakeRows{results: map[core.SheetType]fetcher.Result{
		core.SheetMain: mainResult(
			core.Row{"27-JUN-25 10.00.00 AM", "1001", "50", "cash", "Ali", "Mona", "0100"},
			core.Row{"27-JUN-25 10.05.00 AM", "1002", "20", "cash", "Ali", "Omar", "0200"},
		),
	}}
	svc := newService(rows, nil)

	resp := svc.SearchInvoices(context.Background(), "1001", reports.SearchByInvoice, false)
	if resp.Count != 1 || len(resp.Results) != 1 || resp.Results[0].Total != "50.00" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Source != fetcher.SourceRemote || resp.Message != "" {
		t.Fatalf("source/message = %q/%q", resp.Source, resp.Message)
	}
	if resp.CapturedAt == nil || !resp.CapturedAt.Equal(testNow) {
		t.Fatalf("captured_at = %v", resp.CapturedAt)
	}
}

func TestMessages(t *testing.T) {
	withData := &fakeRows{results: map[core.SheetType]fetcher.Result{
		core.SheetMain: mainResult(core.Row{"", "1001", "50", "cash", "Ali", "Mona", "0100"}),
	}}

	tests := []struct {
		name string
		rows *fakeRows
		want string
	}{
		{"no rows", &fakeRows{}, MessageNoData},
		{"no match", withData, MessageNoResults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := newService(tt.rows, nil).SearchInvoices(context.Background(), "9999", reports.SearchByInvoice, false)
			if resp.Message != tt.want {
				t.Fatalf("message = %q, want %q", resp.Message, tt.want)
			}
			if resp.Results == nil || resp.Count != 0 {
				t.Fatalf("expected empty non-nil results, got %+v", resp)
			}
		})
	}
}

func TestAnalyzeSalesAbsentSheet(t *testing.T) {
	rows := &fakeRows{}
	resp := newService(rows, nil).AnalyzeSales(context.Background(), reports.PeriodAll, true)
	if resp.Message != MessageNoData || resp.Count != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(rows.offline) != 1 || !rows.offline[0] {
		t.Fatalf("offline flag not forwarded: %v", rows.offline)
	}
}

func TestAnalyzeSalesGroups(t *testing.T) {
	rows := &fakeRows{results: map[core.SheetType]fetcher.Result{
		core.SheetSales: {
			SheetType: core.SheetSales,
			Present:   true,
			Source:    fetcher.SourceSnapshot,
			Rows: []core.Row{
				{"26-JUN-25 10.00.00 AM", "A1", "Coffee", "2"},
				{"26-JUN-25 11.00.00 AM", "A1", "Coffee", "1,5"},
			},
			Diagnostics: []fetcher.Diagnostic{{Kind: fetcher.KindRemoteUnavailable, Message: "down"}},
		},
	}}
	resp := newService(rows, nil).AnalyzeSales(context.Background(), reports.PeriodWeek, false)
	if resp.Count != 1 || resp.Results[0].Quantity != 3.5 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.Diagnostics) != 1 || resp.Source != fetcher.SourceSnapshot {
		t.Fatalf("diagnostics not carried: %+v", resp)
	}
}

func TestDashboardResponse(t *testing.T) {
	rows := &fakeRows{results: map[core.SheetType]fetcher.Result{
		core.SheetMain: mainResult(
			core.Row{"27-JUN-25 10.00.00 AM", "1001", "1200", "cash", "Ali", "Mona", "0100"},
		),
	}}
	resp := newService(rows, nil).Dashboard(context.Background(), false)
	if resp.Stats.TodayRevenue != "1,200.00" || resp.Stats.PeriodInvoiceCount != 1 {
		t.Fatalf("unexpected stats %+v", resp.Stats)
	}
	if resp.Message != "" {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	empty := newService(&fakeRows{}, nil).Dashboard(context.Background(), false)
	if empty.Message != MessageNoData || empty.Stats.PeriodRevenue != "0.00" {
		t.Fatalf("unexpected empty dashboard %+v", empty)
	}
}

func TestRequestRefreshQueued(t *testing.T) {
	rows := &fakeRows{}
	pub := &fakePublisher{}
	resp, err := newService(rows, pub).RequestRefresh(context.Background(), "sales")
	if err != nil {
		t.Fatalf("RequestRefresh: %v", err)
	}
	if resp.Mode != RefreshQueued || len(pub.sent) != 1 || pub.sent[0].SheetType != "sales" {
		t.Fatalf("unexpected response %+v, sent %+v", resp, pub.sent)
	}
	if resp.MessageID != pub.sent[0].ID {
		t.Fatalf("message id mismatch")
	}
	if len(rows.invalidated) != 1 || len(rows.refreshed) != 0 {
		t.Fatalf("invalidated=%v refreshed=%v", rows.invalidated, rows.refreshed)
	}
}

func TestRequestRefreshInline(t *testing.T) {
	rows := &fakeRows{}
	resp, err := newService(rows, nil).RequestRefresh(context.Background(), "all")
	if err != nil {
		t.Fatalf("RequestRefresh: %v", err)
	}
	if resp.Mode != RefreshInline || len(resp.Sheets) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(rows.refreshed) != 2 || len(rows.invalidated) != 2 {
		t.Fatalf("refreshed=%v invalidated=%v", rows.refreshed, rows.invalidated)
	}
}

func TestRequestRefreshFallsBackWhenPublishFails(t *testing.T) {
	rows := &fakeRows{}
	pub := &fakePublisher{err: errors.New("broker down")}
	resp, err := newService(rows, pub).RequestRefresh(context.Background(), "main")
	if err != nil {
		t.Fatalf("RequestRefresh: %v", err)
	}
	if resp.Mode != RefreshInline || len(rows.refreshed) != 1 {
		t.Fatalf("expected inline refresh, got %+v", resp)
	}
}

func TestRequestRefreshRejectsUnknownSheet(t *testing.T) {
	_, err := newService(&fakeRows{}, nil).RequestRefresh(context.Background(), "inventory")
	if !errors.Is(err, core.ErrInvalidSheetType) {
		t.Fatalf("expected ErrInvalidSheetType, got %v", err)
	}
}
