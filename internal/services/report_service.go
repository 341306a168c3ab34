package services

import (
	"context"
	"time"

	"posreports/internal/amqp"
	"posreports/internal/core"
	"posreports/internal/fetcher"
	"posreports/internal/log"
	"posreports/internal/observability"
	"posreports/internal/reports"
)

// Informational messages shown to users alongside an empty result.
const (
	MessageNoData    = "no data available"
	MessageNoResults = "no results matched"
)

// Refresh modes.
const (
	RefreshQueued = "queued"
	RefreshInline = "inline"
)

// RowFetcher resolves sheet rows through the fallback chain.
type RowFetcher interface {
	Fetch(ctx context.Context, sheet core.SheetType, offline bool) fetcher.Result
	Refresh(ctx context.Context, sheet core.SheetType) fetcher.Result
	Invalidate(sheet core.SheetType)
}

// Publisher hands refresh requests to the background worker.
type Publisher interface {
	PublishRefresh(ctx context.Context, msg *amqp.RefreshMessage) error
}

// Response is the envelope returned by every list report.
type Response[T any] struct {
	Results     []T                  `json:"results"`
	Count       int                  `json:"count"`
	Source      string               `json:"source"`
	CapturedAt  *time.Time           `json:"captured_at,omitempty"`
	Message     string               `json:"message,omitempty"`
	Diagnostics []fetcher.Diagnostic `json:"diagnostics,omitempty"`
}

type DashboardResponse struct {
	Stats       core.DashboardStats  `json:"stats"`
	Source      string               `json:"source"`
	CapturedAt  *time.Time           `json:"captured_at,omitempty"`
	Message     string               `json:"message,omitempty"`
	Diagnostics []fetcher.Diagnostic `json:"diagnostics,omitempty"`
}

type SheetRefresh struct {
	SheetType   core.SheetType       `json:"sheet_type"`
	Source      string               `json:"source"`
	RowCount    int                  `json:"row_count"`
	Diagnostics []fetcher.Diagnostic `json:"diagnostics,omitempty"`
}

type RefreshResponse struct {
	Mode      string         `json:"mode"`
	MessageID string         `json:"message_id,omitempty"`
	Sheets    []SheetRefresh `json:"sheets,omitempty"`
}

// ReportService fetches sheet rows and runs the report engine over them.
type ReportService struct {
	rows      RowFetcher
	engine    *reports.Engine
	publisher Publisher
	metrics   *observability.Metrics
	logger    *log.Logger
}

// NewReportService builds the service. publisher may be nil, in which case
// refresh requests run in-process.
func NewReportService(rows RowFetcher, engine *reports.Engine, publisher Publisher, metrics *observability.Metrics, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportService{
		rows:      rows,
		engine:    engine,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.WithComponent(log.ComponentReports),
	}
}

func (s *ReportService) Engine() *reports.Engine {
	return s.engine
}

func (s *ReportService) SearchInvoices(ctx context.Context, query string, st reports.SearchType, offline bool) Response[core.InvoiceAggregate] {
	defer s.observe(log.OpSearch, time.Now())
	res := s.rows.Fetch(ctx, core.SheetMain, offline)
	results := s.engine.SearchInvoices(res.Rows, query, st)
	s.logResult(ctx, log.OpSearch, res, len(results))
	return newResponse(res, results)
}

func (s *ReportService) FilterInvoices(ctx context.Context, c reports.Criteria, offline bool) Response[core.InvoiceRecord] {
	defer s.observe(log.OpFilter, time.Now())
	res := s.rows.Fetch(ctx, core.SheetMain, offline)
	results := s.engine.FilterInvoices(res.Rows, c)
	s.logResult(ctx, log.OpFilter, res, len(results))
	return newResponse(res, results)
}

func (s *ReportService) AnalyzeSales(ctx context.Context, period reports.Period, offline bool) Response[core.ItemSummary] {
	defer s.observe(log.OpSales, time.Now())
	res := s.rows.Fetch(ctx, core.SheetSales, offline)
	var results []core.ItemSummary
	if res.Present {
		results = s.engine.AnalyzeSales(res.Rows, period)
	}
	s.logResult(ctx, log.OpSales, res, len(results))
	return newResponse(res, results)
}

func (s *ReportService) Dashboard(ctx context.Context, offline bool) DashboardResponse {
	defer s.observe(log.OpDashboard, time.Now())
	res := s.rows.Fetch(ctx, core.SheetMain, offline)
	out := DashboardResponse{
		Stats:       s.engine.Dashboard(res.Rows),
		Source:      res.Source,
		CapturedAt:  capturedAt(res),
		Diagnostics: res.Diagnostics,
	}
	if len(res.Rows) == 0 {
		out.Message = MessageNoData
	}
	s.logResult(ctx, log.OpDashboard, res, out.Stats.PeriodInvoiceCount)
	return out
}

// RequestRefresh drops the cached rows for the selected sheets and asks for a
// reload. With a publisher the reload is queued for the worker; without one,
// or when publishing fails, it runs before returning.
func (s *ReportService) RequestRefresh(ctx context.Context, selection string) (RefreshResponse, error) {
	sheets, err := core.ParseSheetSelection(selection)
	if err != nil {
		return RefreshResponse{}, err
	}
	for _, sheet := range sheets {
		s.rows.Invalidate(sheet)
	}

	if s.publisher != nil {
		msg := amqp.NewRefreshMessage(selectionName(sheets))
		err := s.publisher.PublishRefresh(ctx, msg)
		if err == nil {
			return RefreshResponse{Mode: RefreshQueued, MessageID: msg.ID}, nil
		}
		s.logger.ErrorContext(ctx, "Failed to publish refresh request, refreshing in-process",
			log.FieldMessageID, msg.ID, log.FieldError, err)
	} else {
		s.logger.DebugContext(ctx, "No refresh queue configured, refreshing in-process")
	}

	out := RefreshResponse{Mode: RefreshInline}
	for _, sheet := range sheets {
		res := s.rows.Refresh(ctx, sheet)
		out.Sheets = append(out.Sheets, SheetRefresh{
			SheetType:   sheet,
			Source:      res.Source,
			RowCount:    len(res.Rows),
			Diagnostics: res.Diagnostics,
		})
	}
	return out, nil
}

func (s *ReportService) observe(op string, start time.Time) {
	s.metrics.ObserveReport(op, time.Since(start))
}

func (s *ReportService) logResult(ctx context.Context, op string, res fetcher.Result, n int) {
	s.logger.DebugContext(ctx, "Report computed",
		log.FieldOperation, op,
		log.FieldSheetType, res.SheetType,
		log.FieldStrategy, res.Source,
		log.FieldRowCount, len(res.Rows),
		log.FieldResultCount, n)
}

func newResponse[T any](res fetcher.Result, results []T) Response[T] {
	if results == nil {
		results = []T{}
	}
	out := Response[T]{
		Results:     results,
		Count:       len(results),
		Source:      res.Source,
		CapturedAt:  capturedAt(res),
		Diagnostics: res.Diagnostics,
	}
	switch {
	case !res.Present || len(res.Rows) == 0:
		out.Message = MessageNoData
	case len(results) == 0:
		out.Message = MessageNoResults
	}
	return out
}

func capturedAt(res fetcher.Result) *time.Time {
	if res.CapturedAt.IsZero() {
		return nil
	}
	t := res.CapturedAt
	return &t
}

func selectionName(sheets []core.SheetType) string {
	if len(sheets) == 1 {
		return sheets[0].String()
	}
	return "all"
}
