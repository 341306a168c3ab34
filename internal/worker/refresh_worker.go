package worker

import (
	"context"
	"time"

	"posreports/internal/amqp"
	"posreports/internal/core"
	"posreports/internal/fetcher"
	"posreports/internal/log"
	"posreports/internal/observability"
)

// Refresher reloads a sheet from the remote spreadsheet.
type Refresher interface {
	Refresh(ctx context.Context, sheet core.SheetType) fetcher.Result
}

// RefreshWorker reloads sheets on request and on a timer, keeping the
// snapshots warm for the reporting service.
type RefreshWorker struct {
	refresher Refresher
	metrics   *observability.Metrics
	logger    *log.Logger
}

func NewRefreshWorker(refresher Refresher, metrics *observability.Metrics, logger *log.Logger) *RefreshWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &RefreshWorker{
		refresher: refresher,
		metrics:   metrics,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRefreshMessage processes one refresh request from AMQP. A sheet that
// could only be served from its snapshot is logged, not returned as an error,
// so the broker does not redeliver a request the remote cannot satisfy.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.RefreshMessage) error {
	sheets, err := msg.Sheets()
	if err != nil {
		w.metrics.IncRefreshMessage("rejected")
		return err
	}

	w.logger.InfoContext(ctx, "Processing refresh request",
		log.FieldMessageID, msg.ID,
		log.FieldSheetType, msg.SheetType)

	for _, sheet := range sheets {
		w.refresh(ctx, sheet)
	}
	w.metrics.IncRefreshMessage("processed")
	return nil
}

// RefreshAll reloads every sheet and reports how many came from the remote.
func (w *RefreshWorker) RefreshAll(ctx context.Context) int {
	refreshed := 0
	for _, sheet := range core.SheetTypes() {
		if w.refresh(ctx, sheet) {
			refreshed++
		}
	}
	return refreshed
}

// RunPeriodic calls RefreshAll every interval until ctx is done.
func (w *RefreshWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Periodic refresh started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Periodic refresh stopped")
			return
		case <-ticker.C:
			n := w.RefreshAll(ctx)
			w.logger.InfoContext(ctx, "Periodic refresh completed", "refreshed", n)
		}
	}
}

func (w *RefreshWorker) refresh(ctx context.Context, sheet core.SheetType) bool {
	res := w.refresher.Refresh(ctx, sheet)
	if res.Source == fetcher.SourceRemote {
		w.logger.InfoContext(ctx, "Sheet refreshed",
			log.NewFields().WithFetch(string(sheet), res.Source, len(res.Rows)).ToSlice()...)
		return true
	}

	kinds := make([]string, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	w.logger.WarnContext(ctx, "Sheet refresh fell back",
		log.FieldSheetType, sheet,
		log.FieldStrategy, res.Source,
		log.FieldDiagnostic, kinds)
	return false
}
