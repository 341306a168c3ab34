package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"posreports/internal/core"
	"posreports/internal/log"
	"posreports/internal/reports"
	"posreports/internal/services"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GET /api/invoices/search?q=1001&type=invoice|phone
func (s *Server) handleSearchInvoices(w http.ResponseWriter, r *http.Request) {
	params := queryParams(r)
	st, err := reports.ParseSearchType(params["type"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "type must be invoice or phone")
		return
	}
	query := params["q"]
	if query == "" {
		query = params["query"]
	}
	writeJSON(w, http.StatusOK, s.reports.SearchInvoices(r.Context(), query, st, offline(r)))
}

// GET /api/invoices/filter?date_from=2025-06-01&payment_method=cash&...
func (s *Server) handleFilterInvoices(w http.ResponseWriter, r *http.Request) {
	criteria, err := reports.ParseCriteria(queryParams(r), s.reports.Engine().Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.reports.FilterInvoices(r.Context(), criteria, offline(r)))
}

// GET /api/sales?period=all|day|week|2weeks|month
func (s *Server) handleSales(w http.ResponseWriter, r *http.Request) {
	period, err := reports.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "period must be one of all, day, week, 2weeks, month")
		return
	}
	writeJSON(w, http.StatusOK, s.reports.AnalyzeSales(r.Context(), period, offline(r)))
}

// GET /api/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reports.Dashboard(r.Context(), offline(r)))
}

// POST /api/refresh?sheet=main|sales|all
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.reports.RequestRefresh(r.Context(), sanitizeInput(r.Form.Get("sheet")))
	if errors.Is(err, core.ErrInvalidSheetType) {
		writeError(w, http.StatusBadRequest, "sheet must be main, sales or all")
		return
	}
	if err != nil {
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Refresh request failed", err, log.OpRefresh, nil)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	status := http.StatusOK
	if resp.Mode == services.RefreshQueued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}
