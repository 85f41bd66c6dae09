package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sjsage522/purchasewatcher/config"
	"sjsage522/purchasewatcher/internal/monitor"
	perrors "sjsage522/purchasewatcher/pkg/errors"
)

// triggerRequest holds the optional overrides of POST /trigger
type triggerRequest struct {
	IntervalMinutes *int    `json:"interval_minutes"`
	ProductURL      *string `json:"product_url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "not configured"
	if s.opts.Store != nil {
		status = "connected"
		if err := s.opts.Store.Ping(r.Context()); err != nil {
			status = "error: " + err.Error()
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"database":  status,
		"timestamp": s.opts.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	req, err := parseTrigger(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	interval := s.opts.IntervalMinutes
	if req.IntervalMinutes != nil {
		interval = *req.IntervalMinutes
	}
	if interval <= 0 {
		writeError(w, http.StatusBadRequest, "interval_minutes must be positive")
		return
	}

	productURL := s.opts.ProductURL
	if req.ProductURL != nil && *req.ProductURL != "" {
		productURL = *req.ProductURL
	}
	if productURL == "" {
		writeError(w, http.StatusBadRequest, "PRODUCT_URL not set")
		return
	}

	if s.opts.Store == nil {
		writeError(w, http.StatusInternalServerError, "Database not configured")
		return
	}

	result, err := s.opts.Runner.Run(r.Context(), s.siteFor(productURL), interval)
	if err != nil {
		s.log.Error().Err(err).Str("product_url", productURL).Msg("Trigger failed")
		writeError(w, statusFor(err), "Error: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTriggerAll(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusInternalServerError, "Database not configured")
		return
	}
	if s.opts.Bulk == nil || len(s.opts.Bulk.Sites()) == 0 {
		writeError(w, http.StatusBadRequest, "No sites configured")
		return
	}

	results := s.opts.Bulk.RunAll(r.Context())

	found, stored := 0, 0
	for _, res := range results {
		found += res.RecordsFound
		stored += res.RecordsStored
	}

	writeJSON(w, http.StatusOK, struct {
		Success       bool              `json:"success"`
		RecordsFound  int               `json:"records_found"`
		RecordsStored int               `json:"records_stored"`
		Results       []*monitor.Result `json:"results"`
	}{true, found, stored, results})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusInternalServerError, "Database not configured")
		return
	}

	purchases, err := s.opts.Store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error exporting data: "+err.Error())
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=purchases.csv")
		if err := writeCSV(w, purchases); err != nil {
			s.log.Error().Err(err).Msg("Failed to write CSV export")
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=purchases.xlsx")
		if err := writeXLSX(w, purchases); err != nil {
			s.log.Error().Err(err).Msg("Failed to write xlsx export")
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported format")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusInternalServerError, "Database not configured")
		return
	}

	stats, err := s.opts.Store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error getting stats: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// siteFor names a product URL after its configured site, or "manual"
func (s *Server) siteFor(productURL string) config.Site {
	if s.opts.Bulk != nil {
		for _, site := range s.opts.Bulk.Sites() {
			if site.ProductURL == productURL {
				return site
			}
		}
	}
	return config.Site{Name: "manual", ProductURL: productURL}
}

// parseTrigger reads overrides from a JSON body, falling back to the query string
func parseTrigger(r *http.Request) (triggerRequest, error) {
	var req triggerRequest

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return req, fmt.Errorf("failed to read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
	}

	q := r.URL.Query()
	if req.IntervalMinutes == nil && q.Get("interval_minutes") != "" {
		n, err := strconv.Atoi(q.Get("interval_minutes"))
		if err != nil {
			return req, fmt.Errorf("invalid interval_minutes %q", q.Get("interval_minutes"))
		}
		req.IntervalMinutes = &n
	}
	if req.ProductURL == nil && q.Get("product_url") != "" {
		u := q.Get("product_url")
		req.ProductURL = &u
	}
	return req, nil
}

// statusFor maps monitor errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case perrors.IsType(err, perrors.ErrorTypeValidation):
		return http.StatusBadRequest
	case perrors.IsType(err, perrors.ErrorTypeRateLimit):
		return http.StatusTooManyRequests
	case perrors.IsType(err, perrors.ErrorTypeNetwork), perrors.IsType(err, perrors.ErrorTypeParsing):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
