package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"whomst/internal/core"
	"whomst/internal/export"
	"whomst/internal/log"
	"whomst/internal/pipeline"
)

// Chart titles shown above the dashboard charts.
const (
	titleCumulative = "Cumulative Summation Over The Last 90 Days"
	titleTags       = "Total Spending By Tag Over 90 Days"
	titleFacets     = "Bar of Spending by POC"
)

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.entries.Store().Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	metric("entries_created_total", "counter", "Entries stored", atomic.LoadInt64(&s.appMetrics.entriesCreated))
	metric("entries_removed_total", "counter", "Entries soft deleted", atomic.LoadInt64(&s.appMetrics.entriesRemoved))
	metric("submissions_rejected_total", "counter", "Submissions rejected by validation", atomic.LoadInt64(&s.appMetrics.rejected))
	metric("view_load_errors_total", "counter", "Reports that failed on unreadable records", atomic.LoadInt64(&s.appMetrics.loadErrors))
	metric("dumps_total", "counter", "CSV dumps written", atomic.LoadInt64(&s.appMetrics.dumps))
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Tags are a hint only; an unreadable store still gets a form.
	var tags []string
	if v, err := s.view(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Used tags unavailable", log.FieldError, err)
	} else {
		tags = pipeline.UsedTags(v)
	}

	s.render(w, r, http.StatusOK, "index.html", struct {
		Tags  []string
		Today string
	}{
		Tags:  tags,
		Today: s.cfg.Now().Format(core.DisplayLayout),
	})
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "fix.html", nil)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	sub := core.Submission{
		Whomst:       p.Get("Whomst"),
		Tag:          p.Get("Tag"),
		Amount:       p.Get("Amount"),
		Notes:        p.Get("Notes"),
		DateOverride: p.Get("Date"),
	}

	e, err := s.entries.Submit(r.Context(), sub)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			atomic.AddInt64(&s.appMetrics.rejected, 1)
			s.logger.WarnContext(r.Context(), "Submission rejected",
				"field", verr.Field,
				log.FieldErrorType, log.ErrorTypeValidation)
			s.fail(w, r, http.StatusUnprocessableEntity, verr.Message)
			return
		}
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Failed to save entry", err,
			log.ComponentEntry, log.OpCreate, nil)
		s.fail(w, r, http.StatusInternalServerError, "Error saving entry")
		return
	}

	atomic.AddInt64(&s.appMetrics.entriesCreated, 1)
	redirect(w, r, "/dashboard", NewHTMXResponse().
		TriggerEntryCreated(e.TS).
		TriggerFormReset().
		TriggerSuccessNotification("Entry saved"))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	id := p.Get("EntryID")

	if err := s.entries.Remove(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(r.Context(), "Removal of unknown entry", log.FieldEntryID, id)
			s.fail(w, r, http.StatusNotFound, core.MsgInvalidID)
			return
		}
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Failed to remove entry", err,
			log.ComponentEntry, log.OpDelete, log.NewFields().WithEntry(id, "", "", ""))
		s.fail(w, r, http.StatusInternalServerError, "Error removing entry")
		return
	}

	atomic.AddInt64(&s.appMetrics.entriesRemoved, 1)
	redirect(w, r, "/dashboard", NewHTMXResponse().
		TriggerEntryRemoved(id).
		TriggerSuccessNotification("Entry removed"))
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	path, err := export.DumpFile(r.Context(), s.entries.Store(), s.cfg.DataDir, s.cfg.Policy)
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.dumps, 1)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

type dashboardData struct {
	Columns  []string
	Rows     []pipeline.ListingRow
	Spenders []pipeline.SpenderTotal
	Total    int64
	Skipped  int
	Titles   map[string]string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r.Context())
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "dashboard.html", dashboardData{
		Columns:  pipeline.ListingColumns,
		Rows:     pipeline.Listing(v),
		Spenders: pipeline.SortedSpenderTotals(v),
		Total:    v.Total(),
		Skipped:  len(v.Skipped),
		Titles: map[string]string{
			"cumulative": titleCumulative,
			"tags":       titleTags,
			"facets":     titleFacets,
		},
	})
}

func (s *Server) handleCumulative(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r.Context())
	if err != nil {
		s.loadFailedJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":  titleCumulative,
		"series": pipeline.Cumulative(v),
	})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r.Context())
	if err != nil {
		s.loadFailedJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":   titleTags,
		"tags":    pipeline.TagTotals(v),
		"palette": pipeline.Palette,
	})
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r.Context())
	if err != nil {
		s.loadFailedJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title": titleFacets,
		"chart": pipeline.Facets(v),
	})
}

// view builds the trailing-window view of valid entries.
func (s *Server) view(ctx context.Context) (pipeline.View, error) {
	return pipeline.BuildView(ctx, s.entries.Store(), pipeline.Options{
		TrailingDays: s.cfg.TrailingDays,
		Now:          s.cfg.Now(),
		Policy:       s.cfg.Policy,
	})
}

func (s *Server) logLoadError(r *http.Request, err error) {
	atomic.AddInt64(&s.appMetrics.loadErrors, 1)
	fields := log.NewFields().WithErrorType(log.ErrorTypeLoad)
	log.NewStructuredLogger(s.logger).LogError(r.Context(), "Report failed", err,
		log.ComponentPipeline, log.OpRead, fields)
}

// loadFailed renders the error page for a failed view. No partial report
// is ever shown.
func (s *Server) loadFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.logLoadError(r, err)
	s.fail(w, r, http.StatusInternalServerError, loadMessage(err))
}

func (s *Server) loadFailedJSON(w http.ResponseWriter, r *http.Request, err error) {
	s.logLoadError(r, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": loadMessage(err)})
}

func loadMessage(err error) string {
	var lerr *core.LoadError
	if errors.As(err, &lerr) {
		return lerr.Error()
	}
	return "Could not load entries"
}

// fail answers HTMX callers with an error fragment and browsers with the
// error page.
// parseBody reads the submission body, answering 413 or 400 itself when
// the body cannot be used.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	err := p.Parse()
	if err == nil {
		return p, true
	}
	s.logger.WarnContext(r.Context(), "Parse form error",
		log.FieldError, err,
		log.FieldPath, r.URL.Path,
		"content_type", p.ContentType())
	if p.TooLarge() {
		atomic.AddInt64(&s.appMetrics.rejected, 1)
		s.fail(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
		return nil, false
	}
	s.fail(w, r, http.StatusBadRequest, "Invalid request format")
	return nil, false
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	if isHTMX(r) || s.templates == nil {
		ErrorResponse(status, message).TriggerErrorNotification(message).Write(w)
		return
	}
	s.render(w, r, status, "error.html", struct {
		Status  int
		Title   string
		Message string
	}{status, http.StatusText(status), message})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	// Render to a buffer so a template error never sends half a page.
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends HTMX callers an HX-Redirect and everyone else a 303.
func redirect(w http.ResponseWriter, r *http.Request, to string, b *HTMXResponseBuilder) {
	if isHTMX(r) {
		b.Header("HX-Redirect", to).Write(w)
		return
	}
	b.Header("Location", to).Status(http.StatusSeeOther).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
