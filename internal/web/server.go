// Package web serves the dashboard, the JSON API and the RSS feed.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/finwatch/bad-news-radar/internal/config"
	"github.com/finwatch/bad-news-radar/internal/models"
	"github.com/finwatch/bad-news-radar/internal/pipeline"
	"github.com/finwatch/bad-news-radar/internal/rss"
	"github.com/finwatch/bad-news-radar/internal/store"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

// RunFunc triggers one pipeline cycle. A nil RunFunc disables POST /run.
type RunFunc func(ctx context.Context) (*pipeline.Summary, error)

// Server wires the HTTP surface over the store and an optional run trigger.
type Server struct {
	cfg      config.Web
	store    store.Store
	run      RunFunc
	log      *slog.Logger
	tmpl     *template.Template
	handler  http.Handler
	httpSrv  *http.Server
	verdicts []models.Verdict
}

// New builds the server and its router.
func New(cfg config.Web, st store.Store, run RunFunc, log *slog.Logger) (*Server, error) {
	tmpl, err := template.New("dashboard.html").Funcs(template.FuncMap{
		"verdictLabel": verdictLabel,
	}).ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}

	s := &Server{
		cfg:   cfg,
		store: st,
		run:   run,
		log:   log,
		tmpl:  tmpl,
		verdicts: []models.Verdict{
			models.VerdictNegative,
			models.VerdictNotNegative,
			models.VerdictError,
			models.VerdictPending,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDashboard)
	r.Get("/rss", s.handleRSS)
	r.Get("/api/news", s.handleNews)
	r.Post("/run", s.handleRun)
	r.Get("/health", s.handleHealth)

	s.handler = r
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.BindAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web server starting", slog.String("addr", s.cfg.BindAddr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

type dashboardData struct {
	Items       []models.NewsItem
	Total       int
	Page        int
	PageSize    int
	Pages       int
	PrevPage    int
	NextPage    int
	Query       string
	Keyword     string
	Verdict     string
	Verdicts    []models.Verdict
	GeneratedAt time.Time
	CanRun      bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f := s.parseFilter(r)

	result, err := s.store.Query(r.Context(), f)
	if err != nil {
		s.log.Error("dashboard query", slog.Any("err", err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	pages := (result.Total + f.PageSize - 1) / f.PageSize
	if pages < 1 {
		pages = 1
	}

	data := dashboardData{
		Items:       result.Items,
		Total:       result.Total,
		Page:        f.Page,
		PageSize:    f.PageSize,
		Pages:       pages,
		PrevPage:    f.Page - 1,
		NextPage:    f.Page + 1,
		Query:       f.Text,
		Keyword:     f.MatchedKeyword,
		Verdict:     string(f.Verdict),
		Verdicts:    s.verdicts,
		GeneratedAt: time.Now(),
		CanRun:      s.run != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.log.Error("render dashboard", slog.Any("err", err))
	}
}

func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.Query(r.Context(), store.Filter{
		Verdict:  models.VerdictNegative,
		Page:     1,
		PageSize: s.cfg.MaxPageSize,
	})
	if err != nil {
		s.log.Error("rss query", slog.Any("err", err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	xml, err := rss.Render(result.Items, scheme+"://"+r.Host, time.Now())
	if err != nil {
		s.log.Error("render rss", slog.Any("err", err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	fmt.Fprint(w, xml)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.Query(r.Context(), s.parseFilter(r))
	if err != nil {
		s.log.Error("api query", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.run == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "run trigger disabled"})
		return
	}

	summary, err := s.run(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		s.log.Error("manual run failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.store.LatestPublished(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) parseFilter(r *http.Request) store.Filter {
	q := r.URL.Query()
	return store.Filter{
		Text:           strings.TrimSpace(q.Get("q")),
		MatchedKeyword: strings.TrimSpace(q.Get("keyword")),
		Verdict:        models.Verdict(strings.TrimSpace(q.Get("verdict"))),
		SentimentMin:   parseFloat(q.Get("sentiment_min")),
		SentimentMax:   parseFloat(q.Get("sentiment_max")),
		Page:           clampInt(q.Get("page"), 1, 10_000),
		PageSize:       clampInt(q.Get("page_size"), s.cfg.DefaultPageSize, s.cfg.MaxPageSize),
	}
}

func parseFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func verdictLabel(v models.Verdict) string {
	switch v {
	case models.VerdictNegative:
		return "负面"
	case models.VerdictNotNegative:
		return "非负面"
	case models.VerdictError:
		return "判定失败"
	default:
		return "待定"
	}
}
