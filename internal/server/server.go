// Package server exposes the dashboard and its JSON API over chi.
package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"

	"stock-valuation-pro/internal/config"
	"stock-valuation-pro/internal/metrics"
	"stock-valuation-pro/internal/quote"
	"stock-valuation-pro/internal/refdata"
	"stock-valuation-pro/internal/report"
	"stock-valuation-pro/internal/storage"
	"stock-valuation-pro/internal/valuation"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Server wires the cache, the request log and the render layers
// behind the HTTP surface.
type Server struct {
	cfg      *config.Config
	cache    *quote.Cache
	store    *storage.Store
	sessions *sessionStore
	router   chi.Router
}

func New(cfg *config.Config, cache *quote.Cache, store *storage.Store) *Server {
	s := &Server{
		cfg:      cfg,
		cache:    cache,
		store:    store,
		sessions: newSessionStore(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"stock-valuation-pro"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/", s.handleDashboard)
		r.Get("/api/stocks", s.handleStocks)
		r.Post("/api/analyze", s.handleAnalyze)
		r.Post("/api/retry", s.handleRetry)
		r.Get("/api/usage", s.handleUsage)
		r.Get("/charts/{kind}/{ticker}.png", s.handleChart)
		r.Get("/report/{ticker}.pdf", s.handleReport)
		r.Get("/usage/chart.png", s.handleUsageChart)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// requireSession gates the dashboard behind login. API calls get a
// 401, page loads get redirected to the login form.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.fromRequest(r)
		if !ok {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "sign in to use the API", false)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, withSession(r, sess))
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions.fromRequest(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	templates.ExecuteTemplate(w, "login.html", map[string]string{"Error": ""})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	password := r.FormValue("password")

	want, ok := s.cfg.Users[username]
	if !ok || want != password {
		log.Warn().Str("username", username).Msg("failed login attempt")
		w.WriteHeader(http.StatusUnauthorized)
		templates.ExecuteTemplate(w, "login.html", map[string]string{"Error": "Invalid username or password"})
		return
	}

	sess := s.sessions.create(username)
	setSessionCookie(w, sess)
	log.Info().Str("username", username).Msg("user signed in")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.sessions.fromRequest(r); ok {
		s.sessions.drop(sess.id)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type stockEntry struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func stockTable() map[string]stockEntry {
	out := make(map[string]stockEntry)
	for _, cat := range refdata.Categories() {
		table, _ := refdata.Category(cat)
		for ticker, name := range table {
			if _, seen := out[ticker]; !seen {
				out[ticker] = stockEntry{Name: name, Category: cat}
			}
		}
	}
	return out
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	stocksJSON, err := json.Marshal(stockTable())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	templates.ExecuteTemplate(w, "dashboard.html", map[string]any{
		"Username":   sess.username,
		"Categories": refdata.Categories(),
		"StocksJSON": template.JS(stocksJSON),
	})
}

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		writeJSON(w, http.StatusOK, map[string]any{"tickers": refdata.Search(q)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": refdata.Categories(),
		"stocks":     stockTable(),
	})
}

type analyzeRequest struct {
	Ticker string `json:"ticker"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.analyze(w, r, false)
}

// handleRetry drops the cached entry and fetches again with backoff.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.analyze(w, r, true)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, retry bool) {
	sess := sessionFrom(r)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be JSON with a ticker field", false)
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "ticker is required", false)
		return
	}

	if retry {
		s.cache.Invalidate(ticker)
		report.InvalidateCharts(ticker)
	}

	var snap *quote.Snapshot
	var tier string
	var ferr *quote.FetchError
	if retry {
		snap, ferr = quote.WithRetry(r.Context(), quote.DefaultBackoffs, func() (*quote.Snapshot, *quote.FetchError) {
			var sn *quote.Snapshot
			var fe *quote.FetchError
			sn, tier, fe = s.cache.Get(r.Context(), sess.id, ticker)
			return sn, fe
		})
	} else {
		snap, tier, ferr = s.cache.Get(r.Context(), sess.id, ticker)
	}

	if ferr != nil {
		metrics.FetchesTotal.WithLabelValues(string(ferr.Kind)).Inc()
		s.logRequest(ticker, sess.username, tier, "error", string(ferr.Kind))
		writeError(w, statusFor(ferr.Kind), string(ferr.Kind), ferr.Message, ferr.Retryable())
		return
	}
	metrics.FetchesTotal.WithLabelValues("ok").Inc()
	metrics.CacheLookupsTotal.WithLabelValues(tier).Inc()

	res := valuation.Compute(snap)
	if res == nil {
		s.logRequest(ticker, sess.username, tier, "error", string(quote.ErrValuationUnavailable))
		writeError(w, http.StatusUnprocessableEntity, string(quote.ErrValuationUnavailable),
			fmt.Sprintf("not enough data to value %s", ticker), false)
		return
	}
	s.logRequest(ticker, sess.username, tier, "ok", "")

	var rangePos *float64
	if pos, ok := res.RangePosition(); ok {
		rangePos = &pos
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result":          res,
		"tier":            tier,
		"rangePosition":   rangePos,
		"growthBenchmark": refdata.GrowthFor(res.Sector),
	})
}

// resultFor recomputes the valuation from whatever tier holds the
// ticker. Chart and PDF handlers go through here, the session tier
// makes it a map lookup after the first analyze.
func (s *Server) resultFor(r *http.Request, ticker string) (*valuation.Result, *quote.FetchError) {
	sess := sessionFrom(r)
	snap, _, ferr := s.cache.Get(r.Context(), sess.id, ticker)
	if ferr != nil {
		return nil, ferr
	}
	res := valuation.Compute(snap)
	if res == nil {
		return nil, &quote.FetchError{
			Kind:    quote.ErrValuationUnavailable,
			Ticker:  ticker,
			Message: fmt.Sprintf("not enough data to value %s", ticker),
		}
	}
	return res, nil
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))

	res, ferr := s.resultFor(r, ticker)
	if ferr != nil {
		writeError(w, statusFor(ferr.Kind), string(ferr.Kind), ferr.Message, ferr.Retryable())
		return
	}

	var img []byte
	var err error
	switch kind {
	case "comparison":
		img, err = report.ComparisonChart(res)
	case "radar":
		img, err = report.RadarChart(res)
	case "upside":
		img, err = report.UpsideChart(res)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown chart kind", false)
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "chart_unavailable", err.Error(), false)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	res, ferr := s.resultFor(r, ticker)
	if ferr != nil {
		writeError(w, statusFor(ferr.Kind), string(ferr.Kind), ferr.Message, ferr.Retryable())
		return
	}

	out, err := report.PDF(res, time.Now())
	if err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("pdf generation failed")
		writeError(w, http.StatusInternalServerError, "report_failed", "could not build the PDF report", false)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_valuation.pdf", ticker))
	w.Write(out)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-7 * 24 * time.Hour)
	stats, err := s.store.StatsSince(since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "usage_failed", "could not load usage stats", false)
		return
	}
	top, err := s.store.TopTickers(since, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "usage_failed", "could not load usage stats", false)
		return
	}
	sharedN, sessionN := s.cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":        stats.Total,
		"errors":       stats.Errors,
		"byTier":       stats.ByTier,
		"byErrorKind":  stats.ByErrVal,
		"topTickers":   top,
		"cacheShared":  sharedN,
		"cacheSession": sessionN,
	})
}

func (s *Server) handleUsageChart(w http.ResponseWriter, r *http.Request) {
	const days = 7
	top, err := s.store.TopTickers(time.Now().Add(-days*24*time.Hour), 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "usage_failed", "could not load usage stats", false)
		return
	}
	img, err := report.UsageChart(top, days)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "chart_unavailable", err.Error(), false)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func (s *Server) logRequest(ticker, username, tier, outcome, kind string) {
	if s.store == nil {
		return
	}
	if err := s.store.LogRequest(ticker, username, tier, outcome, kind, time.Now()); err != nil {
		log.Warn().Err(err).Msg("failed to log analyze request")
	}
}

func statusFor(kind quote.ErrorKind) int {
	switch kind {
	case quote.ErrInvalidTicker:
		return http.StatusBadRequest
	case quote.ErrTickerNotFound:
		return http.StatusNotFound
	case quote.ErrRateLimited:
		return http.StatusTooManyRequests
	case quote.ErrConnection:
		return http.StatusBadGateway
	case quote.ErrNoPriceData, quote.ErrValuationUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string, retryable bool) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"kind":      kind,
			"message":   message,
			"retryable": retryable,
		},
	})
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
	}
	return srv.ListenAndServe()
}
