// Package server exposes the rates service over HTTP.
package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"goldchecker/internal/backend"
	"goldchecker/internal/gold"
	"goldchecker/internal/service"
)

// Rates is the part of the rates service the handlers use.
type Rates interface {
	LiveSnapshot(ctx context.Context) service.Resolved
	TodayVsYesterday(ctx context.Context) service.Comparison
	ChartSeries(ctx context.Context, q service.ChartQuery) (service.Series, error)
	Sync(ctx context.Context, trigger string) (service.SyncResult, error)
	CheckSync(ctx context.Context) (gold.Snapshot, error)
}

// Content proxies the backend blog API.
type Content interface {
	BlogPosts(ctx context.Context, query url.Values) (*backend.ProxyResponse, error)
	BlogPost(ctx context.Context, slug string) (*backend.ProxyResponse, error)
}

// Options configure the HTTP server.
type Options struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	AllowedOrigins []string

	// SyncAPIKey guards POST /api/gold-prices/sync when set.
	SyncAPIKey string
	// CronSecret guards the cron endpoint when set.
	CronSecret string
	// BackendURL is reported by the sync status endpoint.
	BackendURL string
	Now        func() time.Time
}

// Server wraps the HTTP server and its collaborators.
type Server struct {
	rates   Rates
	content Content
	opts    Options
	server  *http.Server
	logger  zerolog.Logger
}

// NewServer creates the HTTP API server.
func NewServer(rates Rates, content Content, opts Options, logger zerolog.Logger) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		rates:   rates,
		content: content,
		opts:    opts,
		logger:  logger.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      applyMiddleware(mux, s.logger, opts),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting HTTP API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)

	// Prices
	mux.HandleFunc("/api/gold-prices", s.handleGoldPrices)
	mux.HandleFunc("/api/gold-prices/sync", s.handleSync)
	mux.HandleFunc("/api/cron/sync-gold-prices", s.handleCronSync)
	mux.HandleFunc("/api/gold/today-vs-yesterday", s.handleTodayVsYesterday)
	mux.HandleFunc("/api/gold/chart-data", s.handleChartData)
	mux.HandleFunc("/api/gold/chart.png", s.handleChartPNG)

	// Calculator
	mux.HandleFunc("/api/calculator", s.handleCalculator)

	// Blog proxy
	mux.HandleFunc("/api/blog/posts", s.handleBlogPosts)
	mux.HandleFunc("/api/blog/post", s.handleBlogPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
