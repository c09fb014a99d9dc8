package webd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/rotblauer/fixguard/app"
	"github.com/rotblauer/fixguard/cache"
	"github.com/rotblauer/fixguard/events"
	"github.com/rotblauer/fixguard/ingest"
	"github.com/rotblauer/fixguard/metrics/prom"
	"github.com/rotblauer/fixguard/params"
	"github.com/rotblauer/fixguard/state"
)

// WebDaemon serves candidate ingestion, engine status, and a websocket
// broadcasting what the engine lets through.
type WebDaemon struct {
	Config *params.WebDaemonConfig

	host    *app.Host
	parser  *ingest.Parser
	feeds   *events.Feeds
	sources *cache.Sources
	journal *state.Journal
	metrics *prom.Collector

	// Fingerprint identifies the engine configuration in /stats.
	Fingerprint string

	started        time.Time
	logger         *slog.Logger
	melodyInstance *melody.Melody
	server         *http.Server
}

type Option func(s *WebDaemon)

// WithJournal serves /rejected from j.
func WithJournal(j *state.Journal) Option {
	return func(s *WebDaemon) { s.journal = j }
}

// WithMetrics serves /metrics from c.
func WithMetrics(c *prom.Collector) Option {
	return func(s *WebDaemon) { s.metrics = c }
}

// WithSources serves /last and /sources from c.
func WithSources(c *cache.Sources) Option {
	return func(s *WebDaemon) { s.sources = c }
}

// WithFeeds broadcasts accepted samples and pass-through values on /socket.
func WithFeeds(f *events.Feeds) Option {
	return func(s *WebDaemon) { s.feeds = f }
}

func NewWebDaemon(config *params.WebDaemonConfig, host *app.Host, opts ...Option) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	s := &WebDaemon{
		Config:  config,
		host:    host,
		parser:  ingest.NewParser(),
		started: time.Now(),
		logger:  slog.With("d", "web"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run listens and serves until ctx is done, then shuts down gracefully.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", ln.Addr().String())

	errs := make(chan error, 1)
	go func() {
		errs <- s.server.Serve(ln)
	}()
	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.melodyInstance != nil {
		_ = s.melodyInstance.Close()
	}
	s.logger.Info("Shutting down web daemon")
	return s.server.Shutdown(shutdownCtx)
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	s.initMelody()
	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	if s.metrics != nil {
		apiRoutes.Path("/metrics").Handler(s.metrics.Handler()).Methods(http.MethodGet)
	}

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/stats").HandlerFunc(s.handleStats).Methods(http.MethodGet)
	apiJSONRoutes.Path("/history").HandlerFunc(s.handleHistory).Methods(http.MethodGet)
	apiJSONRoutes.Path("/last").HandlerFunc(s.handleLast).Methods(http.MethodGet)
	apiJSONRoutes.Path("/sources").HandlerFunc(s.handleSources).Methods(http.MethodGet)
	apiJSONRoutes.Path("/rejected").HandlerFunc(s.handleRejected).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(s.tokenAuthenticationMiddleware)
	authenticatedAPIRoutes.Path("/positions").HandlerFunc(s.handlePositions).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/reset").HandlerFunc(s.handleReset).Methods(http.MethodPost)

	return router
}
