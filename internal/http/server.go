package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/restaurant-ratings/internal/config"
	"github.com/Clark-Hu/restaurant-ratings/internal/domain"
	"github.com/Clark-Hu/restaurant-ratings/internal/events"
	"github.com/Clark-Hu/restaurant-ratings/internal/logging"
	"github.com/Clark-Hu/restaurant-ratings/internal/service"
	"github.com/Clark-Hu/restaurant-ratings/internal/store"
)

// RatingService is the behaviour the handlers need from the service layer.
type RatingService interface {
	Create(ctx context.Context, in service.CreateRatingInput) (domain.EnrichedRating, error)
	Get(ctx context.Context, id int64) (domain.EnrichedRating, error)
	List(ctx context.Context, filter service.RatingFilter) ([]domain.EnrichedRating, error)
	Update(ctx context.Context, id int64, in service.UpdateRatingInput) (domain.EnrichedRating, error)
	Delete(ctx context.Context, id int64) error
	Averages(ctx context.Context) ([]domain.RestaurantAverage, error)
	AverageByName(ctx context.Context, name string) (domain.RestaurantAverage, error)
	UserRatings(ctx context.Context, userID int64) ([]domain.EnrichedRating, error)
}

// Deps groups the collaborators of a Server. Store and Gatherer may be nil.
type Deps struct {
	Store    *store.Store
	Ratings  RatingService
	Events   events.Client
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	store    *store.Store
	ratings  RatingService
	events   events.Client
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		ratings:  deps.Ratings,
		events:   deps.Events,
		gatherer: deps.Gatherer,
		logger:   deps.Logger,
		router:   r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	if s.gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	api := func(r chi.Router) {
		r.Route("/ratings", func(r chi.Router) {
			r.Get("/", s.handleListRatings)
			r.Post("/", s.handleCreateRating)
			r.Get("/average_ratings", s.handleAverageRatings)
			r.Get("/average_ratings/{restaurantName}", s.handleAverageRatingByName)
			r.Route("/{ratingID}", func(r chi.Router) {
				r.Get("/", s.handleGetRating)
				r.Patch("/", s.handleUpdateRating)
				r.Delete("/", s.handleDeleteRating)
			})
		})
		r.Get("/users/{userID}/ratings", s.handleUserRatings)
		r.Get("/events/{eventID}", s.handleGetEvent)
	}
	api(s.router)
	s.router.Route("/api", api)
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("http: listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status    string `json:"status"`
	OpenConns int32  `json:"open_conns,omitempty"`
	IdleConns int32  `json:"idle_conns,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("http: health check failed")
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unavailable")
		return
	}
	resp := healthResponse{Status: "ok"}
	if stat := s.store.Stats(); stat != nil {
		resp.OpenConns = stat.TotalConns()
		resp.IdleConns = stat.IdleConns()
	}
	s.respondJSON(w, http.StatusOK, resp)
}
