// Package api serves read access to the mirrored tournament state.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/okian/tarelay/internal/adapters/http/swagger"
	"github.com/okian/tarelay/internal/adapters/notify"
	"github.com/okian/tarelay/internal/adapters/repository"
	"github.com/okian/tarelay/internal/domain/model"
	"github.com/okian/tarelay/pkg/logger"
	"github.com/okian/tarelay/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultWriteTimeout = 10 * time.Second

// StateReader gives read access to the state store.
type StateReader interface {
	View(ctx context.Context, fn func(*repository.State) error) error
	Match(ctx context.Context, guid string) (model.Match, error)
}

// Subscriber hands out change notification streams.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan notify.Change, func())
}

// Server wires HTTP routes for the read API.
type Server struct {
	store        StateReader
	subscriber   Subscriber
	stats        StatsProvider
	health       HealthProvider
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	log          logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithSubscriber enables GET /subscribe.
func WithSubscriber(s Subscriber) Option {
	return func(x *Server) { x.subscriber = s }
}

// WithStatsProvider sets the source of GET /stats.
func WithStatsProvider(p StatsProvider) Option {
	return func(x *Server) { x.stats = p }
}

// WithHealthProvider sets the source of the inbound connection status.
func WithHealthProvider(p HealthProvider) Option {
	return func(x *Server) { x.health = p }
}

// WithCheckOrigin sets the websocket origin policy for /subscribe.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(x *Server) {
		if fn != nil {
			x.upgrader.CheckOrigin = fn
		}
	}
}

// WithWriteTimeout bounds each websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(x *Server) {
		if d > 0 {
			x.writeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(x *Server) {
		if l != nil {
			x.log = l
		}
	}
}

// NewServer creates a read API over store.
func NewServer(store StateReader, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	s := &Server{
		store:        store,
		writeTimeout: defaultWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("api")
	}
	return s, nil
}

// Handler returns the router with every route attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.With(MetricsMiddleware("state")).Get("/state", s.HandleState)
	r.With(MetricsMiddleware("match")).Get("/matches/{id}", s.HandleMatch)
	r.With(MetricsMiddleware("stats")).Get("/stats", s.HandleStats)
	r.With(MetricsMiddleware("healthz")).Get("/healthz", s.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	if s.subscriber != nil {
		r.With(MetricsMiddleware("subscribe")).Get("/subscribe", s.HandleSubscribe)
	}
	if err := swagger.Register(r); err != nil {
		s.log.Error(context.Background(), "api docs not registered", logger.Error(err))
	}
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
