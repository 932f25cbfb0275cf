package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	appkafka "example.com/cassandrablog/internal/broker"
	"example.com/cassandrablog/internal/flash"
	"example.com/cassandrablog/internal/logger"
	"example.com/cassandrablog/internal/middleware"
	"example.com/cassandrablog/internal/store"
	"example.com/cassandrablog/internal/views"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// writeTimeout bounds a whole response, post event included.
const writeTimeout = 10 * time.Second

// Options configures the HTTP server. TLS is used when both files are set.
type Options struct {
	Addr        string
	TLSCertFile string
	TLSKeyFile  string
	JWTSecret   []byte
	TokenTTL    time.Duration

	// PublishTimeout caps the wait for Kafka on a mutation. It is kept
	// under half of writeTimeout so the response still goes out.
	PublishTimeout time.Duration
}

type Server struct {
	store       store.StoreInterface
	kafkaWriter appkafka.KafkaWriter // nil disables post events
	flash       flash.Store
	views       *views.Renderer
	opts        Options

	registry *prometheus.Registry
	metrics  *middleware.Metrics
}

var logg = logger.New()

// New wires the server dependencies. writer may be nil.
func New(st store.StoreInterface, writer appkafka.KafkaWriter, fl flash.Store, opts Options) (*Server, error) {
	v, err := views.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load views: %w", err)
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.PublishTimeout <= 0 || opts.PublishTimeout > writeTimeout/2 {
		opts.PublishTimeout = 2 * time.Second
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		store:       st,
		kafkaWriter: writer,
		flash:       fl,
		views:       v,
		opts:        opts,
		registry:    reg,
		metrics:     middleware.NewMetrics(reg),
	}, nil
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, s.metrics.Instrument(pattern, h))
	}
	// protect requires a logged in user
	protect := func(pattern string, h http.HandlerFunc) {
		handle(pattern, s.requireLogin(h))
	}
	// owned also requires the user to be the post's author
	owned := func(pattern string, h http.HandlerFunc) {
		handle(pattern, s.requireLogin(s.checkPermission(h)))
	}

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/posts", http.StatusFound)
	})

	// Users and sessions
	handle("POST /users", http.HandlerFunc(s.createUserHandler))
	handle("GET /users/me", middleware.JWTAuth(s.opts.JWTSecret)(http.HandlerFunc(s.meHandler)))
	handle("GET /login", http.HandlerFunc(s.loginFormHandler))
	handle("POST /login", http.HandlerFunc(s.loginHandler))
	handle("POST /logout", http.HandlerFunc(s.logoutHandler))

	// Posts
	handle("GET /posts", http.HandlerFunc(s.listPostsHandler))
	protect("GET /posts/new", s.newPostHandler)
	protect("POST /posts", s.createPostHandler)
	handle("GET /posts/{id}", http.HandlerFunc(s.showPostHandler))
	owned("GET /posts/{id}/edit", s.editPostHandler)
	owned("PUT /posts/{id}", s.updatePostHandler)
	owned("DELETE /posts/{id}", s.deletePostHandler)

	var h http.Handler = mux
	h = middleware.Authenticate(s.opts.JWTSecret)(h)
	h = middleware.MethodOverride(h)
	return otelhttp.NewHandler(h, "http.server")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second, // prevent slowloris attacks
		WriteTimeout:      writeTimeout,
		IdleTimeout:       90 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		var err error
		if s.opts.TLSCertFile != "" && s.opts.TLSKeyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+s.opts.Addr)
			err = srv.ListenAndServeTLS(s.opts.TLSCertFile, s.opts.TLSKeyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+s.opts.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
