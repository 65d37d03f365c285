// Package api wires the route table and request pipeline into an HTTP server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"
	"github.com/tcmartin/siteserver/pkg/accesslog"
	"github.com/tcmartin/siteserver/pkg/config"
	"github.com/tcmartin/siteserver/pkg/logging"
	"github.com/tcmartin/siteserver/pkg/middleware"
	"github.com/tcmartin/siteserver/pkg/views"
)

// Page content served by the site
const (
	HomeTitle      = "Home Page"
	WelcomeMessage = "Welcome to the APP! This is the home page...Woo!"
	AboutTitle     = "About Page"
	BadMessage     = "Unable to fufil the request..."
)

// ErrorResponse is the body of the /bad endpoint
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}

// Route describes one entry of the route table
type Route struct {
	Method string
	Path   string
}

// Options carries everything a Server needs. It is assembled once at
// start-up.
type Options struct {
	Config  *config.Config
	Views   *views.Renderer
	Sink    accesslog.Sink
	Console io.Writer
	Logger  logging.Logger
	Clock   middleware.Clock
}

// Server represents the HTTP server
type Server struct {
	config *config.Config
	router *mux.Router
	chain  *middleware.Chain
	views  *views.Renderer
	logger logging.Logger
	routes []Route

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a new server and builds its request pipeline
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	s := &Server{
		config: opts.Config,
		router: mux.NewRouter(),
		views:  opts.Views,
		logger: logger,
	}

	s.setupRoutes()

	s.chain = middleware.NewChain(http.NotFoundHandler(),
		middleware.NewRequestLogger(console, opts.Sink, opts.Clock, logger),
		middleware.NewStatic(s.config.Site.PublicDir),
		middleware.NewRoutes(s.router),
	)
	return s
}

// Handler returns the request pipeline
func (s *Server) Handler() http.Handler {
	return s.chain
}

// Stages returns the pipeline stage names in order
func (s *Server) Stages() []string {
	return s.chain.Stages()
}

// Routes returns the route table in registration order
func (s *Server) Routes() []Route {
	return append([]Route(nil), s.routes...)
}

// Start starts the HTTP server on the configured address
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	read, write, idle := s.config.Server.Timeouts()
	srv := &http.Server{
		Handler:      s.chain,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.LogSystemEvent("server_started", map[string]interface{}{
		"addr": ln.Addr().String(),
	})

	err := srv.Serve(ln)

	// If the server was shut down gracefully, this error is expected
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// setupRoutes configures the route table
func (s *Server) setupRoutes() {
	s.get("/", s.handleHome)
	s.get("/about", s.handleAbout)
	s.get("/bad", s.handleBad)
}

// get registers an exact-path GET route; HEAD is answered the same way
func (s *Server) get(path string, h http.HandlerFunc) {
	s.router.HandleFunc(path, h).Methods(http.MethodGet, http.MethodHead)
	s.routes = append(s.routes, Route{Method: http.MethodGet, Path: path})
}

// handleHome renders the home page
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.views.Home(w, views.HomePage{
		WelcomeMsg: WelcomeMessage,
		PageTitle:  HomeTitle,
	})
	s.renderFailed(w, r, err)
}

// handleAbout renders the about page
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.views.About(w, views.AboutPage{
		PageTitle: AboutTitle,
	})
	s.renderFailed(w, r, err)
}

// handleBad always answers with the same error payload. Nothing has failed.
func (s *Server) handleBad(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(ErrorResponse{
		ErrorMessage: BadMessage,
	})
	if err != nil {
		s.logger.WithContext(r.Context()).Error("Failed to encode response", logging.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(data)
}

// renderFailed answers 500 when a page could not be rendered. The renderer
// writes nothing on failure, so the response is still untouched.
func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	s.logger.WithContext(r.Context()).Error("Failed to render page",
		logging.Err(err), logging.F("path", r.URL.Path))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
