package middleware

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tcmartin/siteserver/pkg/accesslog"
	"github.com/tcmartin/siteserver/pkg/logging"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// Clock returns the current time
type Clock func() time.Time

// RequestLogger writes "<timestamp>: <method> <path>" to the console and
// hands the same line to the access log for every request.
type RequestLogger struct {
	console io.Writer
	mu      sync.Mutex
	sink    accesslog.Sink
	clock   Clock
	logger  logging.Logger
}

// NewRequestLogger creates the logging stage. A nil clock means time.Now.
func NewRequestLogger(console io.Writer, sink accesslog.Sink, clock Clock, logger logging.Logger) *RequestLogger {
	if clock == nil {
		clock = time.Now
	}
	return &RequestLogger{
		console: console,
		sink:    sink,
		clock:   clock,
		logger:  logger,
	}
}

// Name implements Stage
func (l *RequestLogger) Name() string { return "request-log" }

// Intercept implements Stage. It never stops the chain.
func (l *RequestLogger) Intercept(w http.ResponseWriter, r *http.Request, next http.Handler) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	r = r.WithContext(logging.ContextWithRequestID(r.Context(), id))

	line := accesslog.Line(l.clock(), r.Method, r.URL.RequestURI())

	l.mu.Lock()
	_, err := fmt.Fprintln(l.console, line)
	l.mu.Unlock()
	if err != nil {
		l.logger.WithContext(r.Context()).Warn("Unable to write request line to console", logging.Err(err))
	}

	l.sink.Append(line)

	next.ServeHTTP(w, r)
}

// RequestID returns the ID the logging stage assigned to r
func RequestID(r *http.Request) (string, bool) {
	return logging.RequestIDFromContext(r.Context())
}
