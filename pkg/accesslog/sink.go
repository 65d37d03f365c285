// Package accesslog writes one line per request to an append-only file.
package accesslog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tcmartin/siteserver/pkg/config"
	"github.com/tcmartin/siteserver/pkg/logging"
)

// TimestampLayout matches the date string the request log has always used,
// e.g. "Sun Oct 18 2026 09:30:00 GMT+0000 (UTC)".
const TimestampLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

var (
	// ErrQueueFull is reported when a line arrives while the write queue is full
	ErrQueueFull = errors.New("access log queue is full")

	// ErrClosed is reported when a line arrives after Close
	ErrClosed = errors.New("access log is closed")
)

// Sink accepts request log lines. Append must not block on I/O.
type Sink interface {
	Append(line string)
}

// Line formats a request log line
func Line(t time.Time, method, path string) string {
	return fmt.Sprintf("%s: %s %s", t.Format(TimestampLayout), method, path)
}

// FileSink appends lines to a file from a single writer goroutine
type FileSink struct {
	path   string
	w      io.WriteCloser
	logger logging.Logger
	queue  chan string
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) the log file and starts the writer
func Open(cfg config.AccessLogConfig, logger logging.Logger) (*FileSink, error) {
	f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open access log: %w", err)
	}
	return NewFileSink(cfg.FilePath, f, cfg.QueueSize, logger), nil
}

// NewFileSink starts a sink writing to w. name is used in failure reports.
func NewFileSink(name string, w io.WriteCloser, queueSize int, logger logging.Logger) *FileSink {
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &FileSink{
		path:   name,
		w:      w,
		logger: logger,
		queue:  make(chan string, queueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Append queues line for writing. A line that cannot be queued is reported
// as a failed append.
func (s *FileSink) Append(line string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.fail(line, ErrClosed)
		return
	}

	select {
	case s.queue <- line:
	default:
		s.fail(line, ErrQueueFull)
	}
}

// Close stops accepting lines, writes what is queued and closes the file.
// It returns ctx.Err() if the queue is not drained in time; calling Close
// again later finishes the job. Once the file is closed, further calls
// return the first result.
func (s *FileSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.closeOnce.Do(func() {
		s.closeErr = s.w.Close()
	})
	return s.closeErr
}

func (s *FileSink) run() {
	defer close(s.done)
	for line := range s.queue {
		// one Write per record keeps O_APPEND records whole
		if _, err := io.WriteString(s.w, line+"\n"); err != nil {
			s.fail(line, err)
		}
	}
}

func (s *FileSink) fail(line string, err error) {
	s.logger.Warn("Unable to append to "+s.path, logging.Err(err), logging.F("line", line))
}
