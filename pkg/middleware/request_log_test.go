package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tcmartin/siteserver/pkg/logging"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Append(line string) {
	m.Called(line)
}

func fixedClock() time.Time {
	return time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)
}

func TestRequestLoggerWritesOneLineAndContinues(t *testing.T) {
	const want = "Sun Oct 18 2026 09:30:00 GMT+0000 (UTC): GET /about?ref=home"

	sink := new(mockSink)
	sink.On("Append", want).Once()

	var console bytes.Buffer
	stage := NewRequestLogger(&console, sink, fixedClock, logging.NewNopLogger())

	var nextCalls int
	var seenID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalls++
		seenID, _ = RequestID(r)
	})

	rec := httptest.NewRecorder()
	stage.Intercept(rec, httptest.NewRequest(http.MethodGet, "/about?ref=home", nil), next)

	assert.Equal(t, 1, nextCalls)
	assert.Equal(t, want+"\n", console.String())
	sink.AssertExpectations(t)

	_, err := uuid.Parse(seenID)
	assert.NoError(t, err)
	assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))
}

func TestRequestLoggerReusesIncomingRequestID(t *testing.T) {
	sink := new(mockSink)
	sink.On("Append", mock.Anything)

	stage := NewRequestLogger(&bytes.Buffer{}, sink, fixedClock, logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rec := httptest.NewRecorder()

	var seenID string
	stage.Intercept(rec, req, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = RequestID(r)
	}))

	assert.Equal(t, "upstream-id", seenID)
	assert.Equal(t, "upstream-id", rec.Header().Get(RequestIDHeader))
}

func TestRequestLoggerOneLinePerRequest(t *testing.T) {
	sink := new(mockSink)
	sink.On("Append", mock.Anything)

	var console bytes.Buffer
	stage := NewRequestLogger(&console, sink, fixedClock, logging.NewNopLogger())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	paths := []string{"/", "/about", "/bad", "/help.html", "/nonexistent-path"}
	for _, p := range paths {
		stage.Intercept(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil), next)
	}

	lines := strings.Split(strings.TrimSuffix(console.String(), "\n"), "\n")
	require.Len(t, lines, len(paths))
	for i, p := range paths {
		assert.True(t, strings.HasSuffix(lines[i], ": GET "+p), lines[i])
	}
	sink.AssertNumberOfCalls(t, "Append", len(paths))
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, errors.New("closed pipe") }

func TestRequestLoggerConsoleFailureIsNotFatal(t *testing.T) {
	sink := new(mockSink)
	sink.On("Append", mock.Anything).Once()
	rec := logging.NewRecorder()

	stage := NewRequestLogger(brokenWriter{}, sink, fixedClock, rec)

	called := false
	stage.Intercept(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	assert.True(t, called)
	assert.Equal(t, 1, rec.Count("warn"))
	sink.AssertExpectations(t)
}

func TestRequestLoggerDefaultsClock(t *testing.T) {
	sink := new(mockSink)
	sink.On("Append", mock.MatchedBy(func(line string) bool {
		return strings.HasSuffix(line, ": HEAD /")
	})).Once()

	stage := NewRequestLogger(&bytes.Buffer{}, sink, nil, logging.NewNopLogger())
	stage.Intercept(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/", nil),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	sink.AssertExpectations(t)
	assert.Equal(t, "request-log", stage.Name())
}
