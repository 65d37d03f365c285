package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func recordingStage(name string, trace *[]string, stop bool) Stage {
	return StageFunc{
		StageName: name,
		Fn: func(w http.ResponseWriter, r *http.Request, next http.Handler) {
			*trace = append(*trace, name)
			if stop {
				w.WriteHeader(http.StatusTeapot)
				return
			}
			next.ServeHTTP(w, r)
		},
	}
}

func TestChainRunsStagesInOrder(t *testing.T) {
	var trace []string
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = append(trace, "final")
		w.WriteHeader(http.StatusNoContent)
	})

	chain := NewChain(final,
		recordingStage("a", &trace, false),
		recordingStage("b", &trace, false),
		recordingStage("c", &trace, false),
	)
	assert.Equal(t, []string{"a", "b", "c"}, chain.Stages())

	for i := 0; i < 3; i++ {
		trace = nil
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"a", "b", "c", "final"}, trace)
	}
}

func TestChainStopsAtTerminalStage(t *testing.T) {
	var trace []string
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = append(trace, "final")
	})

	chain := NewChain(final,
		recordingStage("a", &trace, false),
		recordingStage("b", &trace, true),
		recordingStage("c", &trace, false),
	)

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, []string{"a", "b"}, trace)
}

func TestChainDefaultsToNotFound(t *testing.T) {
	chain := NewChain(nil)
	assert.Empty(t, chain.Stages())

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent-path", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChainStagesAreFixedAtConstruction(t *testing.T) {
	var trace []string
	stages := []Stage{recordingStage("a", &trace, false)}
	chain := NewChain(nil, stages...)

	stages[0] = recordingStage("z", &trace, false)

	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a"}, trace)
}
