// Package middleware provides the request pipeline for siteserver.
//
// A request passes through an ordered list of stages. Each stage either
// writes a complete response and stops, or does its work and calls next
// exactly once. The order is fixed when the chain is built.
package middleware

import (
	"net/http"
)

// Stage intercepts a request. It must either write a response and return
// without calling next, or call next exactly once.
type Stage interface {
	Name() string
	Intercept(w http.ResponseWriter, r *http.Request, next http.Handler)
}

// StageFunc adapts a function to the Stage interface
type StageFunc struct {
	StageName string
	Fn        func(w http.ResponseWriter, r *http.Request, next http.Handler)
}

// Name returns the stage name
func (f StageFunc) Name() string { return f.StageName }

// Intercept calls f.Fn
func (f StageFunc) Intercept(w http.ResponseWriter, r *http.Request, next http.Handler) {
	f.Fn(w, r, next)
}

// Chain runs its stages in order and ends at a terminal handler
type Chain struct {
	stages []Stage
	final  http.Handler
	entry  http.Handler
}

// NewChain builds a chain. final handles requests every stage passed on;
// nil means http.NotFoundHandler.
func NewChain(final http.Handler, stages ...Stage) *Chain {
	if final == nil {
		final = http.NotFoundHandler()
	}
	c := &Chain{
		stages: append([]Stage(nil), stages...),
		final:  final,
	}

	// link from the back so every stage's continuation is fixed up front
	next := final
	for i := len(c.stages) - 1; i >= 0; i-- {
		next = link(c.stages[i], next)
	}
	c.entry = next
	return c
}

func link(s Stage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Intercept(w, r, next)
	})
}

// ServeHTTP implements http.Handler
func (c *Chain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.entry.ServeHTTP(w, r)
}

// Stages returns the stage names in execution order
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}
