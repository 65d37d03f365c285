package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes dispatches to a mux router when one of its routes matches the
// request exactly. Unmatched requests, including method mismatches, go to next.
type Routes struct {
	router *mux.Router
}

// NewRoutes creates the route dispatch stage
func NewRoutes(router *mux.Router) *Routes {
	return &Routes{router: router}
}

// Name implements Stage
func (s *Routes) Name() string { return "routes" }

// Intercept implements Stage
func (s *Routes) Intercept(w http.ResponseWriter, r *http.Request, next http.Handler) {
	var match mux.RouteMatch
	if !s.router.Match(r, &match) || match.MatchErr != nil {
		next.ServeHTTP(w, r)
		return
	}
	s.router.ServeHTTP(w, r)
}
