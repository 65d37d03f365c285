package middleware

import (
	"net/http"
	"path"
	"strings"
)

// Static serves files from an asset root and passes everything else on
type Static struct {
	root   http.FileSystem
	server http.Handler
}

// NewStatic creates the static-asset stage for dir
func NewStatic(dir string) *Static {
	return NewStaticFS(http.Dir(dir))
}

// NewStaticFS creates the static-asset stage for an arbitrary file system
func NewStaticFS(root http.FileSystem) *Static {
	return &Static{
		root:   root,
		server: http.FileServer(root),
	}
}

// Name implements Stage
func (s *Static) Name() string { return "static" }

// Intercept implements Stage
func (s *Static) Intercept(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		next.ServeHTTP(w, r)
		return
	}

	if !s.exists(r.URL.Path) {
		next.ServeHTTP(w, r)
		return
	}

	s.server.ServeHTTP(w, r)
}

// exists reports whether urlPath names a regular file, or a directory with
// an index.html, under the root. Dotfiles and anything under a dot
// directory are treated as missing.
func (s *Static) exists(urlPath string) bool {
	name := path.Clean("/" + urlPath)
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}

	f, err := s.root.Open(name)
	if err != nil {
		return false
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return info.Mode().IsRegular()
	}

	index, err := s.root.Open(strings.TrimSuffix(name, "/") + "/index.html")
	if err != nil {
		return false
	}
	info, err = index.Stat()
	index.Close()
	return err == nil && info.Mode().IsRegular()
}
