// Package views renders the site's HTML pages.
//
// Every page template is parsed together with the shared partials and the
// helper functions. Pages are rendered through typed methods, one per page.
package views

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tcmartin/siteserver/pkg/config"
)

// Page template names
const (
	HomeTemplate  = "home"
	AboutTemplate = "about"
)

// templateExt is the extension of page and partial templates
const templateExt = ".html"

// HomePage is the data for the home page
type HomePage struct {
	PageTitle  string
	WelcomeMsg string
}

// AboutPage is the data for the about page
type AboutPage struct {
	PageTitle string
}

// Renderer holds parsed page templates. It is safe for concurrent use.
type Renderer struct {
	pages map[string]*template.Template
	clock func() time.Time
}

// Option configures a Renderer
type Option func(*Renderer)

// WithClock sets the clock used by the getCurrentYear helper
func WithClock(clock func() time.Time) Option {
	return func(r *Renderer) {
		r.clock = clock
	}
}

// New parses the partials and the page templates named in cfg
func New(cfg config.SiteConfig, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		pages: make(map[string]*template.Template),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	base, err := r.parsePartials(cfg.PartialsDir)
	if err != nil {
		return nil, err
	}

	for _, name := range []string{HomeTemplate, AboutTemplate} {
		path := filepath.Join(cfg.ViewsDir, name+templateExt)
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		set, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone partials for %s: %w", name, err)
		}
		if _, err := set.New(name).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = set.Lookup(name)
	}

	return r, nil
}

// parsePartials registers every partial under its file name without extension,
// so "partials/header.html" is used as {{template "header" .}}.
func (r *Renderer) parsePartials(dir string) (*template.Template, error) {
	base := template.New("").Funcs(r.funcs())
	if dir == "" {
		return base, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*"+templateExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list partials: %w", err)
	}
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial %s: %w", file, err)
		}
		name := strings.TrimSuffix(filepath.Base(file), templateExt)
		if _, err := base.New(name).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", name, err)
		}
	}
	return base, nil
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"getCurrentYear": func() int {
			return r.clock().Year()
		},
		"screamIt": strings.ToUpper,
	}
}

// Home renders the home page
func (r *Renderer) Home(w io.Writer, data HomePage) error {
	return r.render(w, HomeTemplate, data)
}

// About renders the about page
func (r *Renderer) About(w io.Writer, data AboutPage) error {
	return r.render(w, AboutTemplate, data)
}

// render executes into a buffer so a failed render writes nothing to w
func (r *Renderer) render(w io.Writer, name string, data interface{}) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %s not loaded", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
