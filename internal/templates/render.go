// Package templates renders the planner page and the HTML fragments patched
// into it over SSE. Templates and static assets are compiled into the
// binary; a directory on disk can replace them.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"sync"
)

//go:embed fragments/*.html pages/*.html
var embedded embed.FS

//go:embed static
var static embed.FS

var patterns = []string{"fragments/*.html", "pages/*.html"}

// Renderer executes named templates parsed from a template root holding
// fragments/ and pages/.
type Renderer struct {
	fsys      fs.FS
	templates *template.Template
	mu        sync.RWMutex
}

// Default returns a renderer over the embedded templates.
func Default() *Renderer {
	r, err := NewFS(embedded)
	if err != nil {
		panic(err)
	}
	return r
}

// New creates a renderer from a template root on disk.
func New(dir string) (*Renderer, error) {
	return NewFS(os.DirFS(dir))
}

// NewFS creates a renderer from a template root in fsys.
func NewFS(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{fsys: fsys}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload parses the templates again from the renderer's root. On error the
// previous templates stay in use.
func (r *Renderer) Reload() error {
	tmpl, err := template.New("").ParseFS(r.fsys, patterns...)
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	return nil
}

// Static returns the embedded static assets: page script, stylesheet and
// marker icons.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template into buf.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()
	return tmpl.ExecuteTemplate(buf, name, data)
}
