package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"fanwiki/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Page is the data every template receives.
type Page struct {
	Title         string
	User          *models.User
	Path          string
	DiscordInvite *string
	// Providers lists the OpenID providers a guest can log in with.
	Providers []string
	Data      any
}

type Renderer struct {
	pages map[string]*template.Template
	md    *Markdown
}

// New parses every page template against the shared layout. publicURL maps
// object keys to browser-reachable URLs.
func New(md *Markdown, publicURL func(key string) string) (*Renderer, error) {
	funcs := template.FuncMap{
		"markdown":  md.Render,
		"publicURL": publicURL,
		"join":      strings.Join,
		"ext":       path.Ext,
		"isVideo":   isVideo,
		"appLink":   appLink,
		"add":       func(a, b int) int { return a + b },
		"tiers":     func() []string { return []string{"S", "A", "B", "C", "D"} },
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i + 1
			}
			return out
		},
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template), md: md}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(path.Base(layoutFile)).Funcs(funcs).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render executes page into a buffer first so a template error never leaves
// a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func (r *Renderer) Has(page string) bool {
	_, ok := r.pages[page]
	return ok
}

// appLink opens a pinned Discord message in the desktop app. Anything that
// is not a Discord link becomes an inert anchor.
func appLink(pin models.Pin) template.URL {
	if link := pin.AppLink(); strings.HasPrefix(link, "discord://-/") {
		return template.URL(link)
	}
	return template.URL("#")
}

func isVideo(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4", ".webm", ".mov":
		return true
	}
	return false
}
