// Package view holds the display components shared by both dashboards: pure
// formatting helpers, the page state machine and the embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"
)

//go:embed templates static
var assets embed.FS

// Page is the data passed to a layout.
type Page struct {
	Title  string
	Active string
	Path   string
	// LiveURL is the websocket endpoint keeping the page's live slot
	// current. Empty disables the live connection.
	LiveURL string
	Data    any
	Now     time.Time
}

// Renderer executes one app's templates. Each page is parsed on top of its
// own copy of the shared partials and the app layout.
type Renderer struct {
	app   string
	pages map[string]*template.Template
}

func New(app string) (*Renderer, error) {
	base, err := template.New(app).Funcs(Funcs()).ParseFS(assets,
		"templates/shared/*.html",
		path.Join("templates", app, "layout.html"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s layout: %w", app, err)
	}

	files, err := fs.Glob(assets, path.Join("templates", app, "pages", "*.html"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no pages found for %s", app)
	}

	r := &Renderer{app: app, pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(assets, f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f, err)
		}
		r.pages[strings.TrimSuffix(path.Base(f), ".html")] = t
	}
	return r, nil
}

func (r *Renderer) lookup(page string) (*template.Template, error) {
	t, ok := r.pages[page]
	if !ok {
		return nil, fmt.Errorf("unknown %s page %q", r.app, page)
	}
	return t, nil
}

// Page renders a full document through the app layout.
func (r *Renderer) Page(w io.Writer, page string, data Page) error {
	t, err := r.lookup(page)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// Fragment renders a named block of a page on its own.
func (r *Renderer) Fragment(w io.Writer, page, name string, data any) error {
	t, err := r.lookup(page)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

func (r *Renderer) FragmentString(page, name string, data any) (string, error) {
	var b strings.Builder
	if err := r.Fragment(&b, page, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// StaticFS serves the shared stylesheet and live update script.
func StaticFS() fs.FS {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"healthStyle":    HealthStyle,
		"serviceStyle":   ServiceStyle,
		"levelStyle":     LevelStyle,
		"usageColor":     UsageColor,
		"uptime":         FormatUptime,
		"categoryColor":  CategoryColor,
		"sentimentColor": SentimentColor,
		"timestamp":      FormatTimestamp,
		"relTime":        RelativeTime,
		"take":           Take,
		"upper":          strings.ToUpper,
		"title":          titleCase,
		"pct": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v)
		},
		"num": func(v float64) string {
			return fmt.Sprintf("%.2f", v)
		},
		"clock": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("15:04:05")
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
	}
}

// titleCase upper-cases the first letter of a lowercase word such as a
// status or service type.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
