package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// PreviewPageData is the template data for the preview page.
type PreviewPageData struct {
	PageData
	FilePath     string
	Language     string
	LastModified time.Time
	Saved        bool
	Sandbox      *domain.Sandbox
	RenderedCode template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · boltdiy</title>
</head>
<body>
<header><strong>boltdiy</strong> <small>{{.Version}}</small></header>
<main>{{template "content" .}}</main>
</body>
</html>{{end}}`

const previewTemplate = `{{define "content"}}
<h1>{{.FilePath}}</h1>
{{if .Sandbox}}
<p class="sandbox">Sandbox: <a href="{{.Sandbox.URL}}" rel="noopener noreferrer" target="_blank">{{.Sandbox.URL}}</a>
(expires {{formatTime .Sandbox.ExpiresAt}})</p>
{{else}}
<form class="sandbox pending" method="post" action="/preview?path={{.FilePath}}">
<p>No live sandbox.</p>
<button type="submit">Start sandbox</button>
</form>
{{end}}
{{if .Saved}}
<p class="meta">{{.Language}}, last saved {{formatTime .LastModified}}</p>
{{else}}
<p class="meta">Nothing saved at this path yet.</p>
{{end}}
<section class="code">{{.RenderedCode}}</section>
{{end}}`

const errorTemplate = `{{define "content"}}
<h1>Error {{.StatusCode}}</h1>
<p class="error-message">{{.Message}}</p>
{{end}}`

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *slog.Logger
}

// NewRenderer parses the page templates.
func NewRenderer(version string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	funcMap := template.FuncMap{
		"formatTime": formatTime,
	}

	layout := template.Must(template.New("layout").Funcs(funcMap).Parse(layoutTemplate))

	pages := map[string]string{
		"preview": previewTemplate,
		"error":   errorTemplate,
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, src := range pages {
		t := template.Must(layout.Clone())
		template.Must(t.Parse(src))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// renderPage renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPage(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError writes err as a JSON error object, or as an HTML page when the
// client asked for HTML.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var bErr *errors.BoltError
	if !stderrors.As(err, &bErr) {
		bErr = errors.NewInternal(err)
	}
	status := errors.StatusOf(bErr)
	if status >= http.StatusInternalServerError {
		r.logger.ErrorContext(req.Context(), "request failed",
			"method", req.Method, "path", req.URL.Path, "error", err)
	}

	if strings.Contains(req.Header.Get("Accept"), "text/html") {
		r.renderPage(w, status, "error", ErrorPageData{
			PageData: PageData{
				Title:   fmt.Sprintf("Error %d", status),
				Version: r.version,
			},
			StatusCode: status,
			Message:    bErr.Message,
		})
		return
	}

	errorObj := map[string]any{
		"code":    string(bErr.Code),
		"message": bErr.Message,
		"status":  status,
	}
	if bErr.Code != errors.ErrInternal && bErr.Code != errors.ErrStoreFailure && bErr.Details != nil {
		errorObj["details"] = bErr.Details
	}
	renderJSON(w, status, map[string]any{"error": errorObj})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderCode renders source as a fenced code block through goldmark, which
// escapes the content and tags the block with its language.
func renderCode(code, language string) template.HTML {
	fence := "```"
	for strings.Contains(code, fence) {
		fence += "`"
	}

	var md strings.Builder
	md.WriteString(fence)
	md.WriteString(language)
	md.WriteString("\n")
	md.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		md.WriteString("\n")
	}
	md.WriteString(fence)
	md.WriteString("\n")

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(code) + "</pre>")
	}
	return template.HTML(buf.String())
}

// formatTime formats t as "2006-01-02 15:04" UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}
