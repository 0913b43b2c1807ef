package handler

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Renderer renders the embedded HTML pages for echo.
type Renderer struct {
	templates *template.Template
}

// NewRenderer returns the renderer for the login and dashboard pages.
func NewRenderer() *Renderer {
	return &Renderer{templates: templates}
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
