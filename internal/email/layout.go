package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	layoutOnce sync.Once
	layoutTmpl *template.Template
	layoutErr  error
)

// LayoutData is the content placed inside the shared email layout. Body and
// Footer are already-rendered HTML.
type LayoutData struct {
	Subject string
	Body    template.HTML
	Footer  template.HTML
}

// RenderLayout wraps rendered message HTML in the shared email layout.
func RenderLayout(data LayoutData) (string, error) {
	layoutOnce.Do(func() {
		layoutTmpl, layoutErr = template.ParseFS(templateFS, "templates/layout.html")
	})
	if layoutErr != nil {
		return "", fmt.Errorf("parse email layout: %w", layoutErr)
	}

	var buf bytes.Buffer
	if err := layoutTmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("execute email layout: %w", err)
	}
	return buf.String(), nil
}
