package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

// Stylesheet is served next to rendered pages.
//
//go:embed templates/calendar.css
var Stylesheet []byte

var pages = template.Must(template.New("calendar").ParseFS(templateFS, "templates/*.html"))

// WriteHTML writes a full HTML document for p.
func WriteHTML(w io.Writer, p Page) error {
	return execute(w, "page", p)
}

// WriteFragment writes only the calendar section, for embedding.
func WriteFragment(w io.Writer, p Page) error {
	return execute(w, "calendar", p)
}

// execute renders into a buffer first so a template error never leaves a
// half-written response.
func execute(w io.Writer, name string, p Page) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, p); err != nil {
		return fmt.Errorf("render: %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
