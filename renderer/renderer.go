// Package renderer turns a portfolio snapshot into the aggregate view and
// renders it as markdown, for the terminal, or as HTML.
package renderer

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/etnz/loandash/dashboard"
)

//go:embed templates/*.md
var embedded embed.FS

var templates, _ = fs.Sub(embedded, "templates")

// Page is the data of the dashboard template.
type Page struct {
	Title  string
	View   View
	Status dashboard.Status
}

// Markdown renders the whole dashboard page.
func Markdown(v View, st dashboard.Status) string {
	partials := map[string]string{
		"dashboard_status": "dashboard_status.md",
		"dashboard_tiles":  "dashboard_tiles.md",
		"dashboard_loans":  "dashboard_loans.md",
	}
	return renderTemplate("dashboard", "dashboard.md", partials, Page{Title: "Debt Empire v2.0", View: v, Status: st})
}

// LoansMarkdown renders only the loan table.
func LoansMarkdown(v View) string {
	return renderTemplate("dashboard_loans", "dashboard_loans.md", nil, Page{View: v})
}

var funcs = template.FuncMap{
	// cell escapes what would break a table cell.
	"cell": func(s string) string {
		s = strings.ReplaceAll(s, "|", `\|`)
		return strings.ReplaceAll(s, "\n", " ")
	},
	"align": func(cols []Column) string {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = ":---"
			if c.Right {
				parts[i] = "---:"
			}
		}
		return "|" + strings.Join(parts, "|") + "|"
	},
}

// renderTemplate renders a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}

// Terminal renders markdown for a terminal of the given width. Without color
// the output is plain text laid out the same way.
func Terminal(md string, width int, color bool) (string, error) {
	style := glamour.WithStandardStyle("notty")
	if color {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("cannot create terminal renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("cannot render markdown: %w", err)
	}
	return out, nil
}

var htmlConverter = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts markdown to an HTML fragment. Raw HTML in the source is
// omitted.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := htmlConverter.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("cannot convert markdown: %w", err)
	}
	return buf.String(), nil
}
