// Package web bundles the calculator's HTML templates and static assets
// into the binary.
package web

import (
	"embed"
	"html/template"
)

// TemplatesFS embeds the page and its htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds css and js.
//
//go:embed static/*
var StaticFS embed.FS

// ParseTemplates parses every embedded template with funcs available.
func ParseTemplates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(TemplatesFS, "templates/*.html")
}
