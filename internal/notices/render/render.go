// Package render resolves and executes notice templates. Templates live on a
// filesystem keyed by notice-type slug and medium, with a layered fallback so
// a generic template serves every type that lacks a specific one.
package render

import (
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"strings"
	texttemplate "text/template"

	"golang.org/x/text/message"
)

// CanonicalFormat is rendered for every dispatch and persisted as the
// on-site notice body. It is looked up under the pseudo-medium slug
// "notice" and rendered without HTML escaping so stored markup survives.
const CanonicalFormat = "notice.html"

// CanonicalMedium is the pseudo-medium slug used to resolve CanonicalFormat.
const CanonicalMedium = "notice"

// ErrTemplateNotFound reports that no candidate template exists for a
// requested format after the full fallback chain was tried.
var ErrTemplateNotFound = errors.New("template not found")

// Request describes one render pass for a (notice type, medium) pair.
type Request struct {
	// TypeSlug selects type-specific templates; empty skips those layers.
	TypeSlug string
	// MediumSlug selects medium-specific templates.
	MediumSlug string
	// Formats lists the template file names to render.
	Formats []string
	// Data is the template context.
	Data map[string]any
	// Printer localizes strings through the T template function. Nil
	// disables localization and T becomes fmt.Sprintf.
	Printer *message.Printer
}

// Renderer executes notice templates from a template filesystem.
type Renderer struct {
	templateFS fs.FS
}

// New builds a renderer over the provided template filesystem.
func New(templateFS fs.FS) (*Renderer, error) {
	if templateFS == nil {
		return nil, fmt.Errorf("template filesystem is required")
	}
	return &Renderer{templateFS: templateFS}, nil
}

// Render executes every requested format and returns the results keyed by
// format name. A format whose template cannot be resolved fails the whole
// request with ErrTemplateNotFound.
func (r *Renderer) Render(request Request) (map[string]string, error) {
	if len(request.Formats) == 0 {
		return nil, fmt.Errorf("at least one format is required")
	}

	results := make(map[string]string, len(request.Formats))
	for _, format := range request.Formats {
		rendered, err := r.renderFormat(request, format)
		if err != nil {
			return nil, err
		}
		results[format] = rendered
	}
	return results, nil
}

func (r *Renderer) renderFormat(request Request, format string) (string, error) {
	name, err := r.resolve(request.TypeSlug, request.MediumSlug, format)
	if err != nil {
		return "", err
	}

	raw, err := fs.ReadFile(r.templateFS, name)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", name, err)
	}

	funcs := map[string]any{"T": translateFunc(request.Printer)}
	var out strings.Builder
	if escapeDisabled(format) {
		tmpl, err := texttemplate.New(name).Funcs(funcs).Parse(string(raw))
		if err != nil {
			return "", fmt.Errorf("parse template %s: %w", name, err)
		}
		if err := tmpl.Execute(&out, request.Data); err != nil {
			return "", fmt.Errorf("execute template %s: %w", name, err)
		}
		return out.String(), nil
	}

	tmpl, err := htmltemplate.New(name).Funcs(funcs).Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	if err := tmpl.Execute(&out, request.Data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return out.String(), nil
}

// resolve walks the candidate chain from most to least specific and returns
// the first template path that exists.
func (r *Renderer) resolve(typeSlug, mediumSlug, format string) (string, error) {
	candidates := make([]string, 0, 4)
	if typeSlug != "" && mediumSlug != "" {
		candidates = append(candidates, path.Join(typeSlug, mediumSlug, format))
	}
	if typeSlug != "" {
		candidates = append(candidates, path.Join(typeSlug, format))
	}
	if mediumSlug != "" {
		candidates = append(candidates, path.Join(mediumSlug, format))
	}
	candidates = append(candidates, format)

	for _, candidate := range candidates {
		info, err := fs.Stat(r.templateFS, candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s for type %q medium %q", ErrTemplateNotFound, format, typeSlug, mediumSlug)
}

// escapeDisabled reports whether a format is rendered without contextual
// HTML escaping. Plain-text formats never need it, and the canonical notice
// body keeps author markup intact.
func escapeDisabled(format string) bool {
	return strings.HasSuffix(format, ".txt") || format == CanonicalFormat
}

func translateFunc(printer *message.Printer) func(string, ...any) string {
	if printer == nil {
		return func(key string, args ...any) string {
			if len(args) == 0 {
				return key
			}
			return fmt.Sprintf(key, args...)
		}
	}
	return func(key string, args ...any) string {
		if len(args) == 0 {
			// A literal percent in an argument-free key would be read
			// as a formatting verb.
			key = strings.ReplaceAll(key, "%", "%%")
		}
		return printer.Sprintf(key, args...)
	}
}
