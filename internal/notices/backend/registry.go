package backend

import "fmt"

// Registry holds the configured backends in registration order. The order is
// stable so settings tables render columns consistently.
type Registry struct {
	ordered []Backend
	bySlug  map[string]Backend
}

// NewRegistry builds a registry from the provided backends. Duplicate slugs
// are a configuration error.
func NewRegistry(backends ...Backend) (*Registry, error) {
	registry := &Registry{
		ordered: make([]Backend, 0, len(backends)),
		bySlug:  make(map[string]Backend, len(backends)),
	}
	for _, b := range backends {
		if b == nil {
			return nil, fmt.Errorf("nil backend")
		}
		slug := b.Slug()
		if slug == "" {
			return nil, fmt.Errorf("backend slug is required")
		}
		if _, exists := registry.bySlug[slug]; exists {
			return nil, fmt.Errorf("duplicate backend slug %q", slug)
		}
		registry.ordered = append(registry.ordered, b)
		registry.bySlug[slug] = b
	}
	return registry, nil
}

// All returns the backends in registration order.
func (r *Registry) All() []Backend {
	if r == nil {
		return nil
	}
	result := make([]Backend, len(r.ordered))
	copy(result, r.ordered)
	return result
}

// Get looks up one backend by medium slug.
func (r *Registry) Get(slug string) (Backend, error) {
	if r == nil {
		return nil, ErrNotRegistered
	}
	b, ok := r.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, slug)
	}
	return b, nil
}

// Has reports whether a backend serves the medium slug.
func (r *Registry) Has(slug string) bool {
	if r == nil {
		return false
	}
	_, ok := r.bySlug[slug]
	return ok
}

// Subset returns the backends matching the requested slugs, preserving
// registration order. Unknown slugs are skipped.
func (r *Registry) Subset(slugs []string) []Backend {
	if r == nil || len(slugs) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		wanted[slug] = true
	}
	var result []Backend
	for _, b := range r.ordered {
		if wanted[b.Slug()] {
			result = append(result, b)
		}
	}
	return result
}

// Choice pairs a medium slug with its display title.
type Choice struct {
	Slug  string
	Title string
}

// Choices lists (slug, title) pairs for settings rendering.
func (r *Registry) Choices() []Choice {
	if r == nil {
		return nil
	}
	result := make([]Choice, 0, len(r.ordered))
	for _, b := range r.ordered {
		result = append(result, Choice{Slug: b.Slug(), Title: b.Title()})
	}
	return result
}
