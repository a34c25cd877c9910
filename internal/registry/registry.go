package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/teeio-validator/internal/category"
)

// Module is the interface every category package implements to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps category names to their implementations.
type Registry struct {
	categories map[string]category.Category
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{categories: make(map[string]category.Category)}
}

// Register adds a category. Registering the same name twice is a
// programming error and panics.
func (r *Registry) Register(c category.Category) {
	name := c.Name()
	if _, exists := r.categories[name]; exists {
		panic(fmt.Sprintf("category with name '%s' already registered", name))
	}
	if v, ok := c.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			panic(fmt.Sprintf("category '%s' is malformed: %v", name, err))
		}
	}
	slog.Debug("Registering category.", "name", name)
	r.categories[name] = c
}

// Category looks up a registered category.
func (r *Registry) Category(name string) (category.Category, bool) {
	c, ok := r.categories[name]
	return c, ok
}

// Names returns the registered category names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.categories))
	for n := range r.categories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
