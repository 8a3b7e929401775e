package parser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Template is one registered message shape.
type Template struct {
	ID      string // "T<n>"
	Pattern string // literal pattern text the id was assigned to
}

// Registry assigns stable template ids ("T1", "T2", ...) to literal pattern
// text in order of first registration. It only grows and is not safe for
// concurrent use; hand one Registry to one Parser.
type Registry struct {
	ids  map[string]string
	next int
}

// NewRegistry returns an empty registry whose first id is "T1".
func NewRegistry() *Registry {
	return &Registry{
		ids:  make(map[string]string),
		next: 1,
	}
}

// ID returns the id for pattern, registering it on first use.
func (r *Registry) ID(pattern string) string {
	if id, ok := r.ids[pattern]; ok {
		return id
	}
	id := fmt.Sprintf("T%d", r.next)
	r.next++
	r.ids[pattern] = id
	return id
}

// Lookup returns the id for pattern without registering it.
func (r *Registry) Lookup(pattern string) (string, bool) {
	id, ok := r.ids[pattern]
	return id, ok
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Templates returns all registered templates ordered by id.
func (r *Registry) Templates() []Template {
	out := make([]Template, 0, len(r.ids))
	for pattern, id := range r.ids {
		out = append(out, Template{ID: id, Pattern: pattern})
	}
	sort.Slice(out, func(i, j int) bool {
		return templateNumber(out[i].ID) < templateNumber(out[j].ID)
	})
	return out
}

func templateNumber(id string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(id, "T"))
	return n
}
