// Package params resolves per-item parameters and loads batch files.
package params

import (
	"fmt"
	"strconv"
	"strings"

	"tgbatch/internal/domain"
)

// Resolver layers per-item parameters over batch-wide defaults.
// Dotted names ("additionalFields.fileName") walk nested maps.
type Resolver struct {
	defaults map[string]any
	items    []map[string]any
}

func NewResolver(defaults map[string]any, items []map[string]any) *Resolver {
	return &Resolver{defaults: defaults, items: items}
}

// Param implements domain.ParameterResolver.
func (r *Resolver) Param(name string, index int, fallback any) any {
	if index >= 0 && index < len(r.items) {
		if v, ok := lookup(r.items[index], name); ok {
			return v
		}
	}
	if v, ok := lookup(r.defaults, name); ok {
		return v
	}
	return fallback
}

func lookup(m map[string]any, name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[name]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(name, ".")
	if !found {
		return nil, false
	}
	child, ok := m[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(child, rest)
}

// String reads a scalar parameter as text. Numbers keep their integer form
// so chat ids written as YAML ints survive.
func String(r domain.ParameterResolver, name string, index int, fallback string) string {
	return ToString(r.Param(name, index, fallback))
}

// ToString renders a scalar the way it would be typed into a form field.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Bool reads a boolean parameter; "true"/"false" strings are accepted.
func Bool(r domain.ParameterResolver, name string, index int, fallback bool) bool {
	switch t := r.Param(name, index, fallback).(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return fallback
}

// Collection reads a map-valued parameter. Missing or non-map values yield nil.
func Collection(r domain.ParameterResolver, name string, index int) map[string]any {
	m, _ := r.Param(name, index, nil).(map[string]any)
	return m
}
