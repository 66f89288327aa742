package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Paths are the json names of the config fields joined by dots, e.g.
// "telegram.timeoutSeconds". They are resolved against the Config type, so
// fields omitted from the file are still addressable.

// GetByPath returns the value at path. A section path returns the section.
func GetByPath(cfg *Config, path string) (any, error) {
	v, _, err := lookup(reflect.ValueOf(cfg).Elem(), path)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// SetByPath sets the leaf at path. String values are converted to the
// field's type; cfg is left untouched when conversion fails.
func SetByPath(cfg *Config, path string, value any) error {
	v, _, err := lookup(reflect.ValueOf(cfg).Elem(), path)
	if err != nil {
		return err
	}
	if v.Kind() == reflect.Struct {
		return fmt.Errorf("%s is a section; set one of its keys (%s)", path, strings.Join(keysOf(v.Type()), ", "))
	}
	converted, err := convert(v.Type(), value)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	v.Set(converted)
	return nil
}

// Sanitize returns a copy of the config with every field tagged
// `secret:"true"` masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	eachLeaf(reflect.ValueOf(&out).Elem(), "", func(_ string, v reflect.Value, f reflect.StructField) {
		if f.Tag.Get("secret") == "true" && v.Kind() == reflect.String && v.String() != "" {
			v.SetString(maskSecret(v.String()))
		}
	})
	return &out
}

// SecretPaths lists the paths Sanitize masks.
func SecretPaths() []string {
	var paths []string
	eachLeaf(reflect.ValueOf(&Config{}).Elem(), "", func(path string, _ reflect.Value, f reflect.StructField) {
		if f.Tag.Get("secret") == "true" {
			paths = append(paths, path)
		}
	})
	return paths
}

// ListPaths flattens the config into paths and their current values.
func ListPaths(cfg *Config) map[string]any {
	result := make(map[string]any)
	eachLeaf(reflect.ValueOf(cfg).Elem(), "", func(path string, v reflect.Value, _ reflect.StructField) {
		result[path] = v.Interface()
	})
	return result
}

// maskSecret hides a bot token's secret part. The numeric bot id before
// the colon is public and stays readable; ${VAR} references are not
// secrets and pass through.
func maskSecret(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return s
	}
	if id, secret, ok := strings.Cut(s, ":"); ok && id != "" && len(secret) > 4 {
		return id + ":****"
	}
	return "***"
}

func lookup(v reflect.Value, path string) (reflect.Value, reflect.StructField, error) {
	var field reflect.StructField
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, field, fmt.Errorf("%s is a value, not a section", strings.Join(parts[:i], "."))
		}
		f, ok := fieldByJSONName(v.Type(), part)
		if !ok {
			return reflect.Value{}, field, fmt.Errorf("unknown key %q (known: %s)",
				strings.Join(parts[:i+1], "."), strings.Join(keysOf(v.Type()), ", "))
		}
		field = f
		v = v.FieldByIndex(f.Index)
	}
	return v, field, nil
}

func eachLeaf(v reflect.Value, prefix string, fn func(path string, v reflect.Value, f reflect.StructField)) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := jsonName(f)
		if prefix != "" {
			path = prefix + "." + path
		}
		if fv := v.Field(i); fv.Kind() == reflect.Struct {
			eachLeaf(fv, path, fn)
		} else {
			fn(path, fv, f)
		}
	}
}

func convert(t reflect.Type, value any) (reflect.Value, error) {
	if rv := reflect.ValueOf(value); rv.IsValid() && rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), nil
	}
	s := strings.TrimSpace(fmt.Sprint(value))
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(t), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("want true or false, got %q", s)
		}
		return reflect.ValueOf(b).Convert(t), nil
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("want an integer, got %q", s)
		}
		return reflect.ValueOf(n).Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported field type %s", t)
}

func fieldByJSONName(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); jsonName(f) == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func keysOf(t reflect.Type) []string {
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, jsonName(t.Field(i)))
	}
	sort.Strings(keys)
	return keys
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}
