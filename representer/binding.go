package representer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/pipelineapi/config"
)

// Env carries the collaborators encode and decode may need.
type Env struct {
	Cipher  config.Cipher
	Plugins config.PluginSecurity
	Links   *LinkBuilder
}

func (e *Env) cipher() config.Cipher {
	if e == nil {
		return nil
	}
	return e.Cipher
}

func (e *Env) plugins() config.PluginSecurity {
	if e == nil {
		return nil
	}
	return e.Plugins
}

// UnprocessableEntityError reports input that cannot be mapped onto the
// domain model. It maps to HTTP 422.
type UnprocessableEntityError struct {
	Message string
}

func (e *UnprocessableEntityError) Error() string { return e.Message }

func unprocessable(format string, args ...any) error {
	return &UnprocessableEntityError{Message: fmt.Sprintf(format, args...)}
}

// secureValueError turns a missing cipher into a client error for key.
func secureValueError(key string, err error) error {
	if errors.Is(err, config.ErrNoCipher) {
		return unprocessable("Secure values for '%s' cannot be saved because no encryption key is configured.", key)
	}
	return err
}

func shapeError(key, want string, got any) error {
	return unprocessable("Expected %s to contain %s, got a %s instead!", key, want, kindOf(got))
}

// Field binds one wire key to a part of T.
type Field[T any] struct {
	key    string
	render func(T, *Env) (any, error)
	parse  func(T, any, *Env) error

	collection    bool
	object        bool
	readOnly      bool
	writeOnly     bool
	omitEmpty     bool
	nullWhenEmpty bool
	skip          func(T) bool
}

// Key returns the wire key.
func (f Field[T]) Key() string { return f.key }

// ReadOnly renders the field but never parses it.
func (f Field[T]) ReadOnly() Field[T] { f.readOnly = true; return f }

// WriteOnly parses the field but never renders it.
func (f Field[T]) WriteOnly() Field[T] { f.writeOnly = true; return f }

// OmitEmpty drops the key from the output when its value is empty.
func (f Field[T]) OmitEmpty() Field[T] { f.omitEmpty = true; return f }

// NullWhenEmpty renders null instead of an empty value.
func (f Field[T]) NullWhenEmpty() Field[T] { f.nullWhenEmpty = true; return f }

// SkipEmptyItems drops empty objects from a submitted list before parsing.
func (f Field[T]) SkipEmptyItems() Field[T] {
	parse := f.parse
	f.parse = func(v T, raw any, env *Env) error {
		items, ok := raw.([]any)
		if !ok {
			return parse(v, raw, env)
		}
		kept := make([]any, 0, len(items))
		for _, it := range items {
			if d, isDoc := it.(*Document); isDoc && d.Len() == 0 {
				continue
			}
			kept = append(kept, it)
		}
		return parse(v, kept, env)
	}
	return f
}

// SkipWhen leaves the key out of the output whenever cond holds for the value.
func (f Field[T]) SkipWhen(cond func(T) bool) Field[T] { f.skip = cond; return f }

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case *Document:
		return x.Len() == 0
	}
	return false
}

// String binds a string.
func String[T any](key string, get func(T) string, set func(T, string)) Field[T] {
	f := Field[T]{key: key}
	if get != nil {
		f.render = func(v T, _ *Env) (any, error) { return get(v), nil }
	}
	if set != nil {
		f.parse = func(v T, raw any, _ *Env) error {
			s, err := asString(key, raw, false)
			if err != nil {
				return err
			}
			set(v, s)
			return nil
		}
	}
	return f
}

// NullableString binds a string that renders null when empty. Numbers are
// accepted on input and kept in their literal form.
func NullableString[T any](key string, get func(T) string, set func(T, string)) Field[T] {
	f := Field[T]{key: key, nullWhenEmpty: true}
	if get != nil {
		f.render = func(v T, _ *Env) (any, error) { return get(v), nil }
	}
	if set != nil {
		f.parse = func(v T, raw any, _ *Env) error {
			s, err := asString(key, raw, true)
			if err != nil {
				return err
			}
			set(v, s)
			return nil
		}
	}
	return f
}

// Name binds a case-insensitive name through its string form.
func Name[T any](key string, get func(T) config.CaseInsensitiveString, set func(T, config.CaseInsensitiveString)) Field[T] {
	var g func(T) string
	var s func(T, string)
	if get != nil {
		g = func(v T) string { return get(v).String() }
	}
	if set != nil {
		s = func(v T, str string) { set(v, config.NewName(str)) }
	}
	return String(key, g, s)
}

// Bool binds a boolean. null parses as false.
func Bool[T any](key string, get func(T) bool, set func(T, bool)) Field[T] {
	f := Field[T]{key: key}
	if get != nil {
		f.render = func(v T, _ *Env) (any, error) { return get(v), nil }
	}
	if set != nil {
		f.parse = func(v T, raw any, _ *Env) error {
			switch b := raw.(type) {
			case nil:
				set(v, false)
			case bool:
				set(v, b)
			default:
				return shapeError(key, "a boolean", raw)
			}
			return nil
		}
	}
	return f
}

// Strings binds a list of strings.
func Strings[T any](key string, get func(T) []string, set func(T, []string)) Field[T] {
	f := Field[T]{key: key, collection: true}
	if get != nil {
		f.render = func(v T, _ *Env) (any, error) {
			out := []any{}
			for _, s := range get(v) {
				out = append(out, s)
			}
			return out, nil
		}
	}
	if set != nil {
		f.parse = func(v T, raw any, _ *Env) error {
			items, err := asArray(key, raw)
			if err != nil {
				return err
			}
			out := make([]string, 0, len(items))
			for _, it := range items {
				s, err := asString(key, it, true)
				if err != nil {
					return err
				}
				out = append(out, s)
			}
			set(v, out)
			return nil
		}
	}
	return f
}

// Object binds a single nested entity rendered by r. get reports false when
// the entity is absent.
func Object[T, C any](key string, get func(T) (C, bool), set func(T, C), fresh func() C, r *Representer[C]) Field[T] {
	f := Field[T]{key: key, object: true}
	if get != nil {
		f.render = func(v T, env *Env) (any, error) {
			c, ok := get(v)
			if !ok {
				return nil, nil
			}
			return r.Encode(c, env)
		}
	}
	if set != nil {
		f.parse = func(v T, raw any, env *Env) error {
			c := fresh()
			if err := r.Decode(raw.(*Document), c, env); err != nil {
				return err
			}
			set(v, c)
			return nil
		}
	}
	return f
}

// Collection binds a list of nested entities rendered by r.
func Collection[T, C any](key string, get func(T) []C, set func(T, []C), fresh func() C, r *Representer[C]) Field[T] {
	f := Field[T]{key: key, collection: true}
	if get != nil {
		f.render = func(v T, env *Env) (any, error) {
			out := []any{}
			for _, c := range get(v) {
				d, err := r.Encode(c, env)
				if err != nil {
					return nil, err
				}
				out = append(out, d)
			}
			return out, nil
		}
	}
	if set != nil {
		f.parse = func(v T, raw any, env *Env) error {
			items, err := asArray(key, raw)
			if err != nil {
				return err
			}
			out := make([]C, 0, len(items))
			for _, it := range items {
				d, ok := it.(*Document)
				if !ok {
					return shapeError(key, "an object", it)
				}
				c := fresh()
				if err := r.Decode(d, c, env); err != nil {
					return err
				}
				out = append(out, c)
			}
			set(v, out)
			return nil
		}
	}
	return f
}

// Variants binds a list of polymorphic entities resolved through t.
func Variants[T, C any](key string, get func(T) []C, set func(T, []C), t *VariantTable[C]) Field[T] {
	f := Field[T]{key: key, collection: true}
	f.render = func(v T, env *Env) (any, error) {
		out := []any{}
		for _, c := range get(v) {
			d, err := t.Encode(c, env)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	}
	f.parse = func(v T, raw any, env *Env) error {
		items, err := asArray(key, raw)
		if err != nil {
			return err
		}
		out := make([]C, 0, len(items))
		for _, it := range items {
			d, ok := it.(*Document)
			if !ok {
				return shapeError(key, "an object", it)
			}
			c, err := t.Decode(d, env)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		set(v, out)
		return nil
	}
	return f
}

// Variant binds a single optional polymorphic entity resolved through t.
func Variant[T, C any](key string, get func(T) (C, bool), set func(T, C), t *VariantTable[C]) Field[T] {
	f := Field[T]{key: key, object: true}
	f.render = func(v T, env *Env) (any, error) {
		c, ok := get(v)
		if !ok {
			return nil, nil
		}
		return t.Encode(c, env)
	}
	f.parse = func(v T, raw any, env *Env) error {
		c, err := t.Decode(raw.(*Document), env)
		if err != nil {
			return err
		}
		set(v, c)
		return nil
	}
	return f
}

// Computed renders a value derived from T; it is never parsed.
func Computed[T any](key string, render func(T, *Env) (any, error)) Field[T] {
	return Field[T]{key: key, render: render, readOnly: true}
}

// Custom binds a key with hand-written render and parse functions. Either may be nil.
func Custom[T any](key string, render func(T, *Env) (any, error), parse func(T, any, *Env) error) Field[T] {
	return Field[T]{key: key, render: render, parse: parse}
}

// ErrorsField renders the node's validation errors through renames.
func ErrorsField[T config.Validatable](renames map[string]string) Field[T] {
	return Computed("errors", func(v T, _ *Env) (any, error) {
		return ProjectErrors(v.Errors(), renames), nil
	})
}

func asString(key string, raw any, allowNumber bool) (string, error) {
	switch s := raw.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case json.Number:
		if allowNumber {
			return s.String(), nil
		}
	}
	return "", shapeError(key, "a string", raw)
}

func asArray(key string, raw any) ([]any, error) {
	switch a := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		return a, nil
	}
	return nil, shapeError(key, "an array", raw)
}

// Representer maps a domain entity T to and from a Document using an ordered
// list of field bindings.
type Representer[T any] struct {
	fields []Field[T]
}

// New builds a representer. It panics when two fields share a wire key.
func New[T any](fields ...Field[T]) *Representer[T] {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.key] {
			panic(fmt.Sprintf("representer: duplicate key %q", f.key))
		}
		seen[f.key] = true
	}
	return &Representer[T]{fields: fields}
}

// Encode renders v field by field in declaration order.
func (r *Representer[T]) Encode(v T, env *Env) (*Document, error) {
	d := NewDocument()
	for _, f := range r.fields {
		if f.writeOnly || f.render == nil || (f.skip != nil && f.skip(v)) {
			continue
		}
		val, err := f.render(v, env)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", f.key, err)
		}
		if isEmpty(val) {
			if f.omitEmpty {
				continue
			}
			if f.nullWhenEmpty {
				val = nil
			}
		}
		d.Set(f.key, val)
	}
	return d, nil
}

// Decode applies d onto v. Collection keys missing from d are decoded as
// empty lists; unknown keys and read-only fields are ignored.
func (r *Representer[T]) Decode(d *Document, v T, env *Env) error {
	for _, f := range r.fields {
		if f.readOnly || f.parse == nil {
			continue
		}
		raw, ok := d.Get(f.key)
		if f.collection && (!ok || raw == nil) {
			raw, ok = []any{}, true
		}
		if !ok {
			continue
		}
		if f.object {
			if raw == nil {
				continue
			}
			if _, isDoc := raw.(*Document); !isDoc {
				return shapeError(f.key, "an object", raw)
			}
		}
		if err := f.parse(v, raw, env); err != nil {
			return err
		}
	}
	return nil
}
