package representer

import (
	"fmt"

	"github.com/GoCodeAlone/pipelineapi/config"
)

// VariantTable dispatches a polymorphic slot on its "type" discriminator.
// Enveloped variants render as {type, attributes, errors}; flat variants
// render their own fields, including type, at the top level.
type VariantTable[T any] struct {
	tagOf    func(T) string
	unknown  func(tag string) string
	envelope bool
	entries  map[string]*variant[T]
}

type variant[T any] struct {
	fresh   func() T
	encode  func(T, *Env) (*Document, error)
	decode  func(*Document, T, *Env) error
	renames map[string]string
}

// NewVariantTable creates an empty table. tagOf names the variant of a
// domain value; unknown builds the message for an unrecognised tag.
func NewVariantTable[T any](tagOf func(T) string, unknown func(string) string, envelope bool) *VariantTable[T] {
	return &VariantTable[T]{
		tagOf:    tagOf,
		unknown:  unknown,
		envelope: envelope,
		entries:  make(map[string]*variant[T]),
	}
}

// AddVariant registers the concrete type C under tag. C must be assignable
// to T. renames applies to the envelope's errors.
func AddVariant[T, C any](t *VariantTable[T], tag string, fresh func() C, r *Representer[C], renames map[string]string) {
	if _, dup := t.entries[tag]; dup {
		panic(fmt.Sprintf("representer: duplicate variant %q", tag))
	}
	t.entries[tag] = &variant[T]{
		fresh: func() T { return any(fresh()).(T) },
		encode: func(v T, env *Env) (*Document, error) {
			return r.Encode(any(v).(C), env)
		},
		decode: func(d *Document, v T, env *Env) error {
			return r.Decode(d, any(v).(C), env)
		},
		renames: renames,
	}
}

// Encode renders v through the variant registered for its tag.
func (t *VariantTable[T]) Encode(v T, env *Env) (*Document, error) {
	tag := t.tagOf(v)
	entry, ok := t.entries[tag]
	if !ok {
		return nil, fmt.Errorf("representer: no variant registered for %q", tag)
	}
	body, err := entry.encode(v, env)
	if err != nil {
		return nil, err
	}
	if !t.envelope {
		return body, nil
	}
	d := NewDocument().Set("type", tag).Set("attributes", body)
	if val, ok := any(v).(config.Validatable); ok && !val.Errors().IsEmpty() {
		d.Set("errors", ProjectErrors(val.Errors(), entry.renames))
	}
	return d, nil
}

// Decode reads the discriminator from d and builds the matching variant.
func (t *VariantTable[T]) Decode(d *Document, env *Env) (T, error) {
	var zero T
	raw, _ := d.Get("type")
	tag, _ := raw.(string)
	entry, ok := t.entries[tag]
	if !ok {
		return zero, &UnprocessableEntityError{Message: t.unknown(tag)}
	}
	body := d
	if t.envelope {
		attrs, _ := d.Get("attributes")
		switch a := attrs.(type) {
		case *Document:
			body = a
		case nil:
			body = NewDocument()
		default:
			return zero, shapeError("attributes", "an object", attrs)
		}
	}
	v := entry.fresh()
	if err := entry.decode(body, v, env); err != nil {
		return zero, err
	}
	return v, nil
}

// Tags lists the registered discriminators.
func (t *VariantTable[T]) Tags() []string {
	out := make([]string, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	return out
}
