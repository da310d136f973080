package config

// Errors holds validation messages keyed by domain field name. Fields keep
// the order in which their first message was added.
type Errors struct {
	fields []string
	byName map[string][]string
}

// Add appends msg to the messages recorded for field.
func (e *Errors) Add(field, msg string) {
	if e.byName == nil {
		e.byName = make(map[string][]string)
	}
	if _, ok := e.byName[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.byName[field] = append(e.byName[field], msg)
}

// AddAll merges every message of other into e.
func (e *Errors) AddAll(other *Errors) {
	if other == nil {
		return
	}
	for _, f := range other.fields {
		for _, m := range other.byName[f] {
			e.Add(f, m)
		}
	}
}

// On returns the messages recorded for field.
func (e *Errors) On(field string) []string {
	if e == nil {
		return nil
	}
	return e.byName[field]
}

// Fields returns the fields with messages, in insertion order.
func (e *Errors) Fields() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.fields...)
}

func (e *Errors) IsEmpty() bool { return e == nil || len(e.fields) == 0 }

func (e *Errors) Clear() {
	e.fields = nil
	e.byName = nil
}

// All flattens every message in field order.
func (e *Errors) All() []string {
	if e == nil {
		return nil
	}
	var out []string
	for _, f := range e.fields {
		out = append(out, e.byName[f]...)
	}
	return out
}

// Validatable is implemented by every configuration node that can carry errors.
type Validatable interface {
	Errors() *Errors
}

// errorHolder is embedded by configuration nodes.
type errorHolder struct {
	errs Errors
}

func (h *errorHolder) Errors() *Errors { return &h.errs }

func (h *errorHolder) AddError(field, msg string) { h.errs.Add(field, msg) }
