package representer

import "github.com/GoCodeAlone/pipelineapi/config"

// ProjectErrors maps domain field names onto wire keys. Fields without an
// entry in renames keep their domain name. When two fields project onto the
// same key the later one wins.
func ProjectErrors(errs *config.Errors, renames map[string]string) *Document {
	d := NewDocument()
	for _, field := range errs.Fields() {
		key := field
		if renamed, ok := renames[field]; ok {
			key = renamed
		}
		msgs := []any{}
		for _, m := range errs.On(field) {
			msgs = append(msgs, m)
		}
		d.Set(key, msgs)
	}
	return d
}
