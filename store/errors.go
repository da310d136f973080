package store

import "errors"

// ErrNotFound is wrapped by lookups of pipelines that do not exist.
var ErrNotFound = errors.New("not found")
