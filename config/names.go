package config

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// CaseInsensitiveString is the name type shared by every named configuration
// entity. It keeps the spelling it was given but compares by Unicode case folding.
type CaseInsensitiveString string

// NewName returns a CaseInsensitiveString for s.
func NewName(s string) CaseInsensitiveString { return CaseInsensitiveString(s) }

func (s CaseInsensitiveString) String() string { return string(s) }

// Folded returns the case-folded form used for comparisons and map keys.
// A Caser carries state, so a fresh one is created per call.
func (s CaseInsensitiveString) Folded() string {
	return cases.Fold().String(string(s))
}

// Equal reports whether s and o name the same entity.
func (s CaseInsensitiveString) Equal(o CaseInsensitiveString) bool {
	if s == o {
		return true
	}
	return s.Folded() == o.Folded()
}

// IsBlank reports whether the name is empty or whitespace only.
func (s CaseInsensitiveString) IsBlank() bool {
	return strings.TrimSpace(string(s)) == ""
}

// Names converts plain strings to names.
func Names(in []string) []CaseInsensitiveString {
	out := make([]CaseInsensitiveString, 0, len(in))
	for _, s := range in {
		out = append(out, CaseInsensitiveString(s))
	}
	return out
}

// Strings converts names back to plain strings.
func Strings(in []CaseInsensitiveString) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

const maxNameLength = 255

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1}[a-zA-Z0-9_\-.]*$`)

// IsValidName reports whether s may be used as a pipeline, stage, job or
// parameter name.
func IsValidName(s string) bool {
	return s != "" && len(s) <= maxNameLength && namePattern.MatchString(s)
}

func invalidNameMessage(kind, name string) string {
	return "Invalid " + kind + " name '" + displayValue(name) + "'. This must be alphanumeric and can contain underscores and periods (however, it cannot start with a period). The maximum allowed length is 255 characters."
}

// displayValue renders unset values the way messages have always shown them.
func displayValue(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
