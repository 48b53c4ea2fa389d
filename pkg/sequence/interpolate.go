package sequence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolvePath walks a dotted path against state, with array indices
// written either foo.0 or foo[0] (the latter normalized to the former
// before traversal). ok is false when any segment along the path is
// missing, so callers can distinguish "undefined" from a real zero value.
func ResolvePath(path string, state map[string]any) (any, bool) {
	segments := strings.Split(normalizePath(path), ".")
	var current any = state
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		switch c := current.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			current = c[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func normalizePath(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch r {
		case '[':
			b.WriteByte('.')
		case ']':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// InterpolateValue resolves one input_mapping entry. A template that is
// exactly one placeholder returns the referenced value with its original
// type preserved (so a step can pass through a number, object, or array);
// anything else — including a template with no placeholders at all — is
// treated as a string template via InterpolateString.
func InterpolateValue(template string, state map[string]any) any {
	if m := placeholderPattern.FindStringSubmatch(template); m != nil && m[0] == template {
		v, ok := ResolvePath(m[1], state)
		if !ok {
			return nil
		}
		return v
	}
	return InterpolateString(template, state)
}

// InterpolateString substitutes every ${path} occurrence in template with
// its stringified value; a missing path resolves to an empty string. Pure
// function: identity when vars is empty and template contains no
// placeholders.
func InterpolateString(template string, state map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := match[2 : len(match)-1]
		v, ok := ResolvePath(path, state)
		if !ok {
			return ""
		}
		return stringify(v)
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
