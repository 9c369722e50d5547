package value

import "strings"

// Wildcard is the path reported when a query path does not resolve and
// the whole root is returned instead.
const Wildcard = "*"

// SplitPath splits a dot-separated path. The empty path has no segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Lookup walks segments from v. Every segment must be an own key of a
// mapping; it reports false on the first segment that is absent or when
// the current value is not a mapping.
func Lookup(v Value, segments []string) (Value, bool) {
	cur := v
	for _, seg := range segments {
		next, ok := cur.Get(seg)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Resolve navigates path within root and never fails. It returns the
// nested value and the path when the path resolves, root and "" for the
// empty path, and root and Wildcard otherwise.
func Resolve(root Value, path string) (Value, string) {
	if path == "" {
		return root, ""
	}
	if v, ok := Lookup(root, SplitPath(path)); ok {
		return v, path
	}
	return root, Wildcard
}
