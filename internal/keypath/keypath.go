// Package keypath joins and splits object keys that emulate a directory tree
// with a delimiter.
package keypath

import "strings"

// Delimiter separates hierarchy levels inside an object key.
const Delimiter = "/"

// Join combines a parent key and a child name with exactly one delimiter
// between them. An empty parent means no prefix. A trailing delimiter on the
// child is preserved so directory keys survive the join.
func Join(parent, child string) string {
	child = strings.TrimLeft(child, Delimiter)
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return strings.TrimRight(parent, Delimiter) + Delimiter + child
}

// Name returns the display name of a key: one trailing delimiter is removed,
// then everything up to and including the last remaining delimiter.
func Name(key string) string {
	key = strings.TrimSuffix(key, Delimiter)
	if i := strings.LastIndex(key, Delimiter); i >= 0 {
		return key[i+1:]
	}
	return key
}

// IsDir reports whether key addresses a directory.
func IsDir(key string) bool {
	return strings.HasSuffix(key, Delimiter)
}

// EnsureDir appends the delimiter to key unless it already ends with one.
func EnsureDir(key string) string {
	if IsDir(key) {
		return key
	}
	return key + Delimiter
}

// Clean collapses repeated delimiters and strips leading and trailing ones.
// "/a//b/" becomes "a/b"; a string made only of delimiters becomes "".
func Clean(key string) string {
	parts := strings.Split(key, Delimiter)
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, Delimiter)
}

// Split breaks a slash path into its non-empty segments.
func Split(path string) []string {
	cleaned := Clean(path)
	if cleaned == "" {
		return nil
	}
	return strings.Split(cleaned, Delimiter)
}

// Rebase rewrites key from under oldPrefix to under newPrefix. The second
// result is false when key does not start with oldPrefix.
func Rebase(key, oldPrefix, newPrefix string) (string, bool) {
	if !strings.HasPrefix(key, oldPrefix) {
		return "", false
	}
	return newPrefix + key[len(oldPrefix):], true
}
