// Package remotepath splits and joins "container/key" remote paths.
package remotepath

import "strings"

// Separator delimits the container and the segments of a key.
const Separator = "/"

// Split splits path into its container and key.
// The container is the first segment; the key is everything after the first
// separator, or "" when path has none (a reference to the container root).
func Split(path string) (container, key string) {
	container, key, _ = strings.Cut(path, Separator)
	return container, key
}

// Join is the inverse of Split for any path containing a separator.
// An empty key yields "container/".
func Join(container, key string) string {
	return container + Separator + key
}

// JoinKey appends a relative slash path to a remote path.
func JoinKey(prefix, rel string) string {
	if rel == "" {
		return prefix
	}
	if prefix == "" || strings.HasSuffix(prefix, Separator) {
		return prefix + rel
	}
	return prefix + Separator + rel
}
