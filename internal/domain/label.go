package domain

import "slices"

// Label maps a label name to the thumbnails carrying it, in the order they were labelled.
// A label with no thumbnails is deleted rather than stored empty.
type Label struct {
	Name          string   `json:"name"`
	ThumbnailKeys []string `json:"thumbnail_keys"`
}

// Add appends key unless already present and reports whether the label changed.
func (l *Label) Add(key string) bool {
	if slices.Contains(l.ThumbnailKeys, key) {
		return false
	}
	l.ThumbnailKeys = append(l.ThumbnailKeys, key)
	return true
}

// Remove drops every occurrence of key and reports whether the label changed.
func (l *Label) Remove(key string) bool {
	n := len(l.ThumbnailKeys)
	l.ThumbnailKeys = slices.DeleteFunc(l.ThumbnailKeys, func(k string) bool { return k == key })
	return len(l.ThumbnailKeys) != n
}

// IsEmpty reports whether no thumbnail carries the label any more.
func (l *Label) IsEmpty() bool {
	return len(l.ThumbnailKeys) == 0
}

// NewestFirst returns the keys most recently labelled first.
func (l *Label) NewestFirst() []string {
	keys := slices.Clone(l.ThumbnailKeys)
	slices.Reverse(keys)
	return keys
}
