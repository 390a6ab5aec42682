// Package search provides full-text search over thumbnail references using Bleve.
// Photo names are matched by their words, labels both exactly and through English
// stemming, so "dogs" finds photos labelled "Dog".
package search

import (
	"strings"

	"github.com/sharedalbum/album-server/internal/domain"
)

// Document is the indexed form of a ThumbnailReference. ID is the thumbnail key.
type Document struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Labels    []string `json:"labels,omitempty"`
	CreatedAt int64    `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map keyed by the mapping's field names.
// label_text carries the same labels for analysed matching.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"created_at": d.CreatedAt,
	}
	if len(d.Labels) > 0 {
		m["labels"] = d.Labels
		m["label_text"] = strings.Join(d.Labels, " ")
	}
	return m
}

// DocumentFromThumbnail builds the search document for ref.
func DocumentFromThumbnail(ref *domain.ThumbnailReference) *Document {
	return &Document{
		ID:        ref.ThumbnailKey,
		Name:      ref.ThumbnailName,
		Labels:    ref.Labels,
		CreatedAt: ref.CreatedAt.UnixMilli(),
	}
}
