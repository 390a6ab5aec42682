package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sharedalbum/album-server/internal/storage"
	"github.com/sharedalbum/album-server/internal/store"
)

// LabelEntry is one (label, thumbnail key) pair of the label index.
type LabelEntry struct {
	Label string `json:"label"`
	Key   string `json:"key"`
}

// ConsistencyReport lists the disagreements between the thumbnail references,
// the label index and the thumbnail bucket.
type ConsistencyReport struct {
	Thumbnails int `json:"thumbnails"`
	Labels     int `json:"labels"`

	// MissingObjects are references whose thumbnail object is gone.
	MissingObjects []string `json:"missing_objects,omitempty"`
	// DanglingEntries are label entries pointing at no reference, or at a
	// reference that does not carry the label.
	DanglingEntries []LabelEntry `json:"dangling_entries,omitempty"`
	// MissingEntries are reference labels absent from the label index.
	MissingEntries []LabelEntry `json:"missing_entries,omitempty"`
}

// OK reports whether nothing is out of place.
func (r *ConsistencyReport) OK() bool {
	return len(r.MissingObjects) == 0 && len(r.DanglingEntries) == 0 && len(r.MissingEntries) == 0
}

// ConsistencyChecker cross-checks the store against itself and the thumbnail bucket.
type ConsistencyChecker struct {
	store      store.Repository
	thumbnails storage.Bucket
	logger     *slog.Logger
}

// NewConsistencyChecker creates a checker. thumbnails may be nil to skip the
// object existence check.
func NewConsistencyChecker(st store.Repository, thumbnails storage.Bucket, logger *slog.Logger) *ConsistencyChecker {
	return &ConsistencyChecker{store: st, thumbnails: thumbnails, logger: logger}
}

// Check builds a report without changing anything.
func (c *ConsistencyChecker) Check(ctx context.Context) (*ConsistencyReport, error) {
	refs, err := c.store.ListThumbnails(ctx)
	if err != nil {
		return nil, fmt.Errorf("list thumbnails: %w", err)
	}
	labels, err := c.store.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}

	report := &ConsistencyReport{Thumbnails: len(refs), Labels: len(labels)}

	// label -> keys listed by the index
	indexed := make(map[string]map[string]struct{}, len(labels))
	for _, l := range labels {
		keys := make(map[string]struct{}, len(l.ThumbnailKeys))
		for _, k := range l.ThumbnailKeys {
			keys[k] = struct{}{}
		}
		indexed[l.Name] = keys
	}

	carried := make(map[string]map[string]struct{}, len(refs))
	for _, ref := range refs {
		own := make(map[string]struct{}, len(ref.Labels))
		for _, label := range ref.Labels {
			own[label] = struct{}{}
			if _, ok := indexed[label][ref.ThumbnailKey]; !ok {
				report.MissingEntries = append(report.MissingEntries, LabelEntry{Label: label, Key: ref.ThumbnailKey})
			}
		}
		carried[ref.ThumbnailKey] = own

		if c.thumbnails == nil {
			continue
		}
		exists, err := storage.Exists(ctx, c.thumbnails, ref.ThumbnailKey)
		if err != nil {
			return nil, fmt.Errorf("stat thumbnail %s: %w", ref.ThumbnailKey, err)
		}
		if !exists {
			report.MissingObjects = append(report.MissingObjects, ref.ThumbnailKey)
		}
	}

	for _, l := range labels {
		for _, key := range l.ThumbnailKeys {
			own, ok := carried[key]
			if !ok {
				report.DanglingEntries = append(report.DanglingEntries, LabelEntry{Label: l.Name, Key: key})
				continue
			}
			if _, ok := own[l.Name]; !ok {
				report.DanglingEntries = append(report.DanglingEntries, LabelEntry{Label: l.Name, Key: key})
			}
		}
	}

	return report, nil
}

// Repair brings the label index in line with the references. Missing thumbnail
// objects cannot be regenerated here and are left in the report.
func (c *ConsistencyChecker) Repair(ctx context.Context, report *ConsistencyReport) error {
	for _, e := range report.DanglingEntries {
		if err := c.store.RemoveThumbnailFromLabels(ctx, []string{e.Label}, e.Key); err != nil {
			return fmt.Errorf("remove %s from %s: %w", e.Key, e.Label, err)
		}
		c.logger.Info("removed dangling label entry", "label", e.Label, "key", e.Key)
	}
	for _, e := range report.MissingEntries {
		if err := c.store.AddThumbnailToLabels(ctx, []string{e.Label}, e.Key); err != nil {
			return fmt.Errorf("add %s to %s: %w", e.Key, e.Label, err)
		}
		c.logger.Info("restored label entry", "label", e.Label, "key", e.Key)
	}
	return nil
}
