package vision

import (
	"slices"
	"strings"

	"github.com/sharedalbum/album-server/internal/normalize"
)

// ignoredWords are not useful as labels on their own.
var ignoredWords = []string{"of", "like", "the", "and", "a", "an", "with"}

// BuildLabels derives a photo's labels from its filename stem and the detected
// annotations. The stem comes first. Each annotation description follows, then
// each of its words except ignored ones. Labels are NFC normalised and unique.
// At most maxLabels annotations are used when maxLabels is positive.
func BuildLabels(stem string, annotations []LabelAnnotation, maxLabels int) []string {
	if maxLabels > 0 && len(annotations) > maxLabels {
		annotations = annotations[:maxLabels]
	}

	var labels []string
	add := func(s string) {
		s = normalize.Label(s)
		if s != "" && !slices.Contains(labels, s) {
			labels = append(labels, s)
		}
	}

	add(stem)
	for _, a := range annotations {
		desc := normalize.Label(a.Description)
		if desc == "" || slices.Contains(labels, desc) {
			continue
		}
		add(desc)
		for _, word := range strings.Fields(desc) {
			if !slices.Contains(ignoredWords, word) {
				add(word)
			}
		}
	}
	return labels
}

// AppendUnique appends values to labels, skipping any already present.
func AppendUnique(labels []string, values ...string) []string {
	for _, v := range values {
		v = normalize.Label(v)
		if v != "" && !slices.Contains(labels, v) {
			labels = append(labels, v)
		}
	}
	return labels
}
