package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures the file watcher behavior.
type Options struct {
	// IgnorePatterns are filepath.Match patterns tested against base names.
	// nil selects the defaults and also turns on IgnoreHidden.
	IgnorePatterns []string
	// SettleDelay is how long a file must stay unchanged before it is reported.
	SettleDelay  time.Duration
	IgnoreHidden bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 250 * time.Millisecond
	}

	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"Thumbs.db",
			"*.tmp",
			"*.part",
			"*.crdownload",
		}
		o.IgnoreHidden = true
	}
}

// shouldIgnore reports whether rel, a path relative to the watched root, is
// filtered out.
func (o *Options) shouldIgnore(rel string) bool {
	rel = filepath.Clean(rel)

	if o.IgnoreHidden {
		for part := range strings.SplitSeq(rel, string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(rel)
	for _, pattern := range o.IgnorePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
