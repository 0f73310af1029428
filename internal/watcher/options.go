package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures the watcher.
type Options struct {
	IgnorePatterns []string
	// SettleDelay is how long a book must stay quiet before its event fires.
	SettleDelay  time.Duration
	IgnoreHidden bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}

	// Patterns set explicitly (even to an empty slice) keep the caller's IgnoreHidden.
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.part",
			"*.tmp",
			"*.ytdl",
			"Thumbs.db",
		}
		o.IgnoreHidden = true
	}
}

// shouldIgnore checks rel, a path relative to the books root.
func (o *Options) shouldIgnore(rel string) bool {
	if o.IgnoreHidden {
		for part := range strings.SplitSeq(filepath.Clean(rel), string(filepath.Separator)) {
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
