package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden)
	assert.Equal(t, 500*time.Millisecond, opts.SettleDelay)
	assert.Contains(t, opts.IgnorePatterns, "*.part")
	assert.Contains(t, opts.IgnorePatterns, ".DS_Store")
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		SettleDelay:    50 * time.Millisecond,
		IgnorePatterns: []string{"*.bak"},
	}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden)
	assert.Equal(t, 50*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, []string{"*.bak"}, opts.IgnorePatterns)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	tests := []struct {
		rel    string
		ignore bool
	}{
		{"The Republic", false},
		{"The Republic/chapter_1.mp3", false},
		{"The Republic/.chapter_2.mp3.123.part", true},
		{"The Republic/chapter_2.mp3.part", true},
		{".trash/chapter_1.mp3", true},
		{"The Republic/.DS_Store", true},
		{"The Republic/settings.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.ignore, opts.shouldIgnore(tt.rel))
		})
	}
}
