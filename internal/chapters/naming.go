package chapters

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^chapter[\s_-]*\d+$`),
	regexp.MustCompile(`(?i)^chapter\s+(one|two|three|four|five|six|seven|eight|nine|ten)$`),
	regexp.MustCompile(`(?i)^track[\s_-]*\d+$`),
	regexp.MustCompile(`(?i)^part[\s_-]*\d+$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^\d+\.\s*$`),
	regexp.MustCompile(`^\d+\s*-\s*$`),
}

// IsGenericName reports whether a chapter title is a placeholder such as
// "Chapter 3" or "Track 01" that says nothing beyond the ordinal.
func IsGenericName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}
	for _, pattern := range genericPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// DisplayTitle picks a human title for a chapter: the embedded tag title when
// it is meaningful, otherwise "Chapter <ordinal>", otherwise the file name.
func DisplayTitle(f File, tagTitle string) string {
	if !IsGenericName(tagTitle) {
		return strings.TrimSpace(tagTitle)
	}
	if f.HasOrdinal {
		return "Chapter " + strconv.Itoa(f.Ordinal)
	}
	return strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
}
