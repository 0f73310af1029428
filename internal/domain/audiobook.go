package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// BookID is a stable identity derived from a book's canonical source URL.
type BookID string

// NewBookID hashes the canonical form of sourceURL. Empty input yields an empty ID.
func NewBookID(sourceURL string) BookID {
	canonical := CanonicalURL(sourceURL)
	if canonical == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(canonical))
	return BookID(hex.EncodeToString(sum[:8]))
}

// CanonicalURL lower-cases scheme and host, drops the fragment, default ports,
// and any trailing slash so equivalent book URLs compare equal.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// Chapter is one locally cached chapter file.
type Chapter struct {
	// Index is the 0-based chapter index; -1 when the filename carries no ordinal.
	Index    int           `json:"index"`
	Ordinal  int           `json:"ordinal"`
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Title    string        `json:"title,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Book is the local view of an audiobook assembled from its cache directory.
type Book struct {
	ID            BookID         `json:"id"`
	Title         string         `json:"title"`
	Author        string         `json:"author,omitempty"`
	URL           string         `json:"url"`
	Saved         bool           `json:"saved"`
	Dir           string         `json:"dir"`
	CoverPath     string         `json:"cover_path,omitempty"`
	CoverBlurHash string         `json:"cover_blurhash,omitempty"`
	Chapters      []Chapter      `json:"chapters"`
	Progress      ProgressRecord `json:"progress"`
}

// TotalDuration sums known chapter durations.
func (b *Book) TotalDuration() time.Duration {
	var total time.Duration
	for _, ch := range b.Chapters {
		total += ch.Duration
	}
	return total
}

// Chapter returns the cached chapter with the given 0-based index.
func (b *Book) Chapter(index int) (Chapter, bool) {
	for _, ch := range b.Chapters {
		if ch.Index == index {
			return ch, true
		}
	}
	return Chapter{}, false
}
