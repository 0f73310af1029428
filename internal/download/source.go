package download

import (
	"net/url"
	"path"
	"strings"

	"github.com/audiody/audiody/internal/chapters"
)

// Kind selects how a chapter source is fetched.
type Kind int

const (
	// KindDirect is a plain HTTP asset.
	KindDirect Kind = iota
	// KindArchive is a direct asset on an archive-style host that also serves a thumbnail.
	KindArchive
	// KindExtractor is a video host handled by the chapter extraction tool.
	KindExtractor
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindArchive:
		return "archive"
	case KindExtractor:
		return "extractor"
	default:
		return "unknown"
	}
}

var extractorHosts = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

// DetectKind classifies a source URL by host.
func DetectKind(rawURL string) Kind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return KindDirect
	}
	host := strings.ToLower(u.Hostname())

	for _, h := range extractorHosts {
		if hostMatches(host, h) {
			return KindExtractor
		}
	}
	if hostMatches(host, "archive.org") {
		return KindArchive
	}
	return KindDirect
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// extensionFor keeps the asset's audio extension, defaulting to .mp3.
func extensionFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp3"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if chapters.IsAudioFile("x" + ext) {
		return ext
	}
	return ".mp3"
}
