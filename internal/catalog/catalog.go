// Package catalog defines what the core reads from provider catalog adapters.
// Adapters (LibriVox, YouTube, ...) live in the embedding application.
package catalog

import (
	"context"
	"time"
)

// Adapter searches one content provider and resolves book details.
type Adapter interface {
	Search(ctx context.Context, query string) ([]BookSummary, error)
	GetBook(ctx context.Context, url string) (*BookDetail, error)
}

// BookSummary is a search hit.
type BookSummary struct {
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	URL      string `json:"url"`
	ImageURL string `json:"image_url,omitempty"`
}

// BookDetail is a resolved remote book with its ordered chapter references.
type BookDetail struct {
	Title       string       `json:"title"`
	Author      string       `json:"author,omitempty"`
	Description string       `json:"description,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Chapters    []ChapterRef `json:"chapters"`
}

// ChapterRef points at one remote chapter asset.
type ChapterRef struct {
	URL      string        `json:"url"`
	Duration time.Duration `json:"duration,omitempty"`
	Reader   string        `json:"reader,omitempty"`
}
