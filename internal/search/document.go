// Package search keeps an in-memory Bleve index of the saved books so the
// library view can be filtered by title, author, or chapter title.
package search

import (
	"strings"

	"github.com/audiody/audiody/internal/domain"
)

// Document is one saved book as it is indexed.
type Document struct {
	ID           string `json:"id"` // directory name, unique per saved book
	BookID       string `json:"book_id,omitempty"`
	Name         string `json:"name"`
	Author       string `json:"author,omitempty"`
	Chapters     string `json:"chapters,omitempty"`
	URL          string `json:"url,omitempty"`
	Duration     int64  `json:"duration,omitempty"` // milliseconds
	ChapterCount int    `json:"chapter_count"`
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":            d.ID,
		"name":          d.Name,
		"chapter_count": d.ChapterCount,
	}
	if d.BookID != "" {
		m["book_id"] = d.BookID
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Chapters != "" {
		m["chapters"] = d.Chapters
	}
	if d.URL != "" {
		m["url"] = d.URL
	}
	if d.Duration > 0 {
		m["duration"] = d.Duration
	}
	return m
}

// BookToDocument converts a saved book. Generic chapter titles are left out
// so "chapter" does not match every book.
func BookToDocument(book *domain.Book) *Document {
	titles := make([]string, 0, len(book.Chapters))
	for _, ch := range book.Chapters {
		if ch.Title != "" && !strings.HasPrefix(ch.Title, "Chapter ") {
			titles = append(titles, ch.Title)
		}
	}
	return &Document{
		ID:           book.Title,
		BookID:       string(book.ID),
		Name:         book.Title,
		Author:       book.Author,
		Chapters:     strings.Join(titles, "\n"),
		URL:          book.URL,
		Duration:     book.TotalDuration().Milliseconds(),
		ChapterCount: len(book.Chapters),
	}
}
