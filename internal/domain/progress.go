package domain

// ProgressRecord is the per-book resume state persisted as settings.json.
// Nil fields serialize as null.
type ProgressRecord struct {
	BookURL            string   `json:"book_url"`
	CurrentChapter     *int     `json:"current_chapter"`
	CurrentChapterTime *float64 `json:"current_chapter_time"`
}

// HasPosition reports whether both chapter and offset are set.
func (p ProgressRecord) HasPosition() bool {
	return p.CurrentChapter != nil && p.CurrentChapterTime != nil
}

// Ptr returns a pointer to v, for building optional record fields.
func Ptr[T any](v T) *T {
	return &v
}
