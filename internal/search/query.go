package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search.
type Params struct {
	Query  string
	Limit  int
	Offset int
	// SortBy is "relevance" (default), "title", or "duration".
	SortBy string
}

// Result is a page of hits.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is one matching book.
type Hit struct {
	Title        string            `json:"title"`
	BookID       string            `json:"book_id,omitempty"`
	Author       string            `json:"author,omitempty"`
	Score        float64           `json:"score"`
	Duration     int64             `json:"duration,omitempty"`
	ChapterCount int               `json:"chapter_count"`
	Highlights   map[string]string `json:"highlights,omitempty"`
}

// Search executes a query. An empty query matches every book.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(params.Query), params.Limit, params.Offset, false)
	switch params.SortBy {
	case "title":
		req.SortBy([]string{"name_sort"})
	case "duration":
		req.SortBy([]string{"-duration"})
	default:
		req.SortBy([]string{"-_score", "name_sort"})
	}
	if params.Query != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("name")
		req.Highlight.AddField("author")
	}
	req.Fields = []string{"name", "book_id", "author", "duration", "chapter_count"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{Title: h.ID, Score: h.Score}
		if v, ok := h.Fields["book_id"].(string); ok {
			hit.BookID = v
		}
		if v, ok := h.Fields["author"].(string); ok {
			hit.Author = v
		}
		if v, ok := h.Fields["duration"].(float64); ok {
			hit.Duration = int64(v)
		}
		if v, ok := h.Fields["chapter_count"].(float64); ok {
			hit.ChapterCount = int(v)
		}
		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string, len(h.Fragments))
			for field, fragments := range h.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// buildQuery matches title first, then author, then chapter titles, with
// fuzzy and prefix fallbacks on the title for typos and typing-as-you-go.
func buildQuery(text string) query.Query {
	text = strings.TrimSpace(text)
	if text == "" {
		return bleve.NewMatchAllQuery()
	}

	nameMatch := bleve.NewMatchQuery(text)
	nameMatch.SetField("name")
	nameMatch.SetBoost(3.0)

	authorMatch := bleve.NewMatchQuery(text)
	authorMatch.SetField("author")
	authorMatch.SetBoost(1.5)

	chapterMatch := bleve.NewMatchQuery(text)
	chapterMatch.SetField("chapters")
	chapterMatch.SetBoost(0.7)

	fuzzy := bleve.NewFuzzyQuery(strings.ToLower(text))
	fuzzy.SetFuzziness(1)
	fuzzy.SetField("name")
	fuzzy.SetBoost(0.8)

	queries := []query.Query{nameMatch, authorMatch, chapterMatch, fuzzy}
	if len(text) >= 2 {
		prefix := bleve.NewPrefixQuery(strings.ToLower(text))
		prefix.SetField("name")
		prefix.SetBoost(0.5)
		queries = append(queries, prefix)
	}
	return bleve.NewDisjunctionQuery(queries...)
}
