package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/audiody/audiody/internal/domain"
	"github.com/audiody/audiody/internal/search"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/library",
		Summary:     "List saved books",
		Description: "Returns every book with a cache directory, sorted by title",
		Tags:        []string{"Library"},
	}, s.handleListLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/library/search",
		Summary:     "Search saved books",
		Description: "Full-text search over titles, authors, and chapter titles of saved books",
		Tags:        []string{"Library"},
	}, s.handleSearchLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLibraryBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/library/{title}",
		Summary:     "Get saved book",
		Description: "Returns one saved book with chapters and progress",
		Tags:        []string{"Library"},
	}, s.handleGetLibraryBook)
}

// ListLibraryOutput contains the saved books.
type ListLibraryOutput struct {
	Body struct {
		Books []*domain.Book `json:"books" doc:"Saved books"`
		Total int            `json:"total" doc:"Number of saved books"`
	}
}

// GetLibraryBookInput identifies a saved book.
type GetLibraryBookInput struct {
	Title string `path:"title" maxLength:"512" doc:"Book title (cache directory name)"`
}

// GetLibraryBookOutput contains a saved book.
type GetLibraryBookOutput struct {
	Body *domain.Book
}

// SearchLibraryInput contains search parameters.
type SearchLibraryInput struct {
	Query  string `query:"q" maxLength:"200" doc:"Search text; empty lists everything"`
	Limit  int    `query:"limit" minimum:"0" maximum:"100" doc:"Max hits (default 20)"`
	Offset int    `query:"offset" minimum:"0" doc:"Pagination offset"`
	Sort   string `query:"sort" enum:"relevance,title,duration" doc:"Sort order (default relevance)"`
}

// SearchLibraryOutput contains search results.
type SearchLibraryOutput struct {
	Body *search.Result
}

func (s *Server) handleListLibrary(ctx context.Context, _ *struct{}) (*ListLibraryOutput, error) {
	books, err := s.services.Library.SavedBooks(ctx)
	if err != nil {
		return nil, toAPIError(err)
	}
	if books == nil {
		books = []*domain.Book{}
	}

	out := &ListLibraryOutput{}
	out.Body.Books = books
	out.Body.Total = len(books)
	return out, nil
}

func (s *Server) handleGetLibraryBook(ctx context.Context, input *GetLibraryBookInput) (*GetLibraryBookOutput, error) {
	book, err := s.services.Library.SavedBook(ctx, input.Title)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &GetLibraryBookOutput{Body: book}, nil
}

func (s *Server) handleSearchLibrary(ctx context.Context, input *SearchLibraryInput) (*SearchLibraryOutput, error) {
	res, err := s.services.Search.Search(ctx, search.Params{
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
		SortBy: input.Sort,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return &SearchLibraryOutput{Body: res}, nil
}
