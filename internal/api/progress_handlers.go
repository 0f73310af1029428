package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/audiody/audiody/internal/domain"
	domainerrors "github.com/audiody/audiody/internal/errors"
)

func (s *Server) registerProgressRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress/{title}",
		Summary:     "Get resume record",
		Tags:        []string{"Progress"},
	}, s.handleGetProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "putProgress",
		Method:      http.MethodPut,
		Path:        "/api/v1/progress/{title}",
		Summary:     "Replace resume record",
		Description: "Overwrites the record. An omitted book_url keeps the stored one.",
		Tags:        []string{"Progress"},
	}, s.handlePutProgress)
}

// ProgressTitleInput identifies a book.
type ProgressTitleInput struct {
	Title string `path:"title" maxLength:"512" doc:"Book title (cache directory name)"`
}

// PutProgressInput replaces a resume record.
type PutProgressInput struct {
	Title string `path:"title" maxLength:"512" doc:"Book title (cache directory name)"`
	Body  struct {
		BookURL  string   `json:"book_url,omitempty" doc:"Catalog URL of the book"`
		Chapter  *int     `json:"chapter,omitempty" minimum:"0" doc:"Zero-based chapter index"`
		Position *float64 `json:"position,omitempty" minimum:"0" doc:"Seconds into the chapter"`
	}
}

// ProgressOutput contains a resume record.
type ProgressOutput struct {
	Body domain.ProgressRecord
}

func (s *Server) handleGetProgress(_ context.Context, input *ProgressTitleInput) (*ProgressOutput, error) {
	record, err := s.services.Progress.Load(input.Title)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &ProgressOutput{Body: *record}, nil
}

func (s *Server) handlePutProgress(_ context.Context, input *PutProgressInput) (*ProgressOutput, error) {
	bookURL := input.Body.BookURL
	if bookURL == "" {
		existing, err := s.services.Progress.Load(input.Title)
		switch {
		case err == nil:
			bookURL = existing.BookURL
		case !domainerrors.Is(err, domainerrors.ErrNotFound):
			s.logger.Warn("replacing unreadable progress record", "book", input.Title, "error", err)
		}
	}

	if err := s.services.Progress.Save(input.Title, input.Body.Chapter, bookURL, input.Body.Position); err != nil {
		return nil, toAPIError(err)
	}

	return &ProgressOutput{Body: domain.ProgressRecord{
		BookURL:            bookURL,
		CurrentChapter:     input.Body.Chapter,
		CurrentChapterTime: input.Body.Position,
	}}, nil
}
