package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/audiody/audiody/internal/domain"
	"github.com/audiody/audiody/internal/download"
)

func (s *Server) registerDownloadRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "submitDownload",
		Method:        http.MethodPost,
		Path:          "/api/v1/downloads",
		Summary:       "Queue chapter download",
		Description:   "Queues one chapter of one book and returns the task immediately",
		Tags:          []string{"Downloads"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleSubmitDownload)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDownloads",
		Method:      http.MethodGet,
		Path:        "/api/v1/downloads",
		Summary:     "List download tasks",
		Description: "Returns journaled download tasks, oldest first",
		Tags:        []string{"Downloads"},
	}, s.handleListDownloads)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDownload",
		Method:      http.MethodGet,
		Path:        "/api/v1/downloads/{id}",
		Summary:     "Get download task",
		Tags:        []string{"Downloads"},
	}, s.handleGetDownload)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelDownload",
		Method:      http.MethodDelete,
		Path:        "/api/v1/downloads/{id}",
		Summary:     "Cancel download task",
		Description: "Cancels a queued or running task; finished tasks are a conflict",
		Tags:        []string{"Downloads"},
	}, s.handleCancelDownload)
}

// SubmitDownloadInput describes the chapter to fetch.
type SubmitDownloadInput struct {
	Body struct {
		Title     string `json:"title" doc:"Book title; names the cache directory"`
		Chapter   int    `json:"chapter" doc:"Zero-based chapter index"`
		SourceURL string `json:"source_url" doc:"Chapter audio URL or extractor page"`
		BookURL   string `json:"book_url,omitempty" doc:"Catalog URL of the book, recorded in its progress file"`
	}
}

// DownloadTaskOutput contains one task.
type DownloadTaskOutput struct {
	Body *domain.DownloadTask
}

// ListDownloadsOutput contains all tasks.
type ListDownloadsOutput struct {
	Body struct {
		Tasks   []*domain.DownloadTask `json:"tasks" doc:"Journaled tasks"`
		Pending int                    `json:"pending" doc:"Tasks waiting for a worker"`
	}
}

// DownloadIDInput identifies a task.
type DownloadIDInput struct {
	ID string `path:"id" doc:"Task ID"`
}

func (s *Server) handleSubmitDownload(ctx context.Context, input *SubmitDownloadInput) (*DownloadTaskOutput, error) {
	req := download.Request{
		Title:     input.Body.Title,
		Chapter:   input.Body.Chapter,
		SourceURL: input.Body.SourceURL,
		BookURL:   input.Body.BookURL,
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, toAPIError(err)
	}

	taskID, err := s.services.Downloads.Submit(ctx, req, s.onDownloaded)
	if err != nil {
		return nil, toAPIError(err)
	}

	task, err := s.services.Downloads.Get(ctx, taskID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &DownloadTaskOutput{Body: task}, nil
}

func (s *Server) handleListDownloads(ctx context.Context, _ *struct{}) (*ListDownloadsOutput, error) {
	list, err := s.services.Downloads.List(ctx)
	if err != nil {
		return nil, toAPIError(err)
	}
	if list == nil {
		list = []*domain.DownloadTask{}
	}

	out := &ListDownloadsOutput{}
	out.Body.Tasks = list
	out.Body.Pending = s.services.Downloads.Pending()
	return out, nil
}

func (s *Server) handleGetDownload(ctx context.Context, input *DownloadIDInput) (*DownloadTaskOutput, error) {
	task, err := s.services.Downloads.Get(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &DownloadTaskOutput{Body: task}, nil
}

func (s *Server) handleCancelDownload(ctx context.Context, input *DownloadIDInput) (*DownloadTaskOutput, error) {
	if err := s.services.Downloads.Cancel(ctx, input.ID); err != nil {
		return nil, toAPIError(err)
	}

	task, err := s.services.Downloads.Get(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &DownloadTaskOutput{Body: task}, nil
}
