package domain

import "time"

// TaskStatus represents the state of a download task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCanceled  TaskStatus = "canceled"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCanceled
}

// DownloadTask records one submitted chapter download.
type DownloadTask struct {
	ID        string     `json:"id"`
	BookTitle string     `json:"book_title"`
	BookID    BookID     `json:"book_id"`
	Chapter   int        `json:"chapter"`
	SourceURL string     `json:"source_url"`
	BookURL   string     `json:"book_url"`
	Status    TaskStatus `json:"status"`
	Path      string     `json:"path,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorCode string     `json:"error_code,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// MarkRunning transitions the task to running state.
func (t *DownloadTask) MarkRunning() {
	t.Status = TaskStatusRunning
	now := time.Now()
	t.StartedAt = &now
}

// MarkCompleted records the resolved chapter path.
func (t *DownloadTask) MarkCompleted(path string) {
	t.Status = TaskStatusCompleted
	t.Path = path
	now := time.Now()
	t.CompletedAt = &now
}

// MarkFailed records the failure. A canceled context is recorded as canceled.
func (t *DownloadTask) MarkFailed(status TaskStatus, code, msg string) {
	t.Status = status
	t.ErrorCode = code
	t.Error = msg
	now := time.Now()
	t.CompletedAt = &now
}
