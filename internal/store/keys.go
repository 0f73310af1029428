package store

import "github.com/audiody/audiody/internal/domain"

const (
	taskPrefix        = "task:"
	taskStatusIdxBase = "taskidx:status:"
)

func taskKey(id string) []byte {
	return []byte(taskPrefix + id)
}

func taskStatusPrefix(status domain.TaskStatus) []byte {
	return []byte(taskStatusIdxBase + string(status) + ":")
}

func taskStatusKey(status domain.TaskStatus, id string) []byte {
	return append(taskStatusPrefix(status), id...)
}
