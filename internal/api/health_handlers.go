package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns core health with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Uptime     string                     `json:"uptime" doc:"Time since the API started"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"search":    s.checkSearchIndex(),
		"downloads": s.checkDownloads(),
		"player":    s.checkPlayer(),
	}

	overall := "healthy"
	for _, c := range components {
		switch {
		case c.Status == "unhealthy":
			overall = "unhealthy"
		case c.Status == "degraded" && overall == "healthy":
			overall = "degraded"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Uptime:     time.Since(s.started).Round(time.Second).String(),
			Components: components,
		},
	}, nil
}

func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services.Search == nil {
		return ComponentHealth{Status: "degraded", Message: "search not configured"}
	}
	count, err := s.services.Search.Count()
	if err != nil {
		return ComponentHealth{Status: "unhealthy", Message: "search index unreachable"}
	}
	return ComponentHealth{Status: "healthy", Message: pluralize(int(count), "book", "books") + " indexed"}
}

func (s *Server) checkDownloads() ComponentHealth {
	if s.services.Downloads == nil {
		return ComponentHealth{Status: "degraded", Message: "downloads not configured"}
	}
	return ComponentHealth{Status: "healthy", Message: pluralize(s.services.Downloads.Pending(), "task", "tasks") + " queued"}
}

func (s *Server) checkPlayer() ComponentHealth {
	if s.services.Player == nil {
		return ComponentHealth{Status: "healthy", Message: "audio output disabled"}
	}
	return ComponentHealth{Status: "healthy", Message: string(s.services.Player.State().State)}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
