package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/player"
)

func (s *Server) registerPlayerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getPlayer",
		Method:      http.MethodGet,
		Path:        "/api/v1/player",
		Summary:     "Get player state",
		Tags:        []string{"Player"},
	}, s.handleGetPlayer)

	huma.Register(s.api, huma.Operation{
		OperationID: "startPlayer",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/start",
		Summary:     "Open a chapter",
		Description: "Loads a cached chapter paused at its saved offset. Without a chapter the saved one is resumed.",
		Tags:        []string{"Player"},
	}, s.handleStartPlayer)

	huma.Register(s.api, huma.Operation{
		OperationID: "playPlayer",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/play",
		Summary:     "Resume playback",
		Tags:        []string{"Player"},
	}, s.handlePlay)

	huma.Register(s.api, huma.Operation{
		OperationID: "pausePlayer",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/pause",
		Summary:     "Pause playback and save progress",
		Tags:        []string{"Player"},
	}, s.handlePause)

	huma.Register(s.api, huma.Operation{
		OperationID: "setPlayerSpeed",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/speed",
		Summary:     "Set playback speed",
		Tags:        []string{"Player"},
	}, s.handleSpeed)

	huma.Register(s.api, huma.Operation{
		OperationID: "seekPlayer",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/seek",
		Summary:     "Seek relative to the current position",
		Tags:        []string{"Player"},
	}, s.handleSeek)

	huma.Register(s.api, huma.Operation{
		OperationID: "setPlayerVolume",
		Method:      http.MethodPost,
		Path:        "/api/v1/player/volume",
		Summary:     "Set volume",
		Tags:        []string{"Player"},
	}, s.handleVolume)
}

// PlayerState is the transport snapshot plus the open book.
type PlayerState struct {
	player.Transport
	Book    string `json:"book,omitempty" doc:"Open book title"`
	Chapter *int   `json:"chapter,omitempty" doc:"Open chapter index"`
}

// PlayerStateOutput contains the player state.
type PlayerStateOutput struct {
	Body PlayerState
}

// StartPlayerInput selects the chapter to open.
type StartPlayerInput struct {
	Body struct {
		Title   string `json:"title" minLength:"1" maxLength:"512" doc:"Saved book title"`
		Chapter *int   `json:"chapter,omitempty" minimum:"0" doc:"Chapter index; omitted resumes the saved chapter"`
	}
}

// SpeedInput sets the playback speed.
type SpeedInput struct {
	Body struct {
		Ratio float64 `json:"ratio" exclusiveMinimum:"0" maximum:"4" doc:"Playback rate, 1.0 is normal"`
	}
}

// SeekInput moves the position.
type SeekInput struct {
	Body struct {
		Delta float64 `json:"delta" doc:"Seconds to move; negative rewinds"`
	}
}

// VolumeInput sets the output volume.
type VolumeInput struct {
	Body struct {
		Volume float64 `json:"volume" doc:"Volume 0-100; out of range values are clamped"`
	}
}

func (s *Server) playerOrErr() (Player, error) {
	if s.services.Player == nil || s.services.Session == nil {
		return nil, toAPIError(domainerrors.InvalidStatef("audio output is disabled"))
	}
	return s.services.Player, nil
}

// settled waits for queued commands and reports the resulting state.
func (s *Server) settled(ctx context.Context, p Player) (*PlayerStateOutput, error) {
	if err := p.Sync(ctx); err != nil {
		return nil, toAPIError(err)
	}
	out := &PlayerStateOutput{Body: PlayerState{Transport: p.State()}}
	if title, chapter, ok := s.services.Session.Current(); ok {
		out.Body.Book = title
		out.Body.Chapter = &chapter
	}
	return out, nil
}

func (s *Server) handleGetPlayer(ctx context.Context, _ *struct{}) (*PlayerStateOutput, error) {
	p, err := s.playerOrErr()
	if err != nil {
		return nil, err
	}
	return s.settled(ctx, p)
}

func (s *Server) handleStartPlayer(ctx context.Context, input *StartPlayerInput) (*PlayerStateOutput, error) {
	p, err := s.playerOrErr()
	if err != nil {
		return nil, err
	}

	if input.Body.Chapter == nil {
		err = s.services.Session.Resume(ctx, input.Body.Title)
	} else {
		err = s.services.Session.Open(ctx, input.Body.Title, *input.Body.Chapter)
	}
	if err != nil {
		return nil, toAPIError(err)
	}
	return s.settled(ctx, p)
}

func (s *Server) handlePlay(ctx context.Context, _ *struct{}) (*PlayerStateOutput, error) {
	p, err := s.playerOrErr()
	if err != nil {
		return nil, err
	}
	if err := p.Play(); err != nil {
		return nil, toAPIError(err)
	}
	return s.settled(ctx, p)
}

func (s *Server) handlePause(ctx context.Context, _ *struct{}) (*PlayerStateOutput, error) {
	p, err := s.playerOrErr()
	if err != nil {
		return nil, err
	}
	if err := p.Pause(); err != nil {
		return nil, toAPIError(err)
	}
	out, err := s.settled(ctx, p)
	if err != nil {
		return nil, err
	}

	if _, _, ok := s.services.Session.Current(); ok {
		if err := s.services.Session.Checkpoint(ctx); err != nil {
			s.logger.Warn("failed to save progress on pause", "error", err)
		}
	}
	return out, nil
}

func (s *Server) handleSpeed(ctx context.Context, input *SpeedInput) (*PlayerStateOutput, error) {
	p, err := s.playerOrErr()
	if err != nil {
		return nil, err
	}
	if err := p.SetSpeed(input.Body.Ratio); err != nil {
		return nil, toAPIError(err)
	}
	return s.settled(ctx, p)
}

func (s *Server) handleSeek(ctx context.Context, input *SeekInput) (*PlayerStateOutput, error) {
	p, err := s.playerOrErr()
	if err != nil {
		return nil, err
	}
	if err := p.SeekRelative(input.Body.Delta); err != nil {
		return nil, toAPIError(err)
	}
	return s.settled(ctx, p)
}

func (s *Server) handleVolume(ctx context.Context, input *VolumeInput) (*PlayerStateOutput, error) {
	p, err := s.playerOrErr()
	if err != nil {
		return nil, err
	}
	if err := p.SetVolume(input.Body.Volume); err != nil {
		return nil, toAPIError(err)
	}
	return s.settled(ctx, p)
}
