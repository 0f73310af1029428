package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Networkf("unexpected status %d", 503)

	assert.True(t, Is(err, ErrNetwork))
	assert.False(t, Is(err, ErrFilesystem))
	assert.Equal(t, "unexpected status 503", err.Error())
}

func TestWrap_KeepsCause(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, CodeFilesystem, "write chapter")

	assert.True(t, Is(err, ErrFilesystem))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "write chapter: unexpected EOF", err.Error())
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("task failed: %w", ExternalToolf("yt-dlp exited with 1"))

	assert.Equal(t, CodeExternalTool, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(io.EOF))
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidState, http.StatusConflict},
		{CodeNetwork, http.StatusBadGateway},
		{CodeExternalTool, http.StatusBadGateway},
		{CodeChannelClosed, http.StatusServiceUnavailable},
		{CodeEncode, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestWithDetails(t *testing.T) {
	err := ErrValidation.WithDetails(map[string]string{"url": "is required"})

	assert.True(t, Is(err, ErrValidation))
	assert.Equal(t, map[string]string{"url": "is required"}, err.Details)
	assert.Nil(t, ErrValidation.Details)
}
