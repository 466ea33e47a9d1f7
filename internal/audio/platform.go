package audio

import (
	"fmt"

	"github.com/petems/audioviz/internal/config"
	"github.com/rs/zerolog"
)

// NewPlatform returns the Platform for a configured backend name.
func NewPlatform(backend string, log zerolog.Logger) (Platform, error) {
	switch backend {
	case config.BackendPortAudio, "":
		return NewPortAudio(), nil
	case config.BackendMiniaudio:
		return NewMiniaudio(log), nil
	case config.BackendSDL:
		return NewSDL(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}
