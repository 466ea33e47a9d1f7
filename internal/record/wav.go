// Package record taps the capture stream into a WAV file.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

const (
	// Channels is the channel count of every recording.
	Channels = 2
	bitDepth = 16

	queueDepth = 64
)

// Tap is an audio.Sink that writes 16-bit stereo WAV. Blocks are encoded on
// a separate goroutine; when it falls behind, new blocks are dropped.
type Tap struct {
	log        zerolog.Logger
	path       string
	file       *os.File
	encoder    *wav.Encoder
	sampleRate int

	mu      sync.RWMutex
	closed  bool
	blocks  chan []float32
	done    chan struct{}
	dropped atomic.Uint64
	written atomic.Uint64
}

// New creates the WAV file at path and starts the writer.
func New(path string, sampleRate int, log zerolog.Logger) (*Tap, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	t := &Tap{
		log:        log.With().Str("recording", path).Logger(),
		path:       path,
		file:       f,
		encoder:    wav.NewEncoder(f, sampleRate, bitDepth, Channels, 1),
		sampleRate: sampleRate,
		blocks:     make(chan []float32, queueDepth),
		done:       make(chan struct{}),
	}
	go t.run()

	t.log.Info().Int("sample_rate", sampleRate).Msg("Recording started")
	return t, nil
}

// AddFloat queues a copy of the block converted to stereo.
func (t *Tap) AddFloat(samples []float32, frames int, channels int) {
	block := toStereo(samples, frames, channels)
	if len(block) == 0 {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}

	select {
	case t.blocks <- block:
	default:
		// Drop if the writer is behind (backpressure)
		t.dropped.Add(1)
	}
}

func (t *Tap) run() {
	defer close(t.done)

	format := &goaudio.Format{
		NumChannels: Channels,
		SampleRate:  t.sampleRate,
	}
	const maxInt16 = 32767

	for block := range t.blocks {
		buf := &goaudio.IntBuffer{
			Format:         format,
			Data:           make([]int, len(block)),
			SourceBitDepth: bitDepth,
		}
		for i, s := range block {
			buf.Data[i] = int(clamp(s) * maxInt16)
		}

		if err := t.encoder.Write(buf); err != nil {
			t.log.Error().Err(err).Msg("Failed to write recording block")
			continue
		}
		t.written.Add(uint64(len(block) / Channels))
	}
}

// Close flushes queued blocks and finalizes the WAV header.
func (t *Tap) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.blocks)
	t.mu.Unlock()

	<-t.done

	err := t.encoder.Close()
	if cerr := t.file.Close(); err == nil {
		err = cerr
	}

	t.log.Info().
		Uint64("frames", t.written.Load()).
		Uint64("dropped_blocks", t.dropped.Load()).
		Msg("Recording finished")

	if err != nil {
		return fmt.Errorf("failed to finalize recording: %w", err)
	}
	return nil
}

// toStereo copies interleaved frames into a new stereo slice. Mono is
// duplicated; channels past the second are discarded.
func toStereo(samples []float32, frames, channels int) []float32 {
	if frames <= 0 || channels <= 0 {
		return nil
	}
	frames = min(frames, len(samples)/channels)

	out := make([]float32, frames*Channels)
	for f := 0; f < frames; f++ {
		l := samples[f*channels]
		r := l
		if channels > 1 {
			r = samples[f*channels+1]
		}
		out[f*2] = l
		out[f*2+1] = r
	}
	return out
}

func clamp(s float32) float32 {
	return max(-1, min(1, s))
}
