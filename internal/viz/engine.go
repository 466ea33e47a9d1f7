// Package viz holds the PCM state the visualizers render from.
package viz

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MaxSamples is the largest block, in frames, the engine keeps per channel.
const MaxSamples = 576

// fftSize is the number of most recent frames analyzed for the spectrum.
const fftSize = 512

// Engine keeps the most recent MaxSamples stereo frames. AddFloat is safe to
// call from an audio thread while the UI reads.
type Engine struct {
	mu     sync.Mutex
	left   [MaxSamples]float32
	right  [MaxSamples]float32
	pos    int
	frames uint64

	specMu sync.Mutex
	fft    *fourier.FFT
	window []float64
	gain   float64
}

// New returns an empty engine.
func New() *Engine {
	window := make([]float64, fftSize)
	var sum float64
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
		sum += window[i]
	}
	return &Engine{
		fft:    fourier.NewFFT(fftSize),
		window: window,
		gain:   2 / sum,
	}
}

// AddFloat ingests interleaved samples. Mono input feeds both channels;
// beyond two channels only the first two are used. Only the last
// MaxSamples frames of a block are kept.
func (e *Engine) AddFloat(samples []float32, frames int, channels int) {
	if frames <= 0 || channels <= 0 {
		return
	}
	frames = min(frames, len(samples)/channels)
	start := max(frames-MaxSamples, 0)

	e.mu.Lock()
	defer e.mu.Unlock()

	for f := start; f < frames; f++ {
		l := samples[f*channels]
		r := l
		if channels > 1 {
			r = samples[f*channels+1]
		}
		e.left[e.pos] = l
		e.right[e.pos] = r
		e.pos = (e.pos + 1) % MaxSamples
	}
	e.frames += uint64(frames)
}

// Frames returns the total number of frames ingested.
func (e *Engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Waveform returns copies of both channels, oldest frame first.
func (e *Engine) Waveform() (left, right []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	left = make([]float32, MaxSamples)
	right = make([]float32, MaxSamples)
	n := copy(left, e.left[e.pos:])
	copy(left[n:], e.left[:e.pos])
	n = copy(right, e.right[e.pos:])
	copy(right[n:], e.right[:e.pos])
	return left, right
}

// Level returns the RMS of the buffered frames across both channels.
func (e *Engine) Level() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sum float64
	for i := 0; i < MaxSamples; i++ {
		l, r := float64(e.left[i]), float64(e.right[i])
		sum += l*l + r*r
	}
	return math.Sqrt(sum / (2 * MaxSamples))
}

// Spectrum returns bands log-spaced magnitudes in [0, 1] computed over the
// most recent frames of the mono mix. A full-scale sine reads as 1.
func (e *Engine) Spectrum(bands int) []float64 {
	if bands <= 0 {
		return nil
	}

	left, right := e.Waveform()

	e.specMu.Lock()
	defer e.specMu.Unlock()

	seq := make([]float64, fftSize)
	offset := MaxSamples - fftSize
	for i := range seq {
		mono := (float64(left[offset+i]) + float64(right[offset+i])) / 2
		seq[i] = mono * e.window[i]
	}
	coeffs := e.fft.Coefficients(nil, seq)

	edges := bandEdges(bands, fftSize/2)
	out := make([]float64, bands)
	for b := 0; b < bands; b++ {
		var peak float64
		for k := edges[b]; k < edges[b+1]; k++ {
			peak = max(peak, cmplx.Abs(coeffs[k])*e.gain)
		}
		out[b] = min(peak, 1)
	}
	return out
}

// bandEdges splits FFT bins 1..bins into log-spaced bands. Band b covers
// [edges[b], edges[b+1]). Every band gets at least one bin while bins last.
func bandEdges(bands, bins int) []int {
	edges := make([]int, bands+1)
	edges[0] = 1
	for b := 1; b <= bands; b++ {
		e := int(math.Round(math.Pow(float64(bins), float64(b)/float64(bands))))
		if b == bands {
			e = bins + 1
		}
		e = max(e, edges[b-1]+1)
		edges[b] = min(e, bins+1)
	}
	return edges
}
