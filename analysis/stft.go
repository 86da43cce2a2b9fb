// Package analysis estimates tempo and structural landmarks (beat
// grid, bar boundaries, onsets) and computes spectral features from
// raw waveforms. All functions are deterministic for identical input.
package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat"
)

const (
	fluxFrameSize = 1024
	fluxHopSize   = 512

	centroidFrameSize = 2048
	centroidHopSize   = 512
)

// onsetEnvelope computes a spectral-flux onset-strength envelope at
// one value per hop. Returns nil for signals shorter than one frame.
func onsetEnvelope(samples []float64) ([]float64, error) {
	numFrames := (len(samples) - fluxFrameSize) / fluxHopSize
	if numFrames <= 0 {
		return nil, nil
	}
	plan, err := algofft.NewPlanReal64(fluxFrameSize)
	if err != nil {
		return nil, err
	}

	spec := make([]complex128, fluxFrameSize/2+1)
	buf := make([]float64, fluxFrameSize)
	prev := make([]float64, fluxFrameSize/2+1)
	env := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * fluxHopSize
		copy(buf, samples[start:start+fluxFrameSize])
		window.Hann(buf)
		plan.Forward(spec, buf)

		var flux float64
		for k := range spec {
			m := cmplx.Abs(spec[k])
			if d := m - prev[k]; d > 0 {
				flux += d
			}
			prev[k] = m
		}
		env[i] = flux
	}
	return env, nil
}

// SpectralCentroid returns the mean spectral centroid of a mono signal
// in Hz, averaged over STFT frames. Short signals are analyzed as a
// single zero-padded frame.
func SpectralCentroid(samples []float64, sampleRate int) (float64, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		return 0, nil
	}
	plan, err := algofft.NewPlanReal64(centroidFrameSize)
	if err != nil {
		return 0, err
	}

	numFrames := (len(samples) - centroidFrameSize) / centroidHopSize
	if numFrames < 1 {
		numFrames = 1
	}
	binHz := float64(sampleRate) / float64(centroidFrameSize)

	spec := make([]complex128, centroidFrameSize/2+1)
	buf := make([]float64, centroidFrameSize)
	centroids := make([]float64, 0, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * centroidHopSize
		for k := range buf {
			if start+k < len(samples) {
				buf[k] = samples[start+k]
			} else {
				buf[k] = 0
			}
		}
		window.Hann(buf)
		plan.Forward(spec, buf)

		var magSum, weighted float64
		for k := range spec {
			m := cmplx.Abs(spec[k])
			magSum += m
			weighted += m * float64(k) * binHz
		}
		if magSum > 1e-12 {
			centroids = append(centroids, weighted/magSum)
		}
	}
	if len(centroids) == 0 {
		return 0, nil
	}
	return stat.Mean(centroids, nil), nil
}

func normalizeMax(xs []float64) []float64 {
	peak := 0.0
	for _, v := range xs {
		if v > peak {
			peak = v
		}
	}
	out := make([]float64, len(xs))
	if peak < 1e-12 {
		return out
	}
	for i, v := range xs {
		out[i] = v / peak
	}
	return out
}

func hopSeconds(sampleRate int) float64 {
	return float64(fluxHopSize) / float64(sampleRate)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
