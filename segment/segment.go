// Package segment cuts instrument-group waveforms into discrete
// segments at supplied boundary times, applies click-removal fades,
// and computes per-segment acoustic features.
package segment

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"blender/analysis"
	"blender/config"
	"blender/internal/audiofile"
)

// Segment is a contiguous excerpt cut from one instrument-group
// waveform. Category and Ordinal are assigned later by categorization
// and selection; the backing file name is a projection of them.
type Segment struct {
	Path       string
	Stem       string
	StartSec   float64
	DurationMS float64
	Energy     float64 // RMS of the post-fade mono downmix
	Centroid   float64 // spectral centroid in Hz
	Category   string
	Ordinal    int // 1-based within category
}

// DurationSec returns the segment length in seconds.
func (s *Segment) DurationSec() float64 { return s.DurationMS / 1000.0 }

// Rename moves the backing file to a new name in the same directory
// and updates the record. File and record never diverge.
func (s *Segment) Rename(name string) error {
	dst := filepath.Join(filepath.Dir(s.Path), name)
	if dst == s.Path {
		return nil
	}
	if err := os.Rename(s.Path, dst); err != nil {
		return err
	}
	s.Path = dst
	return nil
}

// Remove deletes the backing file.
func (s *Segment) Remove() error {
	return os.Remove(s.Path)
}

// SliceAtBars cuts a stem at bar boundaries, producing musically
// aligned loops. The clip's end time acts as an implicit final
// boundary. Chunks shorter than the absolute floor are discarded.
func SliceAtBars(clip *audiofile.Clip, boundaries []float64, outDir, stem string, p *config.Params) ([]*Segment, error) {
	bounds := append(append([]float64(nil), boundaries...), clip.DurationSec())

	var segs []*Segment
	for i := 0; i+1 < len(bounds); i++ {
		name := fmt.Sprintf("%s-bar-%02d.wav", stem, i+1)
		seg, err := cutChunk(clip, bounds[i], bounds[i+1], outDir, name, stem, p.SliceFloorMS, p.FadeOutMS)
		if err != nil {
			return nil, err
		}
		if seg != nil {
			segs = append(segs, seg)
		}
	}
	return capSegments(segs, p.MaxSlicesPerStem)
}

// SliceAtOnsets cuts a stem at onset points. Chunks shorter than
// minDurationMS (or the absolute floor, whichever is larger) are
// discarded.
func SliceAtOnsets(clip *audiofile.Clip, onsets []float64, outDir, stem string, minDurationMS int, p *config.Params) ([]*Segment, error) {
	floor := math.Max(float64(minDurationMS), p.SliceFloorMS)
	bounds := append(append([]float64(nil), onsets...), clip.DurationSec())

	var segs []*Segment
	for i := 0; i+1 < len(bounds); i++ {
		name := fmt.Sprintf("%s-%02d.wav", stem, i+1)
		seg, err := cutChunk(clip, bounds[i], bounds[i+1], outDir, name, stem, floor, p.FadeOutMS)
		if err != nil {
			return nil, err
		}
		if seg != nil {
			segs = append(segs, seg)
		}
	}
	return capSegments(segs, p.MaxSlicesPerStem)
}

// cutChunk extracts one boundary pair, fades, analyzes, and writes the
// segment file. Returns nil (no error) for chunks below the floor.
func cutChunk(clip *audiofile.Clip, startSec, endSec float64, outDir, name, stem string, floorMS float64, fadeOutMS int) (*Segment, error) {
	sr := clip.SampleRate
	ch := clip.Channels
	totalFrames := clip.Frames()

	startFrame := int(startSec * float64(sr))
	if startFrame < 0 {
		startFrame = 0
	}
	endFrame := int(endSec * float64(sr))
	if endFrame > totalFrames {
		endFrame = totalFrames
	}
	frames := endFrame - startFrame
	if frames <= 0 {
		return nil, nil
	}
	if float64(frames) < float64(sr)*floorMS/1000.0 {
		return nil, nil
	}

	chunk := make([]float32, frames*ch)
	copy(chunk, clip.Samples[startFrame*ch:endFrame*ch])

	// Linear fade-out over the final fadeOutMS, per channel.
	fadeFrames := sr * fadeOutMS / 1000
	if fadeFrames > 0 && frames > fadeFrames {
		for i := 0; i < fadeFrames; i++ {
			g := float32(fadeFrames-1-i) / float32(fadeFrames-1)
			base := (frames - fadeFrames + i) * ch
			for c := 0; c < ch; c++ {
				chunk[base+c] *= g
			}
		}
	}

	out := &audiofile.Clip{Samples: chunk, SampleRate: sr, Channels: ch}
	mono := out.Mono()
	centroid, err := analysis.SpectralCentroid(mono, sr)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(outDir, name)
	if err := audiofile.WriteClip(path, out); err != nil {
		return nil, err
	}

	return &Segment{
		Path:       path,
		Stem:       stem,
		StartSec:   startSec,
		DurationMS: float64(frames) / float64(sr) * 1000.0,
		Energy:     rms(mono),
		Centroid:   centroid,
	}, nil
}

// capSegments enforces the per-stem segment limit: rank by duration
// descending, delete the excess from storage, and restore the kept
// segments to chronological order.
func capSegments(segs []*Segment, max int) ([]*Segment, error) {
	if max <= 0 || len(segs) <= max {
		return segs, nil
	}
	byDur := append([]*Segment(nil), segs...)
	sort.SliceStable(byDur, func(i, j int) bool {
		return byDur[i].DurationMS > byDur[j].DurationMS
	})
	for _, s := range byDur[max:] {
		if err := s.Remove(); err != nil {
			return nil, err
		}
	}
	kept := byDur[:max]
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].StartSec < kept[j].StartSec
	})
	return kept, nil
}

func rms(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(xs)))
}
