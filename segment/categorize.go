package segment

import (
	"fmt"

	"blender/config"
)

// CategorizeDrum classifies a drum segment from its precomputed
// spectral centroid and duration. Rule order matters: the first
// matching rule wins.
func CategorizeDrum(centroidHz, durationSec float64, p *config.Params) string {
	switch {
	case centroidHz < p.KickCentroidMaxHz && durationSec > p.KickMinDurationS:
		return "kick"
	case centroidHz > p.HatCentroidMinHz && durationSec < p.HatMaxDurationS:
		return "hat"
	case centroidHz > p.SnareCentroidMinHz && durationSec < p.SnareMaxDurationS:
		return "snare"
	default:
		return "perc"
	}
}

// CategorizeMelodic classifies a non-drum segment as phrase or texture
// from its duration alone.
func CategorizeMelodic(durationSec float64, p *config.Params) string {
	if durationSec >= p.PhraseMinDurationS {
		return "phrase"
	}
	return "texture"
}

// Categorize labels every segment of one stem using its precomputed
// features and renames the backing files to encode the label and a
// per-label sequence number. Numbering restarts per label, per stem.
func Categorize(segs []*Segment, stem string, p *config.Params) error {
	isDrums := stem == config.StemDrums
	counts := make(map[string]int)

	for _, s := range segs {
		var label string
		if isDrums {
			label = CategorizeDrum(s.Centroid, s.DurationSec(), p)
		} else {
			label = CategorizeMelodic(s.DurationSec(), p)
		}
		counts[label]++

		s.Category = label
		s.Ordinal = counts[label]
		if err := s.Rename(storedName(stem, label, s.Ordinal)); err != nil {
			return err
		}
	}
	return nil
}

// storedName projects a stem, label, and ordinal onto the on-disk
// segment file name.
func storedName(stem, label string, n int) string {
	return fmt.Sprintf("%s-%s-%02d.wav", stem, label, n)
}
