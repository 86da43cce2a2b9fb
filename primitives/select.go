// Package primitives picks the small, curated set of segments that
// becomes the performable primitive set: seven musical roles, each
// filled by its own ranking rule from the labeled per-stem segment
// lists. Selection is a deterministic pure function of the segment
// features; files of unselected segments are deleted afterwards.
package primitives

import (
	"fmt"
	"sort"

	"blender/config"
	"blender/segment"
)

// Set maps each musical role to its selected segments, in rank order.
type Set map[string][]*segment.Segment

// Total returns the number of selected segments across all roles.
func (s Set) Total() int {
	n := 0
	for _, segs := range s {
		n += len(segs)
	}
	return n
}

// roleRule picks up to limit segments for one role from the candidates
// still in the pool. Rules never mutate the pool; the driver removes
// picks before the next role runs.
type roleRule func(pool []*segment.Segment, limit int, p *config.Params) []*segment.Segment

var roleRules = map[string]roleRule{
	config.RoleFoundation:  pickFoundation,
	config.RoleGroove:      pickGroove,
	config.RoleBass:        pickBass,
	config.RoleHarmonicBed: pickHarmonicBed,
	config.RoleHook:        pickHook,
	config.RoleTexture:     pickTexture,
	config.RoleAccent:      pickAccent,
}

// Select fills the seven roles in order, removing each role's picks
// from the pool before the next role runs, then renames chosen files
// to encode role and ordinal and deletes every unchosen segment file.
func Select(stems map[string][]*segment.Segment, p *config.Params) (Set, error) {
	var pool []*segment.Segment
	for _, name := range p.StemNames {
		pool = append(pool, stems[name]...)
	}

	set := make(Set)
	for _, role := range p.RoleOrder {
		rule := roleRules[role]
		if rule == nil {
			return nil, fmt.Errorf("no selection rule for role %q", role)
		}
		picks := rule(pool, p.RoleCaps[role], p)
		if len(picks) > 0 {
			set[role] = picks
			pool = without(pool, picks)
		}
	}

	for _, role := range p.RoleOrder {
		for i, s := range set[role] {
			s.Category = role
			s.Ordinal = i + 1
			if err := s.Rename(fmt.Sprintf("%s-%02d.wav", role, i+1)); err != nil {
				return nil, err
			}
		}
	}
	for _, s := range pool {
		if err := s.Remove(); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Rhythmic anchor: loudest drum segments.
func pickFoundation(pool []*segment.Segment, limit int, _ *config.Params) []*segment.Segment {
	drums := ofStem(pool, config.StemDrums)
	return top(byEnergyDesc(drums), limit)
}

// Secondary rhythm: brightest remaining drum segments.
func pickGroove(pool []*segment.Segment, limit int, _ *config.Params) []*segment.Segment {
	drums := ofStem(pool, config.StemDrums)
	return top(byCentroidDesc(drums), limit)
}

// Bass phrases: loudest bass segments, kept spectrally diverse. The
// first ranked candidate is always accepted; later ones only if their
// centroid clears the separation threshold against every accepted
// pick. Remaining slots fall back to rank order.
func pickBass(pool []*segment.Segment, limit int, p *config.Params) []*segment.Segment {
	ranked := byEnergyDesc(ofStem(pool, config.StemBass))

	var picks []*segment.Segment
	taken := make(map[*segment.Segment]bool)
	for _, cand := range ranked {
		if len(picks) >= limit {
			break
		}
		if len(picks) == 0 || diverse(cand, picks, p.BassDiversityMinHz) {
			picks = append(picks, cand)
			taken[cand] = true
		}
	}
	for _, cand := range ranked {
		if len(picks) >= limit {
			break
		}
		if !taken[cand] {
			picks = append(picks, cand)
			taken[cand] = true
		}
	}
	return picks
}

// Harmonic backbone: longest, most sustained harmonic segments.
func pickHarmonicBed(pool []*segment.Segment, limit int, _ *config.Params) []*segment.Segment {
	other := ofStem(pool, config.StemOther)
	return top(byDurationDesc(other), limit)
}

// Hook: loudest vocal segments.
func pickHook(pool []*segment.Segment, limit int, _ *config.Params) []*segment.Segment {
	vocals := ofStem(pool, config.StemVocals)
	return top(byEnergyDesc(vocals), limit)
}

// Texture: quietest of whatever is left, any stem.
func pickTexture(pool []*segment.Segment, limit int, _ *config.Params) []*segment.Segment {
	return top(byEnergyAsc(pool), limit)
}

// Accent: short, punchy leftovers, ranked by energy per unit duration.
func pickAccent(pool []*segment.Segment, limit int, _ *config.Params) []*segment.Segment {
	ranked := sortedBy(pool, func(a, b *segment.Segment) bool {
		return punch(a) > punch(b)
	})
	return top(ranked, limit)
}

func punch(s *segment.Segment) float64 {
	d := s.DurationSec()
	if d <= 0 {
		return 0
	}
	return s.Energy / d
}

func diverse(cand *segment.Segment, accepted []*segment.Segment, minHz float64) bool {
	for _, a := range accepted {
		d := cand.Centroid - a.Centroid
		if d < 0 {
			d = -d
		}
		if d <= minHz {
			return false
		}
	}
	return true
}

func ofStem(pool []*segment.Segment, stem string) []*segment.Segment {
	var out []*segment.Segment
	for _, s := range pool {
		if s.Stem == stem {
			out = append(out, s)
		}
	}
	return out
}

func sortedBy(segs []*segment.Segment, less func(a, b *segment.Segment) bool) []*segment.Segment {
	out := append([]*segment.Segment(nil), segs...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byEnergyDesc(segs []*segment.Segment) []*segment.Segment {
	return sortedBy(segs, func(a, b *segment.Segment) bool { return a.Energy > b.Energy })
}

func byEnergyAsc(segs []*segment.Segment) []*segment.Segment {
	return sortedBy(segs, func(a, b *segment.Segment) bool { return a.Energy < b.Energy })
}

func byCentroidDesc(segs []*segment.Segment) []*segment.Segment {
	return sortedBy(segs, func(a, b *segment.Segment) bool { return a.Centroid > b.Centroid })
}

func byDurationDesc(segs []*segment.Segment) []*segment.Segment {
	return sortedBy(segs, func(a, b *segment.Segment) bool { return a.DurationMS > b.DurationMS })
}

func top(segs []*segment.Segment, n int) []*segment.Segment {
	if len(segs) > n {
		segs = segs[:n]
	}
	return segs
}

func without(pool []*segment.Segment, picks []*segment.Segment) []*segment.Segment {
	drop := make(map[*segment.Segment]bool, len(picks))
	for _, s := range picks {
		drop[s] = true
	}
	var out []*segment.Segment
	for _, s := range pool {
		if !drop[s] {
			out = append(out, s)
		}
	}
	return out
}
