package primitives

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"blender/config"
	"blender/segment"
)

func makeSeg(t *testing.T, dir, name, stem string, durMS, energy, centroid float64) *segment.Segment {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return &segment.Segment{
		Path:       path,
		Stem:       stem,
		DurationMS: durMS,
		Energy:     energy,
		Centroid:   centroid,
	}
}

func testStems(t *testing.T, dir string) map[string][]*segment.Segment {
	t.Helper()
	stems := make(map[string][]*segment.Segment)
	for i := 0; i < 5; i++ {
		stems[config.StemDrums] = append(stems[config.StemDrums], makeSeg(t, dir,
			fmt.Sprintf("drums-kick-%02d.wav", i+1), config.StemDrums,
			2000, 0.5-float64(i)*0.05, 500+float64(i)*1200))
	}
	for i := 0; i < 4; i++ {
		stems[config.StemBass] = append(stems[config.StemBass], makeSeg(t, dir,
			fmt.Sprintf("bass-phrase-%02d.wav", i+1), config.StemBass,
			4000, 0.4-float64(i)*0.02, 150+float64(i)*30))
	}
	for i := 0; i < 3; i++ {
		stems[config.StemVocals] = append(stems[config.StemVocals], makeSeg(t, dir,
			fmt.Sprintf("vocals-phrase-%02d.wav", i+1), config.StemVocals,
			3000, 0.3+float64(i)*0.1, 2000))
	}
	for i := 0; i < 3; i++ {
		stems[config.StemOther] = append(stems[config.StemOther], makeSeg(t, dir,
			fmt.Sprintf("other-phrase-%02d.wav", i+1), config.StemOther,
			1000+float64(i)*3000, 0.2, 1000))
	}
	return stems
}

func TestSelectFillsRolesDisjointly(t *testing.T) {
	dir := t.TempDir()
	p := config.Defaults()
	stems := testStems(t, dir)

	set, err := Select(stems, p)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	seen := make(map[*segment.Segment]string)
	for role, segs := range set {
		if len(segs) > p.RoleCaps[role] {
			t.Fatalf("role %s has %d segments, cap %d", role, len(segs), p.RoleCaps[role])
		}
		for _, s := range segs {
			if prev, ok := seen[s]; ok {
				t.Fatalf("segment in both %s and %s", prev, role)
			}
			seen[s] = role
			if s.Category != role {
				t.Fatalf("segment in role %s labeled %q", role, s.Category)
			}
		}
	}

	maxTotal := 0
	for _, c := range p.RoleCaps {
		maxTotal += c
	}
	if set.Total() > maxTotal {
		t.Fatalf("selected %d segments, caps sum to %d", set.Total(), maxTotal)
	}
}

func TestSelectRankings(t *testing.T) {
	dir := t.TempDir()
	p := config.Defaults()
	stems := testStems(t, dir)
	drums := stems[config.StemDrums]
	vocals := stems[config.StemVocals]

	set, err := Select(stems, p)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	// Foundation takes the two loudest drum segments.
	foundation := set[config.RoleFoundation]
	if len(foundation) != 2 || foundation[0] != drums[0] || foundation[1] != drums[1] {
		t.Fatalf("foundation picked wrong segments")
	}
	// Groove takes the brightest remaining drums (highest centroid).
	groove := set[config.RoleGroove]
	if len(groove) != 2 || groove[0] != drums[4] || groove[1] != drums[3] {
		t.Fatalf("groove picked wrong segments")
	}
	// Hook takes the loudest vocals.
	hook := set[config.RoleHook]
	if len(hook) != 2 || hook[0] != vocals[2] || hook[1] != vocals[1] {
		t.Fatalf("hook picked wrong segments")
	}
}

func TestSelectBassDiversity(t *testing.T) {
	dir := t.TempDir()
	p := config.Defaults()
	// Ranked by energy: centroids 100, 150, 400. The 150 candidate is
	// within 200 Hz of the first pick, so the diverse pass skips it in
	// favor of 400.
	stems := map[string][]*segment.Segment{
		config.StemBass: {
			makeSeg(t, dir, "bass-phrase-01.wav", config.StemBass, 4000, 0.9, 100),
			makeSeg(t, dir, "bass-phrase-02.wav", config.StemBass, 4000, 0.8, 150),
			makeSeg(t, dir, "bass-phrase-03.wav", config.StemBass, 4000, 0.7, 400),
		},
	}
	bass := stems[config.StemBass]

	set, err := Select(stems, p)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	picks := set[config.RoleBass]
	if len(picks) != 2 || picks[0] != bass[0] || picks[1] != bass[2] {
		t.Fatalf("diversity selection wrong: got %v", names(picks))
	}
}

func TestSelectBassDiversityFallback(t *testing.T) {
	dir := t.TempDir()
	p := config.Defaults()
	// All centroids within the threshold: diversity cannot fill the
	// cap, so rank order fills the remaining slot.
	stems := map[string][]*segment.Segment{
		config.StemBass: {
			makeSeg(t, dir, "bass-phrase-01.wav", config.StemBass, 4000, 0.9, 100),
			makeSeg(t, dir, "bass-phrase-02.wav", config.StemBass, 4000, 0.8, 120),
			makeSeg(t, dir, "bass-phrase-03.wav", config.StemBass, 4000, 0.7, 140),
		},
	}
	bass := stems[config.StemBass]

	set, err := Select(stems, p)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	picks := set[config.RoleBass]
	if len(picks) != 2 || picks[0] != bass[0] || picks[1] != bass[1] {
		t.Fatalf("fallback fill wrong: got %v", names(picks))
	}
}

func TestSelectTextureTakesQuietest(t *testing.T) {
	dir := t.TempDir()
	p := config.Defaults()
	stems := testStems(t, dir)
	other := stems[config.StemOther]
	vocals := stems[config.StemVocals]

	set, err := Select(stems, p)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// By the texture pass the pool's two quietest leftovers are the
	// shortest "other" segment (0.2) and the quietest vocal (0.3).
	picks := set[config.RoleTexture]
	if len(picks) != 2 || picks[0] != other[0] || picks[1] != vocals[0] {
		t.Fatalf("texture picked wrong segments: got %v", names(picks))
	}
}

func TestSelectRenamesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	p := config.Defaults()
	stems := testStems(t, dir)

	total := 0
	for _, segs := range stems {
		total += len(segs)
	}

	set, err := Select(stems, p)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != set.Total() {
		t.Fatalf("%d files on disk, want %d (unchosen deleted)", len(entries), set.Total())
	}
	if set.Total() >= total {
		t.Fatalf("nothing was pruned: %d selected of %d", set.Total(), total)
	}

	for role, segs := range set {
		for i, s := range segs {
			want := fmt.Sprintf("%s-%02d.wav", role, i+1)
			if filepath.Base(s.Path) != want {
				t.Fatalf("role %s segment %d named %q, want %q",
					role, i, filepath.Base(s.Path), want)
			}
			if s.Ordinal != i+1 {
				t.Fatalf("role %s segment %d ordinal %d", role, i, s.Ordinal)
			}
			if _, err := os.Stat(s.Path); err != nil {
				t.Fatalf("selected file missing: %v", err)
			}
		}
	}
}

func TestSelectDeterministic(t *testing.T) {
	p := config.Defaults()

	run := func() []string {
		dir := t.TempDir()
		set, err := Select(testStems(t, dir), p)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		var out []string
		for _, role := range p.RoleOrder {
			for _, s := range set[role] {
				out = append(out, role+"/"+filepath.Base(s.Path))
			}
		}
		return out
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("selection sizes differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("selection differs at %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func names(segs []*segment.Segment) []string {
	var out []string
	for _, s := range segs {
		out = append(out, filepath.Base(s.Path))
	}
	return out
}
