package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"blender/config"
	"blender/internal/audiofile"
	"blender/perf"
)

const testRate = 22050

// writeStemWAV synthesizes a stereo test stem: a quiet sine bed with a
// click every half second so beat tracking has something to lock onto.
func writeStemWAV(t *testing.T, path string, durSec float64, freq float64) {
	t.Helper()
	frames := int(durSec * testRate)
	c := &audiofile.Clip{SampleRate: testRate, Channels: 2, Samples: make([]float32, frames*2)}
	for i := 0; i < frames; i++ {
		v := 0.3 * math.Sin(2*math.Pi*freq*float64(i)/testRate)
		if i%(testRate/2) < 64 {
			v += 0.6 * (1.0 - float64(i%(testRate/2))/64.0)
		}
		c.Samples[i*2] = float32(v)
		c.Samples[i*2+1] = float32(v)
	}
	if err := audiofile.WriteClip(path, c); err != nil {
		t.Fatalf("WriteClip %s: %v", path, err)
	}
}

// stubSeparator swaps in a fake separation step that copies
// pre-rendered stems into the work directory.
func stubSeparator(t *testing.T, stems map[string]string) {
	t.Helper()
	orig := SeparateFunc
	SeparateFunc = func(songPath, outDir string, p *config.Params) (map[string]string, error) {
		return stems, nil
	}
	t.Cleanup(func() { SeparateFunc = orig })
}

func bpmPtr(v float64) *float64 { return &v }

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	songPath := filepath.Join(dir, "demo-track.wav")
	writeStemWAV(t, songPath, 2.0, 440)

	stemDir := t.TempDir()
	drumsPath := filepath.Join(stemDir, "drums.wav")
	bassPath := filepath.Join(stemDir, "bass.wav")
	writeStemWAV(t, drumsPath, 9.0, 200)
	writeStemWAV(t, bassPath, 9.0, 80)
	stubSeparator(t, map[string]string{
		config.StemDrums: drumsPath,
		config.StemBass:  bassPath,
	})

	outDir := t.TempDir()
	configPath, err := Run(context.Background(), Options{
		SongPath:    songPath,
		OutputDir:   outDir,
		BPMOverride: bpmPtr(120),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Base(configPath) != "demo-track.perf.json" {
		t.Fatalf("config written to %q", configPath)
	}

	cfg, err := perf.Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("generated document invalid: %v", err)
	}
	if cfg.BPM != 120.0 {
		t.Fatalf("config bpm %g, want override 120", cfg.BPM)
	}
	if cfg.Name != "demo-track (Blended)" {
		t.Fatalf("config name %q", cfg.Name)
	}
	if len(cfg.SampleTracks) == 0 {
		t.Fatalf("no sample tracks generated")
	}

	// Every referenced sample exists, and nothing else is left behind.
	samplesDir := filepath.Join(outDir, "samples")
	for _, tr := range cfg.SampleTracks {
		if _, err := os.Stat(filepath.Join(samplesDir, tr.File)); err != nil {
			t.Fatalf("sample %s missing: %v", tr.File, err)
		}
	}
	entries, err := os.ReadDir(samplesDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != len(cfg.SampleTracks) {
		t.Fatalf("%d files in samples dir, %d tracks in config",
			len(entries), len(cfg.SampleTracks))
	}
}

func TestRunStemAllowList(t *testing.T) {
	dir := t.TempDir()
	songPath := filepath.Join(dir, "song.wav")
	writeStemWAV(t, songPath, 2.0, 440)

	stemDir := t.TempDir()
	drumsPath := filepath.Join(stemDir, "drums.wav")
	bassPath := filepath.Join(stemDir, "bass.wav")
	writeStemWAV(t, drumsPath, 9.0, 200)
	writeStemWAV(t, bassPath, 9.0, 80)
	stubSeparator(t, map[string]string{
		config.StemDrums: drumsPath,
		config.StemBass:  bassPath,
	})

	outDir := t.TempDir()
	configPath, err := Run(context.Background(), Options{
		SongPath:    songPath,
		OutputDir:   outDir,
		BPMOverride: bpmPtr(120),
		Stems:       []string{config.StemDrums},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	cfg, err := perf.Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := cfg.CategoryIndices[config.RoleBass]; ok {
		t.Fatalf("bass role selected despite drums-only allow-list")
	}
	for _, tr := range cfg.SampleTracks {
		if tr.Category == config.RoleBass || tr.Category == config.RoleHook {
			t.Fatalf("track %q has category %q from an excluded stem", tr.Name, tr.Category)
		}
	}
}

func TestRunRejectsNonPositiveBPMOverride(t *testing.T) {
	dir := t.TempDir()
	songPath := filepath.Join(dir, "song.wav")
	writeStemWAV(t, songPath, 1.0, 440)

	for _, bad := range []float64{0, -90} {
		_, err := Run(context.Background(), Options{
			SongPath:    songPath,
			OutputDir:   t.TempDir(),
			BPMOverride: bpmPtr(bad),
		})
		if err == nil {
			t.Fatalf("bpm override %g accepted", bad)
		}
	}
}

func TestRunMissingSong(t *testing.T) {
	_, err := Run(context.Background(), Options{
		SongPath:    filepath.Join(t.TempDir(), "nope.wav"),
		OutputDir:   t.TempDir(),
		BPMOverride: bpmPtr(120),
	})
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("got %v, want InputError", err)
	}
}

func TestRunPropagatesSeparatorError(t *testing.T) {
	dir := t.TempDir()
	songPath := filepath.Join(dir, "song.wav")
	writeStemWAV(t, songPath, 1.0, 440)

	sentinel := errors.New("separation exploded")
	orig := SeparateFunc
	SeparateFunc = func(string, string, *config.Params) (map[string]string, error) {
		return nil, sentinel
	}
	t.Cleanup(func() { SeparateFunc = orig })

	_, err := Run(context.Background(), Options{
		SongPath:    songPath,
		OutputDir:   t.TempDir(),
		BPMOverride: bpmPtr(120),
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("got %v, want wrapped separator error", err)
	}
}
