// Package pipeline runs the full blend: tempo detection, stem
// separation, per-stem slicing and categorization, primitive
// selection, and configuration assembly.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"blender/analysis"
	"blender/config"
	"blender/internal/audiofile"
	"blender/internal/separator"
	"blender/perf"
	"blender/primitives"
	"blender/segment"
)

const analysisRate = 22050

// SeparateFunc performs stem separation. Tests override it to avoid
// running demucs.
var SeparateFunc = separator.Separate

// InputError reports a missing or unreadable source file.
type InputError struct {
	Path string
}

func (e *InputError) Error() string { return "song not found: " + e.Path }

// Options configures one pipeline run.
type Options struct {
	SongPath      string
	OutputDir     string   // default: current directory
	BPMOverride   *float64 // nil = auto-detect; must be > 0 when set
	MinDurationMS int      // onset-mode minimum slice length override
	Stems         []string // allow-list, nil = all
	OnsetMode     bool     // slice at onsets instead of bars
	Verbose       bool
	Params        *config.Params // nil = config.Defaults()
}

// Run executes the pipeline and returns the path of the generated
// .perf.json. Partial output under the samples directory is left in
// place on failure; the temporary separation directory is always
// removed.
func Run(ctx context.Context, opts Options) (string, error) {
	p := opts.Params
	if p == nil {
		p = config.Defaults()
	}
	if opts.BPMOverride != nil && *opts.BPMOverride <= 0 {
		return "", fmt.Errorf("bpm override must be positive, got %g", *opts.BPMOverride)
	}
	if _, err := os.Stat(opts.SongPath); err != nil {
		return "", &InputError{Path: opts.SongPath}
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	samplesDir := filepath.Join(outputDir, "samples")
	if err := os.MkdirAll(samplesDir, 0o755); err != nil {
		return "", err
	}
	songName := strings.TrimSuffix(filepath.Base(opts.SongPath), filepath.Ext(opts.SongPath))

	// Stage 1: tempo.
	var bpm float64
	if opts.BPMOverride != nil {
		bpm = *opts.BPMOverride
		fmt.Printf("  BPM: %g (override)\n", bpm)
	} else {
		fmt.Println("  Detecting BPM...")
		var err error
		bpm, err = detectBPM(opts.SongPath)
		if err != nil {
			return "", err
		}
		fmt.Printf("  BPM: %g\n", bpm)
	}

	// Stage 2: separation.
	fmt.Println("\nSeparating stems...")
	workDir, err := os.MkdirTemp("", "blender-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(workDir)

	stems, err := SeparateFunc(opts.SongPath, workDir, p)
	if err != nil {
		return "", err
	}
	stemNames := filterStems(p.StemNames, stems, opts.Stems)
	if len(stemNames) == 0 {
		return "", separator.ErrNoStems
	}
	fmt.Printf("  %s\n", strings.Join(stemNames, " / "))

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Stage 3: per-stem analysis, slicing, categorization. Stems are
	// independent and write to disjoint file names, so they fan out.
	if opts.OnsetMode {
		fmt.Println("\nSlicing at onsets...")
	} else {
		fmt.Println("\nSlicing at bar boundaries...")
	}
	stemSlices, bounds, err := sliceStems(stemNames, stems, samplesDir, bpm, opts, p)
	if err != nil {
		return "", err
	}
	for _, name := range stemNames {
		fmt.Printf("  %s: %d slice(s)\n", name, len(stemSlices[name]))
		if opts.Verbose {
			fmt.Printf("    %d boundaries detected\n", bounds[name])
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Stage 4: primitive selection.
	fmt.Println("\nSelecting musical primitives...")
	set, err := primitives.Select(stemSlices, p)
	if err != nil {
		return "", err
	}
	for _, role := range p.RoleOrder {
		if n := len(set[role]); n > 0 {
			fmt.Printf("  %s: %d sample(s)\n", role, n)
		}
	}

	// Stage 5: configuration document.
	cfg, err := perf.Assemble(set, bpm, songName, p)
	if err != nil {
		return "", err
	}
	configPath := filepath.Join(outputDir, songName+".perf.json")
	if err := perf.Write(cfg, configPath); err != nil {
		return "", err
	}

	fmt.Printf("\nDone! %d samples + %s\n", set.Total(), filepath.Base(configPath))
	return configPath, nil
}

func detectBPM(songPath string) (float64, error) {
	clip, err := audiofile.ReadClip(songPath)
	if err != nil {
		return 0, err
	}
	mono, err := audiofile.ResampleMono(clip.Mono(), clip.SampleRate, analysisRate)
	if err != nil {
		return 0, err
	}
	return analysis.EstimateTempo(mono, analysisRate)
}

type stemResult struct {
	name   string
	slices []*segment.Segment
	bounds int
	err    error
}

func sliceStems(stemNames []string, stems map[string]string, samplesDir string, bpm float64, opts Options, p *config.Params) (map[string][]*segment.Segment, map[string]int, error) {
	prog := mpb.New(mpb.WithWidth(64))
	bar := prog.AddBar(int64(len(stemNames)),
		mpb.PrependDecorators(
			decor.Name("Slicing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	results := make(chan stemResult, len(stemNames))
	var wg sync.WaitGroup
	for _, name := range stemNames {
		wg.Add(1)
		go func(name, path string) {
			defer wg.Done()
			slices, bounds, err := sliceStem(name, path, samplesDir, bpm, opts, p)
			results <- stemResult{name: name, slices: slices, bounds: bounds, err: err}
		}(name, stems[name])
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string][]*segment.Segment, len(stemNames))
	boundCounts := make(map[string]int, len(stemNames))
	var firstErr error
	for r := range results {
		bar.Increment()
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stem %s: %w", r.name, r.err)
			continue
		}
		out[r.name] = r.slices
		boundCounts[r.name] = r.bounds
	}
	prog.Wait()
	if firstErr != nil {
		return nil, nil, firstErr
	}
	return out, boundCounts, nil
}

func sliceStem(name, path, samplesDir string, bpm float64, opts Options, p *config.Params) ([]*segment.Segment, int, error) {
	clip, err := audiofile.ReadClip(path)
	if err != nil {
		return nil, 0, err
	}
	mono, err := audiofile.ResampleMono(clip.Mono(), clip.SampleRate, analysisRate)
	if err != nil {
		return nil, 0, err
	}

	var bounds []float64
	if opts.OnsetMode {
		bounds, err = analysis.OnsetTimes(mono, analysisRate, name == config.StemDrums)
	} else {
		bounds, err = analysis.BarBoundaries(mono, analysisRate, bpm)
	}
	if err != nil {
		return nil, 0, err
	}

	var slices []*segment.Segment
	if opts.OnsetMode {
		minDur := opts.MinDurationMS
		if minDur <= 0 {
			minDur = p.MinSliceDurationMS
		}
		slices, err = segment.SliceAtOnsets(clip, bounds, samplesDir, name, minDur, p)
	} else {
		slices, err = segment.SliceAtBars(clip, bounds, samplesDir, name, p)
	}
	if err != nil {
		return nil, 0, err
	}

	if err := segment.Categorize(slices, name, p); err != nil {
		return nil, 0, err
	}
	return slices, len(bounds), nil
}

// filterStems keeps the fixed stem ordering, drops stems separation
// did not produce, and applies the user's allow-list.
func filterStems(order []string, stems map[string]string, allow []string) []string {
	allowed := func(string) bool { return true }
	if len(allow) > 0 {
		set := make(map[string]bool, len(allow))
		for _, a := range allow {
			set[strings.TrimSpace(a)] = true
		}
		allowed = func(s string) bool { return set[s] }
	}
	var out []string
	for _, name := range order {
		if _, ok := stems[name]; ok && allowed(name) {
			out = append(out, name)
		}
	}
	return out
}
