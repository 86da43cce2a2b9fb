// Command blender turns a mixed song into a curated set of musical
// primitive samples plus a .perf.json performance configuration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"blender/pipeline"
)

func main() {
	bpm := flag.Float64("bpm", 0, "Override auto-detected BPM")
	outputDir := flag.String("output-dir", "", "Output directory (default: current dir)")
	minDuration := flag.Int("min-duration", 100, "Min slice duration in ms (onset mode)")
	stems := flag.String("stems", "", "Comma-separated stems to keep (e.g. drums,bass,vocals)")
	onsets := flag.Bool("onsets", false, "Slice at onsets instead of bar boundaries")
	verbose := flag.Bool("verbose", false, "Show detailed analysis output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: blender [flags] <song file>\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	song := flag.Arg(0)
	if _, err := os.Stat(song); err != nil {
		fmt.Fprintf(os.Stderr, "Error: File not found: %s\n", song)
		os.Exit(1)
	}

	var bpmOverride *float64
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "bpm" {
			bpmOverride = bpm
		}
	})

	var stemsFilter []string
	if *stems != "" {
		for _, s := range strings.Split(*stems, ",") {
			if s = strings.TrimSpace(s); s != "" {
				stemsFilter = append(stemsFilter, s)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Blending %q\n", filepath.Base(song))

	_, err := pipeline.Run(ctx, pipeline.Options{
		SongPath:      song,
		OutputDir:     *outputDir,
		BPMOverride:   bpmOverride,
		MinDurationMS: *minDuration,
		Stems:         stemsFilter,
		OnsetMode:     *onsets,
		Verbose:       *verbose,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nCancelled.")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}
}
