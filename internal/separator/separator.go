// Package separator invokes the external source-separation tool
// (demucs) to split a mixed song into instrument-group stems.
package separator

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"blender/config"
)

// ErrUnavailable reports that the separation tool is missing or
// failed to run.
var ErrUnavailable = errors.New("demucs is not installed or failed to run; install it with: pip install demucs")

// ErrNoStems reports that separation ran but produced no stem files.
var ErrNoStems = errors.New("separation produced no stems")

// Separate runs demucs on songPath, writing stems under outDir.
// Returns a map from stem name to WAV path for every stem the model
// produced.
func Separate(songPath, outDir string, p *config.Params) (map[string]string, error) {
	cmd := exec.Command("python3", "-m", "demucs",
		"--name", p.DemucsModel,
		"--out", outDir,
		"--float32",
		songPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, strings.TrimSpace(stderr.String()))
	}

	// Demucs writes to <outDir>/<model>/<song name>/<stem>.wav.
	songName := strings.TrimSuffix(filepath.Base(songPath), filepath.Ext(songPath))
	stemsDir := filepath.Join(outDir, p.DemucsModel, songName)

	stems := make(map[string]string)
	for _, name := range p.StemNames {
		path := filepath.Join(stemsDir, name+".wav")
		if fileExists(path) {
			stems[name] = path
		}
	}
	if len(stems) == 0 {
		return nil, fmt.Errorf("%w in %s (expected %s)", ErrNoStems, stemsDir, strings.Join(p.StemNames, ", "))
	}
	return stems, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
