// Package audiofile reads and writes the waveforms the pipeline works
// on. WAV files are handled natively, MP3 through go-mp3, and anything
// else through an ffmpeg subprocess.
package audiofile

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// DecodeError reports a waveform that could not be parsed.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Clip is an in-memory waveform: interleaved float32 samples in
// [-1, 1] with channel count and sample rate.
type Clip struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// DurationSec returns the clip length in seconds.
func (c *Clip) DurationSec() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}

// Mono returns a float64 downmix of the clip.
func (c *Clip) Mono() []float64 {
	frames := c.Frames()
	out := make([]float64, frames)
	if c.Channels == 1 {
		for i, v := range c.Samples {
			out[i] = float64(v)
		}
		return out
	}
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < c.Channels; ch++ {
			sum += float64(c.Samples[i*c.Channels+ch])
		}
		out[i] = sum / float64(c.Channels)
	}
	return out
}

// ReadClip decodes an audio file into a Clip. The decoder is chosen by
// file extension; unknown extensions go through ffmpeg.
func ReadClip(path string) (*Clip, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return readWAV(path)
	case ".mp3":
		return readMP3(path)
	default:
		return readViaFFmpeg(path)
	}
}

func readWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("invalid wav file")}
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("invalid wav buffer")}
	}
	fbuf := buf.AsFloat32Buffer()
	return &Clip{
		Samples:    fbuf.Data,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

func readMP3(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	// go-mp3 emits 16-bit little-endian stereo.
	var raw bytes.Buffer
	chunk := make([]byte, 8192)
	for {
		n, err := dec.Read(chunk)
		if n > 0 {
			raw.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DecodeError{Path: path, Err: err}
		}
	}
	b := raw.Bytes()
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	samples := make([]float32, len(b)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768.0
	}
	return &Clip{Samples: samples, SampleRate: dec.SampleRate(), Channels: 2}, nil
}

func readViaFFmpeg(path string) (*Clip, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	const rate = 44100
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-v", "error",
		"-i", path,
		"-ac", "2",
		"-ar", fmt.Sprintf("%d", rate),
		"-f", "f32le",
		"pipe:1",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &bytes.Buffer{}
	if err := cmd.Run(); err != nil {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("ffmpeg: %w", err)}
	}
	raw := out.Bytes()
	if len(raw)%4 != 0 {
		raw = raw[:len(raw)-len(raw)%4]
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		u := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		samples[i] = math.Float32frombits(u)
	}
	return &Clip{Samples: samples, SampleRate: rate, Channels: 2}, nil
}

// WriteClip encodes a clip as 16-bit PCM WAV, creating parent
// directories as needed.
func WriteClip(path string, c *Clip) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, c.SampleRate, 16, c.Channels, 1)
	defer enc.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  c.SampleRate,
			NumChannels: c.Channels,
		},
		Data:           c.Samples,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}

// ResampleMono converts a mono float64 signal between sample rates.
// Returns the input unchanged when the rates match.
func ResampleMono(in []float64, fromRate int, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}
