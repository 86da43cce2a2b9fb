package analysis

import "math"

const (
	minBPM = 60.0
	maxBPM = 200.0

	fallbackBPM = 120.0

	// A halved/thirded lag replaces the autocorrelation peak when its
	// correlation reaches this fraction of the peak's.
	subLagMinRatio = 0.4

	// Non-sensitive onset detection.
	onsetDeltaDefault  = 0.07
	onsetDeltaRaised   = 0.3
	onsetMinSpacingSec = 0.35
)

// EstimateTempo estimates the tempo of a mono signal in BPM, rounded
// to one decimal place. Signals too short to analyze report the
// 120 BPM fallback.
func EstimateTempo(samples []float64, sampleRate int) (float64, error) {
	env, err := onsetEnvelope(samples)
	if err != nil {
		return 0, err
	}
	if len(env) < 64 {
		return fallbackBPM, nil
	}

	hopSec := hopSeconds(sampleRate)
	minLag := int(60.0 / (maxBPM * hopSec))
	maxLag := int(60.0 / (minBPM * hopSec))
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	if minLag < 1 {
		minLag = 1
	}
	if maxLag <= minLag {
		return fallbackBPM, nil
	}

	corr := make([]float64, maxLag+1)
	bestLag := minLag
	best := math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		count := 0
		for i := 0; i+lag < len(env); i++ {
			sum += env[i] * env[i+lag]
			count++
		}
		if count > 0 {
			sum /= float64(count)
		}
		corr[lag] = sum
		if sum > best {
			best = sum
			bestLag = lag
		}
	}

	// The raw peak favors lags that land on integer hop multiples of
	// the true beat period, which can be an octave (or a triple) above
	// it. Walk down to the fastest divided lag whose correlation stays
	// comparable to the peak.
	for corr[bestLag] > 0 {
		next := 0
		for _, div := range []int{2, 3} {
			h := bestLag / div
			if h < minLag {
				continue
			}
			// The true sub-lag may round either way.
			if h+1 <= maxLag && corr[h+1] > corr[h] {
				h++
			}
			if corr[h] >= subLagMinRatio*corr[bestLag] && (next == 0 || corr[h] > corr[next]) {
				next = h
			}
		}
		if next == 0 || next >= bestLag {
			break
		}
		bestLag = next
	}

	// Parabolic refinement around the integer peak.
	lag := float64(bestLag)
	if bestLag > minLag && bestLag < maxLag {
		y0, y1, y2 := corr[bestLag-1], corr[bestLag], corr[bestLag+1]
		den := y0 - 2*y1 + y2
		if math.Abs(den) > 1e-12 {
			shift := 0.5 * (y0 - y2) / den
			if shift > -1 && shift < 1 {
				lag += shift
			}
		}
	}

	beatPeriod := lag * hopSec
	if beatPeriod <= 0 {
		return fallbackBPM, nil
	}
	bpm := 60.0 / beatPeriod
	for bpm > maxBPM {
		bpm /= 2
	}
	for bpm < minBPM {
		bpm *= 2
	}
	if !isFinite(bpm) {
		return fallbackBPM, nil
	}
	return math.Round(bpm*10) / 10, nil
}

// BeatTimes places a beat grid of the given tempo against the signal,
// choosing the phase that best matches the onset-strength envelope.
// Returns beat times in seconds.
func BeatTimes(samples []float64, sampleRate int, bpm float64) ([]float64, error) {
	if bpm <= 0 {
		return nil, nil
	}
	env, err := onsetEnvelope(samples)
	if err != nil {
		return nil, err
	}

	hopSec := hopSeconds(sampleRate)
	period := 60.0 / bpm / hopSec
	if period <= 0 || len(env) == 0 {
		return nil, nil
	}

	bestPhase := 0
	best := math.Inf(-1)
	maxPhase := int(period)
	if maxPhase < 1 {
		maxPhase = 1
	}
	for phase := 0; phase < maxPhase; phase++ {
		var score float64
		for pos := float64(phase); pos < float64(len(env)); pos += period {
			score += env[int(pos)]
		}
		if score > best {
			best = score
			bestPhase = phase
		}
	}

	var beats []float64
	for pos := float64(bestPhase); pos < float64(len(env)); pos += period {
		beats = append(beats, pos*hopSec)
	}
	return beats, nil
}

// BarBoundaries returns the start time of each four-beat bar. When
// fewer than four beats are detected it falls back to a uniform grid
// derived from the tempo alone, covering the whole signal.
func BarBoundaries(samples []float64, sampleRate int, bpm float64) ([]float64, error) {
	if bpm <= 0 {
		return nil, nil
	}
	beats, err := BeatTimes(samples, sampleRate, bpm)
	if err != nil {
		return nil, err
	}

	if len(beats) < 4 {
		duration := float64(len(samples)) / float64(sampleRate)
		barDur := 4 * 60.0 / bpm
		n := int(duration/barDur) + 1
		grid := make([]float64, n)
		for i := range grid {
			grid[i] = float64(i) * barDur
		}
		return grid, nil
	}

	var bars []float64
	for i := 0; i < len(beats); i += 4 {
		bars = append(bars, beats[i])
	}
	return bars, nil
}

// OnsetTimes detects note/hit onsets. Sensitive mode uses the default
// detection threshold and suits percussive content; non-sensitive mode
// raises the threshold and enforces a minimum spacing so melodic and
// harmonic material is not over-segmented.
func OnsetTimes(samples []float64, sampleRate int, sensitive bool) ([]float64, error) {
	env, err := onsetEnvelope(samples)
	if err != nil {
		return nil, err
	}
	if len(env) < 3 {
		return nil, nil
	}
	norm := normalizeMax(env)

	delta := onsetDeltaDefault
	minSpacing := 0.0
	if !sensitive {
		delta = onsetDeltaRaised
		minSpacing = onsetMinSpacingSec
	}

	hopSec := hopSeconds(sampleRate)
	var onsets []float64
	last := math.Inf(-1)
	for i := 1; i < len(norm)-1; i++ {
		if norm[i] < delta {
			continue
		}
		if norm[i] <= norm[i-1] || norm[i] < norm[i+1] {
			continue
		}
		t := float64(i) * hopSec
		if t-last < minSpacing {
			continue
		}
		onsets = append(onsets, t)
		last = t
	}
	return onsets, nil
}
