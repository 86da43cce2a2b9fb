package perf

import (
	"fmt"
	"path/filepath"
	"strings"

	"blender/config"
	"blender/primitives"
)

// InferInterval snaps a segment duration to the nearest musical loop
// length in bars, quantized to {1m, 2m, 4m, 8m} with breakpoints at
// 1.5, 3, and 6 bars.
func InferInterval(durationMS, bpm float64) string {
	barMS := 4 * 60000.0 / bpm
	bars := durationMS / barMS
	switch {
	case bars < 1.5:
		return "1m"
	case bars < 3:
		return "2m"
	case bars < 6:
		return "4m"
	default:
		return "8m"
	}
}

// Assemble builds the full configuration document from a selected
// primitive set. Roles absent from the set are omitted; intent pools
// that end up empty are dropped. The returned document passes
// Validate.
func Assemble(set primitives.Set, bpm float64, songName string, p *config.Params) (*Config, error) {
	if bpm <= 0 {
		return nil, fmt.Errorf("bpm must be positive, got %g", bpm)
	}

	var sampleTracks []SampleTrack
	categoryIndices := make(map[string][]int)
	trackIdx := 0

	for _, role := range p.RoleOrder {
		segs := set[role]
		if len(segs) == 0 {
			continue
		}
		mode := p.RoleModes[role]
		color := p.RoleColors[role]
		volume := p.RoleVolumes[role]

		for i, s := range segs {
			track := SampleTrack{
				Name:     fmt.Sprintf("%s %d", displayName(role), i+1),
				File:     filepath.Base(s.Path),
				Color:    color,
				Category: role,
				Volume:   volume,
				Sends:    Sends{Reverb: p.ReverbSendDB, Delay: p.DelaySendDB},
				Mode:     mode.Mode,
			}
			if mode.Mode == "loop" {
				track.Interval = InferInterval(s.DurationMS, bpm)
			}
			// Gesture-triggered roles are always audible; everything
			// else is muted in every scene that excludes its role.
			if !p.GestureRole(role) {
				for sceneIdx, scene := range p.DensityScenes {
					if !contains(scene.Active, role) {
						track.MutedInScenes = append(track.MutedInScenes, sceneIdx)
					}
				}
			}
			sampleTracks = append(sampleTracks, track)
			categoryIndices[role] = append(categoryIndices[role], trackIdx)
			trackIdx++
		}
	}

	scenes := make([]Scene, 0, len(p.DensityScenes))
	for _, sc := range p.DensityScenes {
		var present []string
		for _, role := range sc.Active {
			if len(set[role]) > 0 {
				present = append(present, role)
			}
		}
		scenes = append(scenes, Scene{
			Name:  sc.Name,
			Mutes: []int{},
			Desc:  "Active: " + strings.Join(present, ", "),
		})
	}

	cfg := &Config{
		Version:          "0.2",
		Name:             songName + " (Blended)",
		BPM:              bpm,
		Swing:            0,
		SwingSubdivision: "16n",
		Tracks:           []Track{},
		Gestures:         gestureTemplates(),
		Streams:          streamTemplates(),
		Stacks:           stackTemplates(),
		Intents:          intentTemplates(categoryIndices[config.RoleHook], categoryIndices[config.RoleAccent]),
		Signals:          signalTemplates(),
		Scenes:           scenes,
		SampleTracks:     sampleTracks,
		StartingScene:    p.StartingScene,
		CategoryIndices:  categoryIndices,
	}

	for name, pool := range cfg.Intents {
		if len(pool) == 0 {
			delete(cfg.Intents, name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func gestureTemplates() map[string]Gesture {
	return map[string]Gesture{
		"/gesture/1": {
			Name:    "pull back",
			Streams: map[string]int{"energy_down": 1, "all_movement": 1},
			Stacks:  map[string]int{"total_moves": 1, "pull_back_streak": 1},
			Intents: []string{"strip_energy"},
			Signals: []string{"stop"},
		},
		"/gesture/2": {
			Name:    "push energy",
			Streams: map[string]int{"energy_up": 1, "all_movement": 1},
			Stacks:  map[string]int{"total_moves": 1, "push_streak": 1},
			Intents: []string{"add_energy"},
			Signals: []string{"start"},
		},
		"/gesture/3": {
			Name:    "structure shift",
			Streams: map[string]int{"structure_rate": 1, "all_movement": 1},
			Stacks:  map[string]int{"total_moves": 1, "structure_count": 1},
			Intents: []string{"shift_structure"},
			Signals: []string{},
		},
	}
}

func streamTemplates() map[string]Stream {
	return map[string]Stream{
		"energy_down": {
			WindowMS:   5000,
			Thresholds: []Threshold{{Above: 6, Action: IntentRef{Intent: "frantic_strip"}}},
		},
		"energy_up": {
			WindowMS:   5000,
			Thresholds: []Threshold{{Above: 6, Action: IntentRef{Intent: "explosive_build"}}},
		},
		"structure_rate": {
			WindowMS:   5000,
			Thresholds: []Threshold{{Above: 4, Action: IntentRef{Intent: "total_reset"}}},
		},
		"all_movement": {
			WindowMS:   5000,
			Thresholds: []Threshold{{Above: 10, Action: IntentRef{Intent: "peak_frenzy"}}},
		},
	}
}

func stackTemplates() map[string]Stack {
	return map[string]Stack{
		"total_moves": {
			Triggers: []StackTrigger{
				{At: 5, Action: IntentRef{Intent: "minor_shift"}, Reset: false},
				{At: 15, Action: IntentRef{Intent: "breakthrough"}, Reset: true},
			},
		},
		"pull_back_streak": {
			Triggers: []StackTrigger{{At: 5, Action: IntentRef{Intent: "full_breakdown"}, Reset: true}},
		},
		"push_streak": {
			Triggers: []StackTrigger{{At: 5, Action: IntentRef{Intent: "scene_advance"}, Reset: true}},
		},
		"structure_count": {
			Triggers: []StackTrigger{{At: 3, Action: IntentRef{Intent: "structure_payoff"}, Reset: true}},
		},
	}
}

// triggerPool builds weighted trigger_sample actions for a role's
// track indices.
func triggerPool(indices []int, weight int) []Action {
	pool := make([]Action, 0, len(indices))
	for _, i := range indices {
		pool = append(pool, Action{
			Action: "trigger_sample",
			Args:   map[string]any{"track": i},
			Weight: weight,
		})
	}
	return pool
}

func intentTemplates(hookIndices, accentIndices []int) map[string][]Action {
	return map[string][]Action{
		"strip_energy": {
			{Action: "scene_down", Weight: 3},
			{Action: "filter_sweep", Args: map[string]any{"freq": 300, "duration": 3000}, Weight: 2},
			{Action: "hush_master", Args: map[string]any{"drop": 0.4, "duration": 2500}, Weight: 1},
		},
		"add_energy": append([]Action{
			{Action: "scene_up", Weight: 3},
			{Action: "trigger_hook", Weight: 2},
		}, triggerPool(accentIndices, 2)...),
		"shift_structure": {
			{Action: "swap_variant", Weight: 3},
			{Action: "breakdown", Args: map[string]any{"duration": 6000}, Weight: 2},
			{Action: "trigger_hook", Weight: 1},
		},
		"frantic_strip": {
			{Action: "scene_down", Weight: 2},
			{Action: "breakdown", Args: map[string]any{"duration": 8000}, Weight: 2},
			{Action: "hush_master", Args: map[string]any{"drop": 0.6, "duration": 4000}, Weight: 1},
		},
		"explosive_build": {
			{Action: "scene_up", Weight: 2},
			{Action: "trigger_hook", Weight: 2},
			{Action: "bass_drop", Weight: 1},
		},
		"total_reset": {
			{Action: "fire_scene", Args: map[string]any{"scene": 0}, Weight: 2},
			{Action: "bass_drop", Weight: 1},
		},
		"peak_frenzy": append(append([]Action{
			{Action: "fire_scene", Args: map[string]any{"scene": 4}, Weight: 2},
		}, triggerPool(hookIndices, 1)...), triggerPool(accentIndices, 1)...),
		"minor_shift": {
			{Action: "trigger_accent", Weight: 2},
			{Action: "swap_variant", Weight: 1},
		},
		"breakthrough": {
			{Action: "scene_up", Weight: 3},
			{Action: "trigger_hook", Weight: 2},
			{Action: "bass_drop", Weight: 1},
		},
		"full_breakdown": {
			{Action: "fire_scene", Args: map[string]any{"scene": 0}, Weight: 2},
			{Action: "breakdown", Args: map[string]any{"duration": 10000}, Weight: 2},
		},
		"scene_advance": {
			{Action: "scene_up", Weight: 3},
			{Action: "trigger_accent", Weight: 1},
		},
		"structure_payoff": {
			{Action: "swap_variant", Weight: 2},
			{Action: "scene_up", Weight: 2},
			{Action: "trigger_hook", Weight: 1},
		},
	}
}

func signalTemplates() map[string]Signal {
	return map[string]Signal{
		"start": {
			Action:    "start_playing",
			Condition: Condition{StateEquals: "stopped"},
		},
		"stop": {
			Action:    "stop_playing",
			Condition: Condition{StateEquals: "playing", MinElapsedMS: 300000},
		},
	}
}

func displayName(role string) string {
	parts := strings.Split(role, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
