// Package perf defines the declarative performance-configuration
// document consumed by the performance engine, assembles it from a
// selected primitive set, and reads/writes it as JSON. The field set
// and nesting are a compatibility contract with the engine.
package perf

// Config is the root of a .perf.json document.
type Config struct {
	Version          string              `json:"version"`
	Name             string              `json:"name"`
	BPM              float64             `json:"bpm"`
	Swing            int                 `json:"swing"`
	SwingSubdivision string              `json:"swing_subdivision"`
	Tracks           []Track             `json:"tracks"` // reserved for non-sample tracks
	Gestures         map[string]Gesture  `json:"gestures"`
	Streams          map[string]Stream   `json:"streams"`
	Stacks           map[string]Stack    `json:"stacks"`
	Intents          map[string][]Action `json:"intents"`
	Signals          map[string]Signal   `json:"signals"`
	Scenes           []Scene             `json:"scenes"`
	SampleTracks     []SampleTrack       `json:"sample_tracks"`
	StartingScene    int                 `json:"starting_scene"`
	CategoryIndices  map[string][]int    `json:"category_indices"`
}

// Track is a non-sample (synth) track slot. The generator emits none;
// the field exists so hand-edited documents stay loadable.
type Track struct {
	Name string `json:"name"`
}

// SampleTrack plays one selected primitive.
type SampleTrack struct {
	Name          string `json:"name"`
	File          string `json:"file"`
	Color         string `json:"color"`
	Category      string `json:"category"`
	Volume        int    `json:"volume"`
	Sends         Sends  `json:"sends"`
	Mode          string `json:"mode"`
	Interval      string `json:"interval,omitempty"`
	MutedInScenes []int  `json:"muted_in_scenes,omitempty"`
}

// Sends holds effect send levels in dB.
type Sends struct {
	Reverb int `json:"reverb"`
	Delay  int `json:"delay"`
}

// Scene is a named mute-pattern representing one density level.
type Scene struct {
	Name  string `json:"name"`
	Mutes []int  `json:"mutes"`
	Desc  string `json:"desc"`
}

// Gesture maps a named input event onto stream/stack updates and
// intent/signal firing.
type Gesture struct {
	Name    string         `json:"name"`
	Streams map[string]int `json:"streams"`
	Stacks  map[string]int `json:"stacks"`
	Intents []string       `json:"intents"`
	Signals []string       `json:"signals"`
}

// Stream accumulates weighted events inside a time window and fires
// an intent once a cumulative threshold is exceeded.
type Stream struct {
	WindowMS   int         `json:"window_ms"`
	Thresholds []Threshold `json:"thresholds"`
}

// Threshold triggers an intent when the windowed count passes Above.
type Threshold struct {
	Above  int       `json:"above"`
	Action IntentRef `json:"action"`
}

// IntentRef names the intent an action fires.
type IntentRef struct {
	Intent string `json:"intent"`
}

// Stack counts discrete events and fires intents at specific counts.
type Stack struct {
	Triggers []StackTrigger `json:"triggers"`
}

// StackTrigger fires at an exact count, optionally resetting it.
type StackTrigger struct {
	At     int       `json:"at"`
	Action IntentRef `json:"action"`
	Reset  bool      `json:"reset"`
}

// Action is one weighted candidate inside an intent pool.
type Action struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
	Weight int            `json:"weight"`
}

// Signal is a one-shot action gated by playback-state conditions.
type Signal struct {
	Action    string    `json:"action"`
	Condition Condition `json:"condition"`
}

// Condition gates a signal on engine state.
type Condition struct {
	StateEquals  string `json:"state_equals"`
	MinElapsedMS int    `json:"min_elapsed_ms,omitempty"`
}
