// Package config holds the default tables that drive the blend
// pipeline: slicing limits, categorization thresholds, per-role
// playback settings, and scene templates. Every component receives a
// Params value explicitly so behavior is fully determined by inputs.
package config

// Stem names produced by the separation step, in processing order.
const (
	StemDrums  = "drums"
	StemBass   = "bass"
	StemVocals = "vocals"
	StemOther  = "other"
)

// Musical roles of selected primitives, in track display order.
const (
	RoleFoundation  = "foundation"
	RoleGroove      = "groove"
	RoleBass        = "bass"
	RoleHarmonicBed = "harmonic_bed"
	RoleHook        = "hook"
	RoleTexture     = "texture"
	RoleAccent      = "accent"
)

// PlayMode describes how a track's sample is played back.
type PlayMode struct {
	Mode     string // "loop" or "one_shot"
	Interval string // default loop interval, empty for one-shots
}

// Scene is a density level: the set of roles audible in it.
type Scene struct {
	Name   string
	Active []string
}

// Params holds all pipeline defaults.
type Params struct {
	StemNames []string

	// Slicing
	MinSliceDurationMS int     // onset-mode minimum slice length
	SliceFloorMS       float64 // absolute floor, applies to every mode
	FadeOutMS          int
	MaxSlicesPerStem   int

	// Drum categorization thresholds
	KickCentroidMaxHz  float64
	KickMinDurationS   float64
	HatCentroidMinHz   float64
	HatMaxDurationS    float64
	SnareCentroidMinHz float64
	SnareMaxDurationS  float64

	// Non-drum categorization
	PhraseMinDurationS float64

	// Selection
	RoleOrder          []string
	RoleCaps           map[string]int
	BassDiversityMinHz float64 // min centroid separation between bass picks

	// Config generation
	RoleModes     map[string]PlayMode
	RoleColors    map[string]string
	RoleVolumes   map[string]int
	ReverbSendDB  int
	DelaySendDB   int
	DensityScenes []Scene
	StartingScene int

	// Separation
	DemucsModel string
}

// Defaults returns the stock parameter set.
func Defaults() *Params {
	return &Params{
		StemNames: []string{StemDrums, StemBass, StemVocals, StemOther},

		MinSliceDurationMS: 500,
		SliceFloorMS:       250,
		FadeOutMS:          10,
		MaxSlicesPerStem:   30,

		KickCentroidMaxHz:  500,
		KickMinDurationS:   0.1,
		HatCentroidMinHz:   5000,
		HatMaxDurationS:    0.1,
		SnareCentroidMinHz: 1000,
		SnareMaxDurationS:  0.3,

		PhraseMinDurationS: 0.5,

		RoleOrder: []string{
			RoleFoundation, RoleGroove, RoleBass, RoleHarmonicBed,
			RoleHook, RoleTexture, RoleAccent,
		},
		RoleCaps: map[string]int{
			RoleFoundation:  2,
			RoleGroove:      2,
			RoleBass:        2,
			RoleHarmonicBed: 2,
			RoleHook:        2,
			RoleTexture:     2,
			RoleAccent:      2,
		},
		BassDiversityMinHz: 200,

		RoleModes: map[string]PlayMode{
			RoleFoundation:  {Mode: "loop", Interval: "1m"},
			RoleGroove:      {Mode: "loop", Interval: "1m"},
			RoleBass:        {Mode: "loop", Interval: "2m"},
			RoleHarmonicBed: {Mode: "loop", Interval: "4m"},
			RoleHook:        {Mode: "one_shot"},
			RoleTexture:     {Mode: "loop", Interval: "4m"},
			RoleAccent:      {Mode: "one_shot"},
		},
		RoleColors: map[string]string{
			RoleFoundation:  "#f90",
			RoleGroove:      "#fc3",
			RoleBass:        "#4af",
			RoleHarmonicBed: "#af4",
			RoleHook:        "#f4a",
			RoleTexture:     "#9cf",
			RoleAccent:      "#fa4",
		},
		RoleVolumes: map[string]int{
			RoleFoundation:  -6,
			RoleGroove:      -8,
			RoleBass:        -8,
			RoleHarmonicBed: -10,
			RoleHook:        -6,
			RoleTexture:     -12,
			RoleAccent:      -6,
		},
		ReverbSendDB: -14,
		DelaySendDB:  -18,

		DensityScenes: []Scene{
			{Name: "Sparse", Active: []string{RoleBass, RoleTexture}},
			{Name: "Groove", Active: []string{RoleFoundation, RoleBass}},
			{Name: "Build", Active: []string{RoleFoundation, RoleGroove, RoleBass}},
			{Name: "Full", Active: []string{RoleFoundation, RoleGroove, RoleBass, RoleHarmonicBed}},
			{Name: "Peak", Active: []string{RoleFoundation, RoleGroove, RoleBass, RoleHarmonicBed, RoleTexture}},
		},
		StartingScene: 1,

		DemucsModel: "htdemucs",
	}
}

// GestureRole reports whether a role is gesture-triggered rather than
// scene-controlled; such tracks are never muted by scenes.
func (p *Params) GestureRole(role string) bool {
	m, ok := p.RoleModes[role]
	return ok && m.Mode == "one_shot"
}
