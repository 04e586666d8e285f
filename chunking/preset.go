package chunking

import "entitystack/entity"

// Preset is the tunable parameter set for one chunking granularity, per
// the table in spec.md §4.4.
type Preset struct {
	WindowSize           int
	Overlap              int
	MinChunkSize         int
	MaxChunkSize         int
	BreakpointPercentile float64
}

var presets = map[entity.ChunkPreset]Preset{
	entity.PresetParent: {WindowSize: 200, Overlap: 50, MinChunkSize: 128, MaxChunkSize: 400, BreakpointPercentile: 0.5},
	entity.PresetChild:  {WindowSize: 30, Overlap: 10, MinChunkSize: 10, MaxChunkSize: 60, BreakpointPercentile: 0.5},
}

func presetFor(p entity.ChunkPreset) Preset {
	if preset, ok := presets[p]; ok {
		return preset
	}
	return presets[entity.PresetParent]
}
