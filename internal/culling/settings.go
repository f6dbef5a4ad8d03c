// Package culling streams the visible detail instances to the device and
// culls, LOD-buckets and sorts them every frame for indirect drawing.
package culling

import "github.com/Faultbox/midgard-details/internal/gpu"

// Layout constants, shared with the kernels.
const (
	GroupSize     = gpu.GroupSize
	DistTypeBit   = gpu.DistTypeBit
	DistTypeSize  = gpu.DistTypeSize
	DistTypeMask  = gpu.DistTypeMask
	MaxLODCounts  = gpu.MaxLODCounts
	MaxPrototypes = gpu.MaxPrototypes
)

// Settings tune the culling pass.
type Settings struct {
	BoundingBoxRadius     float32
	MaxCullingDistance    float32
	EnableCull            bool
	EnableCullInSceneView bool
	EnableRealtimeGI      bool
	UpdateProbesPerFrame  int
}

// DefaultSettings returns the settings the viewer starts with.
func DefaultSettings() Settings {
	return Settings{
		BoundingBoxRadius:    0.2,
		MaxCullingDistance:   100,
		EnableCull:           true,
		EnableRealtimeGI:     true,
		UpdateProbesPerFrame: 100,
	}
}

// CameraKind tells game cameras apart from editor and offscreen ones.
type CameraKind int

const (
	CameraGame CameraKind = iota
	CameraSceneView
	CameraPreview
	CameraReflection
)

func (k CameraKind) String() string {
	switch k {
	case CameraGame:
		return "game"
	case CameraSceneView:
		return "scene-view"
	case CameraPreview:
		return "preview"
	case CameraReflection:
		return "reflection"
	}
	return "unknown"
}

// ShouldExecute reports whether the pass runs for a camera of kind k.
func (s Settings) ShouldExecute(k CameraKind) bool {
	switch k {
	case CameraPreview, CameraReflection:
		return false
	case CameraSceneView:
		return s.EnableCullInSceneView
	}
	return true
}
