package terrain

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/pkg/formats"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// Description is the YAML form of a terrain tile. DetailMap is resolved
// relative to the description file.
type Description struct {
	Name       string                 `yaml:"name"`
	DetailMap  string                 `yaml:"detail_map"`
	Resolution int                    `yaml:"resolution,omitempty"` // 0 uses the detail map width
	Size       [2]float32             `yaml:"size"`                 // world width, depth
	Position   [3]float32             `yaml:"position"`
	Prototypes []PrototypeDescription `yaml:"prototypes"`
}

// PrototypeDescription is the YAML form of a Prototype.
type PrototypeDescription struct {
	Name      string  `yaml:"name"`
	Mesh      string  `yaml:"mesh"`
	LODs      int     `yaml:"lods"`
	MinWidth  float32 `yaml:"min_width"`
	MaxWidth  float32 `yaml:"max_width"`
	MinHeight float32 `yaml:"min_height"`
	MaxHeight float32 `yaml:"max_height"`
	NoiseSeed int     `yaml:"noise_seed"`
}

// LoadDescription reads a terrain description file.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading terrain description: %w", err)
	}

	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parsing terrain description %s: %w", path, err)
	}
	if desc.Name == "" {
		base := filepath.Base(path)
		desc.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	return &desc, nil
}

// SaveDescription writes a terrain description file.
func SaveDescription(path string, desc *Description) error {
	data, err := yaml.Marshal(desc)
	if err != nil {
		return fmt.Errorf("marshaling terrain description: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// BuildPrototypes resolves the prototype meshes of a description.
func (d *Description) BuildPrototypes() ([]Prototype, error) {
	protos := make([]Prototype, 0, len(d.Prototypes))
	for _, p := range d.Prototypes {
		kind := p.Mesh
		if kind == "" {
			kind = foliage.KindBlades
		}
		subs, err := foliage.SubMeshes(kind, p.LODs)
		if err != nil {
			return nil, fmt.Errorf("prototype %q: %w", p.Name, err)
		}
		protos = append(protos, Prototype{
			Name:      p.Name,
			Mesh:      kind,
			MinWidth:  p.MinWidth,
			MaxWidth:  p.MaxWidth,
			MinHeight: p.MinHeight,
			MaxHeight: p.MaxHeight,
			NoiseSeed: p.NoiseSeed,
			SubMeshes: subs,
		})
	}
	return protos, nil
}

// Info returns the metadata declared by the description. Detail grid sizes
// are filled in once the detail map is loaded.
func (d *Description) Info() Info {
	return Info{
		Name:       d.Name,
		Resolution: d.Resolution,
		Width:      d.Size[0],
		Depth:      d.Size[1],
		Position:   math.Vec3{X: d.Position[0], Y: d.Position[1], Z: d.Position[2]},
	}
}

// Open loads a terrain description and its detail map.
func Open(path string) (*Layers, error) {
	desc, err := LoadDescription(path)
	if err != nil {
		return nil, err
	}

	mapPath := desc.DetailMap
	if mapPath == "" {
		return nil, fmt.Errorf("terrain %q: no detail map", desc.Name)
	}
	if !filepath.IsAbs(mapPath) {
		mapPath = filepath.Join(filepath.Dir(path), mapPath)
	}

	dtl, err := formats.ParseDTLFile(mapPath)
	if err != nil {
		return nil, fmt.Errorf("terrain %q: %w", desc.Name, err)
	}

	protos, err := desc.BuildPrototypes()
	if err != nil {
		return nil, fmt.Errorf("terrain %q: %w", desc.Name, err)
	}
	return NewLayers(desc.Info(), protos, dtl)
}
