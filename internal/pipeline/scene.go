// Package pipeline assembles the details passes for a scene: it opens the
// configured terrains, resolves their baked assets and runs the culling
// and draw passes once per view.
package pipeline

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/config"
	"github.com/Faultbox/midgard-details/internal/details"
	"github.com/Faultbox/midgard-details/internal/lightprobe"
	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// ErrNoTerrains is returned when no configured terrain could be opened.
var ErrNoTerrains = errors.New("pipeline: no terrains loaded")

// Sky and ground colours of the default probe sampler.
var (
	SkyColor    = math.Vec3{X: 0.75, Y: 0.85, Z: 1.0}
	GroundColor = math.Vec3{X: 0.3, Y: 0.27, Z: 0.2}
)

// Scene is the set of terrains and baked assets being shown.
type Scene struct {
	Terrains []*terrain.Layers
	Manager  *details.Manager
	Probes   *lightprobe.Hemisphere
}

// DetailsOptions converts the config section into manager options.
func DetailsOptions(cfg config.DetailsConfig) details.Options {
	return details.Options{
		LoadToGPUDistance: cfg.LoadToGPUDistance,
		EnableEdit:        cfg.EnableEdit,
		UpdateData:        cfg.UpdateData,
	}
}

// LoadScene opens every terrain description in cfg and resolves its asset
// from cfg.AssetDir, baking missing ones. Terrains that fail to open are
// skipped; their errors are returned alongside the scene. With edit mode
// on every terrain is edit-active.
func LoadScene(cfg config.DetailsConfig) (*Scene, error) {
	var errs error
	s := &Scene{
		Manager: details.NewManager(details.NewStore(cfg.AssetDir), DetailsOptions(cfg)),
		Probes:  lightprobe.NewHemisphere(SkyColor, GroundColor),
	}

	for _, path := range cfg.Terrains {
		l, err := terrain.Open(path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("opening %s: %w", path, err))
			continue
		}
		s.Terrains = append(s.Terrains, l)
		s.Manager.Add(l, cfg.EnableEdit)
		logger.Info("terrain loaded",
			zap.String("name", l.Info().Name),
			zap.Int("resolution", l.Info().Resolution),
			zap.Int("prototypes", len(l.Prototypes())),
		)
	}
	if len(s.Terrains) == 0 {
		return nil, multierr.Append(errs, ErrNoTerrains)
	}

	// Probe occlusion samples one height field.
	s.Probes.Attach(s.Terrains[0])

	if err := s.Manager.Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return s, errs
}

// Instances returns the total baked instance count of the scene.
func (s *Scene) Instances() int {
	n := 0
	for _, a := range s.Manager.Assets() {
		if a != nil {
			n += a.Data.Count()
		}
	}
	return n
}

// Center returns the middle of the first terrain, at its base height.
func (s *Scene) Center() math.Vec3 {
	if len(s.Terrains) == 0 {
		return math.Vec3{}
	}
	info := s.Terrains[0].Info()
	return info.Position.Add(math.Vec3{X: info.Width / 2, Z: info.Depth / 2})
}
