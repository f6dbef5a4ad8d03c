package details

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/internal/terrain"
)

// Options are the scene-wide details settings.
type Options struct {
	LoadToGPUDistance float32 // streaming radius around the camera
	EnableEdit        bool    // rebake edit-active terrains continuously
	UpdateData        bool    // refresh the streamed instance set every frame
}

// SceneTerrain is a terrain registered with a Manager.
type SceneTerrain struct {
	Source         terrain.Source
	EditModeActive bool
}

// Manager is the registry of scene terrains and their baked assets.
type Manager struct {
	store *Store
	opts  Options

	mu       sync.RWMutex
	terrains []SceneTerrain
	assets   []*Asset

	editing atomic.Bool
	wg      sync.WaitGroup
}

// NewManager returns a manager persisting assets in store.
func NewManager(store *Store, opts Options) *Manager {
	return &Manager{store: store, opts: opts}
}

// Options returns the manager settings.
func (m *Manager) Options() Options {
	return m.opts
}

// Add registers a terrain. Call Validate to resolve its asset.
func (m *Manager) Add(src terrain.Source, editModeActive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terrains = append(m.terrains, SceneTerrain{Source: src, EditModeActive: editModeActive})
	m.assets = append(m.assets, nil)
}

// Terrains returns the registered terrains.
func (m *Manager) Terrains() []SceneTerrain {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SceneTerrain(nil), m.terrains...)
}

// Validate resolves every terrain to an asset. With editing enabled assets
// are always rebaked and saved; otherwise the stored asset is loaded and
// baked only when missing. A terrain that fails keeps a nil asset and the
// errors of all terrains are combined.
func (m *Manager) Validate() error {
	terrains := m.Terrains()
	assets := make([]*Asset, len(terrains))

	var errs error
	for i, t := range terrains {
		asset, err := m.resolve(t.Source)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		asset.Data.Link(t.Source)
		assets[i] = asset
	}

	m.mu.Lock()
	m.assets = assets
	m.mu.Unlock()
	return errs
}

func (m *Manager) resolve(src terrain.Source) (*Asset, error) {
	if m.opts.EnableEdit {
		return m.store.Bake(src)
	}
	asset, err := m.store.Load(src.Info().Name)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("details asset missing, baking", zap.String("terrain", src.Info().Name))
		return m.store.Bake(src)
	}
	return asset, err
}

// Assets returns the current asset of every terrain, in registration order.
// Entries may be nil for terrains that failed to resolve.
func (m *Manager) Assets() []*Asset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Asset(nil), m.assets...)
}

// EditUpdate rebakes every edit-active terrain in the background and
// publishes each new asset as it completes. It returns false without
// starting work when editing is disabled or a rebake is still running.
func (m *Manager) EditUpdate(ctx context.Context) bool {
	if !m.opts.EnableEdit || !m.editing.CompareAndSwap(false, true) {
		return false
	}

	terrains := m.Terrains()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.editing.Store(false)

		for i, t := range terrains {
			if ctx.Err() != nil {
				return
			}
			if !t.EditModeActive {
				continue
			}
			asset := NewAsset(t.Source.Info().Name)
			asset.Bake(t.Source)

			m.mu.Lock()
			if i < len(m.assets) {
				m.assets[i] = asset
			}
			m.mu.Unlock()
		}
	}()
	return true
}

// Editing reports whether a background rebake is running.
func (m *Manager) Editing() bool {
	return m.editing.Load()
}

// Wait blocks until any background rebake has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
