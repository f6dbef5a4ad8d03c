package details

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/formats"
)

// AssetPrefix prefixes the file name of every baked asset.
const AssetPrefix = "DetailsData_"

// Store persists baked assets by terrain name in a directory.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the file holding the asset of the named terrain.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, AssetPrefix+name+".dda")
}

// Load reads the asset of the named terrain. A missing asset yields an
// error satisfying errors.Is(err, fs.ErrNotExist).
func (s *Store) Load(name string) (*Asset, error) {
	path := s.Path(name)
	dda, err := formats.ParseDDAFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading details asset %q: %w", name, err)
	}
	asset, err := DecodeAsset(name, dda)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded details asset", zap.String("path", path), zap.Int("instances", asset.Data.Count()))
	return asset, nil
}

// Save writes an asset under its name.
func (s *Store) Save(asset *Asset) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("creating asset directory: %w", err)
	}
	path := s.Path(asset.Name)
	if err := formats.WriteDDAFile(path, asset.Encode()); err != nil {
		return fmt.Errorf("saving details asset %q: %w", asset.Name, err)
	}
	logger.Debug("saved details asset", zap.String("path", path))
	return nil
}

// Bake loads the asset of src's terrain, or creates it, rebakes it from
// src and saves it.
func (s *Store) Bake(src terrain.Source) (*Asset, error) {
	name := src.Info().Name
	asset, err := s.Load(name)
	if err != nil {
		asset = NewAsset(name)
	}
	asset.Bake(src)
	if err := s.Save(asset); err != nil {
		return nil, err
	}
	return asset, nil
}
