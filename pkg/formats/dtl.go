package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// DTL format errors.
var (
	ErrInvalidDTLMagic       = errors.New("invalid DTL magic: expected 'DTLY'")
	ErrUnsupportedDTLVersion = errors.New("unsupported DTL version")
	ErrTruncatedDTLData      = errors.New("truncated DTL data")
)

const dtlMagic = "DTLY"

// DTLVersionCurrent is the version written by Encode.
var DTLVersionCurrent = Version{Major: 1, Minor: 0}

// maxDTLDimension bounds grid sizes read from disk.
const maxDTLDimension = 8192

// DTL holds a terrain's detail density layers and height samples.
//
// Layers are indexed [prototype][z*Width+x] and hold the number of instances
// to place in that detail cell. Heights are world-space altitudes sampled on a
// HeightWidth x HeightDepth vertex grid spanning the whole terrain.
type DTL struct {
	Version     Version
	Width       uint32
	Height      uint32
	HeightWidth uint32
	HeightDepth uint32
	Heights     []float32
	Layers      [][]uint8
}

// NewDTL allocates an empty DTL with the given grid sizes.
func NewDTL(width, height, heightWidth, heightDepth uint32, layers int) *DTL {
	d := &DTL{
		Version:     DTLVersionCurrent,
		Width:       width,
		Height:      height,
		HeightWidth: heightWidth,
		HeightDepth: heightDepth,
		Heights:     make([]float32, int(heightWidth*heightDepth)),
		Layers:      make([][]uint8, layers),
	}
	for i := range d.Layers {
		d.Layers[i] = make([]uint8, int(width*height))
	}
	return d
}

// Density returns the instance count of a detail cell, or 0 out of bounds.
func (d *DTL) Density(layer, x, z int) int {
	if layer < 0 || layer >= len(d.Layers) {
		return 0
	}
	if x < 0 || z < 0 || x >= int(d.Width) || z >= int(d.Height) {
		return 0
	}
	return int(d.Layers[layer][z*int(d.Width)+x])
}

// SetDensity sets the instance count of a detail cell. Out of bounds writes are ignored.
func (d *DTL) SetDensity(layer, x, z int, count uint8) {
	if layer < 0 || layer >= len(d.Layers) {
		return
	}
	if x < 0 || z < 0 || x >= int(d.Width) || z >= int(d.Height) {
		return
	}
	d.Layers[layer][z*int(d.Width)+x] = count
}

// HeightAt returns the height sample at a vertex, clamped to the grid.
func (d *DTL) HeightAt(x, z int) float32 {
	if len(d.Heights) == 0 {
		return 0
	}
	x = clampIndex(x, int(d.HeightWidth))
	z = clampIndex(z, int(d.HeightDepth))
	return d.Heights[z*int(d.HeightWidth)+x]
}

// TotalInstances returns the sum of all density cells across layers.
func (d *DTL) TotalInstances() int {
	total := 0
	for _, layer := range d.Layers {
		for _, c := range layer {
			total += int(c)
		}
	}
	return total
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// ParseDTL parses a DTL file from raw bytes.
func ParseDTL(data []byte) (*DTL, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedDTLData
	}

	if string(data[0:4]) != dtlMagic {
		return nil, ErrInvalidDTLMagic
	}

	// Version is stored as [minor, major]
	version := Version{
		Major: data[5],
		Minor: data[4],
	}
	if version.Major != 1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDTLVersion, version)
	}

	r := bytes.NewReader(data[6:])

	var dims [5]uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, fmt.Errorf("%w: reading dimensions", ErrTruncatedDTLData)
	}
	width, height, heightWidth, heightDepth, layerCount := dims[0], dims[1], dims[2], dims[3], dims[4]

	if width == 0 || height == 0 || width > maxDTLDimension || height > maxDTLDimension {
		return nil, fmt.Errorf("invalid DTL detail dimensions: %dx%d", width, height)
	}
	if heightWidth == 0 || heightDepth == 0 || heightWidth > maxDTLDimension+1 || heightDepth > maxDTLDimension+1 {
		return nil, fmt.Errorf("invalid DTL height dimensions: %dx%d", heightWidth, heightDepth)
	}

	heights, err := readSlice[float32](r, int(heightWidth*heightDepth), 4, ErrTruncatedDTLData, "heights")
	if err != nil {
		return nil, err
	}

	dtl := &DTL{
		Version:     version,
		Width:       width,
		Height:      height,
		HeightWidth: heightWidth,
		HeightDepth: heightDepth,
		Heights:     heights,
		Layers:      make([][]uint8, 0, layerCount),
	}

	cells := int(width * height)
	for i := 0; i < int(layerCount); i++ {
		layer, err := readSlice[uint8](r, cells, 1, ErrTruncatedDTLData, fmt.Sprintf("layer %d", i))
		if err != nil {
			return nil, err
		}
		dtl.Layers = append(dtl.Layers, layer)
	}

	return dtl, nil
}

// ParseDTLFile parses a DTL file from disk.
func ParseDTLFile(path string) (*DTL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading DTL file: %w", err)
	}
	return ParseDTL(data)
}

// Encode writes the DTL in its binary form.
func (d *DTL) Encode(w io.Writer) error {
	if err := writeHeader(w, dtlMagic, DTLVersionCurrent); err != nil {
		return err
	}
	dims := [5]uint32{d.Width, d.Height, d.HeightWidth, d.HeightDepth, uint32(len(d.Layers))}
	if err := binary.Write(w, binary.LittleEndian, dims); err != nil {
		return err
	}
	if len(d.Heights) != int(d.HeightWidth*d.HeightDepth) {
		return fmt.Errorf("DTL heights: have %d samples, want %d", len(d.Heights), d.HeightWidth*d.HeightDepth)
	}
	if err := binary.Write(w, binary.LittleEndian, d.Heights); err != nil {
		return err
	}
	for i, layer := range d.Layers {
		if len(layer) != int(d.Width*d.Height) {
			return fmt.Errorf("DTL layer %d: have %d cells, want %d", i, len(layer), d.Width*d.Height)
		}
		if _, err := w.Write(layer); err != nil {
			return err
		}
	}
	return nil
}

// WriteDTLFile encodes the DTL to path.
func WriteDTLFile(path string, d *DTL) error {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return fmt.Errorf("encoding DTL: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
