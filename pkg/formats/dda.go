package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// DDA format errors.
var (
	ErrInvalidDDAMagic       = errors.New("invalid DDA magic: expected 'DDAT'")
	ErrUnsupportedDDAVersion = errors.New("unsupported DDA version")
	ErrTruncatedDDAData      = errors.New("truncated DDA data")
)

const ddaMagic = "DDAT"

// DDAVersionCurrent is the version written by Encode.
var DDAVersionCurrent = Version{Major: 1, Minor: 0}

// DDAHeader holds the terrain linkage of a baked asset.
type DDAHeader struct {
	Resolution    int32
	DetailWidth   int32
	DetailHeight  int32
	TerrainWidth  float32
	TerrainHeight float32
	Position      [3]float32
	TotalLODCount int32
}

// DDASubMesh is one LOD range of a prototype mesh.
type DDASubMesh struct {
	IndexCount uint32
	IndexStart uint32
	BaseVertex int32
}

// DDAPrototype describes one vegetation archetype.
type DDAPrototype struct {
	Name      string
	Mesh      string
	MinWidth  float32
	MaxWidth  float32
	MinHeight float32
	MaxHeight float32
	NoiseSeed int32
	SubMeshes []DDASubMesh
}

// DDANode is an initialized quadtree node.
type DDANode struct {
	Index     int32
	Center    [3]float32
	Size      float32
	DataIndex int32
	DataCount int32
}

// DDA is a baked details data asset: the full instance set of one terrain and
// the quadtree that indexes it.
type DDA struct {
	Version       Version
	Header        DDAHeader
	Prototypes    []DDAPrototype
	TypeInfos     [][3]int32
	LODThresholds [][4]float32
	Positions     [][3]float32
	Scales        [][3]float32
	RotateYs      []float32
	Colors        [][4]float32
	Types         []uint32
	Nodes         []DDANode
}

// InstanceCount returns the number of baked instances.
func (d *DDA) InstanceCount() int {
	return len(d.Positions)
}

// ParseDDA parses a DDA file from raw bytes.
func ParseDDA(data []byte) (*DDA, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedDDAData
	}

	if string(data[0:4]) != ddaMagic {
		return nil, ErrInvalidDDAMagic
	}

	version := Version{
		Major: data[5],
		Minor: data[4],
	}
	if version.Major != 1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDDAVersion, version)
	}

	r := bytes.NewReader(data[6:])
	dda := &DDA{Version: version}

	if err := binary.Read(r, binary.LittleEndian, &dda.Header); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedDDAData)
	}

	var err error
	if dda.Prototypes, err = parseDDAPrototypes(r); err != nil {
		return nil, err
	}

	count, err := readCount(r, "type infos")
	if err != nil {
		return nil, err
	}
	if dda.TypeInfos, err = readSlice[[3]int32](r, count, 12, ErrTruncatedDDAData, "type infos"); err != nil {
		return nil, err
	}

	if count, err = readCount(r, "lod thresholds"); err != nil {
		return nil, err
	}
	if dda.LODThresholds, err = readSlice[[4]float32](r, count, 16, ErrTruncatedDDAData, "lod thresholds"); err != nil {
		return nil, err
	}

	if count, err = readCount(r, "instances"); err != nil {
		return nil, err
	}
	if dda.Positions, err = readSlice[[3]float32](r, count, 12, ErrTruncatedDDAData, "positions"); err != nil {
		return nil, err
	}
	if dda.Scales, err = readSlice[[3]float32](r, count, 12, ErrTruncatedDDAData, "scales"); err != nil {
		return nil, err
	}
	if dda.RotateYs, err = readSlice[float32](r, count, 4, ErrTruncatedDDAData, "rotations"); err != nil {
		return nil, err
	}
	if dda.Colors, err = readSlice[[4]float32](r, count, 16, ErrTruncatedDDAData, "colors"); err != nil {
		return nil, err
	}
	if dda.Types, err = readSlice[uint32](r, count, 4, ErrTruncatedDDAData, "types"); err != nil {
		return nil, err
	}

	if count, err = readCount(r, "nodes"); err != nil {
		return nil, err
	}
	if dda.Nodes, err = readSlice[DDANode](r, count, 28, ErrTruncatedDDAData, "nodes"); err != nil {
		return nil, err
	}

	return dda, nil
}

func parseDDAPrototypes(r *bytes.Reader) ([]DDAPrototype, error) {
	count, err := readCount(r, "prototypes")
	if err != nil {
		return nil, err
	}

	protos := make([]DDAPrototype, 0, count)
	for i := 0; i < count; i++ {
		var p DDAPrototype
		if p.Name, err = readString(r, ErrTruncatedDDAData); err != nil {
			return nil, fmt.Errorf("prototype %d: %w", i, err)
		}
		if p.Mesh, err = readString(r, ErrTruncatedDDAData); err != nil {
			return nil, fmt.Errorf("prototype %d mesh: %w", i, err)
		}

		var sizes struct {
			MinWidth, MaxWidth, MinHeight, MaxHeight float32
			NoiseSeed                                int32
		}
		if err := binary.Read(r, binary.LittleEndian, &sizes); err != nil {
			return nil, fmt.Errorf("%w: reading prototype %d sizes", ErrTruncatedDDAData, i)
		}
		p.MinWidth, p.MaxWidth = sizes.MinWidth, sizes.MaxWidth
		p.MinHeight, p.MaxHeight = sizes.MinHeight, sizes.MaxHeight
		p.NoiseSeed = sizes.NoiseSeed

		subCount, err := readCount(r, "sub-meshes")
		if err != nil {
			return nil, err
		}
		if p.SubMeshes, err = readSlice[DDASubMesh](r, subCount, 12, ErrTruncatedDDAData, "sub-meshes"); err != nil {
			return nil, err
		}
		protos = append(protos, p)
	}
	return protos, nil
}

func readCount(r *bytes.Reader, what string) (int, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, fmt.Errorf("%w: reading %s count", ErrTruncatedDDAData, what)
	}
	if int64(n) > int64(r.Len()) {
		return 0, fmt.Errorf("%w: %s count %d exceeds remaining data", ErrTruncatedDDAData, what, n)
	}
	return int(n), nil
}

// ParseDDAFile parses a DDA file from disk.
func ParseDDAFile(path string) (*DDA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading DDA file: %w", err)
	}
	return ParseDDA(data)
}

// Encode writes the DDA in its binary form. The instance arrays must all have
// the same length.
func (d *DDA) Encode(w io.Writer) error {
	n := len(d.Positions)
	if len(d.Scales) != n || len(d.RotateYs) != n || len(d.Colors) != n || len(d.Types) != n {
		return fmt.Errorf("DDA instance arrays differ in length: %d/%d/%d/%d/%d",
			n, len(d.Scales), len(d.RotateYs), len(d.Colors), len(d.Types))
	}

	if err := writeHeader(w, ddaMagic, DDAVersionCurrent); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, d.Header); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(d.Prototypes))); err != nil {
		return err
	}
	for _, p := range d.Prototypes {
		if err := writeString(w, p.Name); err != nil {
			return err
		}
		if err := writeString(w, p.Mesh); err != nil {
			return err
		}
		fields := []any{p.MinWidth, p.MaxWidth, p.MinHeight, p.MaxHeight, p.NoiseSeed, uint32(len(p.SubMeshes)), p.SubMeshes}
		for _, f := range fields {
			if err := binary.Write(w, binary.LittleEndian, f); err != nil {
				return err
			}
		}
	}

	sections := []struct {
		count uint32
		data  []any
	}{
		{uint32(len(d.TypeInfos)), []any{d.TypeInfos}},
		{uint32(len(d.LODThresholds)), []any{d.LODThresholds}},
		{uint32(n), []any{d.Positions, d.Scales, d.RotateYs, d.Colors, d.Types}},
		{uint32(len(d.Nodes)), []any{d.Nodes}},
	}
	for _, s := range sections {
		if err := binary.Write(w, binary.LittleEndian, s.count); err != nil {
			return err
		}
		for _, v := range s.data {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteDDAFile encodes the DDA to path.
func WriteDDAFile(path string, d *DDA) error {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return fmt.Errorf("encoding DDA: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
