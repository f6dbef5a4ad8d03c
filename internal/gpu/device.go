// Package gpu abstracts the compute and indirect-draw device the details
// pipeline runs on. Buffers are arrays of 32-bit words; kernels are looked
// up by name and bound to buffers by binding name, so the same pass code
// drives the software device and the OpenGL device.
package gpu

import (
	"errors"

	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/internal/hiz"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// Sort and layout constants shared by every kernel.
const (
	GroupSize     = 1 << 8
	DistTypeBit   = 8
	DistTypeSize  = 1 << DistTypeBit
	DistTypeMask  = DistTypeSize - 1
	MaxLODCounts  = 4
	MaxPrototypes = DistTypeSize / MaxLODCounts
	ArgsStride    = 5
	TupleWords    = 4
)

// Kernel names a compute entry point.
type Kernel string

const (
	KernelCull        Kernel = "FrustumAndHiZCullingCSMain"
	KernelHistogram   Kernel = "FillHistogramTableCSMain"
	KernelColumnScan  Kernel = "ColumnScanHistogramTableCSMain"
	KernelPrefixScan  Kernel = "PrefixScanCSMain"
	KernelPrefixTable Kernel = "PrefixScanTableCSMain"
	KernelFillArgs    Kernel = "FillIndirectArgsCSMain"
	KernelRearrange   Kernel = "RearrangeCSMain"
)

// Kernels lists every kernel in dispatch order.
func Kernels() []Kernel {
	return []Kernel{
		KernelCull,
		KernelHistogram,
		KernelColumnScan,
		KernelPrefixScan,
		KernelPrefixTable,
		KernelFillArgs,
		KernelRearrange,
	}
}

// Binding names. Per-instance vector buffers use four words per element.
const (
	BindPositions      = "_AllInstancePositions"
	BindTransforms     = "_AllInstanceTransforms"
	BindColors         = "_AllInstanceColors"
	BindInstanceInfos  = "_AllInstanceInfos"
	BindSHAr           = "_AllVertexSHAr"
	BindSHAg           = "_AllVertexSHAg"
	BindSHAb           = "_AllVertexSHAb"
	BindSHBr           = "_AllVertexSHBr"
	BindSHBg           = "_AllVertexSHBg"
	BindSHBb           = "_AllVertexSHBb"
	BindSHC            = "_AllVertexSHC"
	BindOcclusion      = "_AllVertexOcclusionProbes"
	BindTypeInfos      = "_AllTypesInfos"
	BindLODThresholds  = "_TypeLodThresholds"
	BindDrawArgs       = "_DrawIndirectArgs"
	BindTuples         = "_IndicesDistancesTypesLods"
	BindTempTuples     = "_TempIndicesDistancesTypesLods"
	BindCounter        = "_Counter"
	BindHistogramTable = "_HistogramTable"
	BindPrefixScan     = "_PrefixScan"
	BindDepthPyramid   = "_DepthMipmapTexture"
)

// Digit selects which key the sort kernels read from a tuple.
type Digit int32

const (
	DigitDistance Digit = iota
	DigitType
)

var (
	ErrUnknownKernel  = errors.New("gpu: unknown kernel")
	ErrMissingBinding = errors.New("gpu: missing buffer binding")
	ErrBufferRange    = errors.New("gpu: buffer access out of range")
	ErrReleased       = errors.New("gpu: buffer released")
)

// Buffer is a device allocation of 32-bit words.
type Buffer interface {
	Len() int
	Release()
}

// Mesh is an index/vertex buffer pair resident on the device.
type Mesh interface {
	Release()
}

// Bindings maps binding names to buffers for one dispatch or draw.
type Bindings map[string]Buffer

// Uniforms are the scalar parameters of a dispatch.
type Uniforms struct {
	ViewProj           math.Mat4
	CameraPos          math.Vec3
	BoundingBoxRadius  float32
	MaxCullingDistance float32
	EnableCull         bool
	ReversedZ          bool
	HiZ                []hiz.Level

	VertexCount int
	ResultCount int
	TypeCount   int
	Groups      int
	Digit       Digit
}

// DrawState carries what the draw pass needs besides the argument block.
type DrawState struct {
	ViewProj  math.Mat4
	CameraPos math.Vec3
	LightDir  math.Vec3
}

// Device runs kernels and indirect draws.
type Device interface {
	Name() string
	HasKernel(k Kernel) bool

	NewBuffer(words int) (Buffer, error)
	Write(b Buffer, offset int, data []uint32) error
	Read(b Buffer, offset int, dst []uint32) error

	Dispatch(k Kernel, groups int, b Bindings, u *Uniforms) error

	UploadMesh(m *foliage.Mesh) (Mesh, error)
	DrawIndexedIndirect(m Mesh, args Buffer, byteOffset int, b Bindings, s *DrawState) error
}

// Groups returns the number of GroupSize workgroups covering n items.
func Groups(n int) int {
	if n <= 0 {
		return 0
	}
	return math.CeilDiv(n, GroupSize)
}
