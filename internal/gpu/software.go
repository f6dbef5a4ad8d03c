package gpu

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/internal/logger"
)

// DrawCall records one indirect draw issued on the software device.
type DrawCall struct {
	Mesh       *SoftwareMesh
	ByteOffset int
	Args       [ArgsStride]uint32
}

// SoftwareMesh is a mesh kept in host memory.
type SoftwareMesh struct {
	Source   *foliage.Mesh
	released bool
}

func (m *SoftwareMesh) Release() { m.released = true }

type softwareBuffer struct {
	words    []uint32
	released bool
}

func (b *softwareBuffer) Len() int { return len(b.words) }
func (b *softwareBuffer) Release() { b.released = true; b.words = nil }

// Software executes the kernels on the CPU. It is the reference device for
// tests and the fallback when no GL 4.3 context is available.
type Software struct {
	mu      sync.Mutex
	kernels map[Kernel]kernelRun

	draws      []DrawCall
	dispatches []Kernel
}

// NewSoftware returns a device providing every kernel, or only the named
// ones when kernels is not empty.
func NewSoftware(kernels ...Kernel) *Software {
	s := &Software{kernels: make(map[Kernel]kernelRun)}
	if len(kernels) == 0 {
		kernels = Kernels()
	}
	for _, k := range kernels {
		if run, ok := kernelRuns[k]; ok {
			s.kernels[k] = run
		}
	}
	return s
}

func (s *Software) Name() string { return "software" }

func (s *Software) HasKernel(k Kernel) bool {
	_, ok := s.kernels[k]
	return ok
}

func (s *Software) NewBuffer(words int) (Buffer, error) {
	if words < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrBufferRange, words)
	}
	return &softwareBuffer{words: make([]uint32, words)}, nil
}

func (s *Software) buffer(b Buffer) (*softwareBuffer, error) {
	sb, ok := b.(*softwareBuffer)
	if !ok || sb == nil {
		return nil, fmt.Errorf("gpu: foreign buffer %T", b)
	}
	if sb.released {
		return nil, ErrReleased
	}
	return sb, nil
}

func (s *Software) Write(b Buffer, offset int, data []uint32) error {
	sb, err := s.buffer(b)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > len(sb.words) {
		return fmt.Errorf("%w: write %d words at %d into %d", ErrBufferRange, len(data), offset, len(sb.words))
	}
	copy(sb.words[offset:], data)
	return nil
}

func (s *Software) Read(b Buffer, offset int, dst []uint32) error {
	sb, err := s.buffer(b)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(dst) > len(sb.words) {
		return fmt.Errorf("%w: read %d words at %d from %d", ErrBufferRange, len(dst), offset, len(sb.words))
	}
	copy(dst, sb.words[offset:])
	return nil
}

func (s *Software) Dispatch(k Kernel, groups int, b Bindings, u *Uniforms) error {
	run, ok := s.kernels[k]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKernel, k)
	}

	inv := &invocation{u: u, groups: groups, bufs: make(map[string][]uint32, len(b))}
	for name, buf := range b {
		sb, err := s.buffer(buf)
		if err != nil {
			return fmt.Errorf("binding %s: %w", name, err)
		}
		inv.bufs[name] = sb.words
	}

	s.mu.Lock()
	s.dispatches = append(s.dispatches, k)
	s.mu.Unlock()

	if err := run(inv); err != nil {
		logger.Debug("kernel failed", zap.String("kernel", string(k)), zap.Error(err))
		return fmt.Errorf("%s: %w", k, err)
	}
	return nil
}

func (s *Software) UploadMesh(m *foliage.Mesh) (Mesh, error) {
	if m == nil || len(m.Indices) == 0 {
		return nil, fmt.Errorf("gpu: empty mesh")
	}
	return &SoftwareMesh{Source: m}, nil
}

func (s *Software) DrawIndexedIndirect(m Mesh, args Buffer, byteOffset int, _ Bindings, _ *DrawState) error {
	sm, ok := m.(*SoftwareMesh)
	if !ok || sm == nil || sm.released {
		return fmt.Errorf("gpu: invalid mesh %T", m)
	}
	if byteOffset%4 != 0 {
		return fmt.Errorf("%w: unaligned argument offset %d", ErrBufferRange, byteOffset)
	}

	call := DrawCall{Mesh: sm, ByteOffset: byteOffset}
	if err := s.Read(args, byteOffset/4, call.Args[:]); err != nil {
		return err
	}

	s.mu.Lock()
	s.draws = append(s.draws, call)
	s.mu.Unlock()
	return nil
}

// Draws returns and forgets the draw calls recorded since the last call.
func (s *Software) Draws() []DrawCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draws
	s.draws = nil
	return d
}

// Dispatches returns and forgets the kernels dispatched since the last call.
func (s *Software) Dispatches() []Kernel {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dispatches
	s.dispatches = nil
	return d
}
