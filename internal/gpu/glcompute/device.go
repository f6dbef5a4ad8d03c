// Package glcompute runs the details kernels and indirect draws on an
// OpenGL 4.3 context through shader storage buffers.
//
// Every call must happen on the thread that owns the current context.
package glcompute

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/engine/shader"
	"github.com/Faultbox/midgard-details/internal/foliage"
	"github.com/Faultbox/midgard-details/internal/gpu"
	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/pkg/math"
)

type program struct {
	id       uint32
	uniforms *shader.Uniforms
}

// Device is a gpu.Device backed by the current GL context.
type Device struct {
	kernels map[gpu.Kernel]program
	draw    program
	probes  bool
}

var _ gpu.Device = (*Device)(nil)

// New compiles every kernel and the draw program. Kernels that fail to
// compile are logged and reported missing by HasKernel; a draw program
// failure is returned.
func New() (*Device, error) {
	var limit int32
	gl.GetIntegerv(gl.MAX_SHADER_STORAGE_BUFFER_BINDINGS, &limit)
	if need := maxBindingPoint() + 1; limit < need {
		return nil, fmt.Errorf("need %d storage buffer bindings, driver offers %d", need, limit)
	}

	d := &Device{kernels: make(map[gpu.Kernel]program)}

	for _, k := range gpu.Kernels() {
		src, _ := KernelSource(k)
		id, err := shader.CompileCompute(src, string(k))
		if err != nil {
			logger.Error("compile compute kernel", zap.String("kernel", string(k)), zap.Error(err))
			continue
		}
		d.kernels[k] = program{id: id, uniforms: shader.NewUniforms(id)}
	}

	id, err := shader.CompileProgram(drawVertexSource(), drawFragmentSource)
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("details draw program: %w", err)
	}
	d.draw = program{id: id, uniforms: shader.NewUniforms(id)}

	logger.Info("gl compute device ready",
		zap.Int("kernels", len(d.kernels)),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))
	return d, nil
}

// SetProbes turns light probe shading of the draw program on or off.
func (d *Device) SetProbes(on bool) { d.probes = on }

// Release deletes every program.
func (d *Device) Release() {
	for k, p := range d.kernels {
		gl.DeleteProgram(p.id)
		delete(d.kernels, k)
	}
	if d.draw.id != 0 {
		gl.DeleteProgram(d.draw.id)
		d.draw = program{}
	}
}

func (d *Device) Name() string { return "opengl" }

func (d *Device) HasKernel(k gpu.Kernel) bool {
	_, ok := d.kernels[k]
	return ok
}

type buffer struct {
	id    uint32
	words int
}

func (b *buffer) Len() int { return b.words }

func (b *buffer) Release() {
	if b.id != 0 {
		gl.DeleteBuffers(1, &b.id)
		b.id = 0
	}
}

func (d *Device) NewBuffer(words int) (gpu.Buffer, error) {
	if words < 0 {
		return nil, fmt.Errorf("%w: negative size %d", gpu.ErrBufferRange, words)
	}
	b := &buffer{words: words}
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.id)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, max(words, 1)*4, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	if err := glErrors("allocate buffer"); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

func (d *Device) buffer(b gpu.Buffer) (*buffer, error) {
	gb, ok := b.(*buffer)
	if !ok || gb == nil {
		return nil, fmt.Errorf("glcompute: foreign buffer %T", b)
	}
	if gb.id == 0 {
		return nil, gpu.ErrReleased
	}
	return gb, nil
}

func (d *Device) Write(b gpu.Buffer, offset int, data []uint32) error {
	gb, err := d.buffer(b)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > gb.words {
		return fmt.Errorf("%w: write %d words at %d into %d", gpu.ErrBufferRange, len(data), offset, gb.words)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, gb.id)
	gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, offset*4, len(data)*4, gl.Ptr(data))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	return glErrors("write buffer")
}

func (d *Device) Read(b gpu.Buffer, offset int, dst []uint32) error {
	gb, err := d.buffer(b)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(dst) > gb.words {
		return fmt.Errorf("%w: read %d words at %d from %d", gpu.ErrBufferRange, len(dst), offset, gb.words)
	}
	if len(dst) == 0 {
		return nil
	}
	gl.MemoryBarrier(gl.BUFFER_UPDATE_BARRIER_BIT)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, gb.id)
	gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, offset*4, len(dst)*4, gl.Ptr(dst))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	return glErrors("read buffer")
}

func (d *Device) bind(b gpu.Bindings) error {
	for name, buf := range b {
		point, ok := bindingPoints[name]
		if !ok {
			continue
		}
		gb, err := d.buffer(buf)
		if err != nil {
			return fmt.Errorf("binding %s: %w", name, err)
		}
		gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, point, gb.id)
	}
	return nil
}

func (d *Device) Dispatch(k gpu.Kernel, groups int, b gpu.Bindings, u *gpu.Uniforms) error {
	p, ok := d.kernels[k]
	if !ok {
		return fmt.Errorf("%w: %s", gpu.ErrUnknownKernel, k)
	}
	for _, name := range required[k] {
		if b[name] == nil {
			return fmt.Errorf("%s: %w: %s", k, gpu.ErrMissingBinding, name)
		}
	}
	if groups <= 0 {
		return nil
	}

	gl.UseProgram(p.id)
	if err := d.bind(b); err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	setComputeUniforms(p.uniforms, u)

	gl.DispatchCompute(uint32(groups), 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT | gl.COMMAND_BARRIER_BIT | gl.VERTEX_ATTRIB_ARRAY_BARRIER_BIT)
	gl.UseProgram(0)

	if err := glErrors(string(k)); err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	return nil
}

func setComputeUniforms(s *shader.Uniforms, u *gpu.Uniforms) {
	vp := u.ViewProj
	gl.UniformMatrix4fv(s.Location("_ViewProj"), 1, false, vp.Ptr())
	planes := frustumPlanes(u.ViewProj)
	gl.Uniform4fv(s.Location("_FrustumPlanes"), 6, &planes[0])
	gl.Uniform3f(s.Location("_CameraPos"), u.CameraPos.X, u.CameraPos.Y, u.CameraPos.Z)
	gl.Uniform1f(s.Location("_BoundingBoxRadius"), u.BoundingBoxRadius)
	gl.Uniform1f(s.Location("_MaxCullingDistance"), u.MaxCullingDistance)
	gl.Uniform1i(s.Location("_EnableCull"), boolInt(u.EnableCull))
	gl.Uniform1i(s.Location("_ReversedZ"), boolInt(u.ReversedZ))

	levels, n := hiZLevels(u)
	gl.Uniform4iv(s.Location("_HiZLevels"), MaxHiZLevels, &levels[0])
	gl.Uniform1i(s.Location("_HiZLevelCount"), int32(n))

	gl.Uniform1i(s.Location("_VertexCount"), int32(u.VertexCount))
	gl.Uniform1i(s.Location("_ResultCount"), int32(u.ResultCount))
	gl.Uniform1i(s.Location("_TypeCount"), int32(u.TypeCount))
	gl.Uniform1i(s.Location("_Groups"), int32(u.Groups))
	gl.Uniform1i(s.Location("_Digit"), int32(u.Digit))
}

// frustumPlanes packs the normalized planes as (normal, d) vec4s.
func frustumPlanes(viewProj math.Mat4) [24]float32 {
	f := math.ExtractFrustum(viewProj)
	var out [24]float32
	for i, p := range f {
		out[i*4+0] = p.Normal.X
		out[i*4+1] = p.Normal.Y
		out[i*4+2] = p.Normal.Z
		out[i*4+3] = p.D
	}
	return out
}

// hiZLevels packs the pyramid levels as (width, height, offset, 0) and
// returns how many are usable. Levels past the table size are dropped.
func hiZLevels(u *gpu.Uniforms) ([MaxHiZLevels * 4]int32, int) {
	var out [MaxHiZLevels * 4]int32
	n := min(len(u.HiZ), MaxHiZLevels)
	for i := 0; i < n; i++ {
		l := u.HiZ[i]
		out[i*4+0] = int32(l.Width)
		out[i*4+1] = int32(l.Height)
		out[i*4+2] = int32(l.Offset)
	}
	return out, n
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// glErrors drains the GL error queue.
func glErrors(op string) error {
	var err error
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		err = multierr.Append(err, fmt.Errorf("%s: gl error 0x%x", op, code))
	}
	return err
}

type mesh struct {
	vao, vbo, ebo uint32
}

func (m *mesh) Release() {
	if m.vao == 0 {
		return
	}
	gl.DeleteVertexArrays(1, &m.vao)
	gl.DeleteBuffers(1, &m.vbo)
	gl.DeleteBuffers(1, &m.ebo)
	*m = mesh{}
}

// Vertex attribute locations of the draw program.
const (
	attrPosition = 0
	attrNormal   = 1
	attrUV       = 2
	attrTuple    = 3
)

func (d *Device) UploadMesh(src *foliage.Mesh) (gpu.Mesh, error) {
	if src == nil || len(src.Indices) == 0 || len(src.Vertices) == 0 {
		return nil, fmt.Errorf("glcompute: empty mesh")
	}

	m := &mesh{}
	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	stride := int32(unsafe.Sizeof(foliage.Vertex{}))
	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(src.Vertices)*int(stride), gl.Ptr(src.Vertices), gl.STATIC_DRAW)

	gl.EnableVertexAttribArray(attrPosition)
	gl.VertexAttribPointerWithOffset(attrPosition, 3, gl.FLOAT, false, stride, unsafe.Offsetof(foliage.Vertex{}.Position))
	gl.EnableVertexAttribArray(attrNormal)
	gl.VertexAttribPointerWithOffset(attrNormal, 3, gl.FLOAT, false, stride, unsafe.Offsetof(foliage.Vertex{}.Normal))
	gl.EnableVertexAttribArray(attrUV)
	gl.VertexAttribPointerWithOffset(attrUV, 2, gl.FLOAT, false, stride, unsafe.Offsetof(foliage.Vertex{}.UV))

	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(src.Indices)*4, gl.Ptr(src.Indices), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if err := glErrors("upload mesh"); err != nil {
		m.Release()
		return nil, err
	}
	return m, nil
}

// DrawIndexedIndirect draws m once per sorted tuple in the argument block
// at byteOffset. The tuple buffer feeds an instanced attribute so the
// block's base instance selects the first tuple of the slot.
func (d *Device) DrawIndexedIndirect(gm gpu.Mesh, args gpu.Buffer, byteOffset int, b gpu.Bindings, s *gpu.DrawState) error {
	m, ok := gm.(*mesh)
	if !ok || m == nil || m.vao == 0 {
		return fmt.Errorf("glcompute: invalid mesh %T", gm)
	}
	if byteOffset%4 != 0 {
		return fmt.Errorf("%w: unaligned argument offset %d", gpu.ErrBufferRange, byteOffset)
	}
	ab, err := d.buffer(args)
	if err != nil {
		return err
	}
	if byteOffset/4+gpu.ArgsStride > ab.words {
		return fmt.Errorf("%w: argument block at %d", gpu.ErrBufferRange, byteOffset)
	}
	tuples, err := d.buffer(b[gpu.BindTuples])
	if err != nil {
		return fmt.Errorf("binding %s: %w", gpu.BindTuples, err)
	}

	gl.UseProgram(d.draw.id)
	if err := d.bind(b); err != nil {
		return err
	}
	if s != nil {
		vp := s.ViewProj
		gl.UniformMatrix4fv(d.draw.uniforms.Location("_ViewProj"), 1, false, vp.Ptr())
		gl.Uniform3f(d.draw.uniforms.Location("_LightDir"), s.LightDir.X, s.LightDir.Y, s.LightDir.Z)
	}
	gl.Uniform1i(d.draw.uniforms.Location("_EnableProbes"), boolInt(d.probes && b[gpu.BindSHAr] != nil))

	gl.BindVertexArray(m.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, tuples.id)
	gl.EnableVertexAttribArray(attrTuple)
	gl.VertexAttribIPointer(attrTuple, 4, gl.UNSIGNED_INT, gpu.TupleWords*4, nil)
	gl.VertexAttribDivisor(attrTuple, 1)

	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, ab.id)
	gl.DrawElementsIndirect(gl.TRIANGLES, gl.UNSIGNED_INT, gl.PtrOffset(byteOffset))

	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, 0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	gl.UseProgram(0)
	return glErrors("draw details")
}
