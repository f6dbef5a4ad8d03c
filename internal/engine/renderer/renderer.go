// Package renderer draws the ground the details stand on and reads its
// depth back for occlusion culling.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/engine/shader"
	"github.com/Faultbox/midgard-details/internal/engine/terrain"
	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/pkg/math"
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

// Renderer handles the ground pass.
type Renderer struct {
	config Config

	groundProgram uint32
	uniforms      *shader.Uniforms
	grounds       []ground

	lineProgram  uint32
	lineUniforms *shader.Uniforms
	lineVAO      uint32
	lineVBO      uint32

	depth []float32
}

type ground struct {
	vao, vbo, ebo uint32
	count         int32
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER the OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		config: cfg,
	}

	logger.Info("renderer initialized",
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.ClearColor(0.55, 0.7, 0.85, 1.0)

	var err error
	r.groundProgram, err = shader.CompileProgram(groundVertexSource, groundFragmentSource)
	if err != nil {
		return nil, fmt.Errorf("ground shader: %w", err)
	}
	r.uniforms = shader.NewUniforms(r.groundProgram)

	r.lineProgram, err = shader.CompileProgram(lineVertexSource, lineFragmentSource)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("line shader: %w", err)
	}
	r.lineUniforms = shader.NewUniforms(r.lineProgram)

	gl.GenVertexArrays(1, &r.lineVAO)
	gl.BindVertexArray(r.lineVAO)
	gl.GenBuffers(1, &r.lineVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)

	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	logger.Info("closing renderer")
	r.ClearGround()
	if r.groundProgram != 0 {
		gl.DeleteProgram(r.groundProgram)
		r.groundProgram = 0
	}
	if r.lineProgram != 0 {
		gl.DeleteProgram(r.lineProgram)
		r.lineProgram = 0
	}
	if r.lineVAO != 0 {
		gl.DeleteVertexArrays(1, &r.lineVAO)
		gl.DeleteBuffers(1, &r.lineVBO)
		r.lineVAO, r.lineVBO = 0, 0
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = max(width, 1)
	r.config.Height = max(height, 1)
	gl.Viewport(0, 0, int32(r.config.Width), int32(r.config.Height))
	logger.Debug("renderer resized",
		zap.Int("width", r.config.Width),
		zap.Int("height", r.config.Height),
	)
}

// Size returns the viewport size.
func (r *Renderer) Size() (int, int) {
	return r.config.Width, r.config.Height
}

// Aspect returns width / height of the viewport.
func (r *Renderer) Aspect() float32 {
	return float32(r.config.Width) / float32(r.config.Height)
}

// Begin starts a new frame.
func (r *Renderer) Begin() {
	gl.Enable(gl.DEPTH_TEST)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// AddGround uploads one ground mesh. Empty meshes are ignored.
func (r *Renderer) AddGround(m *terrain.Mesh) {
	if m == nil || len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return
	}

	var g ground
	gl.GenVertexArrays(1, &g.vao)
	gl.BindVertexArray(g.vao)

	gl.GenBuffers(1, &g.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, g.vbo)
	stride := int32(unsafe.Sizeof(terrain.Vertex{}))
	gl.BufferData(gl.ARRAY_BUFFER, len(m.Vertices)*int(stride), gl.Ptr(m.Vertices), gl.STATIC_DRAW)

	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, unsafe.Offsetof(terrain.Vertex{}.Position))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, unsafe.Offsetof(terrain.Vertex{}.Normal))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 4, gl.FLOAT, false, stride, unsafe.Offsetof(terrain.Vertex{}.Color))
	gl.EnableVertexAttribArray(2)

	gl.GenBuffers(1, &g.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, g.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*4, gl.Ptr(m.Indices), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	g.count = int32(len(m.Indices))
	r.grounds = append(r.grounds, g)

	logger.Debug("ground uploaded",
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("indices", len(m.Indices)),
	)
}

// ClearGround deletes every uploaded ground mesh.
func (r *Renderer) ClearGround() {
	for i := range r.grounds {
		g := &r.grounds[i]
		gl.DeleteVertexArrays(1, &g.vao)
		gl.DeleteBuffers(1, &g.vbo)
		gl.DeleteBuffers(1, &g.ebo)
	}
	r.grounds = r.grounds[:0]
}

// DrawGround draws every uploaded ground lit by a directional light.
func (r *Renderer) DrawGround(viewProj math.Mat4, lightDir math.Vec3) {
	if len(r.grounds) == 0 {
		return
	}
	gl.UseProgram(r.groundProgram)
	gl.UniformMatrix4fv(r.uniforms.Location("uViewProj"), 1, false, viewProj.Ptr())
	gl.Uniform3f(r.uniforms.Location("uLightDir"), lightDir.X, lightDir.Y, lightDir.Z)
	for _, g := range r.grounds {
		gl.BindVertexArray(g.vao)
		gl.DrawElements(gl.TRIANGLES, g.count, gl.UNSIGNED_INT, nil)
	}
	gl.BindVertexArray(0)
}

// DrawLines draws line segments, three floats per vertex, in one colour.
func (r *Renderer) DrawLines(vertices []float32, viewProj math.Mat4, color [3]float32) {
	if len(vertices) < 6 {
		return
	}
	gl.UseProgram(r.lineProgram)
	gl.UniformMatrix4fv(r.lineUniforms.Location("uViewProj"), 1, false, viewProj.Ptr())
	gl.Uniform3f(r.lineUniforms.Location("uColor"), color[0], color[1], color[2])

	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STREAM_DRAW)
	gl.DrawArrays(gl.LINES, 0, int32(len(vertices)/3))
	gl.BindVertexArray(0)
}

// ReadColor reads the default framebuffer as RGBA bytes, bottom row first.
func (r *Renderer) ReadColor() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, w, h
}

// ReadDepth reads the default framebuffer's depth in row-major order with
// row 0 at the bottom. The returned slice is reused by the next call.
func (r *Renderer) ReadDepth() ([]float32, int, int) {
	w, h := r.config.Width, r.config.Height
	if cap(r.depth) < w*h {
		r.depth = make([]float32, w*h)
	}
	r.depth = r.depth[:w*h]
	gl.PixelStorei(gl.PACK_ALIGNMENT, 4)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.DEPTH_COMPONENT, gl.FLOAT, gl.Ptr(r.depth))
	return r.depth, w, h
}

const groundVertexSource = `#version 430 core

layout (location = 0) in vec3 aPosition;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec4 aColor;

uniform mat4 uViewProj;

out vec3 vNormal;
out vec4 vColor;

void main() {
	gl_Position = uViewProj * vec4(aPosition, 1.0);
	vNormal = aNormal;
	vColor = aColor;
}
`

const groundFragmentSource = `#version 430 core

in vec3 vNormal;
in vec4 vColor;

uniform vec3 uLightDir;

out vec4 FragColor;

void main() {
	float diffuse = max(dot(normalize(vNormal), normalize(uLightDir)), 0.0);
	FragColor = vec4(vColor.rgb * (0.35 + 0.65 * diffuse), 1.0);
}
`

const lineVertexSource = `#version 430 core

layout (location = 0) in vec3 aPosition;

uniform mat4 uViewProj;

void main() {
	gl_Position = uViewProj * vec4(aPosition, 1.0);
}
`

const lineFragmentSource = `#version 430 core

uniform vec3 uColor;

out vec4 FragColor;

void main() {
	FragColor = vec4(uColor, 1.0);
}
`
