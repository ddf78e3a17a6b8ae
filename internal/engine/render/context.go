package render

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/engine/lightmap"
	"github.com/Faultbox/srcview/internal/engine/render/shaders"
	"github.com/Faultbox/srcview/internal/engine/scene"
	"github.com/Faultbox/srcview/internal/engine/shader"
	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/pkg/math"
)

var (
	defaultColor = [4]float32{0.7, 0.7, 0.7, 1}
	propColor    = [4]float32{1, 0.6, 0.1, 1}
)

// translucentAlpha is the alpha of translucent patches.
const translucentAlpha = 0.5

// Context is the OpenGL backend. It owns both shader programs for its
// whole lifetime and the GPU copy of one scene at a time.
// IMPORTANT: Must be created and used on the thread owning the GL context.
type Context struct {
	world *shader.Program
	prop  *shader.Program

	viewProj math.Mat4

	vbo, ebo  uint32
	vaos      []uint32 // per lock group
	lightmaps []uint32 // per atlas page
	scene     *scene.Scene

	boxVAO, boxVBO uint32
	current        *shader.Program
}

// NewContext initializes GL and builds the programs.
func NewContext() (*Context, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	c := &Context{viewProj: math.Identity()}
	var err error
	if c.world, err = shader.New("world", shaders.WorldVertexShader, shaders.WorldFragmentShader); err != nil {
		return nil, err
	}
	if c.prop, err = shader.New("prop", shaders.PropVertexShader, shaders.PropFragmentShader); err != nil {
		c.world.Delete()
		return nil, err
	}
	c.createBox()

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)
	return c, nil
}

// Upload copies a scene's buffers and lightmap pages to the GPU,
// replacing any previous scene.
func (c *Context) Upload(s *scene.Scene) {
	c.releaseScene()
	c.scene = s

	if len(s.Vertices) > 0 {
		gl.GenBuffers(1, &c.vbo)
		gl.BindBuffer(gl.ARRAY_BUFFER, c.vbo)
		gl.BufferData(gl.ARRAY_BUFFER, len(s.Vertices)*4, gl.Ptr(s.Vertices), gl.STATIC_DRAW)
	}
	if len(s.Indices) > 0 {
		gl.GenBuffers(1, &c.ebo)
	}

	// One VAO per lock group, each addressing its own slice of the
	// shared vertex buffer so 16-bit indices start at zero.
	c.vaos = make([]uint32, len(s.LockGroups))
	for i := range s.LockGroups {
		g := &s.LockGroups[i]
		gl.GenVertexArrays(1, &c.vaos[i])
		gl.BindVertexArray(c.vaos[i])
		gl.BindBuffer(gl.ARRAY_BUFFER, c.vbo)
		if i == 0 && c.ebo != 0 {
			gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, c.ebo)
			gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(s.Indices)*2, gl.Ptr(s.Indices), gl.STATIC_DRAW)
		} else {
			gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, c.ebo)
		}
		base := uintptr(g.VertexOffset)
		gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, scene.VertexStride, base)
		gl.EnableVertexAttribArray(0)
		gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, scene.VertexStride, base+3*4)
		gl.EnableVertexAttribArray(1)
		gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, scene.VertexStride, base+5*4)
		gl.EnableVertexAttribArray(2)
	}
	gl.BindVertexArray(0)

	c.lightmaps = make([]uint32, len(s.Atlas.Pages))
	for i, p := range s.Atlas.Pages {
		c.lightmaps[i] = uploadPage(p)
	}

	logger.Info("scene uploaded",
		zap.Int("lockGroups", len(c.vaos)),
		zap.Int("lightmapPages", len(c.lightmaps)),
		zap.Int("vertexBytes", len(s.Vertices)*4),
		zap.Int("indexBytes", len(s.Indices)*2))
}

func uploadPage(p *lightmap.Page) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(p.Size), int32(p.Size), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(p.Pixels.Pix))
	for level, m := range p.Mips {
		b := m.Bounds()
		gl.TexImage2D(gl.TEXTURE_2D, int32(level+1), gl.RGBA8, int32(b.Dx()), int32(b.Dy()), 0,
			gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(m.Pix))
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, int32(len(p.Mips)))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	return tex
}

func (c *Context) createBox() {
	verts := propBox()
	gl.GenVertexArrays(1, &c.boxVAO)
	gl.BindVertexArray(c.boxVAO)
	gl.GenBuffers(1, &c.boxVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, c.boxVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.STATIC_DRAW)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)
}

// Resize updates the viewport.
func (c *Context) Resize(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Begin clears the frame and sets the camera for this frame's draws.
func (c *Context) Begin(viewProj math.Mat4) {
	c.viewProj = viewProj
	c.current = nil
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (c *Context) use(p *shader.Program) {
	if c.current == p {
		return
	}
	p.Use()
	gl.UniformMatrix4fv(p.Uniform("uViewProj"), 1, false, c.viewProj.Ptr())
	c.current = p
}

// ReadPixels returns the back buffer as bottom-up RGBA rows.
func (c *Context) ReadPixels(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels
}

// BindLockGroup implements Backend.
func (c *Context) BindLockGroup(group int) {
	c.use(c.world)
	gl.Uniform1i(c.world.Uniform("uLightmap"), 0)
	gl.BindVertexArray(c.vaos[group])
}

// BindMaterial implements Backend.
func (c *Context) BindMaterial(p *scene.TriPatch) {
	col := defaultColor
	if p.Material != nil {
		col = p.Material.Color
	}
	if p.Translucent {
		col[3] = translucentAlpha
	}
	gl.Uniform4fv(c.world.Uniform("uColor"), 1, &col[0])
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, c.lightmaps[p.Page])
}

// DrawPatch implements Backend.
func (c *Context) DrawPatch(g *scene.LockGroup, p *scene.TriPatch) {
	ofs := g.IndexOffset + p.FirstIndex*scene.IndexSize
	gl.DrawElementsWithOffset(gl.TRIANGLES, int32(p.IndexCount), gl.UNSIGNED_SHORT, uintptr(ofs))
}

// BindProp implements Backend.
func (c *Context) BindProp(dict int) {
	c.use(c.prop)
	col := propColor
	gl.Uniform4fv(c.prop.Uniform("uColor"), 1, &col[0])
	gl.BindVertexArray(c.boxVAO)
}

// DrawPropMesh implements Backend.
func (c *Context) DrawPropMesh(p *scene.Prop) {
	m := p.Transform
	gl.UniformMatrix4fv(c.prop.Uniform("uModel"), 1, false, m.Ptr())
	gl.DrawArrays(gl.LINES, 0, boxLineVertexCount)
}

// SetBlend implements Backend.
func (c *Context) SetBlend(on bool) {
	if on {
		gl.Enable(gl.BLEND)
		gl.DepthMask(false)
	} else {
		gl.Disable(gl.BLEND)
		gl.DepthMask(true)
	}
}

func (c *Context) releaseScene() {
	if len(c.vaos) > 0 {
		gl.DeleteVertexArrays(int32(len(c.vaos)), &c.vaos[0])
	}
	if len(c.lightmaps) > 0 {
		gl.DeleteTextures(int32(len(c.lightmaps)), &c.lightmaps[0])
	}
	if c.vbo != 0 {
		gl.DeleteBuffers(1, &c.vbo)
	}
	if c.ebo != 0 {
		gl.DeleteBuffers(1, &c.ebo)
	}
	c.vaos, c.lightmaps = nil, nil
	c.vbo, c.ebo = 0, 0
	c.scene = nil
}

// Close releases every GL object.
func (c *Context) Close() {
	logger.Info("closing renderer")
	c.releaseScene()
	if c.boxVAO != 0 {
		gl.DeleteVertexArrays(1, &c.boxVAO)
	}
	if c.boxVBO != 0 {
		gl.DeleteBuffers(1, &c.boxVBO)
	}
	c.world.Delete()
	c.prop.Delete()
}
