package rendergraph

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rendergraph/renderpack"
	"github.com/gogpu/rendergraph/rhi"
)

// FullMaterialPassName identifies one pass of one material. It is the key
// renderables are registered under.
type FullMaterialPassName struct {
	MaterialName string
	PassName     string
}

func (n FullMaterialPassName) String() string {
	return n.MaterialName + "." + n.PassName
}

// MaterialPassMetadata is the loaded description of one material pass.
type MaterialPassMetadata struct {
	Data renderpack.MaterialPassData
}

// PipelineMetadata is the loaded description of one pipeline and the
// material passes that draw with it.
type PipelineMetadata struct {
	Data renderpack.PipelineData

	MaterialMetadatas map[FullMaterialPassName]MaterialPassMetadata
}

// RenderpassMetadata is the loaded description of one renderpass.
type RenderpassMetadata struct {
	Data renderpack.RenderPassCreateInfo
}

// RenderCommand is one renderable's per-frame draw state. Scene passes
// filter commands by visibility and object class.
type RenderCommand interface {
	Visible() bool
	Class() ObjectType
}

// StaticMeshRenderCommand draws one static mesh instance.
type StaticMeshRenderCommand struct {
	IsVisible bool
	Type      ObjectType

	Model mgl32.Mat4
}

func (c StaticMeshRenderCommand) Visible() bool     { return c.IsVisible }
func (c StaticMeshRenderCommand) Class() ObjectType { return c.Type }

// MeshBatch groups renderables that share one static mesh, so a pass can
// draw them with a single instanced draw.
type MeshBatch[C RenderCommand] struct {
	VertexBuffer rhi.Buffer
	IndexBuffer  rhi.Buffer
	IndexCount   uint32

	// PerRenderableData receives one model matrix per drawn instance. It is
	// rewritten every frame before the batch's instanced draw, since the
	// visible set may have changed. Nil skips the upload.
	PerRenderableData rhi.Buffer

	Commands []C
}

// visibleCount counts the commands a pass with the given mask would draw.
func visibleCount[C RenderCommand](commands []C, mask ObjectType) uint32 {
	var n uint32
	for _, c := range commands {
		if c.Visible() && c.Class()&mask != 0 {
			n++
		}
	}
	return n
}

// MeshID identifies a registered mesh.
type MeshID uint64

// ProceduralMesh is a mesh whose vertices are rewritten from the CPU, for
// geometry that changes every frame.
type ProceduralMesh struct {
	id MeshID

	VertexBuffer rhi.Buffer
	NumVertices  uint32
}

// NewProceduralMesh wraps a device vertex buffer as a rewriteable mesh.
func NewProceduralMesh(id MeshID, buf rhi.Buffer) *ProceduralMesh {
	return &ProceduralMesh{id: id, VertexBuffer: buf}
}

// ID returns the mesh's registry identity.
func (m *ProceduralMesh) ID() MeshID { return m.id }

// SetVertices replaces the mesh's vertex data. vertexCount is the number of
// vertices the next draw should cover.
func (m *ProceduralMesh) SetVertices(device rhi.RenderDevice, data []byte, vertexCount uint32) error {
	if err := device.WriteDataToBuffer(data, m.VertexBuffer); err != nil {
		return err
	}
	m.NumVertices = vertexCount
	return nil
}

// ProceduralMeshBatch groups renderables sharing one procedural mesh.
type ProceduralMeshBatch[C RenderCommand] struct {
	Mesh *ProceduralMesh

	// PerRenderableData receives one model matrix per drawn instance,
	// rewritten every frame like MeshBatch's. Nil skips the upload.
	PerRenderableData rhi.Buffer

	Commands []C
}

// modelMatrixBytes is the wire size of one per-renderable model matrix.
const modelMatrixBytes = 16 * 4

// packModelMatrices serializes the model matrices of the commands a pass
// with the given mask would draw, in draw order, column-major float32.
func packModelMatrices(commands []StaticMeshRenderCommand, mask ObjectType) []byte {
	buf := make([]byte, 0, len(commands)*modelMatrixBytes)
	for _, c := range commands {
		if !c.Visible() || c.Class()&mask == 0 {
			continue
		}
		for _, f := range c.Model {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

// MaterialPass is one material pass bound to a pipeline: its resolved
// resource bindings and the mesh batches registered to draw with it.
type MaterialPass struct {
	Name FullMaterialPassName

	Binder rhi.ResourceBinder

	StaticMeshDraws     []MeshBatch[StaticMeshRenderCommand]
	ProceduralMeshDraws []ProceduralMeshBatch[StaticMeshRenderCommand]
}

// Record draws every batch of this material pass whose commands intersect
// the mask. Batches with zero visible commands record nothing.
func (mp *MaterialPass) Record(cmds rhi.CommandList, ctx *FrameContext, mask ObjectType) error {
	if mp.Binder != nil {
		if err := cmds.BindResources(mp.Binder); err != nil {
			return err
		}
	}

	for _, batch := range mp.StaticMeshDraws {
		n := visibleCount(batch.Commands, mask)
		if n == 0 {
			continue
		}
		if batch.PerRenderableData != nil {
			if err := ctx.Device.WriteDataToBuffer(packModelMatrices(batch.Commands, mask), batch.PerRenderableData); err != nil {
				return err
			}
		}
		cmds.BindVertexBuffers(0, []rhi.Buffer{batch.VertexBuffer})
		cmds.BindIndexBuffer(batch.IndexBuffer, rhi.IndexFormatUint32)
		cmds.DrawIndexed(batch.IndexCount, n)
	}

	for _, batch := range mp.ProceduralMeshDraws {
		n := visibleCount(batch.Commands, mask)
		if n == 0 || batch.Mesh.NumVertices == 0 {
			continue
		}
		if batch.PerRenderableData != nil {
			if err := ctx.Device.WriteDataToBuffer(packModelMatrices(batch.Commands, mask), batch.PerRenderableData); err != nil {
				return err
			}
		}
		cmds.BindVertexBuffers(0, []rhi.Buffer{batch.Mesh.VertexBuffer})
		cmds.Draw(batch.Mesh.NumVertices, n)
	}

	return nil
}

// Pipeline is a compiled pipeline plus the material passes that draw with
// it, recorded together so the pipeline binds once.
type Pipeline struct {
	Name string

	Pipeline rhi.Pipeline

	Passes []MaterialPass
}

// Record binds the pipeline and records each material pass in order.
func (p *Pipeline) Record(cmds rhi.CommandList, ctx *FrameContext, mask ObjectType) error {
	cmds.BindPipeline(p.Pipeline)
	for i := range p.Passes {
		if err := p.Passes[i].Record(cmds, ctx, mask); err != nil {
			return err
		}
	}
	return nil
}
