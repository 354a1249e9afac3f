package rendergraph

import (
	"fmt"

	"github.com/gogpu/rendergraph/rhi"
)

// ObjectType is a bitmask classifying renderable objects. Scene passes use
// it to select which object classes they draw.
type ObjectType uint32

const (
	ObjectOpaque ObjectType = 1 << iota
	ObjectTransparent
	ObjectParticle
	ObjectVolume

	ObjectAll = ObjectOpaque | ObjectTransparent | ObjectParticle | ObjectVolume
)

// PassContents records the draw commands of one renderpass. It runs inside
// an open renderpass; barrier placement and renderpass begin/end are the
// owning Renderpass's job and happen outside it.
type PassContents interface {
	RecordContents(cmds rhi.CommandList, ctx *FrameContext) error
}

// Renderpass is one node of the rendergraph: a backend renderpass object,
// the framebuffer it renders into, the barriers around it, and the contents
// recorded inside it.
//
// Recording always follows the same shape: pre-pass barriers, begin the
// renderpass, record contents, end the renderpass, post-pass barriers.
// Contents is the only part a pass author supplies.
type Renderpass struct {
	// ID uniquely identifies this pass for the lifetime of its graph.
	// IDs are never reused, even after the pass is destroyed or replaced.
	ID uint32

	Name string

	// IsBuiltin marks passes the engine itself installs, as opposed to
	// passes loaded from a renderpack.
	IsBuiltin bool

	Pass rhi.Renderpass

	// TargetFramebuffer is the pass's own framebuffer. Backbuffer passes
	// leave it nil: the swapchain owns its framebuffers and the pass
	// resolves one per frame.
	TargetFramebuffer rhi.Framebuffer

	WritesToBackbuffer bool

	// PipelineNames lists the pipelines that draw into this pass, in
	// registration order.
	PipelineNames []string

	// PreBarriers and PostBarriers are the state transitions recorded
	// before and after the pass. A barrier with a nil Image targets the
	// current swapchain image and is resolved at record time.
	PreBarriers  []rhi.ResourceBarrier
	PostBarriers []rhi.ResourceBarrier

	// Setup, when non-nil, runs after the pre-pass barriers and before the
	// renderpass begins. Passes use it to refresh per-frame state that must
	// not be written inside an open renderpass.
	Setup func(ctx *FrameContext) error

	Contents PassContents
}

// Framebuffer returns the framebuffer this pass renders into for the
// current frame. Backbuffer passes borrow the swapchain's framebuffer.
func (p *Renderpass) Framebuffer(ctx *FrameContext) rhi.Framebuffer {
	if p.WritesToBackbuffer {
		return ctx.SwapchainFramebuffer
	}
	return p.TargetFramebuffer
}

// Record records the full pass: pre-barriers, the optional setup hook, the
// renderpass itself with its contents, then post-barriers.
func (p *Renderpass) Record(cmds rhi.CommandList, ctx *FrameContext) error {
	recordBarriers(cmds, p.PreBarriers, ctx)

	if p.Setup != nil {
		if err := p.Setup(ctx); err != nil {
			return fmt.Errorf("setup renderpass %q: %w", p.Name, err)
		}
	}

	if err := cmds.BeginRenderpass(p.Pass, p.Framebuffer(ctx)); err != nil {
		return fmt.Errorf("begin renderpass %q: %w", p.Name, err)
	}
	if p.Contents != nil {
		if err := p.Contents.RecordContents(cmds, ctx); err != nil {
			return fmt.Errorf("record renderpass %q: %w", p.Name, err)
		}
	}
	if err := cmds.EndRenderpass(); err != nil {
		return fmt.Errorf("end renderpass %q: %w", p.Name, err)
	}

	recordBarriers(cmds, p.PostBarriers, ctx)
	return nil
}

// recordBarriers resolves swapchain-image placeholders and records the
// transitions in one batch.
func recordBarriers(cmds rhi.CommandList, barriers []rhi.ResourceBarrier, ctx *FrameContext) {
	if len(barriers) == 0 {
		return
	}
	resolved := make([]rhi.ResourceBarrier, len(barriers))
	for i, b := range barriers {
		if b.Image == nil && b.Buffer == nil {
			b.Image = ctx.SwapchainImage
		}
		resolved[i] = b
	}
	cmds.ResourceBarriers(resolved)
}

// SceneRenderpass draws scene geometry through the pipelines registered for
// the pass, filtered by an object-class mask. A G-buffer pass masks to
// opaque geometry; a forward transparency pass masks to transparents.
type SceneRenderpass struct {
	Renderpass

	// Mask selects which object classes this pass draws.
	Mask ObjectType

	// Pipelines are the resolved pipelines drawing into this pass, in
	// PipelineNames order.
	Pipelines []*Pipeline
}

// NewSceneRenderpass wraps a base pass with a draw mask. The returned pass
// records its own contents.
func NewSceneRenderpass(base Renderpass, mask ObjectType) *SceneRenderpass {
	p := &SceneRenderpass{Renderpass: base, Mask: mask}
	p.Contents = p
	return p
}

// RecordContents draws every registered pipeline's material passes,
// skipping objects outside the mask.
func (p *SceneRenderpass) RecordContents(cmds rhi.CommandList, ctx *FrameContext) error {
	for _, pip := range p.Pipelines {
		if err := pip.Record(cmds, ctx, p.Mask); err != nil {
			return err
		}
	}
	return nil
}

// GlobalRenderpass runs a single fullscreen draw, for lighting resolves,
// post-processing and similar whole-screen work. Its resource bindings are
// resolved once at construction, so every dynamic resource the shader reads
// must exist before the pass is created.
type GlobalRenderpass struct {
	Renderpass

	Pipeline rhi.Pipeline
	Binder   rhi.ResourceBinder
}

// NewGlobalRenderpass compiles the fullscreen pipeline, reflects its shader
// bindings, and resolves each binding against the registry. A binding whose
// name matches no registered resource fails with ErrBindingUnresolved.
func NewGlobalRenderpass(base Renderpass, device rhi.RenderDevice, resources *DeviceResources, state rhi.GraphicsPipelineState) (*GlobalRenderpass, error) {
	pipeline, err := device.CreateGlobalPipeline(state)
	if err != nil {
		return nil, fmt.Errorf("create pipeline for pass %q: %w", base.Name, err)
	}
	binder, err := device.CreateResourceBinder(pipeline)
	if err != nil {
		return nil, fmt.Errorf("create binder for pass %q: %w", base.Name, err)
	}
	if err := resolveBindings(binder, device, resources); err != nil {
		return nil, fmt.Errorf("pass %q: %w", base.Name, err)
	}

	p := &GlobalRenderpass{Renderpass: base, Pipeline: pipeline, Binder: binder}
	p.Contents = p
	return p, nil
}

// resolveBindings binds every reflected slot to the registry entry of the
// same name. Sampler slots get a device sampler created on demand.
func resolveBindings(binder rhi.ResourceBinder, device rhi.RenderDevice, resources *DeviceResources) error {
	for _, binding := range binder.RequiredResources() {
		switch binding.Kind {
		case rhi.BindingSampledImage:
			res, ok := lookupImage(resources, binding.Name)
			if !ok {
				return fmt.Errorf("%w: image %q", ErrBindingUnresolved, binding.Name)
			}
			if err := binder.BindImage(binding.Name, res.Image); err != nil {
				return err
			}
		case rhi.BindingUniformBuffer, rhi.BindingStorageBuffer:
			acc, ok := resources.GetUniformBuffer(binding.Name)
			if !ok {
				return fmt.Errorf("%w: buffer %q", ErrBindingUnresolved, binding.Name)
			}
			res, _ := acc.Get()
			if err := binder.BindBuffer(binding.Name, res.Buffer); err != nil {
				return err
			}
		case rhi.BindingSampler:
			sampler, err := device.CreateSampler(rhi.SamplerCreateInfo{Name: binding.Name, Linear: true})
			if err != nil {
				return err
			}
			if err := binder.BindSampler(binding.Name, sampler); err != nil {
				return err
			}
		}
	}
	return nil
}

// lookupImage probes render targets first, then textures: global passes
// mostly read the targets earlier passes wrote.
func lookupImage(resources *DeviceResources, name string) (*TextureResource, bool) {
	if acc, ok := resources.GetRenderTarget(name); ok {
		return acc.Get()
	}
	if acc, ok := resources.GetTexture(name); ok {
		return acc.Get()
	}
	return nil, false
}

// RecordContents binds the fullscreen pipeline and its resources, then
// issues one three-vertex draw covering the screen.
func (p *GlobalRenderpass) RecordContents(cmds rhi.CommandList, ctx *FrameContext) error {
	cmds.BindPipeline(p.Pipeline)
	if err := cmds.BindResources(p.Binder); err != nil {
		return err
	}
	cmds.Draw(3, 1)
	return nil
}
