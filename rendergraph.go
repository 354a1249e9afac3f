package rendergraph

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/internal/dag"
	"github.com/gogpu/rendergraph/renderpack"
	"github.com/gogpu/rendergraph/rhi"
)

// Rendergraph owns the set of renderpasses and the order they execute in.
// Passes declare which render targets they read and write; the graph
// derives execution order from those declarations, writers before readers.
//
// The graph is NOT safe for concurrent use. Pass mutation happens on the
// pack-loading path; recording happens on the render path; the caller
// serializes the two.
type Rendergraph struct {
	device    rhi.RenderDevice
	resources *DeviceResources
	log       *slog.Logger

	passes       map[string]*Renderpass
	passMetadata map[string]RenderpassMetadata

	pipelines        map[string]*Pipeline
	pipelineMetadata map[string]PipelineMetadata

	// insertionOrder breaks ties between unordered passes. A replaced
	// pass keeps its position.
	insertionOrder []string

	// nextPassID is monotonic for the graph's lifetime; destroyed and
	// replaced passes never give their id back.
	nextPassID uint32

	dirty       bool
	cachedOrder []string
}

// New creates an empty graph over the given device and resource registry.
func New(device rhi.RenderDevice, resources *DeviceResources, opts ...Option) *Rendergraph {
	cfg := newConfig(opts)
	return &Rendergraph{
		device:           device,
		resources:        resources,
		log:              cfg.logger,
		passes:           make(map[string]*Renderpass),
		passMetadata:     make(map[string]RenderpassMetadata),
		pipelines:        make(map[string]*Pipeline),
		pipelineMetadata: make(map[string]PipelineMetadata),
	}
}

// AddRenderpass creates the backend objects for info and inserts the pass,
// replacing any existing pass with the same name. The replaced pass's
// backend objects are destroyed; its id is not reused.
//
// Creation is atomic: every validation problem is reported in one error and
// no backend objects exist if any check fails. contents may be nil for
// passes whose contents are attached later.
func (g *Rendergraph) AddRenderpass(info renderpack.RenderPassCreateInfo, contents PassContents) (*Renderpass, error) {
	pass, err := g.createRenderpass(info)
	if err != nil {
		g.log.Error("could not create renderpass", "name", info.Name, "error", err)
		return nil, err
	}
	pass.Contents = contents

	if old, ok := g.passes[info.Name]; ok {
		g.destroyPassObjects(old)
		g.log.Debug("renderpass replaced", "name", info.Name, "old_id", old.ID, "new_id", pass.ID)
	} else {
		g.insertionOrder = append(g.insertionOrder, info.Name)
	}

	g.passes[info.Name] = pass
	g.passMetadata[info.Name] = RenderpassMetadata{Data: info}
	g.dirty = true
	return pass, nil
}

// AddBuiltinRenderpass is AddRenderpass for passes the engine installs
// itself rather than loads from a renderpack. The resulting pass reports
// IsBuiltin.
func (g *Rendergraph) AddBuiltinRenderpass(info renderpack.RenderPassCreateInfo, contents PassContents) (*Renderpass, error) {
	pass, err := g.AddRenderpass(info, contents)
	if err != nil {
		return nil, err
	}
	pass.IsBuiltin = true
	return pass, nil
}

// createRenderpass validates info against the registry and builds the
// backend renderpass, framebuffer and barriers.
func (g *Rendergraph) createRenderpass(info renderpack.RenderPassCreateInfo) (*Renderpass, error) {
	var (
		errs       []error
		colors     []*TextureResource
		colorDescs []rhi.AttachmentDescription
		depth      *TextureResource

		refName string
		refSize gputypes.Extent3D
		haveRef bool

		writesToBackbuffer bool
		backbufferClear    bool
		otherOutputs       int
	)

	resolve := func(name string) *TextureResource {
		acc, ok := g.resources.GetRenderTarget(name)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: render target %q", ErrResourceMissing, name))
			return nil
		}
		res, _ := acc.Get()
		if haveRef {
			if res.Width != refSize.Width || res.Height != refSize.Height {
				errs = append(errs, fmt.Errorf(
					"%w: attachment %q is %dx%d but attachment %q is %dx%d",
					ErrAttachmentSize, name, res.Width, res.Height, refName, refSize.Width, refSize.Height))
			}
		} else {
			refName = name
			refSize = gputypes.Extent3D{Width: res.Width, Height: res.Height, DepthOrArrayLayers: 1}
			haveRef = true
		}
		return res
	}

	for _, out := range info.TextureOutputs {
		if out.Name == renderpack.BackbufferName {
			writesToBackbuffer = true
			backbufferClear = out.ClearBeforeRendering
			continue
		}
		otherOutputs++
		if res := resolve(out.Name); res != nil {
			colors = append(colors, res)
			colorDescs = append(colorDescs, rhi.AttachmentDescription{
				Name:   out.Name,
				Format: res.Format,
				Clear:  out.ClearBeforeRendering,
			})
		}
	}

	var depthDesc *rhi.AttachmentDescription
	if info.DepthTexture != nil {
		otherOutputs++
		if res := resolve(info.DepthTexture.Name); res != nil {
			depth = res
			depthDesc = &rhi.AttachmentDescription{
				Name:   info.DepthTexture.Name,
				Format: res.Format,
				Clear:  info.DepthTexture.ClearBeforeRendering,
			}
		}
	}

	for _, in := range info.TextureInputs {
		if in == renderpack.BackbufferName {
			errs = append(errs, fmt.Errorf("renderpass %q reads the backbuffer", info.Name))
			continue
		}
		if _, ok := g.resources.GetRenderTarget(in); !ok {
			errs = append(errs, fmt.Errorf("%w: render target %q", ErrResourceMissing, in))
		}
	}

	if writesToBackbuffer {
		if otherOutputs > 0 {
			errs = append(errs, fmt.Errorf(
				"%w: renderpass %q writes to the backbuffer and %d other attachments",
				ErrBackbufferConflict, info.Name, otherOutputs))
		}
		refSize = g.device.Swapchain().Size()
		haveRef = true
		// The swapchain image is the pass's sole color attachment; the
		// backend resolves the live view from the borrowed framebuffer.
		colorDescs = append(colorDescs, rhi.AttachmentDescription{
			Name:   renderpack.BackbufferName,
			Format: g.device.Swapchain().Format(),
			Clear:  backbufferClear,
		})
	}
	if !haveRef && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("renderpass %q has no attachments", info.Name))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("renderpass %q: %w", info.Name, errors.Join(errs...))
	}

	desc := rhi.RenderpassDescription{
		Name:               info.Name,
		ColorAttachments:   colorDescs,
		DepthAttachment:    depthDesc,
		FramebufferSize:    refSize,
		WritesToBackbuffer: writesToBackbuffer,
	}
	rp, err := g.device.CreateRenderpass(desc)
	if err != nil {
		return nil, fmt.Errorf("renderpass %q: %w", info.Name, err)
	}

	// The backbuffer pass borrows the swapchain's framebuffer per frame
	// and never owns one.
	var fb rhi.Framebuffer
	if !writesToBackbuffer {
		colorImages := make([]rhi.Image, len(colors))
		for i, res := range colors {
			colorImages[i] = res.Image
		}
		var depthImage rhi.Image
		if depth != nil {
			depthImage = depth.Image
		}
		fb, err = g.device.CreateFramebuffer(rp, colorImages, depthImage, desc)
		if err != nil {
			g.device.DestroyRenderpass(rp)
			return nil, fmt.Errorf("framebuffer for renderpass %q: %w", info.Name, err)
		}
	}

	pass := &Renderpass{
		ID:                 g.nextPassID,
		Name:               info.Name,
		Pass:               rp,
		TargetFramebuffer:  fb,
		WritesToBackbuffer: writesToBackbuffer,
		PipelineNames:      slices.Clone(info.PipelineNames),
	}
	g.nextPassID++

	deriveBarriers(pass, colors, depth)
	return pass, nil
}

// deriveBarriers installs the state transitions around a pass: written
// targets move to an attachment state before the pass and back to
// shader-readable after it, so downstream readers need no barriers of
// their own. The backbuffer moves between present and render-target states;
// its nil-image barriers resolve to the live swapchain image at record time.
func deriveBarriers(pass *Renderpass, colors []*TextureResource, depth *TextureResource) {
	for _, res := range colors {
		pass.PreBarriers = append(pass.PreBarriers, rhi.ResourceBarrier{
			Image: res.Image, OldState: rhi.ResourceStateShaderRead, NewState: rhi.ResourceStateRenderTarget,
		})
		pass.PostBarriers = append(pass.PostBarriers, rhi.ResourceBarrier{
			Image: res.Image, OldState: rhi.ResourceStateRenderTarget, NewState: rhi.ResourceStateShaderRead,
		})
	}
	if depth != nil {
		pass.PreBarriers = append(pass.PreBarriers, rhi.ResourceBarrier{
			Image: depth.Image, OldState: rhi.ResourceStateShaderRead, NewState: rhi.ResourceStateDepthWrite,
		})
		pass.PostBarriers = append(pass.PostBarriers, rhi.ResourceBarrier{
			Image: depth.Image, OldState: rhi.ResourceStateDepthWrite, NewState: rhi.ResourceStateShaderRead,
		})
	}
	if pass.WritesToBackbuffer {
		pass.PreBarriers = append(pass.PreBarriers, rhi.ResourceBarrier{
			OldState: rhi.ResourceStatePresent, NewState: rhi.ResourceStateRenderTarget,
		})
		pass.PostBarriers = append(pass.PostBarriers, rhi.ResourceBarrier{
			OldState: rhi.ResourceStateRenderTarget, NewState: rhi.ResourceStatePresent,
		})
	}
}

// destroyPassObjects releases a pass's backend objects. The swapchain owns
// backbuffer framebuffers, so those are never destroyed here.
func (g *Rendergraph) destroyPassObjects(pass *Renderpass) {
	if pass.TargetFramebuffer != nil {
		g.device.DestroyFramebuffer(pass.TargetFramebuffer)
	}
	if pass.Pass != nil {
		g.device.DestroyRenderpass(pass.Pass)
	}
}

// DestroyRenderpass removes the named pass and releases its backend
// objects. Destroying an absent name is a no-op.
func (g *Rendergraph) DestroyRenderpass(name string) {
	pass, ok := g.passes[name]
	if !ok {
		return
	}
	g.destroyPassObjects(pass)
	delete(g.passes, name)
	delete(g.passMetadata, name)
	if i := slices.Index(g.insertionOrder, name); i >= 0 {
		g.insertionOrder = slices.Delete(g.insertionOrder, i, i+1)
	}
	g.dirty = true
	g.log.Debug("renderpass destroyed", "name", name, "id", pass.ID)
}

// Renderpass returns the named pass, or false if absent.
func (g *Rendergraph) Renderpass(name string) (*Renderpass, bool) {
	pass, ok := g.passes[name]
	return pass, ok
}

// MetadataForRenderpass returns the create info the named pass was built
// from, or false if absent.
func (g *Rendergraph) MetadataForRenderpass(name string) (RenderpassMetadata, bool) {
	meta, ok := g.passMetadata[name]
	return meta, ok
}

// RegisterPipeline stores a pipeline and its metadata under its name,
// replacing any previous registration.
func (g *Rendergraph) RegisterPipeline(p *Pipeline, meta PipelineMetadata) {
	g.pipelines[p.Name] = p
	g.pipelineMetadata[p.Name] = meta
}

// Pipeline returns the named pipeline, or false if absent.
func (g *Rendergraph) Pipeline(name string) (*Pipeline, bool) {
	p, ok := g.pipelines[name]
	return p, ok
}

// MetadataForPipeline returns the named pipeline's metadata, or false if
// absent.
func (g *Rendergraph) MetadataForPipeline(name string) (PipelineMetadata, bool) {
	meta, ok := g.pipelineMetadata[name]
	return meta, ok
}

// ExecutionOrder returns pass names sorted so every pass that writes a
// render target runs before every pass that reads it. Passes with no
// ordering constraint keep their insertion order. The order is computed
// lazily and cached until the pass set changes.
func (g *Rendergraph) ExecutionOrder() ([]string, error) {
	if !g.dirty && g.cachedOrder != nil {
		return slices.Clone(g.cachedOrder), nil
	}

	infos := make([]renderpack.RenderPassCreateInfo, 0, len(g.insertionOrder))
	for _, name := range g.insertionOrder {
		infos = append(infos, g.passMetadata[name].Data)
	}
	order, err := PlanExecutionOrder(infos)
	if err != nil {
		return nil, err
	}

	g.cachedOrder = order
	g.dirty = false
	g.log.Debug("execution order rebuilt", "passes", len(order))
	return slices.Clone(order), nil
}

// PlanExecutionOrder derives the execution order for a set of pass
// descriptions without creating any GPU objects. Slice order breaks ties
// between unordered passes. Tools use this to validate a pack's pass graph
// before loading it.
func PlanExecutionOrder(passes []renderpack.RenderPassCreateInfo) ([]string, error) {
	graph := dag.New()
	for _, info := range passes {
		graph.AddNode(info.Name)
	}

	for _, writer := range passes {
		written := writtenTargets(writer)
		for _, reader := range passes {
			if reader.Name == writer.Name {
				continue
			}
			for _, in := range reader.TextureInputs {
				if _, ok := written[in]; ok {
					if err := graph.AddEdge(writer.Name, reader.Name); err != nil {
						return nil, err
					}
					break
				}
			}
		}
	}

	order, err := graph.Sort()
	if err != nil {
		return nil, fmt.Errorf("rendergraph: %w", err)
	}
	return order, nil
}

// writtenTargets collects the render-target names a pass writes, depth
// included. The backbuffer is excluded; nothing may read it.
func writtenTargets(info renderpack.RenderPassCreateInfo) map[string]struct{} {
	written := make(map[string]struct{}, len(info.TextureOutputs)+1)
	for _, out := range info.TextureOutputs {
		if out.Name == renderpack.BackbufferName {
			continue
		}
		written[out.Name] = struct{}{}
	}
	if info.DepthTexture != nil {
		written[info.DepthTexture.Name] = struct{}{}
	}
	return written
}

// Record records every pass into cmds in execution order.
func (g *Rendergraph) Record(cmds rhi.CommandList, ctx *FrameContext) error {
	order, err := g.ExecutionOrder()
	if err != nil {
		return err
	}
	for _, name := range order {
		if err := g.passes[name].Record(cmds, ctx); err != nil {
			return err
		}
	}
	return nil
}
