package wgpu

import (
	"fmt"
	"sort"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/rhi"
)

// staticMeshVertexStride is position (3f) + normal (3f) + uv (2f).
const staticMeshVertexStride = 32

// pipeline is a compiled render pipeline plus the reflection data needed to
// build bind groups for it.
type pipeline struct {
	label string
	hal   hal.RenderPipeline

	vertModule hal.ShaderModule
	fragModule hal.ShaderModule

	layouts  []hal.BindGroupLayout
	bindings []rhi.BindingInfo
}

func (p *pipeline) Label() string { return p.label }

// CreateSurfacePipeline builds a pipeline for scene geometry with the
// static mesh vertex layout and back-face culling.
func (d *Device) CreateSurfacePipeline(state rhi.GraphicsPipelineState) (rhi.Pipeline, error) {
	return d.createPipeline(state, staticMeshVertexLayout(), gputypes.CullModeBack)
}

// CreateGlobalPipeline builds a fullscreen pipeline with no vertex inputs;
// the vertex shader derives positions from the vertex index.
func (d *Device) CreateGlobalPipeline(state rhi.GraphicsPipelineState) (rhi.Pipeline, error) {
	return d.createPipeline(state, nil, gputypes.CullModeNone)
}

func (d *Device) createPipeline(state rhi.GraphicsPipelineState, vertexBuffers []gputypes.VertexBufferLayout, cullMode gputypes.CullMode) (rhi.Pipeline, error) {
	bindings, err := reflectBindings(state.VertexSource, state.FragmentSource)
	if err != nil {
		return nil, fmt.Errorf("wgpu: reflect %q: %w", state.Name, err)
	}

	vertModule, err := d.compileShader(state.Name+"_vert", state.VertexSource)
	if err != nil {
		return nil, err
	}
	fragModule, err := d.compileShader(state.Name+"_frag", state.FragmentSource)
	if err != nil {
		d.hal.DestroyShaderModule(vertModule)
		return nil, err
	}

	layouts, err := d.createBindGroupLayouts(state.Name, bindings)
	if err != nil {
		d.hal.DestroyShaderModule(fragModule)
		d.hal.DestroyShaderModule(vertModule)
		return nil, err
	}

	pipeLayout, err := d.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            state.Name + "_layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline layout %q: %w", state.Name, err)
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  state.Name,
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     vertModule,
			EntryPoint: "vs_main",
			Buffers:    vertexBuffers,
		},
		Fragment: &hal.FragmentState{
			Module:     fragModule,
			EntryPoint: "fs_main",
			Targets:    state.ColorTargets,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: cullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if state.DepthFormat != gputypes.TextureFormatUndefined {
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            state.DepthFormat,
			DepthWriteEnabled: state.DepthWrite,
			DepthCompare:      gputypes.CompareFunctionLess,
		}
	}

	halPipe, err := d.hal.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline %q: %w", state.Name, err)
	}

	return &pipeline{
		label:      state.Name,
		hal:        halPipe,
		vertModule: vertModule,
		fragModule: fragModule,
		layouts:    layouts,
		bindings:   bindings,
	}, nil
}

// compileShader runs WGSL through naga and wraps the SPIR-V in a module.
func (d *Device) compileShader(label, wgsl string) (hal.ShaderModule, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, label, err)
	}
	module, err := d.hal.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirvWords(spirvBytes)},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create shader module %s: %w", label, err)
	}
	return module, nil
}

// spirvWords packs little-endian SPIR-V bytes into words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

// createBindGroupLayouts builds one layout per bind group index, covering
// every reflected binding.
func (d *Device) createBindGroupLayouts(name string, bindings []rhi.BindingInfo) ([]hal.BindGroupLayout, error) {
	byGroup := make(map[uint32][]gputypes.BindGroupLayoutEntry)
	maxGroup := -1
	for _, b := range bindings {
		byGroup[b.Group] = append(byGroup[b.Group], layoutEntry(b))
		if int(b.Group) > maxGroup {
			maxGroup = int(b.Group)
		}
	}

	layouts := make([]hal.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		entries := byGroup[uint32(g)]
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })
		layout, err := d.hal.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s_group%d", name, g),
			Entries: entries,
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu: create bind group layout %s group %d: %w", name, g, err)
		}
		layouts[g] = layout
	}
	return layouts, nil
}

func layoutEntry(b rhi.BindingInfo) gputypes.BindGroupLayoutEntry {
	entry := gputypes.BindGroupLayoutEntry{
		Binding:    b.Binding,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
	}
	switch b.Kind {
	case rhi.BindingStorageBuffer:
		entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
	case rhi.BindingSampledImage:
		entry.Visibility = gputypes.ShaderStageFragment
		entry.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case rhi.BindingSampler:
		entry.Visibility = gputypes.ShaderStageFragment
		entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	default:
		entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	}
	return entry
}

// staticMeshVertexLayout is the interleaved layout scene geometry uses.
func staticMeshVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: staticMeshVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1}, // normal
				{Format: gputypes.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2}, // uv
			},
		},
	}
}

// resourceBinder accumulates bound resources and materializes HAL bind
// groups lazily, one per group index, rebuilt when a binding changes.
type resourceBinder struct {
	device *Device
	pipe   *pipeline

	byName  map[string]rhi.BindingInfo
	entries map[uint32]map[uint32]gputypes.BindGroupEntry

	groups []hal.BindGroup
	dirty  bool
}

// CreateResourceBinder returns a binder over the pipeline's reflected
// bindings.
func (d *Device) CreateResourceBinder(p rhi.Pipeline) (rhi.ResourceBinder, error) {
	pipe := p.(*pipeline)
	byName := make(map[string]rhi.BindingInfo, len(pipe.bindings))
	for _, b := range pipe.bindings {
		byName[b.Name] = b
	}
	return &resourceBinder{
		device:  d,
		pipe:    pipe,
		byName:  byName,
		entries: make(map[uint32]map[uint32]gputypes.BindGroupEntry),
	}, nil
}

func (rb *resourceBinder) RequiredResources() []rhi.BindingInfo {
	out := make([]rhi.BindingInfo, len(rb.pipe.bindings))
	copy(out, rb.pipe.bindings)
	return out
}

func (rb *resourceBinder) BindImage(name string, img rhi.Image) error {
	info, ok := rb.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBinding, name)
	}
	rb.setEntry(info, gputypes.BindGroupEntry{
		Binding:  info.Binding,
		Resource: gputypes.TextureViewBinding{TextureView: img.(*image).view.NativeHandle()},
	})
	return nil
}

func (rb *resourceBinder) BindBuffer(name string, buf rhi.Buffer) error {
	info, ok := rb.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBinding, name)
	}
	b := buf.(*buffer)
	rb.setEntry(info, gputypes.BindGroupEntry{
		Binding:  info.Binding,
		Resource: gputypes.BufferBinding{Buffer: b.buf.NativeHandle(), Offset: 0, Size: b.size},
	})
	return nil
}

func (rb *resourceBinder) BindSampler(name string, s rhi.Sampler) error {
	info, ok := rb.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBinding, name)
	}
	rb.setEntry(info, gputypes.BindGroupEntry{
		Binding:  info.Binding,
		Resource: gputypes.SamplerBinding{Sampler: s.(*sampler).s.NativeHandle()},
	})
	return nil
}

func (rb *resourceBinder) setEntry(info rhi.BindingInfo, entry gputypes.BindGroupEntry) {
	group := rb.entries[info.Group]
	if group == nil {
		group = make(map[uint32]gputypes.BindGroupEntry)
		rb.entries[info.Group] = group
	}
	group[info.Binding] = entry
	rb.dirty = true
}

// bindGroups returns one bind group per group index, creating them if any
// binding changed since the last call. Every reflected binding must be
// bound first.
func (rb *resourceBinder) bindGroups() ([]hal.BindGroup, error) {
	if !rb.dirty && rb.groups != nil {
		return rb.groups, nil
	}

	for _, b := range rb.pipe.bindings {
		if _, ok := rb.entries[b.Group][b.Binding]; !ok {
			return nil, fmt.Errorf("wgpu: pipeline %q binding %q has no bound resource", rb.pipe.label, b.Name)
		}
	}

	groups := make([]hal.BindGroup, len(rb.pipe.layouts))
	for g := range rb.pipe.layouts {
		groupEntries := rb.entries[uint32(g)]
		if len(groupEntries) == 0 {
			continue
		}
		entries := make([]gputypes.BindGroupEntry, 0, len(groupEntries))
		for _, e := range groupEntries {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })

		bg, err := rb.device.hal.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s_bind%d", rb.pipe.label, g),
			Layout:  rb.pipe.layouts[g],
			Entries: entries,
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu: create bind group %d for %q: %w", g, rb.pipe.label, err)
		}
		groups[g] = bg
	}

	rb.groups = groups
	rb.dirty = false
	return groups, nil
}
