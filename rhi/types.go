package rhi

import "github.com/gogpu/gputypes"

// QueueType selects which hardware queue a command list is recorded for.
type QueueType uint8

const (
	// QueueGraphics is the main graphics queue.
	QueueGraphics QueueType = iota
	// QueueTransfer is the copy/upload queue.
	QueueTransfer
	// QueueCompute is the async compute queue.
	QueueCompute
)

// CommandListLevel distinguishes primary command lists, which are submitted
// to a queue, from secondary lists recorded on worker threads and executed
// from a primary list.
type CommandListLevel uint8

const (
	CommandListPrimary CommandListLevel = iota
	CommandListSecondary
)

// ResourceState is the coarse GPU usage state of an image or buffer, used
// for barrier transitions. Backends map these onto their own layout/state
// vocabulary.
type ResourceState uint8

const (
	ResourceStateUndefined ResourceState = iota
	ResourceStateCommon
	ResourceStateRenderTarget
	ResourceStateDepthWrite
	ResourceStateShaderRead
	ResourceStateCopySource
	ResourceStateCopyDestination
	ResourceStatePresent
)

// ResourceBarrier describes one state transition. Exactly one of Image or
// Buffer is set.
type ResourceBarrier struct {
	Image  Image
	Buffer Buffer

	OldState ResourceState
	NewState ResourceState
}

// IndexFormat is the element width of an index buffer.
type IndexFormat uint8

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// BufferUsage says what a buffer will be bound as.
type BufferUsage uint8

const (
	BufferUsageUniform BufferUsage = iota
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageStaging
)

// Opaque backend handles. The rendergraph never inspects these beyond the
// small query surface below; ownership of the underlying GPU objects stays
// with the device that created them.
type (
	// Image is a texture or render target allocation.
	Image interface {
		Label() string
		Size() gputypes.Extent3D
		Format() gputypes.TextureFormat
	}

	// Buffer is a GPU buffer allocation.
	Buffer interface {
		Label() string
		Size() uint64
	}

	// Renderpass is a backend renderpass object (or an equivalent
	// descriptor capture on APIs without one).
	Renderpass interface {
		Label() string
	}

	// Framebuffer binds a renderpass-compatible set of attachments.
	Framebuffer interface {
		Label() string
		Size() gputypes.Extent3D
	}

	// Pipeline is a compiled graphics pipeline.
	Pipeline interface {
		Label() string
	}

	// Sampler is a texture sampler object.
	Sampler interface {
		Label() string
	}

	// Fence is a CPU-visible GPU completion signal.
	Fence interface {
		Label() string
	}

	// Semaphore orders work between queue submissions.
	Semaphore interface {
		Label() string
	}
)

// BindingKind classifies a shader-visible binding slot.
type BindingKind uint8

const (
	BindingUniformBuffer BindingKind = iota
	BindingStorageBuffer
	BindingSampledImage
	BindingSampler
)

// BindingInfo is one reflected shader binding.
type BindingInfo struct {
	Name    string
	Group   uint32
	Binding uint32
	Kind    BindingKind
}

// ResourceBinder maps shader-visible binding names to live GPU resources
// for one pipeline. Binders are produced by the device via shader
// reflection; callers bind a resource for every required slot before use.
type ResourceBinder interface {
	// RequiredResources lists every binding the pipeline's shaders declare.
	RequiredResources() []BindingInfo

	BindImage(name string, img Image) error
	BindBuffer(name string, buf Buffer) error
	BindSampler(name string, s Sampler) error
}

// Swapchain exposes the presentable images owned by the window surface.
// Backbuffer framebuffers belong to the swapchain, never to a renderpass.
type Swapchain interface {
	Size() gputypes.Extent3D
	Format() gputypes.TextureFormat

	// Framebuffer returns the framebuffer for the given in-flight image.
	Framebuffer(imageIndex uint32) Framebuffer

	// Image returns the presentable image for the given in-flight index.
	Image(imageIndex uint32) Image
}

// CommandList records GPU work. Lists are not safe for concurrent use; for
// multi-threaded recording, record secondary lists on worker threads and
// execute them from the primary list.
type CommandList interface {
	// ResourceBarriers records the given state transitions.
	ResourceBarriers(barriers []ResourceBarrier)

	// CopyBufferToImage records a full-image upload from a staging buffer.
	CopyBufferToImage(src Buffer, dst Image) error

	BeginRenderpass(rp Renderpass, fb Framebuffer) error
	EndRenderpass() error

	BindPipeline(p Pipeline)
	BindResources(rb ResourceBinder) error
	BindVertexBuffers(firstSlot uint32, buffers []Buffer)
	BindIndexBuffer(buf Buffer, format IndexFormat)

	DrawIndexed(indexCount, instanceCount uint32)
	Draw(vertexCount, instanceCount uint32)

	// ExecuteCommandLists records secondary lists into this primary list.
	ExecuteCommandLists(lists []CommandList) error
}

// ImageCreateInfo describes an image allocation.
type ImageCreateInfo struct {
	Name   string
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}

// BufferCreateInfo describes a buffer allocation.
type BufferCreateInfo struct {
	Name  string
	Size  uint64
	Usage BufferUsage
}

// AttachmentDescription is one attachment slot of a renderpass.
type AttachmentDescription struct {
	Name   string
	Format gputypes.TextureFormat
	Clear  bool
}

// RenderpassDescription is everything a backend needs to create a
// renderpass object compatible with a known set of attachments.
type RenderpassDescription struct {
	Name string

	ColorAttachments []AttachmentDescription
	DepthAttachment  *AttachmentDescription

	FramebufferSize gputypes.Extent3D

	// WritesToBackbuffer marks the pass whose single color attachment is
	// the swapchain image; such passes never own a framebuffer.
	WritesToBackbuffer bool
}

// GraphicsPipelineState is the full fixed-function + shader description of
// a graphics pipeline. Shader sources are WGSL.
type GraphicsPipelineState struct {
	Name string

	VertexSource   string
	FragmentSource string

	ColorTargets []gputypes.ColorTargetState
	DepthFormat  gputypes.TextureFormat
	DepthWrite   bool
}

// SamplerCreateInfo describes a sampler.
type SamplerCreateInfo struct {
	Name   string
	Linear bool
}

// DeviceLimits are the backend limits the resource registry needs.
type DeviceLimits struct {
	MinUniformBufferOffsetAlignment uint64
	MaxTextureDimension2D           uint32
	MaxBufferSize                   uint64
}
