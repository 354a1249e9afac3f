// Package rhi defines the render-hardware-interface boundary: the capability
// interface a backend device implements, and the opaque handle and descriptor
// types that cross it. The rendergraph and resource registry consume this
// interface only; they never touch backend-specific types.
package rhi

// RenderDevice is the capability interface of one GPU backend. All GPU
// object creation and submission funnels through it.
//
// Creation methods return an error and leave no partial state when the
// backend refuses an allocation. Destroy methods are idempotent on nil
// handles.
type RenderDevice interface {
	// CreateRenderpass creates a renderpass object sized to the given
	// framebuffer dimensions.
	CreateRenderpass(desc RenderpassDescription) (Renderpass, error)

	// CreateFramebuffer binds the resolved color and depth attachments to
	// a renderpass. depth may be nil.
	CreateFramebuffer(rp Renderpass, colors []Image, depth Image, desc RenderpassDescription) (Framebuffer, error)

	CreateImage(info ImageCreateInfo) (Image, error)
	CreateBuffer(info BufferCreateInfo) (Buffer, error)

	// WriteDataToBuffer copies host data into a buffer's memory.
	WriteDataToBuffer(data []byte, buf Buffer) error

	// CreateSurfacePipeline builds a pipeline that renders scene geometry.
	CreateSurfacePipeline(state GraphicsPipelineState) (Pipeline, error)

	// CreateGlobalPipeline builds a pipeline that runs over the whole
	// scene, typically a fullscreen triangle.
	CreateGlobalPipeline(state GraphicsPipelineState) (Pipeline, error)

	// CreateResourceBinder reflects the pipeline's shaders and returns a
	// binder for its declared bindings.
	CreateResourceBinder(p Pipeline) (ResourceBinder, error)

	CreateSampler(info SamplerCreateInfo) (Sampler, error)

	Swapchain() Swapchain

	// CreateCommandList returns a list for the given recording thread,
	// queue and level.
	CreateCommandList(threadIndex uint32, queue QueueType, level CommandListLevel) (CommandList, error)

	// SubmitCommandList submits a primary list. signalFence may be nil;
	// semaphore slices may be empty.
	SubmitCommandList(cmds CommandList, queue QueueType, signalFence Fence, waitSemaphores, signalSemaphores []Semaphore) error

	CreateFence(signaled bool) (Fence, error)
	CreateSemaphores(count uint32) ([]Semaphore, error)
	WaitForFences(fences []Fence) error
	ResetFences(fences []Fence) error

	DestroyRenderpass(rp Renderpass)
	DestroyFramebuffer(fb Framebuffer)
	DestroyImage(img Image)
	DestroyBuffer(buf Buffer)

	Limits() DeviceLimits
}
