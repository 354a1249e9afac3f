package rendergraph

import "github.com/gogpu/rendergraph/rhi"

// FrameContext is the read-only bundle of per-frame state handed to every
// renderpass while recording. One FrameContext is built per frame by the
// frame driver and shared by all recording goroutines; nothing in it may be
// mutated during recording. In particular, DeviceResources must not be
// modified while a frame is being recorded — callers serialize resource
// creation against frame recording.
type FrameContext struct {
	// FrameIndex counts presented frames since startup.
	FrameIndex uint64

	// SwapchainImageIndex selects the in-flight swapchain image for this
	// frame.
	SwapchainImageIndex uint32

	// SwapchainImage is the presentable image for this frame.
	SwapchainImage rhi.Image

	// SwapchainFramebuffer is the framebuffer backbuffer-writing passes
	// render into. It is owned by the swapchain.
	SwapchainFramebuffer rhi.Framebuffer

	// Resources is the registry the frame's passes read from.
	Resources *DeviceResources

	// Device is the backend executing this frame.
	Device rhi.RenderDevice
}
