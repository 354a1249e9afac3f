package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/rhi"
)

// Swapchain wraps the surface's presentable images. Each image gets a
// borrowed framebuffer so backbuffer passes can render straight into it.
type Swapchain struct {
	size   gputypes.Extent3D
	format gputypes.TextureFormat

	images       []*image
	framebuffers []*framebuffer
}

// WrapSurfaceImage adapts a surface-owned HAL texture and view into an
// rhi.Image for swapchain construction. The surface keeps ownership.
func (d *Device) WrapSurfaceImage(label string, tex hal.Texture, view hal.TextureView, size gputypes.Extent3D, format gputypes.TextureFormat) rhi.Image {
	return &image{label: label, size: size, format: format, tex: tex, view: view}
}

// NewSwapchain builds a swapchain over the given presentable images. All
// images must share the size and format.
func NewSwapchain(size gputypes.Extent3D, format gputypes.TextureFormat, images []rhi.Image) *Swapchain {
	sc := &Swapchain{size: size, format: format}
	for i, img := range images {
		surf := img.(*image)
		sc.images = append(sc.images, surf)
		sc.framebuffers = append(sc.framebuffers, &framebuffer{
			label:  fmt.Sprintf("backbuffer-%d", i),
			size:   size,
			colors: []*image{surf},
		})
	}
	return sc
}

func (sc *Swapchain) Size() gputypes.Extent3D        { return sc.size }
func (sc *Swapchain) Format() gputypes.TextureFormat { return sc.format }

// Framebuffer returns the borrowed framebuffer for an in-flight image.
func (sc *Swapchain) Framebuffer(imageIndex uint32) rhi.Framebuffer {
	return sc.framebuffers[imageIndex]
}

// Image returns the presentable image for an in-flight index.
func (sc *Swapchain) Image(imageIndex uint32) rhi.Image {
	return sc.images[imageIndex]
}
