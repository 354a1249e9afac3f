package rendergraph

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/renderpack"
)

// CreateDynamicTextures creates a render target for every texture a pack
// declares, resolving screen-relative sizes against the swapchain size.
// These targets must exist before the pack's passes are added to the graph.
//
// Every texture that cannot be created is reported; successfully created
// targets stay registered either way, so a fixed pack can be reloaded
// after destroying them.
func (r *DeviceResources) CreateDynamicTextures(textures []renderpack.TextureCreateInfo, swapchainSize gputypes.Extent3D) error {
	var errs []error
	for _, tex := range textures {
		width, height := resolveDimensions(tex.Format, swapchainSize)
		if width == 0 || height == 0 {
			errs = append(errs, fmt.Errorf("dynamic texture %q resolves to %dx%d", tex.Name, width, height))
			continue
		}
		if _, err := r.CreateRenderTarget(tex.Name, width, height, tex.Format.PixelFormat, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolveDimensions converts a pack texture size to pixels.
func resolveDimensions(format renderpack.TextureFormatInfo, swapchainSize gputypes.Extent3D) (uint32, uint32) {
	switch format.Dimension {
	case renderpack.DimensionScreenRelative:
		return uint32(format.Width * float32(swapchainSize.Width)),
			uint32(format.Height * float32(swapchainSize.Height))
	default:
		return uint32(format.Width), uint32(format.Height)
	}
}
