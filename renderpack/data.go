// Package renderpack defines the declarative data model for render packs:
// external bundles that describe render passes, dynamic resources, pipelines
// and materials, loaded at runtime to reshape the rendergraph.
//
// The data here is deliberately backend-agnostic. Pixel formats and other GPU
// enums come from github.com/gogpu/gputypes so that both the rendergraph and
// the backends speak the same vocabulary without depending on each other.
package renderpack

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// BackbufferName is the reserved attachment name that refers to the
// swapchain's presentable image. A pass that lists it as a texture output
// must not write to any other texture, and it never owns a framebuffer.
const BackbufferName = "Backbuffer"

// DimensionType says how a dynamic texture's size is interpreted.
type DimensionType uint8

const (
	// DimensionAbsolute means Width and Height are in pixels.
	DimensionAbsolute DimensionType = iota
	// DimensionScreenRelative means Width and Height are fractions of the
	// swapchain size (1.0 = full size).
	DimensionScreenRelative
)

// UnmarshalText implements encoding.TextUnmarshaler so pack JSON can spell
// the dimension type as a string.
func (d *DimensionType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "absolute", "Absolute":
		*d = DimensionAbsolute
	case "screen_relative", "ScreenRelative":
		*d = DimensionScreenRelative
	default:
		return fmt.Errorf("renderpack: unknown dimension type %q", text)
	}
	return nil
}

// TextureFormatInfo describes the format and size of a dynamic texture.
type TextureFormatInfo struct {
	PixelFormat gputypes.TextureFormat `json:"pixelFormat"`
	Dimension   DimensionType          `json:"dimensionType"`
	Width       float32                `json:"width"`
	Height      float32                `json:"height"`
}

// TextureCreateInfo describes one dynamic texture (render target) that must
// exist before the pack's rendergraph is built.
type TextureCreateInfo struct {
	Name   string            `json:"name"`
	Format TextureFormatInfo `json:"format"`
}

// SamplerCreateInfo describes a sampler declared by the pack.
type SamplerCreateInfo struct {
	Name   string `json:"name"`
	Filter string `json:"filter"`
	WrapU  string `json:"wrapU"`
	WrapV  string `json:"wrapV"`
}

// TextureAttachmentInfo names one texture a renderpass writes to.
type TextureAttachmentInfo struct {
	Name string `json:"name"`

	PixelFormat gputypes.TextureFormat `json:"pixelFormat"`

	// ClearBeforeRendering requests a clear load op when the pass begins.
	ClearBeforeRendering bool `json:"clearBeforeRendering"`
}

// RenderPassCreateInfo is the declarative description of one renderpass.
// The rendergraph resolves the named attachments against its resource
// registry and creates the backend objects from this.
type RenderPassCreateInfo struct {
	Name string `json:"name"`

	// TextureInputs are render targets this pass samples. They order the
	// pass after whichever pass writes them.
	TextureInputs []string `json:"textureInputs"`

	// TextureOutputs are the color attachments, in attachment order. The
	// reserved BackbufferName may only appear as the sole output.
	TextureOutputs []TextureAttachmentInfo `json:"textureOutputs"`

	// DepthTexture is the optional depth attachment.
	DepthTexture *TextureAttachmentInfo `json:"depthTexture,omitempty"`

	InputBuffers  []string `json:"inputBuffers"`
	OutputBuffers []string `json:"outputBuffers"`

	// PipelineNames lists the pipelines recorded inside this pass.
	PipelineNames []string `json:"pipelines"`
}

// WritesToBackbuffer reports whether any declared output is the backbuffer.
func (info *RenderPassCreateInfo) WritesToBackbuffer() bool {
	for _, out := range info.TextureOutputs {
		if out.Name == BackbufferName {
			return true
		}
	}
	return false
}

// PipelineData is the pack-side description of a graphics pipeline. Shader
// fields hold WGSL source after loading (the pack file stores file names,
// the loader inlines the contents).
type PipelineData struct {
	Name string `json:"name"`

	// Pass is the name of the renderpass this pipeline is recorded in.
	Pass string `json:"pass"`

	VertexShader   string `json:"vertexShader"`
	FragmentShader string `json:"fragmentShader"`

	// VertexSource and FragmentSource are filled by the loader.
	VertexSource   string `json:"-"`
	FragmentSource string `json:"-"`

	DepthWrite bool   `json:"depthWrite"`
	CullMode   string `json:"cullMode"`
}

// MaterialPassData binds one material pass to a pipeline and maps shader
// binding names to resource names.
type MaterialPassData struct {
	Name     string            `json:"name"`
	Material string            `json:"-"`
	Pipeline string            `json:"pipeline"`
	Bindings map[string]string `json:"bindings"`
}

// MaterialData describes one material: a geometry filter plus the passes
// that render anything the filter matches.
type MaterialData struct {
	Name           string             `json:"name"`
	Passes         []MaterialPassData `json:"passes"`
	GeometryFilter string             `json:"filter"`
}

// ResourceData holds the dynamic resources a pack declares.
type ResourceData struct {
	Textures []TextureCreateInfo `json:"textures"`
	Samplers []SamplerCreateInfo `json:"samplers"`
}

// RenderpackData is everything a loaded pack contains.
type RenderpackData struct {
	Name      string                 `json:"name"`
	Resources ResourceData           `json:"resources"`
	Passes    []RenderPassCreateInfo `json:"passes"`
	Pipelines []PipelineData         `json:"-"`
	Materials []MaterialData         `json:"-"`
}

// Validate checks the pack for structural problems. Every problem found is
// reported, not just the first.
func (d *RenderpackData) Validate() error {
	var errs []error

	for i := range d.Passes {
		pass := &d.Passes[i]
		if pass.Name == "" {
			errs = append(errs, fmt.Errorf("renderpack: pass %d has no name", i))
		}
		if len(pass.TextureOutputs) == 0 && len(pass.OutputBuffers) == 0 {
			errs = append(errs, fmt.Errorf("renderpack: pass %q writes nothing", pass.Name))
		}
		if pass.WritesToBackbuffer() && len(pass.TextureOutputs) > 1 {
			errs = append(errs, fmt.Errorf("renderpack: pass %q writes the backbuffer and %d other textures",
				pass.Name, len(pass.TextureOutputs)-1))
		}
	}

	for i := range d.Resources.Textures {
		tex := &d.Resources.Textures[i]
		if tex.Name == "" {
			errs = append(errs, fmt.Errorf("renderpack: texture %d has no name", i))
		}
		if tex.Name == BackbufferName {
			errs = append(errs, fmt.Errorf("renderpack: texture name %q is reserved", BackbufferName))
		}
		if tex.Format.Width <= 0 || tex.Format.Height <= 0 {
			errs = append(errs, fmt.Errorf("renderpack: texture %q has non-positive size %gx%g",
				tex.Name, tex.Format.Width, tex.Format.Height))
		}
	}

	for i := range d.Materials {
		mat := &d.Materials[i]
		if len(mat.Passes) == 0 {
			errs = append(errs, fmt.Errorf("renderpack: material %q has no passes", mat.Name))
		}
		for j := range mat.Passes {
			if mat.Passes[j].Pipeline == "" {
				errs = append(errs, fmt.Errorf("renderpack: material %q pass %q names no pipeline",
					mat.Name, mat.Passes[j].Name))
			}
		}
	}

	return errors.Join(errs...)
}
