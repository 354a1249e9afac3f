// Package wgpu implements the rhi.RenderDevice interface on top of the
// gogpu/wgpu hardware abstraction layer.
//
// WebGPU has no standalone renderpass or framebuffer objects, so
// CreateRenderpass captures the attachment description and the actual
// hal.RenderPassDescriptor is assembled when the pass begins recording.
// Pipelines are compiled from WGSL through naga to SPIR-V, and their bind
// group layouts are derived from the shader's @group/@binding declarations.
package wgpu
