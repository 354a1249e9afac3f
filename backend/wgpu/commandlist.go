package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/rhi"
)

// commandList records into a HAL command encoder. Secondary lists finished
// via ExecuteCommandLists are stitched in front of this list's own buffer at
// submission, preserving overall order on the single queue.
type commandList struct {
	device  *Device
	encoder hal.CommandEncoder
	level   rhi.CommandListLevel

	pass     hal.RenderPassEncoder
	finished bool

	// stitched holds finished secondary command buffers, in execution order.
	stitched []hal.CommandBuffer
}

// ResourceBarriers records texture usage transitions. Buffer barriers are
// dropped: WebGPU tracks buffer hazards itself.
func (c *commandList) ResourceBarriers(barriers []rhi.ResourceBarrier) {
	var halBarriers []hal.TextureBarrier
	for _, b := range barriers {
		if b.Image == nil {
			continue
		}
		halBarriers = append(halBarriers, hal.TextureBarrier{
			Texture: b.Image.(*image).tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: usageForState(b.OldState),
				NewUsage: usageForState(b.NewState),
			},
		})
	}
	if len(halBarriers) > 0 {
		c.encoder.TransitionTextures(halBarriers)
	}
}

// usageForState maps the coarse resource states onto WebGPU texture usages.
// Present has no usage of its own; the surface is render-attachment backed.
func usageForState(state rhi.ResourceState) gputypes.TextureUsage {
	switch state {
	case rhi.ResourceStateShaderRead:
		return gputypes.TextureUsageTextureBinding
	case rhi.ResourceStateCopySource:
		return gputypes.TextureUsageCopySrc
	case rhi.ResourceStateCopyDestination:
		return gputypes.TextureUsageCopyDst
	default:
		return gputypes.TextureUsageRenderAttachment
	}
}

// CopyBufferToImage records a full-image upload. WebGPU requires the row
// pitch aligned to 256 bytes; callers upload tightly packed data, so the
// image width must satisfy the alignment for multi-row copies.
func (c *commandList) CopyBufferToImage(src rhi.Buffer, dst rhi.Image) error {
	if c.finished {
		return ErrListFinished
	}
	img := dst.(*image)
	bytesPerRow := img.size.Width * 4
	c.encoder.CopyBufferToTexture(src.(*buffer).buf, img.tex, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: img.size.Height},
		TextureBase:  hal.ImageCopyTexture{Texture: img.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: img.size.Width, Height: img.size.Height, DepthOrArrayLayers: 1},
	}})
	return nil
}

// BeginRenderpass assembles the HAL pass descriptor from the captured
// description and the framebuffer's attachment views.
func (c *commandList) BeginRenderpass(rp rhi.Renderpass, fb rhi.Framebuffer) error {
	if c.finished {
		return ErrListFinished
	}
	if c.pass != nil {
		return ErrAlreadyRecording
	}

	pass := rp.(*renderpass)
	frame := fb.(*framebuffer)

	desc := &hal.RenderPassDescriptor{Label: pass.desc.Name}
	for i, att := range pass.desc.ColorAttachments {
		if i >= len(frame.colors) {
			return fmt.Errorf("wgpu: renderpass %q wants %d color attachments, framebuffer has %d",
				pass.desc.Name, len(pass.desc.ColorAttachments), len(frame.colors))
		}
		desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
			View:       frame.colors[i].view,
			LoadOp:     loadOp(att.Clear),
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{},
		})
	}
	if pass.desc.DepthAttachment != nil {
		if frame.depth == nil {
			return fmt.Errorf("wgpu: renderpass %q wants a depth attachment, framebuffer has none", pass.desc.Name)
		}
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:            frame.depth.view,
			DepthLoadOp:     loadOp(pass.desc.DepthAttachment.Clear),
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}

	c.pass = c.encoder.BeginRenderPass(desc)
	return nil
}

func loadOp(clear bool) gputypes.LoadOp {
	if clear {
		return gputypes.LoadOpClear
	}
	return gputypes.LoadOpLoad
}

func (c *commandList) EndRenderpass() error {
	if c.pass == nil {
		return ErrNotRecording
	}
	c.pass.End()
	c.pass = nil
	return nil
}

func (c *commandList) BindPipeline(p rhi.Pipeline) {
	if c.pass == nil {
		return
	}
	c.pass.SetPipeline(p.(*pipeline).hal)
}

// BindResources sets every bind group the binder resolved.
func (c *commandList) BindResources(rb rhi.ResourceBinder) error {
	if c.pass == nil {
		return ErrNotRecording
	}
	binder := rb.(*resourceBinder)
	groups, err := binder.bindGroups()
	if err != nil {
		return err
	}
	for i, bg := range groups {
		if bg == nil {
			continue
		}
		c.pass.SetBindGroup(uint32(i), bg, nil)
	}
	return nil
}

func (c *commandList) BindVertexBuffers(firstSlot uint32, buffers []rhi.Buffer) {
	if c.pass == nil {
		return
	}
	for i, b := range buffers {
		c.pass.SetVertexBuffer(firstSlot+uint32(i), b.(*buffer).buf, 0)
	}
}

func (c *commandList) BindIndexBuffer(buf rhi.Buffer, format rhi.IndexFormat) {
	if c.pass == nil {
		return
	}
	halFormat := gputypes.IndexFormatUint32
	if format == rhi.IndexFormatUint16 {
		halFormat = gputypes.IndexFormatUint16
	}
	c.pass.SetIndexBuffer(buf.(*buffer).buf, halFormat, 0)
}

func (c *commandList) DrawIndexed(indexCount, instanceCount uint32) {
	if c.pass == nil {
		return
	}
	c.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

func (c *commandList) Draw(vertexCount, instanceCount uint32) {
	if c.pass == nil {
		return
	}
	c.pass.Draw(vertexCount, instanceCount, 0, 0)
}

// ExecuteCommandLists finishes the given secondary lists and queues their
// buffers ahead of this list's own at submission.
func (c *commandList) ExecuteCommandLists(lists []rhi.CommandList) error {
	if c.finished {
		return ErrListFinished
	}
	for _, l := range lists {
		sub := l.(*commandList)
		buffers, err := sub.finish()
		if err != nil {
			return err
		}
		c.stitched = append(c.stitched, buffers...)
	}
	return nil
}

// finish ends encoding and returns every buffer this list contributes, in
// execution order.
func (c *commandList) finish() ([]hal.CommandBuffer, error) {
	if c.finished {
		return nil, ErrListFinished
	}
	if c.pass != nil {
		c.pass.End()
		c.pass = nil
	}
	cb, err := c.encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	c.finished = true
	return append(c.stitched, cb), nil
}
