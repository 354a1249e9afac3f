package wgpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/rhi"
)

// fenceWaitTimeout bounds every fence wait; a GPU that takes longer than
// this is considered hung.
const fenceWaitTimeout = 5 * time.Second

// image wraps a HAL texture together with its default view. The view is
// created eagerly because every consumer (framebuffers, bind groups) needs
// one.
type image struct {
	label  string
	size   gputypes.Extent3D
	format gputypes.TextureFormat

	tex  hal.Texture
	view hal.TextureView
}

func (t *image) Label() string                  { return t.label }
func (t *image) Size() gputypes.Extent3D        { return t.size }
func (t *image) Format() gputypes.TextureFormat { return t.format }

type buffer struct {
	label string
	size  uint64

	buf hal.Buffer
}

func (b *buffer) Label() string { return b.label }
func (b *buffer) Size() uint64  { return b.size }

// renderpass captures the attachment description. WebGPU assembles the real
// pass descriptor at BeginRenderpass time, so there is nothing to allocate.
type renderpass struct {
	desc rhi.RenderpassDescription
}

func (rp *renderpass) Label() string { return rp.desc.Name }

// framebuffer references the attachment views. The views belong to their
// images; the framebuffer owns nothing.
type framebuffer struct {
	label string
	size  gputypes.Extent3D

	colors []*image
	depth  *image
}

func (fb *framebuffer) Label() string           { return fb.label }
func (fb *framebuffer) Size() gputypes.Extent3D { return fb.size }

type sampler struct {
	label string
	s     hal.Sampler
}

func (s *sampler) Label() string { return s.label }

// fence pairs a HAL fence with the monotonically increasing value the next
// submission will signal.
type fence struct {
	label string
	f     hal.Fence

	value   uint64
	pending bool
}

func (f *fence) Label() string { return f.label }

// semaphore is a placeholder: a single WebGPU queue executes submissions in
// order, so cross-submission waits are implicit.
type semaphore struct {
	label string
}

func (s *semaphore) Label() string { return s.label }

// Device implements rhi.RenderDevice over a HAL device and queue.
type Device struct {
	hal   hal.Device
	queue hal.Queue

	swapchain *Swapchain
	limits    rhi.DeviceLimits

	fenceCount uint32
}

// Option configures a Device.
type Option func(*Device)

// WithLimits overrides the advertised device limits.
func WithLimits(limits rhi.DeviceLimits) Option {
	return func(d *Device) { d.limits = limits }
}

// New wraps a HAL device and queue as an rhi.RenderDevice. The swapchain is
// attached separately via ConfigureSwapchain once the surface exists.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if queue == nil {
		return nil, ErrNilQueue
	}
	d := &Device{
		hal:   device,
		queue: queue,
		// WebGPU guaranteed minimums.
		limits: rhi.DeviceLimits{
			MinUniformBufferOffsetAlignment: 256,
			MaxTextureDimension2D:           8192,
			MaxBufferSize:                   1 << 28,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ConfigureSwapchain attaches the presentable image set.
func (d *Device) ConfigureSwapchain(sc *Swapchain) {
	d.swapchain = sc
}

// CreateRenderpass captures the description; WebGPU has no renderpass
// object to create.
func (d *Device) CreateRenderpass(desc rhi.RenderpassDescription) (rhi.Renderpass, error) {
	return &renderpass{desc: desc}, nil
}

// CreateFramebuffer binds resolved attachments to a captured renderpass.
func (d *Device) CreateFramebuffer(rp rhi.Renderpass, colors []rhi.Image, depth rhi.Image, desc rhi.RenderpassDescription) (rhi.Framebuffer, error) {
	fb := &framebuffer{
		label: desc.Name,
		size:  desc.FramebufferSize,
	}
	for _, img := range colors {
		fb.colors = append(fb.colors, img.(*image))
	}
	if depth != nil {
		fb.depth = depth.(*image)
	}
	return fb, nil
}

// CreateImage allocates a texture and its default view.
func (d *Device) CreateImage(info rhi.ImageCreateInfo) (rhi.Image, error) {
	size := hal.Extent3D{Width: info.Width, Height: info.Height, DepthOrArrayLayers: 1}
	tex, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label:         info.Name,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        info.Format,
		Usage:         info.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", info.Name, err)
	}

	view, err := d.hal.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         info.Name + " view",
		Format:        info.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.hal.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create view for %q: %w", info.Name, err)
	}

	return &image{
		label:  info.Name,
		size:   gputypes.Extent3D{Width: info.Width, Height: info.Height, DepthOrArrayLayers: 1},
		format: info.Format,
		tex:    tex,
		view:   view,
	}, nil
}

// CreateBuffer allocates a buffer with usage flags derived from its role.
func (d *Device) CreateBuffer(info rhi.BufferCreateInfo) (rhi.Buffer, error) {
	buf, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: info.Name,
		Size:  info.Size,
		Usage: bufferUsage(info.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", info.Name, err)
	}
	return &buffer{label: info.Name, size: info.Size, buf: buf}, nil
}

func bufferUsage(usage rhi.BufferUsage) gputypes.BufferUsage {
	switch usage {
	case rhi.BufferUsageVertex:
		return gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
	case rhi.BufferUsageIndex:
		return gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst
	case rhi.BufferUsageStaging:
		return gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	default:
		return gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	}
}

// WriteDataToBuffer copies host data through the queue's upload path.
func (d *Device) WriteDataToBuffer(data []byte, buf rhi.Buffer) error {
	b := buf.(*buffer)
	if uint64(len(data)) > b.size {
		return fmt.Errorf("wgpu: write of %d bytes exceeds buffer %q size %d", len(data), b.label, b.size)
	}
	d.queue.WriteBuffer(b.buf, 0, data)
	return nil
}

// CreateSampler creates a sampler with clamp-to-edge addressing.
func (d *Device) CreateSampler(info rhi.SamplerCreateInfo) (rhi.Sampler, error) {
	filter := gputypes.FilterModeNearest
	if info.Linear {
		filter = gputypes.FilterModeLinear
	}
	s, err := d.hal.CreateSampler(&hal.SamplerDescriptor{
		Label:        info.Name,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create sampler %q: %w", info.Name, err)
	}
	return &sampler{label: info.Name, s: s}, nil
}

// Swapchain returns the configured swapchain, or nil before
// ConfigureSwapchain.
func (d *Device) Swapchain() rhi.Swapchain {
	if d.swapchain == nil {
		return nil
	}
	return d.swapchain
}

// CreateCommandList opens a HAL command encoder for recording.
func (d *Device) CreateCommandList(threadIndex uint32, queue rhi.QueueType, level rhi.CommandListLevel) (rhi.CommandList, error) {
	label := fmt.Sprintf("cmds-t%d-q%d", threadIndex, queue)
	encoder, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	return &commandList{device: d, encoder: encoder, level: level}, nil
}

// SubmitCommandList finishes the list and submits it, along with any
// secondary lists stitched into it, as one ordered submission.
// waitSemaphores and signalSemaphores are accepted for interface parity;
// a single WebGPU queue orders submissions implicitly.
func (d *Device) SubmitCommandList(cmds rhi.CommandList, queue rhi.QueueType, signalFence rhi.Fence, waitSemaphores, signalSemaphores []rhi.Semaphore) error {
	cl := cmds.(*commandList)
	buffers, err := cl.finish()
	if err != nil {
		return err
	}

	var halFence hal.Fence
	var value uint64
	if signalFence != nil {
		f := signalFence.(*fence)
		f.value++
		f.pending = true
		halFence = f.f
		value = f.value
	}

	if err := d.queue.Submit(buffers, halFence, value); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	for _, cb := range buffers {
		d.hal.FreeCommandBuffer(cb)
	}
	return nil
}

// CreateFence creates a fence. A fence created signaled satisfies its first
// wait without a submission; waits only block on fences with a submission
// pending, so signaled and fresh fences behave the same here.
func (d *Device) CreateFence(signaled bool) (rhi.Fence, error) {
	hf, err := d.hal.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("wgpu: create fence: %w", err)
	}
	d.fenceCount++
	return &fence{
		label: fmt.Sprintf("fence-%d", d.fenceCount),
		f:     hf,
	}, nil
}

// CreateSemaphores returns placeholder semaphores; queue order is implicit.
func (d *Device) CreateSemaphores(count uint32) ([]rhi.Semaphore, error) {
	sems := make([]rhi.Semaphore, count)
	for i := range sems {
		sems[i] = &semaphore{label: fmt.Sprintf("semaphore-%d", i)}
	}
	return sems, nil
}

// WaitForFences blocks until every pending fence signals.
func (d *Device) WaitForFences(fences []rhi.Fence) error {
	for _, rf := range fences {
		f := rf.(*fence)
		if !f.pending {
			continue
		}
		ok, err := d.hal.Wait(f.f, f.value, fenceWaitTimeout)
		if err != nil {
			return fmt.Errorf("wgpu: wait fence %s: %w", f.label, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrFenceTimeout, f.label)
		}
	}
	return nil
}

// ResetFences returns fences to the unsignaled state for reuse.
func (d *Device) ResetFences(fences []rhi.Fence) error {
	for _, rf := range fences {
		rf.(*fence).pending = false
	}
	return nil
}

func (d *Device) DestroyRenderpass(rp rhi.Renderpass) {
	// Nothing allocated; the renderpass is a captured description.
}

func (d *Device) DestroyFramebuffer(fb rhi.Framebuffer) {
	// Attachment views belong to their images.
}

func (d *Device) DestroyImage(img rhi.Image) {
	if img == nil {
		return
	}
	t := img.(*image)
	if t.view != nil {
		d.hal.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		d.hal.DestroyTexture(t.tex)
		t.tex = nil
	}
}

func (d *Device) DestroyBuffer(buf rhi.Buffer) {
	if buf == nil {
		return
	}
	b := buf.(*buffer)
	if b.buf != nil {
		d.hal.DestroyBuffer(b.buf)
		b.buf = nil
	}
}

// Limits reports the advertised device limits.
func (d *Device) Limits() rhi.DeviceLimits { return d.limits }
