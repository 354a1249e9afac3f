package rendergraph

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/rhi"
)

// The fakes below implement the rhi interfaces with plain in-memory state so
// graph and registry behavior can be tested without a GPU. The command list
// records every call as a readable op string; tests assert on op sequences.

type fakeImage struct {
	name   string
	width  uint32
	height uint32
	format gputypes.TextureFormat
}

func (i *fakeImage) Label() string { return i.name }
func (i *fakeImage) Size() gputypes.Extent3D {
	return gputypes.Extent3D{Width: i.width, Height: i.height, DepthOrArrayLayers: 1}
}
func (i *fakeImage) Format() gputypes.TextureFormat { return i.format }

type fakeBuffer struct {
	name string
	size uint64
	data []byte
}

func (b *fakeBuffer) Label() string { return b.name }
func (b *fakeBuffer) Size() uint64  { return b.size }

type fakeRenderpass struct{ name string }

func (r *fakeRenderpass) Label() string { return r.name }

type fakeFramebuffer struct {
	name string
	size gputypes.Extent3D
}

func (f *fakeFramebuffer) Label() string           { return f.name }
func (f *fakeFramebuffer) Size() gputypes.Extent3D { return f.size }

type fakePipeline struct{ name string }

func (p *fakePipeline) Label() string { return p.name }

type fakeSampler struct{ name string }

func (s *fakeSampler) Label() string { return s.name }

type fakeFence struct{ name string }

func (f *fakeFence) Label() string { return f.name }

type fakeSemaphore struct{ name string }

func (s *fakeSemaphore) Label() string { return s.name }

type fakeSwapchain struct {
	size   gputypes.Extent3D
	format gputypes.TextureFormat
	image  *fakeImage
	fb     *fakeFramebuffer
}

func (s *fakeSwapchain) Size() gputypes.Extent3D            { return s.size }
func (s *fakeSwapchain) Format() gputypes.TextureFormat     { return s.format }
func (s *fakeSwapchain) Framebuffer(uint32) rhi.Framebuffer { return s.fb }
func (s *fakeSwapchain) Image(uint32) rhi.Image             { return s.image }

// fakeBinder records what got bound under each name. required is the
// reflected binding list returned from RequiredResources.
type fakeBinder struct {
	required []rhi.BindingInfo

	images   map[string]rhi.Image
	buffers  map[string]rhi.Buffer
	samplers map[string]rhi.Sampler
}

func newFakeBinder(required ...rhi.BindingInfo) *fakeBinder {
	return &fakeBinder{
		required: required,
		images:   make(map[string]rhi.Image),
		buffers:  make(map[string]rhi.Buffer),
		samplers: make(map[string]rhi.Sampler),
	}
}

func (b *fakeBinder) RequiredResources() []rhi.BindingInfo { return b.required }

func (b *fakeBinder) BindImage(name string, img rhi.Image) error {
	b.images[name] = img
	return nil
}

func (b *fakeBinder) BindBuffer(name string, buf rhi.Buffer) error {
	b.buffers[name] = buf
	return nil
}

func (b *fakeBinder) BindSampler(name string, s rhi.Sampler) error {
	b.samplers[name] = s
	return nil
}

// fakeCommandList records each call as a compact op string, plus the raw
// barrier batches for content checks.
type fakeCommandList struct {
	ops      []string
	barriers [][]rhi.ResourceBarrier
}

func (c *fakeCommandList) ResourceBarriers(barriers []rhi.ResourceBarrier) {
	c.barriers = append(c.barriers, barriers)
	c.ops = append(c.ops, fmt.Sprintf("barriers[%d]", len(barriers)))
}

func (c *fakeCommandList) CopyBufferToImage(src rhi.Buffer, dst rhi.Image) error {
	c.ops = append(c.ops, fmt.Sprintf("copy %s->%s", src.Label(), dst.Label()))
	return nil
}

func (c *fakeCommandList) BeginRenderpass(rp rhi.Renderpass, fb rhi.Framebuffer) error {
	fbName := "<nil>"
	if fb != nil {
		fbName = fb.Label()
	}
	c.ops = append(c.ops, fmt.Sprintf("begin %s fb=%s", rp.Label(), fbName))
	return nil
}

func (c *fakeCommandList) EndRenderpass() error {
	c.ops = append(c.ops, "end")
	return nil
}

func (c *fakeCommandList) BindPipeline(p rhi.Pipeline) {
	c.ops = append(c.ops, "pipeline "+p.Label())
}

func (c *fakeCommandList) BindResources(rhi.ResourceBinder) error {
	c.ops = append(c.ops, "resources")
	return nil
}

func (c *fakeCommandList) BindVertexBuffers(firstSlot uint32, buffers []rhi.Buffer) {
	for i, buf := range buffers {
		c.ops = append(c.ops, fmt.Sprintf("vertex[%d] %s", firstSlot+uint32(i), buf.Label()))
	}
}

func (c *fakeCommandList) BindIndexBuffer(buf rhi.Buffer, _ rhi.IndexFormat) {
	c.ops = append(c.ops, "index "+buf.Label())
}

func (c *fakeCommandList) DrawIndexed(indexCount, instanceCount uint32) {
	c.ops = append(c.ops, fmt.Sprintf("drawIndexed %d x%d", indexCount, instanceCount))
}

func (c *fakeCommandList) Draw(vertexCount, instanceCount uint32) {
	c.ops = append(c.ops, fmt.Sprintf("draw %d x%d", vertexCount, instanceCount))
}

func (c *fakeCommandList) ExecuteCommandLists(lists []rhi.CommandList) error {
	c.ops = append(c.ops, fmt.Sprintf("execute[%d]", len(lists)))
	return nil
}

// fakeDevice implements rhi.RenderDevice. Each fail* field, when set, makes
// the corresponding create call return that error without side effects.
type fakeDevice struct {
	swapchain *fakeSwapchain
	limits    rhi.DeviceLimits

	failImage       error
	failBuffer      error
	failRenderpass  error
	failFramebuffer error
	failPipeline    error
	failWrite       error

	createdImages  []rhi.ImageCreateInfo
	createdBuffers []rhi.BufferCreateInfo

	destroyedImages       []string
	destroyedBuffers      []string
	destroyedRenderpasses []string
	destroyedFramebuffers []string

	writes  int
	submits int
	waits   int

	// binder is returned from CreateResourceBinder; tests preload it with
	// the bindings the pipeline is supposed to reflect.
	binder *fakeBinder

	lastCommandList *fakeCommandList
}

func newFakeDevice() *fakeDevice {
	sc := &fakeSwapchain{
		size:   gputypes.Extent3D{Width: 1280, Height: 720, DepthOrArrayLayers: 1},
		format: gputypes.TextureFormatBGRA8Unorm,
		image:  &fakeImage{name: "swapchain-image", width: 1280, height: 720, format: gputypes.TextureFormatBGRA8Unorm},
	}
	sc.fb = &fakeFramebuffer{name: "swapchain-fb", size: sc.size}
	return &fakeDevice{
		swapchain: sc,
		limits: rhi.DeviceLimits{
			MinUniformBufferOffsetAlignment: 256,
			MaxTextureDimension2D:           8192,
			MaxBufferSize:                   1 << 28,
		},
		binder: newFakeBinder(),
	}
}

func (d *fakeDevice) CreateRenderpass(desc rhi.RenderpassDescription) (rhi.Renderpass, error) {
	if d.failRenderpass != nil {
		return nil, d.failRenderpass
	}
	return &fakeRenderpass{name: desc.Name}, nil
}

func (d *fakeDevice) CreateFramebuffer(rp rhi.Renderpass, colors []rhi.Image, depth rhi.Image, desc rhi.RenderpassDescription) (rhi.Framebuffer, error) {
	if d.failFramebuffer != nil {
		return nil, d.failFramebuffer
	}
	return &fakeFramebuffer{name: desc.Name + "-fb", size: desc.FramebufferSize}, nil
}

func (d *fakeDevice) CreateImage(info rhi.ImageCreateInfo) (rhi.Image, error) {
	if d.failImage != nil {
		return nil, d.failImage
	}
	d.createdImages = append(d.createdImages, info)
	return &fakeImage{name: info.Name, width: info.Width, height: info.Height, format: info.Format}, nil
}

func (d *fakeDevice) CreateBuffer(info rhi.BufferCreateInfo) (rhi.Buffer, error) {
	if d.failBuffer != nil {
		return nil, d.failBuffer
	}
	d.createdBuffers = append(d.createdBuffers, info)
	return &fakeBuffer{name: info.Name, size: info.Size}, nil
}

func (d *fakeDevice) WriteDataToBuffer(data []byte, buf rhi.Buffer) error {
	if d.failWrite != nil {
		return d.failWrite
	}
	d.writes++
	if fb, ok := buf.(*fakeBuffer); ok {
		fb.data = append(fb.data[:0], data...)
	}
	return nil
}

func (d *fakeDevice) CreateSurfacePipeline(state rhi.GraphicsPipelineState) (rhi.Pipeline, error) {
	if d.failPipeline != nil {
		return nil, d.failPipeline
	}
	return &fakePipeline{name: state.Name}, nil
}

func (d *fakeDevice) CreateGlobalPipeline(state rhi.GraphicsPipelineState) (rhi.Pipeline, error) {
	return d.CreateSurfacePipeline(state)
}

func (d *fakeDevice) CreateResourceBinder(rhi.Pipeline) (rhi.ResourceBinder, error) {
	return d.binder, nil
}

func (d *fakeDevice) CreateSampler(info rhi.SamplerCreateInfo) (rhi.Sampler, error) {
	return &fakeSampler{name: info.Name}, nil
}

func (d *fakeDevice) Swapchain() rhi.Swapchain {
	if d.swapchain == nil {
		return nil
	}
	return d.swapchain
}

func (d *fakeDevice) CreateCommandList(threadIndex uint32, queue rhi.QueueType, level rhi.CommandListLevel) (rhi.CommandList, error) {
	cl := &fakeCommandList{}
	d.lastCommandList = cl
	return cl, nil
}

func (d *fakeDevice) SubmitCommandList(cmds rhi.CommandList, queue rhi.QueueType, signalFence rhi.Fence, waitSemaphores, signalSemaphores []rhi.Semaphore) error {
	d.submits++
	return nil
}

func (d *fakeDevice) CreateFence(signaled bool) (rhi.Fence, error) {
	return &fakeFence{name: "fence"}, nil
}

func (d *fakeDevice) CreateSemaphores(count uint32) ([]rhi.Semaphore, error) {
	sems := make([]rhi.Semaphore, count)
	for i := range sems {
		sems[i] = &fakeSemaphore{name: fmt.Sprintf("semaphore-%d", i)}
	}
	return sems, nil
}

func (d *fakeDevice) WaitForFences([]rhi.Fence) error {
	d.waits++
	return nil
}

func (d *fakeDevice) ResetFences([]rhi.Fence) error { return nil }

func (d *fakeDevice) DestroyRenderpass(rp rhi.Renderpass) {
	if rp != nil {
		d.destroyedRenderpasses = append(d.destroyedRenderpasses, rp.Label())
	}
}

func (d *fakeDevice) DestroyFramebuffer(fb rhi.Framebuffer) {
	if fb != nil {
		d.destroyedFramebuffers = append(d.destroyedFramebuffers, fb.Label())
	}
}

func (d *fakeDevice) DestroyImage(img rhi.Image) {
	if img != nil {
		d.destroyedImages = append(d.destroyedImages, img.Label())
	}
}

func (d *fakeDevice) DestroyBuffer(buf rhi.Buffer) {
	if buf != nil {
		d.destroyedBuffers = append(d.destroyedBuffers, buf.Label())
	}
}

func (d *fakeDevice) Limits() rhi.DeviceLimits { return d.limits }

// passContentsFunc adapts a function to PassContents.
type passContentsFunc func(cmds rhi.CommandList, ctx *FrameContext) error

func (f passContentsFunc) RecordContents(cmds rhi.CommandList, ctx *FrameContext) error {
	return f(cmds, ctx)
}
