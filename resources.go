package rendergraph

import (
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/rhi"
)

// minStagingBufferSize is the smallest staging buffer size class.
const minStagingBufferSize = 256

// TextureResource is one registered texture or render target. The backend
// image is owned by the device; the registry only references it.
type TextureResource struct {
	Name string

	Image rhi.Image

	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
}

// BufferResource is one registered uniform buffer.
type BufferResource struct {
	Name string

	Buffer rhi.Buffer

	// Size is the registered size in bytes, after alignment round-up.
	Size uint64
}

type resourceKind uint8

const (
	kindTexture resourceKind = iota
	kindRenderTarget
	kindUniformBuffer
)

// TextureAccessor is a weak handle to a registry entry: a registry reference
// plus a name, re-validated on every Get. It never keeps a destroyed entry
// alive and never caches the entry across accesses.
type TextureAccessor struct {
	registry *DeviceResources
	kind     resourceKind
	name     string
}

// Name returns the registered name this accessor refers to.
func (a TextureAccessor) Name() string { return a.name }

// Get returns the live registry entry, or false if the entry has been
// destroyed (or the accessor is the zero value).
func (a TextureAccessor) Get() (*TextureResource, bool) {
	if a.registry == nil {
		return nil, false
	}
	var res *TextureResource
	switch a.kind {
	case kindTexture:
		res = a.registry.textures[a.name]
	case kindRenderTarget:
		res = a.registry.renderTargets[a.name]
	}
	return res, res != nil
}

// BufferAccessor is the buffer counterpart of TextureAccessor.
type BufferAccessor struct {
	registry *DeviceResources
	name     string
}

// Name returns the registered name this accessor refers to.
func (a BufferAccessor) Name() string { return a.name }

// Get returns the live registry entry, or false if it has been destroyed.
func (a BufferAccessor) Get() (*BufferResource, bool) {
	if a.registry == nil {
		return nil, false
	}
	res := a.registry.uniformBuffers[a.name]
	return res, res != nil
}

// Option configures a component constructor.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger injects a component-specific logger. Without it, components
// fall back to the package logger set via SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts []Option) config {
	c := config{logger: Logger()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// DeviceResources is the registry mapping names to GPU-backed resources,
// and the factory that creates them through the backend device. Textures,
// render targets and uniform buffers live in independent namespaces.
//
// DeviceResources is NOT safe for concurrent use. Resource creation happens
// on the single-threaded pack-loading path; mutating the registry while a
// frame is being recorded is not supported and must be serialized by the
// caller. Destroying a render target that a live renderpass still
// references is the caller's responsibility to prevent — the registry does
// not track pass liveness.
type DeviceResources struct {
	device rhi.RenderDevice
	log    *slog.Logger

	textures       map[string]*TextureResource
	renderTargets  map[string]*TextureResource
	uniformBuffers map[string]*BufferResource

	// stagingBuffers pools upload buffers by power-of-two size class.
	// Pooled buffers are shared; callers on the loading path synchronize.
	stagingBuffers map[uint64][]rhi.Buffer
}

// NewDeviceResources creates an empty registry backed by the given device.
func NewDeviceResources(device rhi.RenderDevice, opts ...Option) *DeviceResources {
	cfg := newConfig(opts)
	return &DeviceResources{
		device:         device,
		log:            cfg.logger,
		textures:       make(map[string]*TextureResource),
		renderTargets:  make(map[string]*TextureResource),
		uniformBuffers: make(map[string]*BufferResource),
		stagingBuffers: make(map[uint64][]rhi.Buffer),
	}
}

// CreateTexture creates a sampled texture and uploads data through a pooled
// staging buffer. data may be nil to leave the texture uninitialized.
//
// Creating a name that already exists fails with ErrResourceExists; destroy
// the old entry first. On any backend failure the registry is unchanged.
func (r *DeviceResources) CreateTexture(name string, width, height uint32, format gputypes.TextureFormat, data []byte) (TextureAccessor, error) {
	if _, ok := r.textures[name]; ok {
		return TextureAccessor{}, fmt.Errorf("%w: texture %q", ErrResourceExists, name)
	}

	img, err := r.device.CreateImage(rhi.ImageCreateInfo{
		Name:   name,
		Width:  width,
		Height: height,
		Format: format,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		r.log.Error("could not create texture", "name", name, "error", err)
		return TextureAccessor{}, fmt.Errorf("create texture %q: %w", name, err)
	}

	if len(data) > 0 {
		if err := r.uploadImageData(img, data); err != nil {
			r.device.DestroyImage(img)
			r.log.Error("could not upload texture data", "name", name, "error", err)
			return TextureAccessor{}, fmt.Errorf("upload texture %q: %w", name, err)
		}
	}

	r.textures[name] = &TextureResource{
		Name:   name,
		Image:  img,
		Width:  width,
		Height: height,
		Format: format,
	}
	r.log.Debug("texture created", "name", name, "width", width, "height", height)

	return TextureAccessor{registry: r, kind: kindTexture, name: name}, nil
}

// uploadImageData writes data to a pooled staging buffer and records a
// buffer-to-image copy on a transfer command list, waiting for completion.
func (r *DeviceResources) uploadImageData(img rhi.Image, data []byte) error {
	staging, err := r.StagingBufferWithSize(uint64(len(data)))
	if err != nil {
		return err
	}
	if err := r.device.WriteDataToBuffer(data, staging); err != nil {
		return err
	}

	cmds, err := r.device.CreateCommandList(0, rhi.QueueTransfer, rhi.CommandListPrimary)
	if err != nil {
		return err
	}
	if err := cmds.CopyBufferToImage(staging, img); err != nil {
		return err
	}

	fence, err := r.device.CreateFence(false)
	if err != nil {
		return err
	}
	if err := r.device.SubmitCommandList(cmds, rhi.QueueTransfer, fence, nil, nil); err != nil {
		return err
	}
	return r.device.WaitForFences([]rhi.Fence{fence})
}

// GetTexture returns an accessor for the named texture, or false if absent.
// Lookups never fail hard; callers routinely probe for optional resources.
func (r *DeviceResources) GetTexture(name string) (TextureAccessor, bool) {
	if _, ok := r.textures[name]; !ok {
		return TextureAccessor{}, false
	}
	return TextureAccessor{registry: r, kind: kindTexture, name: name}, true
}

// DestroyTexture releases the backend image and removes the entry.
// Destroying an absent name is a no-op.
func (r *DeviceResources) DestroyTexture(name string) {
	res, ok := r.textures[name]
	if !ok {
		return
	}
	r.device.DestroyImage(res.Image)
	delete(r.textures, name)
}

// CreateRenderTarget creates a GPU-only attachment-capable image. Render
// targets are not host-readable, and unless sampled is true they may not be
// read by shaders either.
//
// Creating a name that already exists fails with ErrResourceExists.
func (r *DeviceResources) CreateRenderTarget(name string, width, height uint32, format gputypes.TextureFormat, sampled bool) (TextureAccessor, error) {
	if _, ok := r.renderTargets[name]; ok {
		return TextureAccessor{}, fmt.Errorf("%w: render target %q", ErrResourceExists, name)
	}

	usage := gputypes.TextureUsageRenderAttachment
	if sampled {
		usage |= gputypes.TextureUsageTextureBinding
	}

	img, err := r.device.CreateImage(rhi.ImageCreateInfo{
		Name:   name,
		Width:  width,
		Height: height,
		Format: format,
		Usage:  usage,
	})
	if err != nil {
		r.log.Error("could not create render target", "name", name, "error", err)
		return TextureAccessor{}, fmt.Errorf("create render target %q: %w", name, err)
	}

	r.renderTargets[name] = &TextureResource{
		Name:   name,
		Image:  img,
		Width:  width,
		Height: height,
		Format: format,
	}
	r.log.Debug("render target created", "name", name, "width", width, "height", height, "sampled", sampled)

	return TextureAccessor{registry: r, kind: kindRenderTarget, name: name}, nil
}

// GetRenderTarget returns an accessor for the named render target, or false
// if absent.
func (r *DeviceResources) GetRenderTarget(name string) (TextureAccessor, bool) {
	if _, ok := r.renderTargets[name]; !ok {
		return TextureAccessor{}, false
	}
	return TextureAccessor{registry: r, kind: kindRenderTarget, name: name}, true
}

// DestroyRenderTarget releases the backend image and removes the entry.
// Destroying an absent name is a no-op.
//
// The registry does not know which renderpasses reference the target; the
// caller (normally the Rendergraph owner) must destroy dependent passes
// first.
func (r *DeviceResources) DestroyRenderTarget(name string) {
	res, ok := r.renderTargets[name]
	if !ok {
		return
	}
	r.device.DestroyImage(res.Image)
	delete(r.renderTargets, name)
}

// CreateUniformBuffer creates a small per-frame-constant buffer. size is in
// bytes and is rounded up to the device's uniform alignment.
//
// Creating a name that already exists fails with ErrResourceExists.
func (r *DeviceResources) CreateUniformBuffer(name string, size uint64) (BufferAccessor, error) {
	if _, ok := r.uniformBuffers[name]; ok {
		return BufferAccessor{}, fmt.Errorf("%w: uniform buffer %q", ErrResourceExists, name)
	}

	if align := r.device.Limits().MinUniformBufferOffsetAlignment; align > 0 {
		size = (size + align - 1) / align * align
	}

	buf, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  name,
		Size:  size,
		Usage: rhi.BufferUsageUniform,
	})
	if err != nil {
		r.log.Error("could not create uniform buffer", "name", name, "error", err)
		return BufferAccessor{}, fmt.Errorf("create uniform buffer %q: %w", name, err)
	}

	r.uniformBuffers[name] = &BufferResource{Name: name, Buffer: buf, Size: size}
	r.log.Debug("uniform buffer created", "name", name, "size", size)

	return BufferAccessor{registry: r, name: name}, nil
}

// GetUniformBuffer returns an accessor for the named uniform buffer, or
// false if absent.
func (r *DeviceResources) GetUniformBuffer(name string) (BufferAccessor, bool) {
	if _, ok := r.uniformBuffers[name]; !ok {
		return BufferAccessor{}, false
	}
	return BufferAccessor{registry: r, name: name}, true
}

// DestroyUniformBuffer releases the buffer and removes the entry.
// Destroying an absent name is a no-op.
func (r *DeviceResources) DestroyUniformBuffer(name string) {
	res, ok := r.uniformBuffers[name]
	if !ok {
		return
	}
	r.device.DestroyBuffer(res.Buffer)
	delete(r.uniformBuffers, name)
}

// StagingBufferWithSize returns a pooled staging buffer with capacity of at
// least size bytes; the buffer returned may be larger than requested. The
// pool is bucketed by power-of-two size class and buffers stay pooled, so
// repeated requests for the same class share one buffer.
//
// Pooled buffers carry no internal locking: this is the single-threaded
// resource-loading path, and any other use must be synchronized by the
// caller.
func (r *DeviceResources) StagingBufferWithSize(size uint64) (rhi.Buffer, error) {
	class := stagingSizeClass(size)

	if pooled := r.stagingBuffers[class]; len(pooled) > 0 {
		r.log.Debug("staging buffer reused", "class", class)
		return pooled[0], nil
	}

	buf, err := r.device.CreateBuffer(rhi.BufferCreateInfo{
		Name:  fmt.Sprintf("staging-%d", class),
		Size:  class,
		Usage: rhi.BufferUsageStaging,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer (%d bytes): %w", class, err)
	}

	r.stagingBuffers[class] = append(r.stagingBuffers[class], buf)
	r.log.Debug("staging buffer created", "class", class)
	return buf, nil
}

// stagingSizeClass rounds size up to the pool's power-of-two bucket.
func stagingSizeClass(size uint64) uint64 {
	if size <= minStagingBufferSize {
		return minStagingBufferSize
	}
	return 1 << bits.Len64(size-1)
}
