package rendergraph

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/rhi"
)

func testFrameContext(device *fakeDevice, resources *DeviceResources) *FrameContext {
	return &FrameContext{
		SwapchainImage:       device.swapchain.image,
		SwapchainFramebuffer: device.swapchain.fb,
		Resources:            resources,
		Device:               device,
	}
}

func TestRenderpassRecordPhaseOrder(t *testing.T) {
	device := newFakeDevice()
	img := &fakeImage{name: "color", width: 64, height: 64}

	pass := &Renderpass{
		Name:              "phases",
		Pass:              &fakeRenderpass{name: "phases"},
		TargetFramebuffer: &fakeFramebuffer{name: "phases-fb"},
		PreBarriers: []rhi.ResourceBarrier{
			{Image: img, OldState: rhi.ResourceStateShaderRead, NewState: rhi.ResourceStateRenderTarget},
		},
		PostBarriers: []rhi.ResourceBarrier{
			{Image: img, OldState: rhi.ResourceStateRenderTarget, NewState: rhi.ResourceStateShaderRead},
		},
		Contents: passContentsFunc(func(cmds rhi.CommandList, ctx *FrameContext) error {
			cmds.Draw(99, 1)
			return nil
		}),
	}

	cl := &fakeCommandList{}
	if err := pass.Record(cl, testFrameContext(device, nil)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	want := []string{
		"barriers[1]",
		"begin phases fb=phases-fb",
		"draw 99 x1",
		"end",
		"barriers[1]",
	}
	if !slices.Equal(cl.ops, want) {
		t.Errorf("ops = %v, want %v", cl.ops, want)
	}
}

func TestRenderpassRecordNilContents(t *testing.T) {
	device := newFakeDevice()
	pass := &Renderpass{
		Name:              "empty",
		Pass:              &fakeRenderpass{name: "empty"},
		TargetFramebuffer: &fakeFramebuffer{name: "empty-fb"},
	}

	cl := &fakeCommandList{}
	if err := pass.Record(cl, testFrameContext(device, nil)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	want := []string{"begin empty fb=empty-fb", "end"}
	if !slices.Equal(cl.ops, want) {
		t.Errorf("ops = %v, want %v", cl.ops, want)
	}
}

func TestRenderpassContentsErrorWrapped(t *testing.T) {
	device := newFakeDevice()
	boom := errors.New("boom")
	pass := &Renderpass{
		Name:              "failing",
		Pass:              &fakeRenderpass{name: "failing"},
		TargetFramebuffer: &fakeFramebuffer{name: "failing-fb"},
		Contents: passContentsFunc(func(cmds rhi.CommandList, ctx *FrameContext) error {
			return boom
		}),
	}

	err := pass.Record(&fakeCommandList{}, testFrameContext(device, nil))
	if !errors.Is(err, boom) {
		t.Fatalf("Record() error = %v, want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), `renderpass "failing"`) {
		t.Errorf("error = %q, missing pass name", err)
	}
}

func TestRenderpassSetupRunsBeforeContents(t *testing.T) {
	device := newFakeDevice()
	setupRan := false
	pass := &Renderpass{
		Name:              "staged",
		Pass:              &fakeRenderpass{name: "staged"},
		TargetFramebuffer: &fakeFramebuffer{name: "staged-fb"},
		Setup: func(ctx *FrameContext) error {
			setupRan = true
			return nil
		},
		Contents: passContentsFunc(func(cmds rhi.CommandList, ctx *FrameContext) error {
			if !setupRan {
				t.Error("contents recorded before setup ran")
			}
			return nil
		}),
	}

	if err := pass.Record(&fakeCommandList{}, testFrameContext(device, nil)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !setupRan {
		t.Fatal("setup hook never ran")
	}
}

func TestRenderpassSetupErrorSkipsPass(t *testing.T) {
	device := newFakeDevice()
	boom := errors.New("boom")
	pass := &Renderpass{
		Name:              "staged",
		Pass:              &fakeRenderpass{name: "staged"},
		TargetFramebuffer: &fakeFramebuffer{name: "staged-fb"},
		Setup: func(ctx *FrameContext) error {
			return boom
		},
		Contents: passContentsFunc(func(cmds rhi.CommandList, ctx *FrameContext) error {
			t.Error("contents recorded after setup failed")
			return nil
		}),
	}

	cl := &fakeCommandList{}
	err := pass.Record(cl, testFrameContext(device, nil))
	if !errors.Is(err, boom) {
		t.Fatalf("Record() error = %v, want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), `setup renderpass "staged"`) {
		t.Errorf("error = %q, missing setup prefix", err)
	}
	for _, op := range cl.ops {
		if strings.HasPrefix(op, "begin") {
			t.Fatalf("renderpass began after setup failure: %v", cl.ops)
		}
	}
}

func TestBackbufferPassBorrowsSwapchainFramebuffer(t *testing.T) {
	device := newFakeDevice()
	pass := &Renderpass{
		Name:               "present",
		Pass:               &fakeRenderpass{name: "present"},
		WritesToBackbuffer: true,
		PreBarriers: []rhi.ResourceBarrier{
			{OldState: rhi.ResourceStatePresent, NewState: rhi.ResourceStateRenderTarget},
		},
		PostBarriers: []rhi.ResourceBarrier{
			{OldState: rhi.ResourceStateRenderTarget, NewState: rhi.ResourceStatePresent},
		},
	}

	ctx := testFrameContext(device, nil)
	if got := pass.Framebuffer(ctx); got != ctx.SwapchainFramebuffer {
		t.Errorf("Framebuffer() = %v, want swapchain framebuffer", got)
	}

	cl := &fakeCommandList{}
	if err := pass.Record(cl, ctx); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if cl.ops[1] != "begin present fb=swapchain-fb" {
		t.Errorf("ops[1] = %q, want swapchain framebuffer begin", cl.ops[1])
	}

	// Barriers with no image target the live swapchain image.
	for i, batch := range cl.barriers {
		if batch[0].Image != ctx.SwapchainImage {
			t.Errorf("barrier batch %d image = %v, want swapchain image", i, batch[0].Image)
		}
	}
}

func TestSceneRenderpassMaskFiltersDraws(t *testing.T) {
	vertex := &fakeBuffer{name: "vb", size: 1024}
	index := &fakeBuffer{name: "ib", size: 1024}

	batch := MeshBatch[StaticMeshRenderCommand]{
		VertexBuffer: vertex,
		IndexBuffer:  index,
		IndexCount:   36,
		Commands: []StaticMeshRenderCommand{
			{IsVisible: true, Type: ObjectOpaque},
			{IsVisible: true, Type: ObjectOpaque},
			{IsVisible: false, Type: ObjectOpaque},
			{IsVisible: true, Type: ObjectTransparent},
		},
	}
	pipeline := &Pipeline{
		Name:     "gbuffer",
		Pipeline: &fakePipeline{name: "gbuffer"},
		Passes:   []MaterialPass{{StaticMeshDraws: []MeshBatch[StaticMeshRenderCommand]{batch}}},
	}

	base := Renderpass{
		Name:              "geometry",
		Pass:              &fakeRenderpass{name: "geometry"},
		TargetFramebuffer: &fakeFramebuffer{name: "geometry-fb"},
	}
	scene := NewSceneRenderpass(base, ObjectOpaque)
	scene.Pipelines = []*Pipeline{pipeline}

	device := newFakeDevice()
	cl := &fakeCommandList{}
	if err := scene.Record(cl, testFrameContext(device, nil)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Two visible opaque commands; the hidden one and the transparent one
	// are filtered out of the instance count.
	if !slices.Contains(cl.ops, "drawIndexed 36 x2") {
		t.Errorf("ops = %v, want instanced draw of 2", cl.ops)
	}
}

func TestSceneRenderpassSkipsFullyMaskedBatches(t *testing.T) {
	batch := MeshBatch[StaticMeshRenderCommand]{
		VertexBuffer: &fakeBuffer{name: "vb"},
		IndexBuffer:  &fakeBuffer{name: "ib"},
		IndexCount:   6,
		Commands: []StaticMeshRenderCommand{
			{IsVisible: true, Type: ObjectTransparent},
		},
	}
	pipeline := &Pipeline{
		Name:     "p",
		Pipeline: &fakePipeline{name: "p"},
		Passes:   []MaterialPass{{StaticMeshDraws: []MeshBatch[StaticMeshRenderCommand]{batch}}},
	}

	scene := NewSceneRenderpass(Renderpass{
		Name:              "opaque-only",
		Pass:              &fakeRenderpass{name: "opaque-only"},
		TargetFramebuffer: &fakeFramebuffer{name: "fb"},
	}, ObjectOpaque)
	scene.Pipelines = []*Pipeline{pipeline}

	device := newFakeDevice()
	cl := &fakeCommandList{}
	if err := scene.Record(cl, testFrameContext(device, nil)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	for _, op := range cl.ops {
		if strings.HasPrefix(op, "vertex") || strings.HasPrefix(op, "drawIndexed") {
			t.Errorf("masked-out batch still recorded %q", op)
		}
	}
}

func TestNewGlobalRenderpassResolvesBindings(t *testing.T) {
	device := newFakeDevice()
	device.binder = newFakeBinder(
		rhi.BindingInfo{Name: "SceneHDR", Group: 0, Binding: 0, Kind: rhi.BindingSampledImage},
		rhi.BindingInfo{Name: "CameraUBO", Group: 0, Binding: 1, Kind: rhi.BindingUniformBuffer},
		rhi.BindingInfo{Name: "linearSampler", Group: 0, Binding: 2, Kind: rhi.BindingSampler},
	)
	resources := NewDeviceResources(device)
	if _, err := resources.CreateRenderTarget("SceneHDR", 1280, 720, gputypes.TextureFormatRGBA8Unorm, true); err != nil {
		t.Fatalf("CreateRenderTarget() error = %v", err)
	}
	if _, err := resources.CreateUniformBuffer("CameraUBO", 128); err != nil {
		t.Fatalf("CreateUniformBuffer() error = %v", err)
	}

	base := Renderpass{Name: "tonemap", Pass: &fakeRenderpass{name: "tonemap"}, WritesToBackbuffer: true}
	pass, err := NewGlobalRenderpass(base, device, resources, rhi.GraphicsPipelineState{Name: "tonemap"})
	if err != nil {
		t.Fatalf("NewGlobalRenderpass() error = %v", err)
	}

	if device.binder.images["SceneHDR"] == nil {
		t.Error("SceneHDR image binding unresolved")
	}
	if device.binder.buffers["CameraUBO"] == nil {
		t.Error("CameraUBO buffer binding unresolved")
	}
	if device.binder.samplers["linearSampler"] == nil {
		t.Error("sampler binding unresolved")
	}

	cl := &fakeCommandList{}
	if err := pass.RecordContents(cl, testFrameContext(device, resources)); err != nil {
		t.Fatalf("RecordContents() error = %v", err)
	}
	want := []string{"pipeline tonemap", "resources", "draw 3 x1"}
	if !slices.Equal(cl.ops, want) {
		t.Errorf("ops = %v, want %v", cl.ops, want)
	}
}

func TestNewGlobalRenderpassUnresolvedBinding(t *testing.T) {
	device := newFakeDevice()
	device.binder = newFakeBinder(
		rhi.BindingInfo{Name: "MissingTexture", Kind: rhi.BindingSampledImage},
	)
	resources := NewDeviceResources(device)

	base := Renderpass{Name: "broken", Pass: &fakeRenderpass{name: "broken"}}
	_, err := NewGlobalRenderpass(base, device, resources, rhi.GraphicsPipelineState{Name: "broken"})
	if !errors.Is(err, ErrBindingUnresolved) {
		t.Fatalf("NewGlobalRenderpass() error = %v, want ErrBindingUnresolved", err)
	}
	if !strings.Contains(err.Error(), "MissingTexture") {
		t.Errorf("error = %q, missing binding name", err)
	}
}

func TestGlobalRenderpassPrefersRenderTargets(t *testing.T) {
	device := newFakeDevice()
	device.binder = newFakeBinder(
		rhi.BindingInfo{Name: "shared", Kind: rhi.BindingSampledImage},
	)
	resources := NewDeviceResources(device)

	// Same name in both namespaces; the render target wins.
	if _, err := resources.CreateTexture("shared", 8, 8, gputypes.TextureFormatRGBA8Unorm, nil); err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	if _, err := resources.CreateRenderTarget("shared", 256, 256, gputypes.TextureFormatRGBA8Unorm, true); err != nil {
		t.Fatalf("CreateRenderTarget() error = %v", err)
	}

	base := Renderpass{Name: "g", Pass: &fakeRenderpass{name: "g"}}
	if _, err := NewGlobalRenderpass(base, device, resources, rhi.GraphicsPipelineState{Name: "g"}); err != nil {
		t.Fatalf("NewGlobalRenderpass() error = %v", err)
	}

	bound := device.binder.images["shared"]
	if bound == nil || bound.Size().Width != 256 {
		t.Errorf("bound image = %v, want the 256x256 render target", bound)
	}
}
