// Package rendergraph provides the pass-and-resource middle layer of a
// real-time renderer for Go.
//
// # Overview
//
// rendergraph sits between an engine's scene representation and a GPU
// backend. Renderpasses declare which render targets they read and write;
// the graph derives the execution order from those declarations, places the
// resource barriers around each pass, and records every pass into a command
// list each frame. Resources live in a name-keyed registry that backs pack
// loading and shader binding resolution.
//
// # Quick Start
//
//	import "github.com/gogpu/rendergraph"
//
//	resources := rendergraph.NewDeviceResources(device)
//	graph := rendergraph.New(device, resources)
//
//	// Register the targets passes render into.
//	resources.CreateRenderTarget("GBufferColor", 1920, 1080,
//		gputypes.TextureFormatRGBA8Unorm, true)
//
//	// Add passes; order comes from read/write declarations.
//	graph.AddRenderpass(gbufferInfo, gbufferContents)
//	graph.AddRenderpass(lightingInfo, lightingContents)
//
//	// Each frame, record the whole graph.
//	graph.Record(cmds, frameCtx)
//
// # Architecture
//
// The module is organized into:
//   - Public API: Rendergraph, Renderpass, DeviceResources, FrameContext
//   - renderpack: declarative pack data model and loader
//   - rhi: the backend capability interface and handle types
//   - backend/wgpu: the WebGPU implementation of rhi
//   - settings: engine configuration loading
//
// # Threading
//
// Graph and registry mutation happens on the single-threaded loading path;
// frame recording happens on the render path. Callers serialize the two.
// Multi-threaded recording uses secondary command lists per worker thread.
package rendergraph

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
