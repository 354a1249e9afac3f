// Package settings loads engine configuration from HCL files. Settings
// cover the window, the renderer's frame pacing, and where renderpacks are
// loaded from; everything has a default so an empty file is valid.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Settings errors.
var (
	// ErrInvalidSetting is returned when a decoded value is out of range.
	ErrInvalidSetting = errors.New("settings: invalid value")
)

// Settings is the engine configuration.
type Settings struct {
	Window   *WindowSettings   `hcl:"window,block"`
	Renderer *RendererSettings `hcl:"renderer,block"`

	// RenderpackDir is where renderpacks are looked up, as a directory or
	// .zip path.
	RenderpackDir string `hcl:"renderpack_dir,optional"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `hcl:"log_level,optional"`
}

// WindowSettings configures the output surface.
type WindowSettings struct {
	Width  uint32 `hcl:"width,optional"`
	Height uint32 `hcl:"height,optional"`
	Title  string `hcl:"title,optional"`
}

// RendererSettings configures the backend, frame pacing, and recording.
type RendererSettings struct {
	// Backend names the GPU backend. Only "wgpu" is implemented.
	Backend string `hcl:"backend,optional"`

	VSync bool `hcl:"vsync,optional"`

	// MaxInFlightFrames is how many frames may be recorded ahead of the GPU.
	MaxInFlightFrames uint32 `hcl:"max_in_flight_frames,optional"`

	// RecordThreads is the number of worker threads recording secondary
	// command lists. Zero means one list per logical CPU.
	RecordThreads uint32 `hcl:"record_threads,optional"`
}

// Default returns the settings used when no file overrides them.
func Default() Settings {
	return Settings{
		Window: &WindowSettings{
			Width:  1280,
			Height: 720,
			Title:  "rendergraph",
		},
		Renderer: &RendererSettings{
			Backend:           "wgpu",
			VSync:             true,
			MaxInFlightFrames: 3,
		},
		RenderpackDir: "renderpacks",
		LogLevel:      "info",
	}
}

// Load reads and decodes an HCL settings file, layering it over Default.
func Load(path string) (Settings, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return Settings{}, fmt.Errorf("settings: parse %s: %s", path, diags.Error())
	}
	return decode(file.Body, path)
}

// Parse decodes HCL settings from memory; filename only labels diagnostics.
func Parse(src []byte, filename string) (Settings, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return Settings{}, fmt.Errorf("settings: parse %s: %s", filename, diags.Error())
	}
	return decode(file.Body, filename)
}

func decode(body hcl.Body, name string) (Settings, error) {
	s := Default()
	diags := gohcl.DecodeBody(body, evalContext(), &s)
	if diags.HasErrors() {
		return Settings{}, fmt.Errorf("settings: decode %s: %s", name, diags.Error())
	}
	applyDefaults(&s)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// evalContext exposes environment variables as env.NAME so settings files
// can reference deployment-specific paths.
func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = cty.StringVal(value)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

// applyDefaults fills fields a partial file left zero.
func applyDefaults(s *Settings) {
	def := Default()
	if s.Window == nil {
		s.Window = def.Window
	} else {
		if s.Window.Width == 0 {
			s.Window.Width = def.Window.Width
		}
		if s.Window.Height == 0 {
			s.Window.Height = def.Window.Height
		}
		if s.Window.Title == "" {
			s.Window.Title = def.Window.Title
		}
	}
	if s.Renderer == nil {
		s.Renderer = def.Renderer
	} else {
		if s.Renderer.Backend == "" {
			s.Renderer.Backend = def.Renderer.Backend
		}
		if s.Renderer.MaxInFlightFrames == 0 {
			s.Renderer.MaxInFlightFrames = def.Renderer.MaxInFlightFrames
		}
	}
	if s.RenderpackDir == "" {
		s.RenderpackDir = def.RenderpackDir
	}
	if s.LogLevel == "" {
		s.LogLevel = def.LogLevel
	}
}

// Validate checks ranges and enumerations.
func (s *Settings) Validate() error {
	var errs []error
	if s.Window.Width == 0 || s.Window.Height == 0 {
		errs = append(errs, fmt.Errorf("%w: window size %dx%d", ErrInvalidSetting, s.Window.Width, s.Window.Height))
	}
	if s.Renderer.Backend != "wgpu" {
		errs = append(errs, fmt.Errorf("%w: backend %q", ErrInvalidSetting, s.Renderer.Backend))
	}
	if s.Renderer.MaxInFlightFrames < 1 || s.Renderer.MaxInFlightFrames > 8 {
		errs = append(errs, fmt.Errorf("%w: max_in_flight_frames %d (want 1..8)", ErrInvalidSetting, s.Renderer.MaxInFlightFrames))
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: log_level %q", ErrInvalidSetting, s.LogLevel))
	}
	return errors.Join(errs...)
}
