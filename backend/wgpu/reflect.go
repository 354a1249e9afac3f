package wgpu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/rendergraph/rhi"
)

// bindingDecl matches WGSL resource declarations:
//
//	@group(0) @binding(1) var<uniform> camera : CameraUniforms;
//	@group(1) @binding(0) var gbuffer_color : texture_2d<f32>;
//	@group(1) @binding(2) var bilinear : sampler;
var bindingDecl = regexp.MustCompile(
	`@group\((\d+)\)\s*@binding\((\d+)\)\s*var\s*(?:<([^>]*)>)?\s*(\w+)\s*:\s*([^;]+);`)

// reflectBindings scans WGSL sources for binding declarations. Bindings
// declared in both stages must agree on group, binding and kind.
func reflectBindings(sources ...string) ([]rhi.BindingInfo, error) {
	type slot struct{ group, binding uint32 }
	seen := make(map[string]rhi.BindingInfo)
	used := make(map[slot]string)

	var out []rhi.BindingInfo
	for _, src := range sources {
		for _, m := range bindingDecl.FindAllStringSubmatch(src, -1) {
			group, err := strconv.ParseUint(m[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("bad group index %q: %w", m[1], err)
			}
			binding, err := strconv.ParseUint(m[2], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("bad binding index %q: %w", m[2], err)
			}

			info := rhi.BindingInfo{
				Name:    m[4],
				Group:   uint32(group),
				Binding: uint32(binding),
				Kind:    bindingKind(m[3], m[5]),
			}

			if prev, ok := seen[info.Name]; ok {
				if prev != info {
					return nil, fmt.Errorf("binding %q declared twice with different layouts", info.Name)
				}
				continue
			}
			s := slot{info.Group, info.Binding}
			if other, ok := used[s]; ok {
				return nil, fmt.Errorf("bindings %q and %q share @group(%d) @binding(%d)",
					other, info.Name, info.Group, info.Binding)
			}

			seen[info.Name] = info
			used[s] = info.Name
			out = append(out, info)
		}
	}
	return out, nil
}

// bindingKind classifies a declaration by its address space and type.
func bindingKind(addressSpace, typeExpr string) rhi.BindingKind {
	switch {
	case strings.Contains(addressSpace, "uniform"):
		return rhi.BindingUniformBuffer
	case strings.Contains(addressSpace, "storage"):
		return rhi.BindingStorageBuffer
	}
	typeExpr = strings.TrimSpace(typeExpr)
	switch {
	case strings.HasPrefix(typeExpr, "texture"):
		return rhi.BindingSampledImage
	case strings.HasPrefix(typeExpr, "sampler"):
		return rhi.BindingSampler
	default:
		return rhi.BindingUniformBuffer
	}
}
