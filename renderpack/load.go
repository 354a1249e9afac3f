package renderpack

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// Well-known pack layout.
const (
	packIndexFile = "renderpack.json"
	materialsDir  = "materials"
	pipelinesDir  = "pipelines"

	materialExt = ".mat"
	pipelineExt = ".pipeline"
)

// Errors returned by the loader.
var (
	// ErrNoIndex is returned when a pack has no renderpack.json.
	ErrNoIndex = errors.New("renderpack: missing " + packIndexFile)

	// ErrInvalidPack is returned when the pack data fails validation.
	ErrInvalidPack = errors.New("renderpack: invalid pack data")
)

// LoadPath loads a renderpack from a directory or a .zip archive.
//
// Like Load, it is NOT safe for concurrent calls.
func LoadPath(name string) (*RenderpackData, error) {
	if strings.HasSuffix(name, ".zip") {
		rc, err := zip.OpenReader(name)
		if err != nil {
			return nil, fmt.Errorf("renderpack: open %s: %w", name, err)
		}
		defer rc.Close()
		return Load(rc)
	}
	return Load(os.DirFS(name))
}

// Load reads a renderpack from fsys. The pack layout is:
//
//	renderpack.json        pack name, dynamic resources, renderpasses
//	materials/*.mat        material definitions
//	pipelines/*.pipeline   pipeline definitions (shader sources referenced
//	                       by relative path and inlined by the loader)
//
// All loading problems are collected and reported together. On any error the
// returned data is nil.
//
// Load is NOT safe for concurrent calls; pack loading is a single-threaded
// path by contract.
func Load(fsys fs.FS) (*RenderpackData, error) {
	raw, err := fs.ReadFile(fsys, packIndexFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoIndex, err)
	}

	data := &RenderpackData{}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("renderpack: parse %s: %w", packIndexFile, err)
	}

	var errs []error

	materials, err := loadMaterials(fsys)
	if err != nil {
		errs = append(errs, err)
	}
	data.Materials = materials

	pipelines, err := loadPipelines(fsys)
	if err != nil {
		errs = append(errs, err)
	}
	data.Pipelines = pipelines

	if err := data.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidPack, err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return data, nil
}

func loadMaterials(fsys fs.FS) ([]MaterialData, error) {
	files, err := listWithExt(fsys, materialsDir, materialExt)
	if err != nil {
		return nil, err
	}

	var errs []error
	materials := make([]MaterialData, 0, len(files))
	for _, file := range files {
		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			errs = append(errs, fmt.Errorf("renderpack: read %s: %w", file, err))
			continue
		}

		var mat MaterialData
		if err := json.Unmarshal(raw, &mat); err != nil {
			errs = append(errs, fmt.Errorf("renderpack: parse %s: %w", file, err))
			continue
		}
		if mat.Name == "" {
			mat.Name = strings.TrimSuffix(path.Base(file), materialExt)
		}
		for i := range mat.Passes {
			mat.Passes[i].Material = mat.Name
		}
		materials = append(materials, mat)
	}

	return materials, errors.Join(errs...)
}

func loadPipelines(fsys fs.FS) ([]PipelineData, error) {
	files, err := listWithExt(fsys, pipelinesDir, pipelineExt)
	if err != nil {
		return nil, err
	}

	var errs []error
	pipelines := make([]PipelineData, 0, len(files))
	for _, file := range files {
		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			errs = append(errs, fmt.Errorf("renderpack: read %s: %w", file, err))
			continue
		}

		var pipeline PipelineData
		if err := json.Unmarshal(raw, &pipeline); err != nil {
			errs = append(errs, fmt.Errorf("renderpack: parse %s: %w", file, err))
			continue
		}
		if pipeline.Name == "" {
			pipeline.Name = strings.TrimSuffix(path.Base(file), pipelineExt)
		}

		// Shader fields name files relative to the pack root; inline them.
		if pipeline.VertexShader != "" {
			src, err := fs.ReadFile(fsys, pipeline.VertexShader)
			if err != nil {
				errs = append(errs, fmt.Errorf("renderpack: pipeline %q vertex shader: %w", pipeline.Name, err))
			} else {
				pipeline.VertexSource = string(src)
			}
		}
		if pipeline.FragmentShader != "" {
			src, err := fs.ReadFile(fsys, pipeline.FragmentShader)
			if err != nil {
				errs = append(errs, fmt.Errorf("renderpack: pipeline %q fragment shader: %w", pipeline.Name, err))
			} else {
				pipeline.FragmentSource = string(src)
			}
		}

		pipelines = append(pipelines, pipeline)
	}

	return pipelines, errors.Join(errs...)
}

// listWithExt returns all files directly under dir with the given extension.
// A missing directory is not an error; packs may omit whole sections.
func listWithExt(fsys fs.FS, dir, ext string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("renderpack: read dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		files = append(files, path.Join(dir, entry.Name()))
	}
	return files, nil
}
