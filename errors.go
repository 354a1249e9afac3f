package rendergraph

import "errors"

// Package errors. Validation problems found during pass creation are
// collected with errors.Join and wrapped around these sentinels, so callers
// can match with errors.Is while still seeing every individual problem.
var (
	// ErrResourceExists is returned when creating a texture, render target
	// or uniform buffer under a name that is already registered.
	ErrResourceExists = errors.New("rendergraph: resource already exists")

	// ErrResourceMissing is returned when a pass references an attachment
	// name with no registered render target.
	ErrResourceMissing = errors.New("rendergraph: no such render target")

	// ErrAttachmentSize is returned when a pass's attachments disagree on
	// framebuffer size.
	ErrAttachmentSize = errors.New("rendergraph: attachment size mismatch")

	// ErrBackbufferConflict is returned when a pass writes the backbuffer
	// and other textures at the same time.
	ErrBackbufferConflict = errors.New("rendergraph: backbuffer must be the only output")

	// ErrBindingUnresolved is returned when a global pass's shader declares
	// a binding that no registered resource satisfies.
	ErrBindingUnresolved = errors.New("rendergraph: unresolved shader binding")
)
