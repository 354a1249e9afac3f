package wgpu

import "errors"

// Backend errors.
var (
	// ErrNilDevice is returned when the backend is created without a HAL device.
	ErrNilDevice = errors.New("wgpu: HAL device is nil")

	// ErrNilQueue is returned when the backend is created without a HAL queue.
	ErrNilQueue = errors.New("wgpu: HAL queue is nil")

	// ErrNoSwapchain is returned when an operation needs a swapchain and none
	// is configured.
	ErrNoSwapchain = errors.New("wgpu: no swapchain configured")

	// ErrNotRecording is returned when pass commands are recorded outside an
	// open renderpass.
	ErrNotRecording = errors.New("wgpu: no renderpass is recording")

	// ErrAlreadyRecording is returned when a renderpass begins while another
	// is still open.
	ErrAlreadyRecording = errors.New("wgpu: a renderpass is already recording")

	// ErrListFinished is returned when recording into a submitted list.
	ErrListFinished = errors.New("wgpu: command list already submitted")

	// ErrUnknownBinding is returned when a resource is bound to a name the
	// shaders never declare.
	ErrUnknownBinding = errors.New("wgpu: unknown binding name")

	// ErrFenceTimeout is returned when a fence wait exceeds its deadline.
	ErrFenceTimeout = errors.New("wgpu: fence wait timed out")

	// ErrShaderCompile is returned when naga rejects a WGSL source.
	ErrShaderCompile = errors.New("wgpu: shader compilation failed")
)
