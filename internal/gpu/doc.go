// Package gpu owns the process-wide GPU device used to accelerate resizing
// and global color grading.
//
// A Context initializes its device lazily, exactly once, on first use. The
// initialization outcome is permanent: if opening the device fails or panics
// the context stays Failed and every operation returns ErrUnavailable, which
// callers treat as "use the CPU path". Before any work is submitted the
// context checks both the source and the target size against safe limits
// (at most 8192 px per side, 150 million pixels, and the device's storage
// binding size), and submissions are serialized so at most one GPU job is in
// flight.
//
// The production device is a set of compute pipelines on the gogpu/wgpu HAL
// (Vulkan). Build with -tags nogpu to compile without it.
package gpu
