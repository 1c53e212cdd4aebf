// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texcache

import (
	"errors"
	"fmt"
)

// Sentinel errors for texcache.
var (
	// ErrResourceAllocation matches every ResourceAllocationError via errors.Is.
	ErrResourceAllocation = errors.New("texcache: resource allocation failed")

	// ErrFormatMismatch matches every FormatMismatchError via errors.Is.
	ErrFormatMismatch = errors.New("texcache: format mismatch")

	// ErrUnsupportedConfiguration matches every UnsupportedConfigurationError via errors.Is.
	ErrUnsupportedConfiguration = errors.New("texcache: unsupported configuration")

	// ErrSurfaceDestroyed is returned when a Surface or one of its Views is
	// used after the Surface was destroyed.
	ErrSurfaceDestroyed = errors.New("texcache: surface destroyed")

	// ErrBufferView is returned by View.GetHandle on a buffer-backed view.
	ErrBufferView = errors.New("texcache: image handle requested from buffer view")

	// ErrStagingSize is returned when a staging buffer does not match the
	// surface size.
	ErrStagingSize = errors.New("texcache: staging buffer size mismatch")

	// ErrManagerClosed is returned by Manager operations after Close.
	ErrManagerClosed = errors.New("texcache: manager closed")
)

// ResourceAllocationError reports that the device could not allocate a
// native resource. It is never retried internally.
type ResourceAllocationError struct {
	Resource string // "texture", "buffer", "view" or "staging"
	Size     uint64
	Err      error
}

func (e *ResourceAllocationError) Error() string {
	return fmt.Sprintf("texcache: allocate %s (%d bytes): %v", e.Resource, e.Size, e.Err)
}

func (e *ResourceAllocationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrResourceAllocation.
func (e *ResourceAllocationError) Is(target error) bool {
	return target == ErrResourceAllocation
}

// FormatMismatchError reports a copy or blit between formats that cannot be
// reinterpreted without conversion.
type FormatMismatchError struct {
	Op  string
	Src PixelFormat
	Dst PixelFormat
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("texcache: %s: incompatible formats %s -> %s", e.Op, e.Src, e.Dst)
}

// Is reports whether target is ErrFormatMismatch.
func (e *FormatMismatchError) Is(target error) bool {
	return target == ErrFormatMismatch
}

// UnsupportedConfigurationError reports an addressing, format or attribute
// mapping that texcache does not recognize.
type UnsupportedConfigurationError struct {
	What   string
	Detail string
}

func (e *UnsupportedConfigurationError) Error() string {
	if e.Detail == "" {
		return "texcache: unsupported " + e.What
	}
	return "texcache: unsupported " + e.What + ": " + e.Detail
}

// Is reports whether target is ErrUnsupportedConfiguration.
func (e *UnsupportedConfigurationError) Is(target error) bool {
	return target == ErrUnsupportedConfiguration
}

func unsupported(what, format string, args ...any) error {
	return &UnsupportedConfigurationError{What: what, Detail: fmt.Sprintf(format, args...)}
}
