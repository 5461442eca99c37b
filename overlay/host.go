// Package overlay - Owns the transparent always-on-top surface the renderer paints on.
package overlay

import (
	"context"

	"github.com/fogleman/gg"
	"github.com/nvr-ai/go-overlay/geometry"
)

// Flags describe how the host window layer treats a surface.
type Flags uint8

const (
	// NotFocusable keeps the surface from taking input focus.
	NotFocusable Flags = 1 << iota
	// NotTouchable lets touches fall through to whatever is underneath.
	NotTouchable
	// Translucent makes untouched pixels transparent.
	Translucent
)

// OverlayFlags is the flag set every overlay surface is created with.
const OverlayFlags = NotFocusable | NotTouchable | Translucent

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// PaintFunc draws one frame. Hosts call it on their paint goroutine only.
type PaintFunc func(dc *gg.Context)

// Surface is a host surface handle.
type Surface interface {
	// ID identifies the surface within its host.
	ID() string
	// Size returns the surface size in pixels.
	Size() geometry.Size
	// RequestRedraw schedules a paint and returns immediately. Requests made
	// before the pending paint runs are coalesced.
	RequestRedraw()
	// Close removes the surface from the window layer.
	Close() error
}

// Host is the system window layer that can create overlay surfaces.
type Host interface {
	// DisplaySize returns the current display size in pixels.
	DisplaySize(ctx context.Context) (geometry.Size, error)
	// CreateSurface creates and attaches a surface of the given size that
	// calls paint on every redraw.
	CreateSurface(size geometry.Size, flags Flags, paint PaintFunc) (Surface, error)
}
