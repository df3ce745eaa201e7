package render

import (
	"unsafe"

	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// WindowSystem is the contract the windowing layer fulfills for the Backend.
// The core never creates windows or pumps events; it only needs a loader
// entry point, the surface extensions the platform requires, a surface, and
// the current drawable size.
type WindowSystem interface {
	// ProcAddr returns the vkGetInstanceProcAddr pointer used to load the
	// Vulkan driver.
	ProcAddr() unsafe.Pointer

	// InstanceExtensions lists the instance extensions the platform surface
	// requires.
	InstanceExtensions() []string

	// CreateSurface creates a presentation surface against the given
	// instance.
	CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error)

	// DrawableExtent reports the current drawable size in pixels.
	DrawableExtent() core1_0.Extent2D
}
