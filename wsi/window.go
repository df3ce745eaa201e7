// Package wsi binds the renderer to SDL2 windows. It is the only package
// that touches SDL; everything above it works against render.WindowSystem.
package wsi

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

// Window wraps one resizable SDL window configured for Vulkan rendering.
type Window struct {
	window *sdl.Window
}

// NewWindow initializes SDL video if needed and opens a resizable
// Vulkan-capable window. The caller must run on the main OS thread.
func NewWindow(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrapf(err, "wsi: initializing SDL video")
	}

	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, errors.Wrapf(err, "wsi: creating window")
	}

	return &Window{window: window}, nil
}

// ProcAddr returns SDL's vkGetInstanceProcAddr entry point.
func (w *Window) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// InstanceExtensions lists the surface extensions this window needs.
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// CreateSurface creates the presentation surface for this window.
func (w *Window) CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	surface, err := vkng_sdl2.CreateSurface(instance, surfaceExtension, w.window)
	if err != nil {
		return khr_surface.Surface{}, errors.Wrapf(err, "wsi: creating window surface")
	}
	return surface, nil
}

// DrawableExtent reports the drawable size in pixels, which differs from
// the window size on high-DPI displays. Minimized windows report zero.
func (w *Window) DrawableExtent() core1_0.Extent2D {
	if w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return core1_0.Extent2D{}
	}
	width, height := w.window.VulkanGetDrawableSize()
	return core1_0.Extent2D{Width: int(width), Height: int(height)}
}

// Destroy closes the window and shuts SDL down.
func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
