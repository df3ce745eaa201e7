package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// Backbuffer is a non-owning view of one swapchain image. The image belongs
// to the swapchain; only the view is created (and destroyed) by the
// DeviceContext. The whole backbuffer list is rebuilt on every resize.
type Backbuffer struct {
	Image  core1_0.Image
	View   core1_0.ImageView
	Format core1_0.Format
}

// Backbuffers returns the current backbuffer list. Its length always equals
// the swapchain's negotiated image count. The slice is invalidated by
// ResizeSwapResources.
func (dc *DeviceContext) Backbuffers() []Backbuffer {
	return dc.backbuffers
}

// SwapExtent returns the extent the swapchain was last built with.
func (dc *DeviceContext) SwapExtent() core1_0.Extent2D {
	return dc.swapchainInfo.ImageExtent
}

// SurfaceFormat returns the negotiated backbuffer format.
func (dc *DeviceContext) SurfaceFormat() core1_0.Format {
	return dc.swapchainInfo.ImageFormat
}

func (dc *DeviceContext) createSwapchain(extent core1_0.Extent2D, oldSwapchain khr_swapchain.Swapchain) error {
	surfaceExt := dc.backend.surfaceExtension
	surface := dc.backend.surface

	capabilities, _, err := surfaceExt.GetPhysicalDeviceSurfaceCapabilities(surface, dc.physicalDevice)
	if err != nil {
		return errors.Wrapf(err, "render: querying surface capabilities")
	}

	formats, _, err := surfaceExt.GetPhysicalDeviceSurfaceFormats(surface, dc.physicalDevice)
	if err != nil {
		return errors.Wrapf(err, "render: querying surface formats")
	}

	presentModes, _, err := surfaceExt.GetPhysicalDeviceSurfacePresentModes(surface, dc.physicalDevice)
	if err != nil {
		return errors.Wrapf(err, "render: querying present modes")
	}
	dc.logPresentModes(presentModes)

	surfaceFormat := chooseSurfaceFormat(formats)

	dc.swapchainInfo = khr_swapchain.SwapchainCreateInfo{
		Surface: surface,

		MinImageCount:    chooseImageCount(capabilities),
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      chooseSwapExtent(capabilities, extent),
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,
		ImageSharingMode: core1_0.SharingModeExclusive,

		PreTransform:   choosePreTransform(capabilities),
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    khr_surface.PresentModeFIFO,
		Clipped:        true,

		OldSwapchain: oldSwapchain,
	}

	dc.swapchain, _, err = dc.swapchainExtension.CreateSwapchain(nil, dc.swapchainInfo)
	if err != nil {
		return errors.Wrapf(err, "render: creating swapchain")
	}

	return nil
}

func (dc *DeviceContext) createBackbuffers() error {
	images, _, err := dc.swapchainExtension.GetSwapchainImages(dc.swapchain)
	if err != nil {
		return errors.Wrapf(err, "render: fetching swapchain images")
	}

	backbuffers := make([]Backbuffer, 0, len(images))
	for _, image := range images {
		view, _, err := dc.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   dc.swapchainInfo.ImageFormat,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			return errors.Wrapf(err, "render: creating backbuffer view")
		}

		backbuffers = append(backbuffers, Backbuffer{
			Image:  image,
			View:   view,
			Format: dc.swapchainInfo.ImageFormat,
		})
	}
	dc.backbuffers = backbuffers

	return nil
}

func (dc *DeviceContext) destroyBackbuffers() {
	for _, backbuffer := range dc.backbuffers {
		if backbuffer.View.Initialized() {
			dc.device.DestroyImageView(backbuffer.View, nil)
		}
	}
	dc.backbuffers = nil
}

// ResizeSwapResources rebuilds the swapchain and its backbuffers for the
// given drawable extent, chaining the old swapchain as the replacement's
// predecessor. The device is drained first, so no frame may be in flight.
// Safe to call redundantly with an unchanged extent; zero extents (minimized
// windows) are a no-op.
func (dc *DeviceContext) ResizeSwapResources(extent core1_0.Extent2D) error {
	if dc.frame != frameIdle {
		panic("render: ResizeSwapResources while a frame is in flight")
	}
	if extent.Width == 0 || extent.Height == 0 {
		return nil
	}

	_, err := dc.device.DeviceWaitIdle()
	if err != nil {
		return errors.Wrapf(err, "render: draining device before swapchain rebuild")
	}

	dc.destroyBackbuffers()

	oldSwapchain := dc.swapchain
	err = dc.createSwapchain(extent, oldSwapchain)
	if err != nil {
		return err
	}

	if oldSwapchain.Initialized() {
		dc.swapchainExtension.DestroySwapchain(oldSwapchain, nil)
	}

	return dc.createBackbuffers()
}

func (dc *DeviceContext) logPresentModes(presentModes []khr_surface.PresentMode) {
	hasImmediate := false
	hasMailbox := false
	for _, mode := range presentModes {
		switch mode {
		case khr_surface.PresentModeImmediate:
			hasImmediate = true
		case khr_surface.PresentModeMailbox:
			hasMailbox = true
		}
	}

	// Informational only: the swapchain always runs FIFO.
	dc.logger.Info("surface present modes",
		"immediate", hasImmediate,
		"mailbox", hasMailbox,
		"advertised", len(presentModes))
}

// chooseSurfaceFormat prefers an 8-bit SRGB format and otherwise falls back
// to the first format the surface advertises.
func chooseSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.ColorSpace != khr_surface.ColorSpaceSRGBNonlinear {
			continue
		}
		if format.Format == core1_0.FormatB8G8R8A8SRGB || format.Format == core1_0.FormatR8G8B8A8SRGB {
			return format
		}
	}

	return availableFormats[0]
}

// chooseImageCount requests one image more than the advertised minimum so
// acquisition never stalls on the presentation engine, clamped to the
// advertised maximum (zero means unbounded).
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// chooseSwapExtent uses the surface's current extent when defined; otherwise
// the requested drawable extent clamped to the advertised range.
func chooseSwapExtent(capabilities *khr_surface.SurfaceCapabilities, requested core1_0.Extent2D) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	extent := requested
	if extent.Width < capabilities.MinImageExtent.Width {
		extent.Width = capabilities.MinImageExtent.Width
	}
	if extent.Width > capabilities.MaxImageExtent.Width {
		extent.Width = capabilities.MaxImageExtent.Width
	}
	if extent.Height < capabilities.MinImageExtent.Height {
		extent.Height = capabilities.MinImageExtent.Height
	}
	if extent.Height > capabilities.MaxImageExtent.Height {
		extent.Height = capabilities.MaxImageExtent.Height
	}
	return extent
}

func choosePreTransform(capabilities *khr_surface.SurfaceCapabilities) khr_surface.SurfaceTransformFlags {
	if capabilities.SupportedTransforms&khr_surface.TransformIdentity != 0 {
		return khr_surface.TransformIdentity
	}
	return capabilities.CurrentTransform
}
