package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

func TestChooseSurfaceFormatPrefersSRGB(t *testing.T) {
	format := chooseSurfaceFormat([]khr_surface.SurfaceFormat{
		{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	})
	require.Equal(t, core1_0.FormatB8G8R8A8SRGB, format.Format)

	format = chooseSurfaceFormat([]khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	})
	require.Equal(t, core1_0.FormatR8G8B8A8SRGB, format.Format)
}

func TestChooseSurfaceFormatFallsBackToFirst(t *testing.T) {
	format := chooseSurfaceFormat([]khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR5G6B5UnsignedNormalizedPacked, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	})
	require.Equal(t, core1_0.FormatR5G6B5UnsignedNormalizedPacked, format.Format)
}

func TestChooseImageCount(t *testing.T) {
	// One above the minimum.
	count := chooseImageCount(&khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8})
	assert.Equal(t, 3, count)

	// Clamped by the maximum.
	count = chooseImageCount(&khr_surface.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 3})
	assert.Equal(t, 3, count)

	// Zero maximum means unbounded.
	count = chooseImageCount(&khr_surface.SurfaceCapabilities{MinImageCount: 4, MaxImageCount: 0})
	assert.Equal(t, 5, count)
}

func TestChooseSwapExtentUsesCurrentWhenDefined(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent: core1_0.Extent2D{Width: 800, Height: 600},
	}

	extent := chooseSwapExtent(capabilities, core1_0.Extent2D{Width: 1920, Height: 1080})
	assert.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, extent)
}

func TestChooseSwapExtentClampsRequested(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: core1_0.Extent2D{Width: 1024, Height: 1024},
	}

	extent := chooseSwapExtent(capabilities, core1_0.Extent2D{Width: 4096, Height: 32})
	assert.Equal(t, core1_0.Extent2D{Width: 1024, Height: 64}, extent)

	extent = chooseSwapExtent(capabilities, core1_0.Extent2D{Width: 640, Height: 480})
	assert.Equal(t, core1_0.Extent2D{Width: 640, Height: 480}, extent)
}

func TestChoosePreTransform(t *testing.T) {
	transform := choosePreTransform(&khr_surface.SurfaceCapabilities{
		SupportedTransforms: khr_surface.TransformIdentity | khr_surface.TransformRotate90,
		CurrentTransform:    khr_surface.TransformRotate90,
	})
	assert.Equal(t, khr_surface.TransformIdentity, transform)

	transform = choosePreTransform(&khr_surface.SurfaceCapabilities{
		SupportedTransforms: khr_surface.TransformRotate180,
		CurrentTransform:    khr_surface.TransformRotate180,
	})
	assert.Equal(t, khr_surface.TransformRotate180, transform)
}

func TestClassifySwapResult(t *testing.T) {
	assert.Equal(t, swapOK, classifySwapResult(core1_0.VKSuccess))
	assert.Equal(t, swapResize, classifySwapResult(khr_swapchain.VKErrorOutOfDate))
	assert.Equal(t, swapResize, classifySwapResult(khr_swapchain.VKSuboptimal))
	assert.Equal(t, swapFatal, classifySwapResult(core1_0.VKErrorDeviceLost))
	assert.Equal(t, swapFatal, classifySwapResult(core1_0.VKErrorOutOfDeviceMemory))
}
