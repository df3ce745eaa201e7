package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// TextureInfo is the immutable descriptor a texture is created from. A
// texture is either a volume (Depth > 1) or an array/cube (Layers > 1),
// never both.
type TextureInfo struct {
	Format core1_0.Format

	Width  int
	Height int
	Depth  int

	Layers    int
	MipLevels int

	Samples core1_0.SampleCountFlags
	Usage   core1_0.ImageUsageFlags

	// Cube marks the image cube-compatible; Layers must be a multiple of 6.
	Cube bool
}

func (info *TextureInfo) validate() error {
	if info.Width <= 0 || info.Height <= 0 {
		return errors.Newf("render: texture extent %dx%d must be positive", info.Width, info.Height)
	}
	if info.Depth <= 0 || info.Layers <= 0 {
		return errors.Newf("render: texture depth %d and layers %d must be positive", info.Depth, info.Layers)
	}
	if info.Depth > 1 && info.Layers > 1 {
		return errors.Newf("render: depth %d and layers %d are mutually exclusive", info.Depth, info.Layers)
	}
	if info.MipLevels <= 0 {
		return errors.Newf("render: texture mip levels %d must be positive", info.MipLevels)
	}
	if info.Cube && info.Layers%6 != 0 {
		return errors.Newf("render: cube texture layer count %d must be a multiple of 6", info.Layers)
	}
	return nil
}

func (info *TextureInfo) imageType() core1_0.ImageType {
	if info.Depth > 1 {
		return core1_0.ImageType3D
	}
	return core1_0.ImageType2D
}

func (info *TextureInfo) viewType() core1_0.ImageViewType {
	switch {
	case info.Depth > 1:
		return core1_0.ImageViewType3D
	case info.Cube && info.Layers == 6:
		return core1_0.ImageViewTypeCube
	case info.Layers > 1:
		return core1_0.ImageViewType2DArray
	default:
		return core1_0.ImageViewType2D
	}
}

// byteSize returns the level-0 payload size for one layer. Only 4-byte
// texel formats flow through the upload path.
func (info *TextureInfo) byteSize() int {
	return info.Width * info.Height * info.Depth * 4
}

// Texture owns one image handle, its dedicated memory block, and an
// optional default view. Textures are exclusively owned by their creating
// DeviceContext and referenced only through handles; image layouts are
// stateful, so textures are never shared.
type Texture struct {
	device core1_0.CoreDeviceDriver

	image  core1_0.Image
	memory core1_0.DeviceMemory
	view   core1_0.ImageView

	info TextureInfo
}

// Image returns the underlying image handle.
func (t *Texture) Image() core1_0.Image {
	return t.image
}

// View returns the default view, which is the zero value until
// CreateTextureView has been called for this texture.
func (t *Texture) View() core1_0.ImageView {
	return t.view
}

// Info returns the descriptor the texture was created with.
func (t *Texture) Info() TextureInfo {
	return t.info
}

// destroy releases the view, the image, then the memory block.
func (t *Texture) destroy() {
	if t.view.Initialized() {
		t.device.DestroyImageView(t.view, nil)
		t.view = core1_0.ImageView{}
	}
	if t.image.Initialized() {
		t.device.DestroyImage(t.image, nil)
		t.image = core1_0.Image{}
	}
	if t.memory.Initialized() {
		t.device.FreeMemory(t.memory, nil)
		t.memory = core1_0.DeviceMemory{}
	}
}

// CreateTexture validates the descriptor against the adapter's advertised
// format limits, then allocates the image and its dedicated device-local
// memory. The image starts in the undefined layout with no view; the upload
// protocol and CreateTextureView take it from there.
func (dc *DeviceContext) CreateTexture(info TextureInfo) (TextureHandle, error) {
	err := info.validate()
	if err != nil {
		return TextureHandle{}, err
	}

	if info.Samples == 0 {
		info.Samples = core1_0.Samples1
	}

	var createFlags core1_0.ImageCreateFlags
	if info.Cube {
		createFlags |= core1_0.ImageCreateCubeCompatible
	}

	formatLimits, _, err := dc.backend.instanceDriver.GetPhysicalDeviceImageFormatProperties(
		dc.physicalDevice, info.Format, info.imageType(), core1_0.ImageTilingOptimal, info.Usage, createFlags)
	if err != nil {
		return TextureHandle{}, errors.Wrapf(err, "render: format %s unusable with usage %s", info.Format, info.Usage)
	}

	if info.Width > formatLimits.MaxExtent.Width ||
		info.Height > formatLimits.MaxExtent.Height ||
		info.Depth > formatLimits.MaxExtent.Depth {
		return TextureHandle{}, errors.Newf("render: extent %dx%dx%d exceeds format maximum %dx%dx%d",
			info.Width, info.Height, info.Depth,
			formatLimits.MaxExtent.Width, formatLimits.MaxExtent.Height, formatLimits.MaxExtent.Depth)
	}
	if info.MipLevels > formatLimits.MaxMipLevels {
		return TextureHandle{}, errors.Newf("render: mip levels %d exceed format maximum %d", info.MipLevels, formatLimits.MaxMipLevels)
	}
	if info.Layers > formatLimits.MaxArrayLayers {
		return TextureHandle{}, errors.Newf("render: layer count %d exceeds format maximum %d", info.Layers, formatLimits.MaxArrayLayers)
	}
	if formatLimits.SampleCounts&info.Samples == 0 {
		return TextureHandle{}, errors.Newf("render: sample count %s unsupported for format %s", info.Samples, info.Format)
	}

	image, _, err := dc.device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: info.imageType(),
		Format:    info.Format,
		Extent: core1_0.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  info.Depth,
		},
		MipLevels:     info.MipLevels,
		ArrayLayers:   info.Layers,
		Samples:       info.Samples,
		Tiling:        core1_0.ImageTilingOptimal,
		Usage:         info.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Flags:         createFlags,
	})
	if err != nil {
		return TextureHandle{}, errors.Wrapf(err, "render: creating image")
	}

	requirements := dc.device.GetImageMemoryRequirements(image)
	memory, err := dc.allocateMemory(requirements, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		dc.device.DestroyImage(image, nil)
		return TextureHandle{}, err
	}

	_, err = dc.device.BindImageMemory(image, memory, 0)
	if err != nil {
		dc.device.FreeMemory(memory, nil)
		dc.device.DestroyImage(image, nil)
		return TextureHandle{}, errors.Wrapf(err, "render: binding image memory")
	}

	texture := &Texture{
		device: dc.device,
		image:  image,
		memory: memory,
		info:   info,
	}

	index, generation := dc.textures.insert(texture)
	return TextureHandle{index: index, generation: generation}, nil
}

// CreateTextureView builds the texture's default view over every mip level
// and layer. View creation is optional and separate from image creation;
// calling it again replaces the previous view.
func (dc *DeviceContext) CreateTextureView(handle TextureHandle) error {
	texture, err := dc.Texture(handle)
	if err != nil {
		return err
	}

	view, _, err := dc.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    texture.image,
		ViewType: texture.info.viewType(),
		Format:   texture.info.Format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     texture.info.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     texture.info.Layers,
		},
	})
	if err != nil {
		return errors.Wrapf(err, "render: creating texture view")
	}

	if texture.view.Initialized() {
		dc.device.DestroyImageView(texture.view, nil)
	}
	texture.view = view
	return nil
}

// Texture resolves a handle to its texture, failing with ErrInvalidHandle
// for zero or stale handles.
func (dc *DeviceContext) Texture(handle TextureHandle) (*Texture, error) {
	texture, ok := dc.textures.get(handle.index, handle.generation)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return texture, nil
}

// DestroyTexture releases the texture behind the handle; the handle and all
// copies of it immediately go stale. The caller must guarantee no in-flight
// GPU work still references the texture.
func (dc *DeviceContext) DestroyTexture(handle TextureHandle) error {
	texture, ok := dc.textures.remove(handle.index, handle.generation)
	if !ok {
		return ErrInvalidHandle
	}

	texture.destroy()
	return nil
}
