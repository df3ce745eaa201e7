package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestTextureInfoValidate(t *testing.T) {
	base := TextureInfo{
		Format:    core1_0.FormatR8G8B8A8SRGB,
		Width:     64,
		Height:    64,
		Depth:     1,
		Layers:    1,
		MipLevels: 1,
	}
	require.NoError(t, base.validate())

	tests := []struct {
		name   string
		mutate func(*TextureInfo)
	}{
		{"zero width", func(info *TextureInfo) { info.Width = 0 }},
		{"negative height", func(info *TextureInfo) { info.Height = -1 }},
		{"zero depth", func(info *TextureInfo) { info.Depth = 0 }},
		{"zero layers", func(info *TextureInfo) { info.Layers = 0 }},
		{"zero mips", func(info *TextureInfo) { info.MipLevels = 0 }},
		{"volume array", func(info *TextureInfo) { info.Depth = 4; info.Layers = 4 }},
		{"cube with five layers", func(info *TextureInfo) { info.Cube = true; info.Layers = 5 }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			info := base
			test.mutate(&info)
			assert.Error(t, info.validate())
		})
	}
}

func TestTextureInfoValidateAcceptsVolumesAndArrays(t *testing.T) {
	volume := TextureInfo{Format: core1_0.FormatR8G8B8A8SRGB, Width: 32, Height: 32, Depth: 16, Layers: 1, MipLevels: 1}
	assert.NoError(t, volume.validate())

	array := TextureInfo{Format: core1_0.FormatR8G8B8A8SRGB, Width: 32, Height: 32, Depth: 1, Layers: 8, MipLevels: 1}
	assert.NoError(t, array.validate())

	cube := TextureInfo{Format: core1_0.FormatR8G8B8A8SRGB, Width: 32, Height: 32, Depth: 1, Layers: 6, MipLevels: 1, Cube: true}
	assert.NoError(t, cube.validate())
}

func TestTextureInfoImageType(t *testing.T) {
	flat := TextureInfo{Depth: 1}
	assert.Equal(t, core1_0.ImageType2D, flat.imageType())

	volume := TextureInfo{Depth: 8}
	assert.Equal(t, core1_0.ImageType3D, volume.imageType())
}

func TestTextureInfoViewType(t *testing.T) {
	tests := []struct {
		name string
		info TextureInfo
		want core1_0.ImageViewType
	}{
		{"2d", TextureInfo{Depth: 1, Layers: 1}, core1_0.ImageViewType2D},
		{"3d", TextureInfo{Depth: 8, Layers: 1}, core1_0.ImageViewType3D},
		{"array", TextureInfo{Depth: 1, Layers: 4}, core1_0.ImageViewType2DArray},
		{"cube", TextureInfo{Depth: 1, Layers: 6, Cube: true}, core1_0.ImageViewTypeCube},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, test.info.viewType())
		})
	}
}

func TestTextureInfoByteSize(t *testing.T) {
	flat := TextureInfo{Width: 64, Height: 32, Depth: 1}
	assert.Equal(t, 64*32*4, flat.byteSize())

	volume := TextureInfo{Width: 16, Height: 16, Depth: 16}
	assert.Equal(t, 16*16*16*4, volume.byteSize())
}

func TestCreateTextureRejectsInvalidInfo(t *testing.T) {
	dc := &DeviceContext{}

	_, err := dc.CreateTexture(TextureInfo{Format: core1_0.FormatR8G8B8A8SRGB, Width: 0, Height: 64, Depth: 1, Layers: 1, MipLevels: 1})
	require.Error(t, err)

	_, err = dc.CreateTexture(TextureInfo{Format: core1_0.FormatR8G8B8A8SRGB, Width: 64, Height: 64, Depth: 4, Layers: 4, MipLevels: 1})
	require.Error(t, err)
}

func TestTextureHandleLookupFailures(t *testing.T) {
	dc := &DeviceContext{}

	_, err := dc.Texture(TextureHandle{})
	require.ErrorIs(t, err, ErrInvalidHandle)

	err = dc.DestroyTexture(TextureHandle{index: 2, generation: 9})
	require.ErrorIs(t, err, ErrInvalidHandle)

	err = dc.CreateTextureView(TextureHandle{})
	require.ErrorIs(t, err, ErrInvalidHandle)
}

func TestDestroyedTextureHandleGoesStale(t *testing.T) {
	dc := &DeviceContext{}

	index, generation := dc.textures.insert(&Texture{info: TextureInfo{Width: 4, Height: 4, Depth: 1, Layers: 1, MipLevels: 1}})
	handle := TextureHandle{index: index, generation: generation}

	_, err := dc.Texture(handle)
	require.NoError(t, err)

	require.NoError(t, dc.DestroyTexture(handle))

	_, err = dc.Texture(handle)
	require.ErrorIs(t, err, ErrInvalidHandle)
	require.ErrorIs(t, dc.DestroyTexture(handle), ErrInvalidHandle)
}
