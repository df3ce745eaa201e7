package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// MipLevels returns the full chain length for a base extent: each level
// halves both axes, rounding down, until both reach 1.
func MipLevels(width, height int) int {
	levels := 1
	for width > 1 || height > 1 {
		if width > 1 {
			width /= 2
		}
		if height > 1 {
			height /= 2
		}
		levels++
	}
	return levels
}

// mipExtent returns the extent of one level of the chain. Odd extents
// round down and both axes clamp at 1, so non-power-of-two bases converge
// the same way power-of-two ones do.
func mipExtent(width, height, level int) (int, int) {
	for i := 0; i < level; i++ {
		if width > 1 {
			width /= 2
		}
		if height > 1 {
			height /= 2
		}
	}
	return width, height
}

// GenerateMipmaps fills levels 1..MipLevels-1 of the texture by blitting
// each level down from the one above with linear filtering. Every layer
// must already be in the transfer-dst layout across every level, which
// means every layer of an array or cube has been through UploadTexture; on
// return every level of every layer is shader-read-only.
func (dc *DeviceContext) GenerateMipmaps(handle TextureHandle) error {
	texture, err := dc.Texture(handle)
	if err != nil {
		return err
	}
	info := texture.info
	if info.MipLevels < 2 {
		return errors.New("render: texture has no mip chain to generate")
	}
	if info.Depth > 1 {
		return errors.New("render: mip generation only supports 2D textures")
	}

	properties := dc.backend.instanceDriver.GetPhysicalDeviceFormatProperties(dc.physicalDevice, info.Format)
	if properties.OptimalTilingFeatures&core1_0.FormatFeatureSampledImageFilterLinear == 0 {
		return errors.Newf("render: format %s does not support linear blitting", info.Format)
	}

	return dc.runTransfer("mip generation", func(cc *CommandContext) error {
		barrier := core1_0.ImageMemoryBarrier{
			Image:               texture.image,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseArrayLayer: 0,
				LayerCount:     info.Layers,
				LevelCount:     1,
			},
		}

		mipWidth := info.Width
		mipHeight := info.Height
		for i := 1; i < info.MipLevels; i++ {
			barrier.SubresourceRange.BaseMipLevel = i - 1
			barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
			barrier.NewLayout = core1_0.ImageLayoutTransferSrcOptimal
			barrier.SrcAccessMask = core1_0.AccessTransferWrite
			barrier.DstAccessMask = core1_0.AccessTransferRead

			err := dc.device.CmdPipelineBarrier(cc.buffer, core1_0.PipelineStageTransfer, core1_0.PipelineStageTransfer, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
			if err != nil {
				return err
			}

			nextMipWidth, nextMipHeight := mipExtent(mipWidth, mipHeight, 1)

			err = dc.device.CmdBlitImage(cc.buffer, texture.image, core1_0.ImageLayoutTransferSrcOptimal, texture.image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.ImageBlit{
				{
					SrcSubresource: core1_0.ImageSubresourceLayers{
						AspectMask:     core1_0.ImageAspectColor,
						MipLevel:       i - 1,
						BaseArrayLayer: 0,
						LayerCount:     info.Layers,
					},
					SrcOffsets: [2]core1_0.Offset3D{
						{X: 0, Y: 0, Z: 0},
						{X: mipWidth, Y: mipHeight, Z: 1},
					},

					DstSubresource: core1_0.ImageSubresourceLayers{
						AspectMask:     core1_0.ImageAspectColor,
						MipLevel:       i,
						BaseArrayLayer: 0,
						LayerCount:     info.Layers,
					},
					DstOffsets: [2]core1_0.Offset3D{
						{X: 0, Y: 0, Z: 0},
						{X: nextMipWidth, Y: nextMipHeight, Z: 1},
					},
				},
			}, core1_0.FilterLinear)
			if err != nil {
				return err
			}

			barrier.OldLayout = core1_0.ImageLayoutTransferSrcOptimal
			barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
			barrier.SrcAccessMask = core1_0.AccessTransferRead
			barrier.DstAccessMask = core1_0.AccessShaderRead

			err = dc.device.CmdPipelineBarrier(cc.buffer, core1_0.PipelineStageTransfer, core1_0.PipelineStageFragmentShader, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
			if err != nil {
				return err
			}

			mipWidth = nextMipWidth
			mipHeight = nextMipHeight
		}

		barrier.SubresourceRange.BaseMipLevel = info.MipLevels - 1
		barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
		barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
		barrier.SrcAccessMask = core1_0.AccessTransferWrite
		barrier.DstAccessMask = core1_0.AccessShaderRead

		return dc.device.CmdPipelineBarrier(cc.buffer, core1_0.PipelineStageTransfer, core1_0.PipelineStageFragmentShader, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
	})
}
