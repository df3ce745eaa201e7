package render

import (
	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// runTransfer wraps one synchronous transfer: it allocates a copy-class
// context, records into it, submits on the direct queue, and blocks until
// the GPU has finished. The context and its fence never outlive the call.
func (dc *DeviceContext) runTransfer(name string, record func(cc *CommandContext) error) error {
	start := hrtime.Now()

	cc, err := dc.AllocateCommandContext(QueueCopy)
	if err != nil {
		return err
	}
	defer dc.FreeCommandContext(cc)

	err = cc.Begin(true)
	if err != nil {
		return err
	}

	err = record(cc)
	if err != nil {
		return err
	}

	err = cc.End()
	if err != nil {
		return err
	}

	err = dc.SubmitAndWait(cc)
	if err != nil {
		return err
	}

	dc.logger.Debug("transfer complete", "op", name, "duration", hrtime.Since(start))
	return nil
}

// stagingBuffer allocates a mapped host-visible buffer pre-filled with data.
// The buffer lives outside the arena; the upload path destroys it as soon
// as the GPU is done with it.
func (dc *DeviceContext) stagingBuffer(data []byte) (*Buffer, error) {
	staging, err := dc.createBufferRaw(len(data), core1_0.BufferUsageTransferSrc,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent, true)
	if err != nil {
		return nil, errors.Wrapf(err, "render: creating staging buffer")
	}

	err = staging.Write(data)
	if err != nil {
		staging.destroy()
		return nil, err
	}
	return staging, nil
}

// UploadBuffer copies data into the buffer through a staging buffer and
// blocks until the copy has landed. On return the destination is visible
// to vertex and index fetch on the direct queue.
func (dc *DeviceContext) UploadBuffer(handle BufferHandle, data []byte) error {
	buffer, err := dc.Buffer(handle)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("render: upload payload is empty")
	}
	if len(data) > buffer.size {
		return errors.Newf("render: upload payload %d bytes exceeds buffer size %d", len(data), buffer.size)
	}

	staging, err := dc.stagingBuffer(data)
	if err != nil {
		return err
	}
	defer staging.destroy()

	return dc.runTransfer("buffer upload", func(cc *CommandContext) error {
		err := dc.device.CmdCopyBuffer(cc.buffer, staging.handle, buffer.handle,
			core1_0.BufferCopy{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      len(data),
			})
		if err != nil {
			return err
		}

		return dc.device.CmdPipelineBarrier(cc.buffer,
			core1_0.PipelineStageTransfer, core1_0.PipelineStageVertexInput, 0,
			nil,
			[]core1_0.BufferMemoryBarrier{
				{
					SrcAccessMask:       core1_0.AccessTransferWrite,
					DstAccessMask:       core1_0.AccessVertexAttributeRead | core1_0.AccessIndexRead,
					SrcQueueFamilyIndex: -1,
					DstQueueFamilyIndex: -1,
					Buffer:              buffer.handle,
					Offset:              0,
					Size:                len(data),
				},
			},
			nil)
	})
}

// uploadBarrier builds the layout transition for one layer range of a
// texture, spanning every mip level of exactly those layers. An
// undefined-source transition discards the covered texels, so the range must
// never reach layers that already hold data. Only the two transitions the
// upload path performs are supported.
func uploadBarrier(texture *Texture, oldLayout, newLayout core1_0.ImageLayout, baseLayer, layerCount int) (core1_0.ImageMemoryBarrier, core1_0.PipelineStageFlags, core1_0.PipelineStageFlags, error) {
	var sourceStage, destStage core1_0.PipelineStageFlags
	var sourceAccess, destAccess core1_0.AccessFlags

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		sourceAccess = 0
		destAccess = core1_0.AccessTransferWrite
		sourceStage = core1_0.PipelineStageTopOfPipe
		destStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		sourceAccess = core1_0.AccessTransferWrite
		destAccess = core1_0.AccessShaderRead
		sourceStage = core1_0.PipelineStageTransfer
		destStage = core1_0.PipelineStageFragmentShader
	} else {
		return core1_0.ImageMemoryBarrier{}, 0, 0, errors.Newf("render: unexpected layout transition %s -> %s", oldLayout, newLayout)
	}

	barrier := core1_0.ImageMemoryBarrier{
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		Image:               texture.image,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     texture.info.MipLevels,
			BaseArrayLayer: baseLayer,
			LayerCount:     layerCount,
		},
		SrcAccessMask: sourceAccess,
		DstAccessMask: destAccess,
	}
	return barrier, sourceStage, destStage, nil
}

// recordImageTransition records a layer-range layout transition into cc.
func (dc *DeviceContext) recordImageTransition(cc *CommandContext, texture *Texture, oldLayout, newLayout core1_0.ImageLayout, baseLayer, layerCount int) error {
	barrier, sourceStage, destStage, err := uploadBarrier(texture, oldLayout, newLayout, baseLayer, layerCount)
	if err != nil {
		return err
	}

	return dc.device.CmdPipelineBarrier(cc.buffer, sourceStage, destStage, 0, nil, nil,
		[]core1_0.ImageMemoryBarrier{barrier})
}

// UploadTexture copies one layer's level-0 pixels into the texture and
// blocks until the copy has landed. Only the destination layer changes
// layout: it enters transfer-dst across every level, so repeated calls fill
// an array or cube face by face without disturbing layers already uploaded.
// Single-level textures come back with the layer ready for shader reads;
// mipmapped ones leave it in transfer-dst for GenerateMipmaps.
func (dc *DeviceContext) UploadTexture(handle TextureHandle, layer int, pixels []byte) error {
	texture, err := dc.Texture(handle)
	if err != nil {
		return err
	}
	if layer < 0 || layer >= texture.info.Layers {
		return errors.Newf("render: layer %d out of range for %d-layer texture", layer, texture.info.Layers)
	}
	expected := texture.info.byteSize()
	if len(pixels) != expected {
		return errors.Newf("render: texture payload is %d bytes, expected %d", len(pixels), expected)
	}

	staging, err := dc.stagingBuffer(pixels)
	if err != nil {
		return err
	}
	defer staging.destroy()

	return dc.runTransfer("texture upload", func(cc *CommandContext) error {
		err := dc.recordImageTransition(cc, texture, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal, layer, 1)
		if err != nil {
			return err
		}

		err = dc.device.CmdCopyBufferToImage(cc.buffer, staging.handle, texture.image, core1_0.ImageLayoutTransferDstOptimal,
			core1_0.BufferImageCopy{
				BufferOffset:      0,
				BufferRowLength:   0,
				BufferImageHeight: 0,

				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: layer,
					LayerCount:     1,
				},
				ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
				ImageExtent: core1_0.Extent3D{
					Width:  texture.info.Width,
					Height: texture.info.Height,
					Depth:  texture.info.Depth,
				},
			})
		if err != nil {
			return err
		}

		if texture.info.MipLevels == 1 {
			return dc.recordImageTransition(cc, texture, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal, layer, 1)
		}
		return nil
	})
}

// CreateVertexBuffer allocates a device-local vertex buffer and fills it
// from data in one synchronous round trip.
func (dc *DeviceContext) CreateVertexBuffer(data []byte) (BufferHandle, error) {
	return dc.createFilledBuffer(data, core1_0.BufferUsageVertexBuffer)
}

// CreateIndexBuffer allocates a device-local index buffer and fills it from
// data in one synchronous round trip.
func (dc *DeviceContext) CreateIndexBuffer(data []byte) (BufferHandle, error) {
	return dc.createFilledBuffer(data, core1_0.BufferUsageIndexBuffer)
}

func (dc *DeviceContext) createFilledBuffer(data []byte, usage core1_0.BufferUsageFlags) (BufferHandle, error) {
	handle, err := dc.CreateBuffer(len(data), core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal, false)
	if err != nil {
		return BufferHandle{}, err
	}

	err = dc.UploadBuffer(handle, data)
	if err != nil {
		dc.DestroyBuffer(handle)
		return BufferHandle{}, err
	}
	return handle, nil
}

// CreateTextureFromPixels builds a sampled 2D texture from RGBA pixels,
// uploads them, optionally generates the full mip chain, and attaches the
// default view.
func (dc *DeviceContext) CreateTextureFromPixels(format core1_0.Format, width, height int, pixels []byte, generateMips bool) (TextureHandle, error) {
	mipLevels := 1
	usage := core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled
	if generateMips {
		mipLevels = MipLevels(width, height)
		usage |= core1_0.ImageUsageTransferSrc
	}

	handle, err := dc.CreateTexture(TextureInfo{
		Format:    format,
		Width:     width,
		Height:    height,
		Depth:     1,
		Layers:    1,
		MipLevels: mipLevels,
		Usage:     usage,
	})
	if err != nil {
		return TextureHandle{}, err
	}

	err = dc.UploadTexture(handle, 0, pixels)
	if err != nil {
		dc.DestroyTexture(handle)
		return TextureHandle{}, err
	}

	if generateMips {
		err = dc.GenerateMipmaps(handle)
		if err != nil {
			dc.DestroyTexture(handle)
			return TextureHandle{}, err
		}
	}

	err = dc.CreateTextureView(handle)
	if err != nil {
		dc.DestroyTexture(handle)
		return TextureHandle{}, err
	}
	return handle, nil
}
