package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestUploadBarrierCoversOnlyDestinationLayer(t *testing.T) {
	texture := &Texture{
		info: TextureInfo{Width: 64, Height: 64, Depth: 1, Layers: 6, MipLevels: 7, Cube: true},
	}

	// An undefined-source transition discards whatever it covers, so the
	// barrier for a face upload must reach that face only.
	barrier, _, _, err := uploadBarrier(texture, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal, 3, 1)
	require.NoError(t, err)

	assert.Equal(t, 3, barrier.SubresourceRange.BaseArrayLayer)
	assert.Equal(t, 1, barrier.SubresourceRange.LayerCount)
	assert.Equal(t, 0, barrier.SubresourceRange.BaseMipLevel)
	assert.Equal(t, 7, barrier.SubresourceRange.LevelCount)

	barrier, _, _, err = uploadBarrier(texture, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, barrier.SubresourceRange.BaseArrayLayer)
	assert.Equal(t, 1, barrier.SubresourceRange.LayerCount)
}

func TestUploadBarrierTransitions(t *testing.T) {
	texture := &Texture{
		info: TextureInfo{Width: 16, Height: 16, Depth: 1, Layers: 1, MipLevels: 1},
	}

	barrier, sourceStage, destStage, err := uploadBarrier(texture, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, core1_0.AccessFlags(0), barrier.SrcAccessMask)
	assert.Equal(t, core1_0.AccessTransferWrite, barrier.DstAccessMask)
	assert.Equal(t, core1_0.PipelineStageTopOfPipe, sourceStage)
	assert.Equal(t, core1_0.PipelineStageTransfer, destStage)

	barrier, sourceStage, destStage, err = uploadBarrier(texture, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, core1_0.AccessTransferWrite, barrier.SrcAccessMask)
	assert.Equal(t, core1_0.AccessShaderRead, barrier.DstAccessMask)
	assert.Equal(t, core1_0.PipelineStageTransfer, sourceStage)
	assert.Equal(t, core1_0.PipelineStageFragmentShader, destStage)
}

func TestUploadBarrierRejectsUnknownTransition(t *testing.T) {
	texture := &Texture{
		info: TextureInfo{Width: 16, Height: 16, Depth: 1, Layers: 1, MipLevels: 1},
	}

	_, _, _, err := uploadBarrier(texture, core1_0.ImageLayoutShaderReadOnlyOptimal, core1_0.ImageLayoutTransferSrcOptimal, 0, 1)
	require.Error(t, err)
}
