package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// frameState tracks the single-frame acquire/present cycle. Exactly one
// frame is ever in flight: NewFrame is only legal from frameIdle and Present
// only from frameAcquired.
type frameState int

const (
	frameIdle frameState = iota
	frameAcquiring
	frameAcquired
	framePresenting
)

// swapOutcome classifies a swapchain operation result into the three-way
// contract shared by acquisition and presentation.
type swapOutcome int

const (
	// swapOK: proceed.
	swapOK swapOutcome = iota
	// swapResize: soft failure, the caller must rebuild the swap resources.
	swapResize
	// swapFatal: the device context is assumed corrupted; no recovery.
	swapFatal
)

func classifySwapResult(res common.VkResult) swapOutcome {
	switch res {
	case core1_0.VKSuccess:
		return swapOK
	case khr_swapchain.VKErrorOutOfDate, khr_swapchain.VKSuboptimal:
		return swapResize
	default:
		return swapFatal
	}
}

// NewFrame acquires the next backbuffer, blocking until the presentation
// engine releases it. It returns false when the swapchain is out of date or
// suboptimal; the caller must then call ResizeSwapResources and retry rather
// than treat the frame as lost. Any other acquisition failure terminates the
// process.
func (dc *DeviceContext) NewFrame() bool {
	if dc.frame != frameIdle {
		panic("render: NewFrame called while a frame is already in flight")
	}
	dc.frame = frameAcquiring

	_, err := dc.device.ResetFences(dc.acquireFence)
	if err != nil {
		log.Fatalf("render: resetting acquire fence: %+v", err)
	}

	imageIndex, res, err := dc.swapchainExtension.AcquireNextImage(dc.swapchain, common.NoTimeout, nil, &dc.acquireFence)
	switch classifySwapResult(res) {
	case swapResize:
		// The fence was reset before the acquire and never signaled, so no
		// stale signal is left behind for the next attempt.
		dc.frame = frameIdle
		return false
	case swapFatal:
		log.Fatalf("render: acquiring swapchain image: %s: %+v", res, err)
	}

	_, err = dc.device.WaitForFences(true, common.NoTimeout, dc.acquireFence)
	if err != nil {
		log.Fatalf("render: waiting for acquire fence: %+v", err)
	}

	dc.backbufferIndex = imageIndex
	dc.frame = frameAcquired
	return true
}

// CurrentBackbuffer returns the index of the backbuffer acquired by the most
// recent successful NewFrame.
func (dc *DeviceContext) CurrentBackbuffer() int {
	return dc.backbufferIndex
}

// RecordBackbufferClear records a clear of the acquired backbuffer into cc
// and leaves the image in the present layout. The backbuffer content is
// undefined after acquisition, so this is the minimal work that makes the
// image presentable. cc must be a recording direct-queue context and the
// recorded commands must be submitted before Present.
func (dc *DeviceContext) RecordBackbufferClear(cc *CommandContext, color core1_0.ClearValueFloat) error {
	if dc.frame != frameAcquired {
		return errors.New("render: RecordBackbufferClear called without an acquired frame")
	}
	if !cc.recording {
		return errors.New("render: RecordBackbufferClear called on a command context that is not recording")
	}
	if cc.class != QueueDirect {
		return errors.Newf("render: RecordBackbufferClear requires a %s command context, got %s", QueueDirect, cc.class)
	}

	image := dc.backbuffers[dc.backbufferIndex].Image
	fullRange := core1_0.ImageSubresourceRange{
		AspectMask:     core1_0.ImageAspectColor,
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}

	err := dc.device.CmdPipelineBarrier(cc.buffer,
		core1_0.PipelineStageTopOfPipe, core1_0.PipelineStageTransfer, 0,
		nil, nil,
		[]core1_0.ImageMemoryBarrier{
			{
				OldLayout:           core1_0.ImageLayoutUndefined,
				NewLayout:           core1_0.ImageLayoutTransferDstOptimal,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               image,
				SubresourceRange:    fullRange,
				SrcAccessMask:       0,
				DstAccessMask:       core1_0.AccessTransferWrite,
			},
		})
	if err != nil {
		return errors.Wrapf(err, "render: transitioning backbuffer for clear")
	}

	err = dc.device.CmdClearColorImage(cc.buffer, image, core1_0.ImageLayoutTransferDstOptimal, &color, fullRange)
	if err != nil {
		return errors.Wrapf(err, "render: clearing backbuffer")
	}

	err = dc.device.CmdPipelineBarrier(cc.buffer,
		core1_0.PipelineStageTransfer, core1_0.PipelineStageBottomOfPipe, 0,
		nil, nil,
		[]core1_0.ImageMemoryBarrier{
			{
				OldLayout:           core1_0.ImageLayoutTransferDstOptimal,
				NewLayout:           khr_swapchain.ImageLayoutPresentSrc,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               image,
				SubresourceRange:    fullRange,
				SrcAccessMask:       core1_0.AccessTransferWrite,
				DstAccessMask:       0,
			},
		})
	if err != nil {
		return errors.Wrapf(err, "render: transitioning backbuffer for present")
	}
	return nil
}

// Present queues the acquired backbuffer for presentation on the direct
// queue. The result contract mirrors NewFrame: false means the caller must
// resize, and unrecoverable results terminate the process.
func (dc *DeviceContext) Present() bool {
	if dc.frame != frameAcquired {
		panic("render: Present called without an acquired frame")
	}
	dc.frame = framePresenting

	res, err := dc.swapchainExtension.QueuePresent(dc.directQueue, khr_swapchain.PresentInfo{
		Swapchains:   []khr_swapchain.Swapchain{dc.swapchain},
		ImageIndices: []int{dc.backbufferIndex},
	})
	dc.frame = frameIdle

	switch classifySwapResult(res) {
	case swapResize:
		return false
	case swapFatal:
		log.Fatalf("render: presenting swapchain image: %s: %+v", res, err)
	}

	return true
}
