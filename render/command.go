package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// QueueClass selects the pool a command context is allocated from.
type QueueClass int

const (
	// QueueDirect is the long-lived, resettable class used for per-frame
	// recording.
	QueueDirect QueueClass = iota
	// QueueCopy is the transient class used for one-shot transfer work;
	// copy contexts are freed after a single submission, never reset.
	QueueCopy
)

func (c QueueClass) String() string {
	switch c {
	case QueueDirect:
		return "direct"
	case QueueCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// CommandContext wraps one primary command buffer together with the class
// it was allocated for. All contexts submit to the single direct queue;
// the class only decides pool behavior.
type CommandContext struct {
	device core1_0.CoreDeviceDriver

	buffer core1_0.CommandBuffer
	pool   core1_0.CommandPool
	class  QueueClass

	recording bool
}

// Buffer returns the wrapped command buffer for recording.
func (cc *CommandContext) Buffer() core1_0.CommandBuffer {
	return cc.buffer
}

// Class returns the queue class the context was allocated for.
func (cc *CommandContext) Class() QueueClass {
	return cc.class
}

// AllocateCommandContext carves a primary command buffer out of the pool
// backing the requested class.
func (dc *DeviceContext) AllocateCommandContext(class QueueClass) (*CommandContext, error) {
	pool := dc.directPool
	if class == QueueCopy {
		pool = dc.copyPool
	}

	buffers, _, err := dc.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "render: allocating %s command buffer", class)
	}

	return &CommandContext{
		device: dc.device,
		buffer: buffers[0],
		pool:   pool,
		class:  class,
	}, nil
}

// Begin starts recording. oneTime marks the buffer single-submission, which
// is mandatory for the copy class.
func (cc *CommandContext) Begin(oneTime bool) error {
	if cc.recording {
		return errors.New("render: command context already recording")
	}

	var flags core1_0.CommandBufferUsageFlags
	if oneTime {
		flags |= core1_0.CommandBufferUsageOneTimeSubmit
	}

	_, err := cc.device.BeginCommandBuffer(cc.buffer, core1_0.CommandBufferBeginInfo{
		Flags: flags,
	})
	if err != nil {
		return errors.Wrapf(err, "render: beginning %s command buffer", cc.class)
	}

	cc.recording = true
	return nil
}

// End closes the recording.
func (cc *CommandContext) End() error {
	if !cc.recording {
		return errors.New("render: command context is not recording")
	}

	cc.recording = false
	_, err := cc.device.EndCommandBuffer(cc.buffer)
	if err != nil {
		return errors.Wrapf(err, "render: ending %s command buffer", cc.class)
	}
	return nil
}

// Reset returns a direct-class buffer to its initial state for re-recording.
// Copy-class buffers come from a transient pool and cannot be reset; they
// are freed and reallocated instead.
func (cc *CommandContext) Reset() error {
	if cc.class == QueueCopy {
		return errors.New("render: copy command contexts cannot be reset")
	}
	if cc.recording {
		return errors.New("render: cannot reset a recording command context")
	}

	_, err := cc.device.ResetCommandBuffer(cc.buffer, 0)
	if err != nil {
		return errors.Wrapf(err, "render: resetting command buffer")
	}
	return nil
}

// FreeCommandContext hands the buffer back to its pool.
func (dc *DeviceContext) FreeCommandContext(cc *CommandContext) {
	if cc == nil || !cc.buffer.Initialized() {
		return
	}
	dc.device.FreeCommandBuffers(cc.buffer)
	cc.buffer = core1_0.CommandBuffer{}
}

// SubmitAndWait submits the recorded context to the direct queue behind a
// fresh fence and blocks until the GPU has drained it. Each call pays the
// full fence round trip; that isolation is the point of the synchronous
// path.
func (dc *DeviceContext) SubmitAndWait(cc *CommandContext) error {
	if cc.recording {
		return errors.New("render: cannot submit a command context that is still recording")
	}

	fence, _, err := dc.device.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		return errors.Wrapf(err, "render: creating submit fence")
	}
	defer dc.device.DestroyFence(fence, nil)

	_, err = dc.device.QueueSubmit(dc.directQueue, &fence, core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{cc.buffer},
	})
	if err != nil {
		return errors.Wrapf(err, "render: submitting %s command buffer", cc.class)
	}

	_, err = dc.device.WaitForFences(true, common.NoTimeout, fence)
	if err != nil {
		return errors.Wrapf(err, "render: waiting for %s submission", cc.class)
	}
	return nil
}
