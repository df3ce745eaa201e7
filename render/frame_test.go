package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestRecordBackbufferClearPreconditions(t *testing.T) {
	dc := &DeviceContext{}
	cc := &CommandContext{class: QueueDirect, recording: true}
	color := core1_0.ClearValueFloat{0, 0, 0, 1}

	// No frame acquired.
	err := dc.RecordBackbufferClear(cc, color)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without an acquired frame")

	dc.frame = frameAcquired

	// Context not recording.
	idle := &CommandContext{class: QueueDirect}
	err = dc.RecordBackbufferClear(idle, color)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not recording")

	// Copy contexts cannot touch the swapchain images.
	copyContext := &CommandContext{class: QueueCopy, recording: true}
	err = dc.RecordBackbufferClear(copyContext, color)
	require.Error(t, err)
}
