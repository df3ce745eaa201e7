package render

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestAdapterInfoFromProperties(t *testing.T) {
	cacheUUID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	properties := &core1_0.PhysicalDeviceProperties{
		Name:              "llvmpipe",
		Type:              core1_0.DeviceDiscreteGPU,
		DriverVersion:     common.Version(42),
		PipelineCacheUUID: cacheUUID,
	}

	info := adapterInfo(properties)
	assert.Equal(t, "llvmpipe", info.Name)
	assert.Equal(t, core1_0.DeviceDiscreteGPU, info.Type)
	assert.Equal(t, uint32(42), info.DriverVersion)
	assert.Equal(t, cacheUUID, info.PipelineCacheUUID)
	assert.Zero(t, info.Score)
}
