package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// MemoryTypeNotFound is returned by FindMemoryType when no memory type
// satisfies both the requirement mask and the requested property flags.
const MemoryTypeNotFound = -1

// FindMemoryType returns the lowest-indexed memory type whose bit is set in
// typeBits and whose properties contain every requested flag, or
// MemoryTypeNotFound. First match wins; there is no best-fit heuristic.
func FindMemoryType(memoryProperties core1_0.PhysicalDeviceMemoryProperties, typeBits uint32, required core1_0.MemoryPropertyFlags) int {
	for i, memoryType := range memoryProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if typeBits&typeBit != 0 && memoryType.PropertyFlags&required == required {
			return i
		}
	}

	return MemoryTypeNotFound
}

// allocateMemory selects a memory type for the given requirements and
// allocates one dedicated block. Every resource gets its own allocation;
// there is no sub-allocation.
func (dc *DeviceContext) allocateMemory(requirements *core1_0.MemoryRequirements, properties core1_0.MemoryPropertyFlags) (core1_0.DeviceMemory, error) {
	memoryTypeIndex := FindMemoryType(dc.memoryProperties, requirements.MemoryTypeBits, properties)
	if memoryTypeIndex == MemoryTypeNotFound {
		return core1_0.DeviceMemory{}, errors.Newf("render: no memory type satisfies mask %#x with properties %s", requirements.MemoryTypeBits, properties)
	}

	memory, _, err := dc.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return core1_0.DeviceMemory{}, errors.Wrapf(err, "render: allocating %d bytes of memory type %d", requirements.Size, memoryTypeIndex)
	}

	return memory, nil
}
