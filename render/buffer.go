package render

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Buffer owns one buffer handle and its dedicated memory block. A buffer is
// either fully unmapped or holds a host pointer covering exactly Size bytes.
// Mapping and unmapping must happen on the thread that owns the
// DeviceContext.
type Buffer struct {
	device core1_0.CoreDeviceDriver

	handle core1_0.Buffer
	memory core1_0.DeviceMemory

	size    int
	hostPtr unsafe.Pointer
	mapped  bool
}

// Handle returns the underlying buffer for descriptor and command recording.
func (b *Buffer) Handle() core1_0.Buffer {
	return b.handle
}

// Size returns the buffer's byte size.
func (b *Buffer) Size() int {
	return b.size
}

// Mapped reports whether the buffer currently has a host mapping.
func (b *Buffer) Mapped() bool {
	return b.mapped
}

// Map establishes a persistent host mapping over the whole buffer. The
// memory must have been allocated host-visible. Mapping an already-mapped
// buffer is a no-op.
func (b *Buffer) Map() error {
	if b.mapped {
		return nil
	}

	ptr, _, err := b.device.MapMemory(b.memory, 0, b.size, 0)
	if err != nil {
		return errors.Wrapf(err, "render: mapping buffer memory")
	}

	b.hostPtr = ptr
	b.mapped = true
	return nil
}

// Unmap releases the host mapping. Unmapping an unmapped buffer is a no-op.
func (b *Buffer) Unmap() {
	if !b.mapped {
		return
	}

	b.device.UnmapMemory(b.memory)
	b.hostPtr = nil
	b.mapped = false
}

// Bytes returns the mapped contents as a byte slice of exactly Size bytes.
// The slice is only valid while the buffer stays mapped.
func (b *Buffer) Bytes() ([]byte, error) {
	if !b.mapped {
		return nil, errors.New("render: Bytes on an unmapped buffer")
	}
	return unsafe.Slice((*byte)(b.hostPtr), b.size), nil
}

// Write copies data into the mapped buffer starting at offset zero.
func (b *Buffer) Write(data []byte) error {
	dst, err := b.Bytes()
	if err != nil {
		return err
	}
	if len(data) > len(dst) {
		return errors.Newf("render: writing %d bytes into a %d byte buffer", len(data), len(dst))
	}

	copy(dst, data)
	return nil
}

// destroy frees the memory block, then the buffer handle.
func (b *Buffer) destroy() {
	b.Unmap()

	if b.memory.Initialized() {
		b.device.FreeMemory(b.memory, nil)
		b.memory = core1_0.DeviceMemory{}
	}
	if b.handle.Initialized() {
		b.device.DestroyBuffer(b.handle, nil)
		b.handle = core1_0.Buffer{}
	}
}

// CreateBuffer allocates a buffer of the given size and usage, backed by a
// dedicated memory block of a type satisfying the requested properties, and
// optionally maps it immediately. On failure nothing is left allocated and
// the zero handle is returned.
func (dc *DeviceContext) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags, mapped bool) (BufferHandle, error) {
	buffer, err := dc.createBufferRaw(size, usage, properties, mapped)
	if err != nil {
		return BufferHandle{}, err
	}

	index, generation := dc.buffers.insert(buffer)
	return BufferHandle{index: index, generation: generation}, nil
}

// createBufferRaw is the arena-free creation path, shared with the upload
// protocol's transient staging buffers.
func (dc *DeviceContext) createBufferRaw(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags, mapped bool) (*Buffer, error) {
	if size <= 0 {
		return nil, errors.Newf("render: buffer size must be positive, got %d", size)
	}

	handle, _, err := dc.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "render: creating buffer of %d bytes", size)
	}

	requirements := dc.device.GetBufferMemoryRequirements(handle)
	memory, err := dc.allocateMemory(requirements, properties)
	if err != nil {
		dc.device.DestroyBuffer(handle, nil)
		return nil, err
	}

	_, err = dc.device.BindBufferMemory(handle, memory, 0)
	if err != nil {
		dc.device.FreeMemory(memory, nil)
		dc.device.DestroyBuffer(handle, nil)
		return nil, errors.Wrapf(err, "render: binding buffer memory")
	}

	buffer := &Buffer{
		device: dc.device,
		handle: handle,
		memory: memory,
		size:   size,
	}

	if mapped {
		err = buffer.Map()
		if err != nil {
			buffer.destroy()
			return nil, err
		}
	}

	return buffer, nil
}

// Buffer resolves a handle to its buffer, failing with ErrInvalidHandle for
// zero or stale handles.
func (dc *DeviceContext) Buffer(handle BufferHandle) (*Buffer, error) {
	buffer, ok := dc.buffers.get(handle.index, handle.generation)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return buffer, nil
}

// DestroyBuffer releases the buffer behind the handle; the handle and all
// copies of it immediately go stale. The caller must guarantee no in-flight
// GPU work still references the buffer.
func (dc *DeviceContext) DestroyBuffer(handle BufferHandle) error {
	buffer, ok := dc.buffers.remove(handle.index, handle.generation)
	if !ok {
		return ErrInvalidHandle
	}

	buffer.destroy()
	return nil
}
