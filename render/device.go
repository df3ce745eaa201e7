package render

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/core1_2"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// DeviceContext exclusively owns one logical device and everything hanging
// off it: the direct queue, two command pools, the swapchain and its
// backbuffers, the acquire fence, and the buffer/texture arenas. It must not
// be shared across threads; all GPU submission goes through the single
// calling thread.
type DeviceContext struct {
	backend *Backend
	logger  *slog.Logger

	physicalDevice   core1_0.PhysicalDevice
	memoryProperties core1_0.PhysicalDeviceMemoryProperties
	limits           *core1_0.PhysicalDeviceLimits

	device             core1_0.CoreDeviceDriver
	swapchainExtension khr_swapchain.ExtensionDriver

	directFamily int
	directQueue  core1_0.Queue

	// directPool is reset-capable for per-frame recording; copyPool is
	// transient and feeds the one-shot upload protocol.
	directPool core1_0.CommandPool
	copyPool   core1_0.CommandPool

	swapchain     khr_swapchain.Swapchain
	swapchainInfo khr_swapchain.SwapchainCreateInfo
	backbuffers   []Backbuffer

	acquireFence    core1_0.Fence
	frame           frameState
	backbufferIndex int

	buffers  arena[Buffer]
	textures arena[Texture]
}

// newDeviceContext builds the logical device for the chosen adapter. There
// is no rollback on a partial failure: the caller treats any error here as
// fatal, so leaked construction-time handles die with the process.
func newDeviceContext(b *Backend, physicalDevice core1_0.PhysicalDevice, extent core1_0.Extent2D) (*DeviceContext, error) {
	dc := &DeviceContext{
		backend:        b,
		logger:         b.logger,
		physicalDevice: physicalDevice,
	}

	family, err := b.findDirectQueueFamily(physicalDevice)
	if err != nil {
		return nil, err
	}
	dc.directFamily = family

	properties, err := b.instanceDriver.GetPhysicalDeviceProperties(physicalDevice)
	if err != nil {
		return nil, errors.Wrapf(err, "render: querying device properties")
	}
	dc.limits = properties.Limits
	dc.memoryProperties = *b.instanceDriver.GetPhysicalDeviceMemoryProperties(physicalDevice)

	extensionNames := append([]string{}, deviceExtensions...)

	// Required for vulkan portability drivers (MoltenVK and friends).
	extensions, _, err := b.instanceDriver.EnumerateDeviceExtensionProperties(physicalDevice)
	if err != nil {
		return nil, errors.Wrapf(err, "render: enumerating device extensions")
	}
	if _, supported := extensions[khr_portability_subset.ExtensionName]; supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	dc.device, _, err = b.instanceDriver.CreateDevice(physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: []core1_0.DeviceQueueCreateInfo{
			{
				QueueFamilyIndex: family,
				QueuePriorities:  []float32{1.0},
			},
		},
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
			DepthBounds:       true,
		},
		EnabledExtensionNames: extensionNames,
		Next: core1_2.PhysicalDeviceVulkan12Features{
			DescriptorIndexing:     true,
			RuntimeDescriptorArray: true,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "render: creating logical device")
	}

	dc.directQueue = dc.device.GetQueue(family, 0)
	dc.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(dc.device)

	dc.directPool, _, err = dc.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: family,
		Flags:            core1_0.CommandPoolCreateResetBuffer,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "render: creating direct command pool")
	}

	dc.copyPool, _, err = dc.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: family,
		Flags:            core1_0.CommandPoolCreateTransient,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "render: creating copy command pool")
	}

	dc.acquireFence, _, err = dc.device.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		return nil, errors.Wrapf(err, "render: creating acquire fence")
	}

	err = dc.createSwapchain(extent, khr_swapchain.Swapchain{})
	if err != nil {
		return nil, err
	}

	err = dc.createBackbuffers()
	if err != nil {
		return nil, err
	}

	return dc, nil
}

// Device exposes the device driver for collaborators building pipelines and
// descriptor sets on top of the core's resources.
func (dc *DeviceContext) Device() core1_0.CoreDeviceDriver {
	return dc.device
}

// DirectQueue returns the graphics+compute+transfer queue.
func (dc *DeviceContext) DirectQueue() core1_0.Queue {
	return dc.directQueue
}

// DirectQueueFamily returns the queue family index of the direct queue.
func (dc *DeviceContext) DirectQueueFamily() int {
	return dc.directFamily
}

// WaitIdle blocks until the device has drained all submitted work.
func (dc *DeviceContext) WaitIdle() error {
	_, err := dc.device.DeviceWaitIdle()
	return err
}

// Destroy tears the context down in reverse construction order. The caller
// must guarantee no GPU work is still in flight; Destroy drains the device
// as a backstop before releasing anything.
func (dc *DeviceContext) Destroy() {
	if dc.device == nil {
		return
	}

	_, err := dc.device.DeviceWaitIdle()
	if err != nil {
		dc.logger.Warn("device wait during teardown failed", "error", err)
	}

	dc.textures.drain(func(t *Texture) {
		t.destroy()
	})
	dc.buffers.drain(func(b *Buffer) {
		b.destroy()
	})

	dc.destroyBackbuffers()

	if dc.swapchain.Initialized() {
		dc.swapchainExtension.DestroySwapchain(dc.swapchain, nil)
		dc.swapchain = khr_swapchain.Swapchain{}
	}

	if dc.acquireFence.Initialized() {
		dc.device.DestroyFence(dc.acquireFence, nil)
		dc.acquireFence = core1_0.Fence{}
	}

	if dc.copyPool.Initialized() {
		dc.device.DestroyCommandPool(dc.copyPool, nil)
		dc.copyPool = core1_0.CommandPool{}
	}
	if dc.directPool.Initialized() {
		dc.device.DestroyCommandPool(dc.directPool, nil)
		dc.directPool = core1_0.CommandPool{}
	}

	dc.device.DestroyDevice(nil)
	dc.device = nil
}
