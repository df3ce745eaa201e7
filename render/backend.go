// Package render owns the logical graphics device, the presentation
// swapchain, GPU memory allocation for buffers and images, and the
// synchronous transfer protocol that moves asset data into device-local
// memory. It is consumed by the windowing, asset, and forward-rendering
// layers, which never touch GPU memory or synchronization directly.
package render

import (
	"log"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	core "github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

// Options configures Backend construction.
type Options struct {
	AppName          string
	EnableValidation bool

	// Logger receives adapter and swapchain diagnostics. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// Backend owns the process-wide Vulkan state: the instance, the debug
// messenger, and the presentation surface. One Backend produces one
// DeviceContext for the adapter it selects. There is no package-level
// mutable state; teardown order is Backend last, after every DeviceContext
// it produced.
type Backend struct {
	window WindowSystem
	logger *slog.Logger

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface
}

// NewBackend loads the Vulkan driver through the window system, creates the
// instance (with validation when requested) and the presentation surface.
func NewBackend(window WindowSystem, opts Options) (*Backend, error) {
	if window == nil {
		return nil, errors.New("render: NewBackend requires a window system")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Backend{
		window: window,
		logger: logger,
	}

	var err error
	b.globalDriver, err = core.CreateDriverFromProcAddr(window.ProcAddr())
	if err != nil {
		return nil, errors.Wrapf(err, "render: loading vulkan driver")
	}

	err = b.createInstance(opts)
	if err != nil {
		return nil, err
	}

	if opts.EnableValidation {
		b.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(b.instanceDriver)
		b.debugMessenger, _, err = b.debugDriver.CreateDebugUtilsMessenger(nil, b.debugMessengerOptions())
		if err != nil {
			b.Destroy()
			return nil, errors.Wrapf(err, "render: creating debug messenger")
		}
	}

	b.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(b.instanceDriver)
	b.surface, err = window.CreateSurface(b.instanceDriver.Instance(), b.surfaceExtension)
	if err != nil {
		b.Destroy()
		return nil, errors.Wrapf(err, "render: creating window surface")
	}

	return b, nil
}

func (b *Backend) createInstance(opts Options) error {
	appName := opts.AppName
	if appName == "" {
		appName = "basalt"
	}

	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    appName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "basalt",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := b.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrapf(err, "render: enumerating instance extensions")
	}

	for _, ext := range b.window.InstanceExtensions() {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("render: window system requires missing instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if opts.EnableValidation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.EnableValidation {
		layers, _, err := b.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrapf(err, "render: enumerating instance layers")
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Newf("render: validation layer %s is not available", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = b.debugMessengerOptions()
	}

	b.instanceDriver, _, err = b.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrapf(err, "render: creating instance")
	}

	return nil
}

func (b *Backend) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    b.logValidation,
	}
}

func (b *Backend) logValidation(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	log.Printf("[%s %s] - %s", severity, msgType, data.Message)
	return false
}

// AdapterInfo summarizes one physical adapter for selection diagnostics.
type AdapterInfo struct {
	Name              string
	Type              core1_0.PhysicalDeviceType
	DriverVersion     uint32
	PipelineCacheUUID uuid.UUID
	Score             int
}

// adapterInfo carries over the adapter identity fields; Score stays zero
// until the adapter passes the suitability gates.
func adapterInfo(properties *core1_0.PhysicalDeviceProperties) AdapterInfo {
	return AdapterInfo{
		Name:              properties.DriverName,
		Type:              properties.DriverType,
		DriverVersion:     uint32(properties.DriverVersion),
		PipelineCacheUUID: properties.PipelineCacheUUID,
	}
}

// NewDeviceContext enumerates the physical adapters, scores them, and builds
// a DeviceContext for the best one. Adapters without a direct queue family
// (graphics, compute, and transfer on one family, with present support),
// without the swapchain extension, without usable surface formats or present
// modes, or without anisotropic sampling score zero and are skipped.
func (b *Backend) NewDeviceContext(extent core1_0.Extent2D) (*DeviceContext, error) {
	physicalDevices, _, err := b.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Wrapf(err, "render: enumerating physical devices")
	}

	bestScore := 0
	var bestDevice core1_0.PhysicalDevice

	for _, device := range physicalDevices {
		info, err := b.rateAdapter(device)
		if err != nil {
			b.logger.Warn("skipping adapter", "error", err)
			continue
		}

		b.logger.Info("adapter",
			"name", info.Name,
			"type", info.Type,
			"driverVersion", info.DriverVersion,
			"pipelineCacheUUID", info.PipelineCacheUUID.String(),
			"score", info.Score)

		if info.Score > bestScore {
			bestScore = info.Score
			bestDevice = device
		}
	}

	if !bestDevice.Initialized() {
		return nil, errors.New("render: failed to find a suitable GPU")
	}

	// Device construction cannot be rolled back part-way; a failure here
	// means the engine cannot run at all.
	dc, err := newDeviceContext(b, bestDevice, extent)
	if err != nil {
		log.Fatalf("render: building device context: %+v", err)
	}
	return dc, nil
}

func (b *Backend) rateAdapter(device core1_0.PhysicalDevice) (AdapterInfo, error) {
	properties, err := b.instanceDriver.GetPhysicalDeviceProperties(device)
	if err != nil {
		return AdapterInfo{}, errors.Wrapf(err, "render: querying adapter properties")
	}

	info := adapterInfo(properties)

	features := b.instanceDriver.GetPhysicalDeviceFeatures(device)
	if !features.SamplerAnisotropy {
		return info, nil
	}

	if _, err := b.findDirectQueueFamily(device); err != nil {
		return info, nil
	}

	extensions, _, err := b.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return AdapterInfo{}, errors.Wrapf(err, "render: querying adapter extensions")
	}
	if _, hasSwapchain := extensions[khr_swapchain.ExtensionName]; !hasSwapchain {
		return info, nil
	}

	formats, _, err := b.surfaceExtension.GetPhysicalDeviceSurfaceFormats(b.surface, device)
	if err != nil {
		return AdapterInfo{}, errors.Wrapf(err, "render: querying surface formats")
	}
	presentModes, _, err := b.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(b.surface, device)
	if err != nil {
		return AdapterInfo{}, errors.Wrapf(err, "render: querying surface present modes")
	}
	if len(formats) == 0 || len(presentModes) == 0 {
		return info, nil
	}

	info.Score = properties.Limits.MaxImageDimension2D
	if properties.DriverType == core1_0.PhysicalDeviceTypeDiscreteGPU {
		info.Score += 1000
	}
	return info, nil
}

// findDirectQueueFamily returns the first queue family supporting graphics,
// compute, transfer, and presentation to the backend surface.
func (b *Backend) findDirectQueueFamily(device core1_0.PhysicalDevice) (int, error) {
	required := core1_0.QueueGraphics | core1_0.QueueCompute | core1_0.QueueTransfer

	queueFamilies := b.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)
	for queueFamilyIdx, queueFamily := range queueFamilies {
		if queueFamily.QueueFlags&required != required {
			continue
		}

		supported, _, err := b.surfaceExtension.GetPhysicalDeviceSurfaceSupport(b.surface, device, queueFamilyIdx)
		if err != nil {
			return -1, errors.Wrapf(err, "render: querying surface support")
		}
		if supported {
			return queueFamilyIdx, nil
		}
	}

	return -1, errors.New("render: no queue family supports graphics, compute, transfer, and present")
}

// Destroy releases the surface, the debug messenger, and the instance. Every
// DeviceContext created from this Backend must already be destroyed.
func (b *Backend) Destroy() {
	if b.surface.Initialized() {
		b.surfaceExtension.DestroySurface(b.surface, nil)
		b.surface = khr_surface.Surface{}
	}

	if b.debugMessenger.Initialized() {
		b.debugDriver.DestroyDebugUtilsMessenger(b.debugMessenger, nil)
		b.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if b.instanceDriver != nil {
		b.instanceDriver.DestroyInstance(nil)
		b.instanceDriver = nil
	}
}
