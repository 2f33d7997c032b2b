// Package vk implements render.Backend on Vulkan.
//
// The device presents through a FIFO swapchain with one frame in flight.
// Viewport and scissor are dynamic state, so the pipeline survives swapchain
// resizes untouched.
package vk

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/vulkan-go/vulkan"

	"Trigon/internal/render"
)

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	deviceExtensions = []string{"VK_KHR_swapchain"}
)

// Window is what the backend needs from the platform window beyond its
// framebuffer size. *glfw.Window provides both methods.
type Window interface {
	render.Surface
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

// ProcAddrLoader points the Vulkan loader at the window system's
// vkGetInstanceProcAddr. It is called once, before the first instance.
type ProcAddrLoader func() unsafe.Pointer

type queueFamilyIndices struct {
	graphicsFamily uint32
	presentFamily  uint32
	hasGraphics    bool
	hasPresent     bool
}

// Backend owns every Vulkan object of one device.
type Backend struct {
	loader ProcAddrLoader
	loaded bool

	window     Window
	validation bool

	instance       vulkan.Instance
	debugCallback  vulkan.DebugReportCallback
	surface        vulkan.Surface
	physicalDevice vulkan.PhysicalDevice
	device         vulkan.Device
	graphicsQueue  vulkan.Queue
	presentQueue   vulkan.Queue
	queues         queueFamilyIndices

	swapchain      vulkan.Swapchain
	images         []vulkan.Image
	format         vulkan.Format
	colorSpace     vulkan.ColorSpace
	presentMode    vulkan.PresentMode
	extent         vulkan.Extent2D
	bufferCount    uint32
	renderPass     vulkan.RenderPass
	liveTargets    int
	bound          *renderTarget
	viewport       vulkan.Viewport
	commandPool    vulkan.CommandPool
	commandBuffer  vulkan.CommandBuffer
	imageAvailable vulkan.Semaphore
	renderFinished vulkan.Semaphore
	inFlight       vulkan.Fence

	descriptorSetLayout vulkan.DescriptorSetLayout
	pipelineLayout      vulkan.PipelineLayout
	pipeline            vulkan.Pipeline
	vertexBuffer        vulkan.Buffer
	vertexMemory        vulkan.DeviceMemory
	uniformBuffer       vulkan.Buffer
	uniformMemory       vulkan.DeviceMemory
	uniformSize         vulkan.DeviceSize
	descriptorPool      vulkan.DescriptorPool
	descriptorSet       vulkan.DescriptorSet

	frame frameState
	sync  frameSync // nil uses the device
}

var _ render.Backend = (*Backend)(nil)

// NewBackend returns an uninitialized backend. loader is typically
// glfw.GetVulkanGetInstanceProcAddress.
func NewBackend(loader ProcAddrLoader) *Backend {
	return &Backend{loader: loader}
}

// CreateDevice creates the instance, surface, logical device, swapchain,
// render pass, command buffer and frame fence in that order. On failure the
// partially created objects stay recorded so Release can destroy them.
func (b *Backend) CreateDevice(desc render.DeviceDesc) error {
	win, ok := desc.Surface.(Window)
	if !ok {
		return fmt.Errorf("vk: surface %T cannot create a Vulkan surface", desc.Surface)
	}
	b.window = win
	b.validation = desc.Validation
	b.bufferCount = desc.BufferCount

	if !b.loaded {
		if b.loader != nil {
			vulkan.SetGetInstanceProcAddr(b.loader())
		}
		if err := vulkan.Init(); err != nil {
			return fmt.Errorf("vulkan init: %w", err)
		}
		b.loaded = true
	}
	if err := b.createInstance(); err != nil {
		return err
	}
	if err := vulkan.InitInstance(b.instance); err != nil {
		return fmt.Errorf("vkInitInstance: %w", err)
	}
	if err := b.setupDebugCallback(); err != nil {
		return err
	}
	if err := b.createSurface(); err != nil {
		return err
	}
	if err := b.pickPhysicalDevice(); err != nil {
		return err
	}
	if err := b.createLogicalDevice(); err != nil {
		return err
	}
	if err := b.createSwapchain(toExtent2D(desc.Extent)); err != nil {
		return err
	}
	if err := b.createRenderPass(); err != nil {
		return err
	}
	if err := b.createCommandPool(); err != nil {
		return err
	}
	if err := b.allocateCommandBuffer(); err != nil {
		return err
	}
	if err := b.createSyncObjects(); err != nil {
		return err
	}
	render.Logger().Debug("vulkan device created",
		"images", len(b.images), "format", b.format, "extent", fromExtent2D(b.extent).String())
	return nil
}

func (b *Backend) createInstance() error {
	if b.validation && !validationLayersSupported() {
		return errors.New("requested validation layers not available")
	}

	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   "Trigon\x00",
		ApplicationVersion: vulkan.MakeVersion(0, 1, 0),
		PEngineName:        "Trigon\x00",
		EngineVersion:      vulkan.MakeVersion(0, 1, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}

	extensions := b.window.GetRequiredInstanceExtensions()
	if b.validation {
		extensions = append(extensions, "VK_EXT_debug_report")
	}
	extensions = safeStrings(extensions)

	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if b.validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = safeStrings(validationLayers)
	}

	if res := vulkan.CreateInstance(&createInfo, nil, &b.instance); res != vulkan.Success {
		return fmt.Errorf("create instance: %w", vulkan.Error(res))
	}
	return nil
}

func (b *Backend) createSurface() error {
	surfacePtr, err := b.window.CreateWindowSurface(b.instance, nil)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	b.surface = vulkan.SurfaceFromPointer(surfacePtr)
	return nil
}

func (b *Backend) pickPhysicalDevice() error {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(b.instance, &count, nil); res != vulkan.Success || count == 0 {
		return fmt.Errorf("enumerate physical devices: %w", errNoDevice(res))
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if res := vulkan.EnumeratePhysicalDevices(b.instance, &count, devices); res != vulkan.Success {
		return fmt.Errorf("enumerate physical devices list: %w", vulkan.Error(res))
	}

	var selected vulkan.PhysicalDevice
	var selectedQueues queueFamilyIndices
	bestScore := int32(-1)
	for _, dev := range devices {
		q := b.findQueueFamilies(dev)
		if !q.hasGraphics || !q.hasPresent {
			continue
		}
		if !deviceExtensionsSupported(dev) {
			continue
		}
		support := b.querySwapchainSupport(dev)
		if len(support.formats) == 0 || len(support.presentModes) == 0 {
			continue
		}
		if score := deviceScore(dev); score > bestScore {
			bestScore = score
			selected = dev
			selectedQueues = q
		}
	}
	if bestScore < 0 {
		return errors.New("no suitable GPU found")
	}

	b.physicalDevice = selected
	b.queues = selectedQueues
	return nil
}

func errNoDevice(res vulkan.Result) error {
	if res == vulkan.Success {
		return errors.New("no physical devices")
	}
	return vulkan.Error(res)
}

func deviceScore(device vulkan.PhysicalDevice) int32 {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(device, &props)
	props.Deref()

	switch props.DeviceType {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

func deviceExtensionsSupported(device vulkan.PhysicalDevice) bool {
	var count uint32
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vulkan.Success {
		return false
	}
	props := make([]vulkan.ExtensionProperties, count)
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, props); res != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].ExtensionName[:])] = true
	}
	for _, ext := range deviceExtensions {
		if !supported[ext] {
			return false
		}
	}
	return true
}

func (b *Backend) findQueueFamilies(device vulkan.PhysicalDevice) queueFamilyIndices {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	var indices queueFamilyIndices
	for i := range props {
		props[i].Deref()
		if props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 {
			indices.graphicsFamily = uint32(i)
			indices.hasGraphics = true
		}
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(device, uint32(i), b.surface, &present)
		if present == vulkan.True {
			indices.presentFamily = uint32(i)
			indices.hasPresent = true
		}
		if indices.hasGraphics && indices.hasPresent {
			break
		}
	}
	return indices
}

func (b *Backend) createLogicalDevice() error {
	var queueInfos []vulkan.DeviceQueueCreateInfo
	uniqueFamilies := map[uint32]bool{
		b.queues.graphicsFamily: true,
		b.queues.presentFamily:  true,
	}
	for family := range uniqueFamilies {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{{}},
		PpEnabledExtensionNames: safeStrings(deviceExtensions),
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
	}
	if b.validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = safeStrings(validationLayers)
	}

	if res := vulkan.CreateDevice(b.physicalDevice, &createInfo, nil, &b.device); res != vulkan.Success {
		return fmt.Errorf("create logical device: %w", vulkan.Error(res))
	}

	vulkan.GetDeviceQueue(b.device, b.queues.graphicsFamily, 0, &b.graphicsQueue)
	vulkan.GetDeviceQueue(b.device, b.queues.presentFamily, 0, &b.presentQueue)
	return nil
}

// createRenderPass clears the single colour attachment and leaves it ready
// for presentation. There is no depth attachment.
func (b *Backend) createRenderPass() error {
	colorAttachment := vulkan.AttachmentDescription{
		Format:         b.format,
		Samples:        vulkan.SampleCount1Bit,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}
	colorRef := vulkan.AttachmentReference{
		Attachment: 0,
		Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
	}
	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:    vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vulkan.AttachmentReference{colorRef},
	}
	dependency := vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit),
	}

	createInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vulkan.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vulkan.SubpassDependency{dependency},
	}
	if res := vulkan.CreateRenderPass(b.device, &createInfo, nil, &b.renderPass); res != vulkan.Success {
		return fmt.Errorf("create render pass: %w", vulkan.Error(res))
	}
	return nil
}

func (b *Backend) createCommandPool() error {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: b.queues.graphicsFamily,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vulkan.CreateCommandPool(b.device, &poolInfo, nil, &b.commandPool); res != vulkan.Success {
		return fmt.Errorf("create command pool: %w", vulkan.Error(res))
	}
	return nil
}

func (b *Backend) allocateCommandBuffer() error {
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vulkan.CommandBuffer, 1)
	if res := vulkan.AllocateCommandBuffers(b.device, &allocInfo, buffers); res != vulkan.Success {
		return fmt.Errorf("allocate command buffer: %w", vulkan.Error(res))
	}
	b.commandBuffer = buffers[0]
	return nil
}

// createSyncObjects creates the single frame's semaphores and its fence,
// signalled so the first frame does not wait.
func (b *Backend) createSyncObjects() error {
	semInfo := vulkan.SemaphoreCreateInfo{
		SType: vulkan.StructureTypeSemaphoreCreateInfo,
	}
	fenceInfo := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
		Flags: vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit),
	}
	if res := vulkan.CreateSemaphore(b.device, &semInfo, nil, &b.imageAvailable); res != vulkan.Success {
		return fmt.Errorf("create imageAvailable semaphore: %w", vulkan.Error(res))
	}
	if res := vulkan.CreateSemaphore(b.device, &semInfo, nil, &b.renderFinished); res != vulkan.Success {
		return fmt.Errorf("create renderFinished semaphore: %w", vulkan.Error(res))
	}
	if res := vulkan.CreateFence(b.device, &fenceInfo, nil, &b.inFlight); res != vulkan.Success {
		return fmt.Errorf("create frame fence: %w", vulkan.Error(res))
	}
	return nil
}

// waitIdle blocks until the frame in flight has finished.
func (b *Backend) waitIdle() {
	if b.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DeviceWaitIdle(b.device)
	}
}

// Release destroys everything in reverse creation order and resets the
// backend so CreateDevice may run again. It is safe after a failed
// CreateDevice.
func (b *Backend) Release() {
	b.waitIdle()
	b.releasePipeline()

	if b.device != vulkan.Device(vulkan.NullHandle) {
		if b.inFlight != vulkan.Fence(vulkan.NullHandle) {
			vulkan.DestroyFence(b.device, b.inFlight, nil)
		}
		if b.renderFinished != vulkan.Semaphore(vulkan.NullHandle) {
			vulkan.DestroySemaphore(b.device, b.renderFinished, nil)
		}
		if b.imageAvailable != vulkan.Semaphore(vulkan.NullHandle) {
			vulkan.DestroySemaphore(b.device, b.imageAvailable, nil)
		}
		if b.commandPool != vulkan.CommandPool(vulkan.NullHandle) {
			vulkan.DestroyCommandPool(b.device, b.commandPool, nil)
		}
		if b.renderPass != vulkan.RenderPass(vulkan.NullHandle) {
			vulkan.DestroyRenderPass(b.device, b.renderPass, nil)
		}
		if b.swapchain != vulkan.Swapchain(vulkan.NullHandle) {
			vulkan.DestroySwapchain(b.device, b.swapchain, nil)
		}
		vulkan.DestroyDevice(b.device, nil)
	}
	if b.instance != vulkan.Instance(vulkan.NullHandle) {
		if b.debugCallback != vulkan.DebugReportCallback(vulkan.NullHandle) {
			vulkan.DestroyDebugReportCallback(b.instance, b.debugCallback, nil)
		}
		if b.surface != vulkan.Surface(vulkan.NullHandle) {
			vulkan.DestroySurface(b.instance, b.surface, nil)
		}
		vulkan.DestroyInstance(b.instance, nil)
	}

	loader, loaded := b.loader, b.loaded
	*b = Backend{loader: loader, loaded: loaded}
}

// safeStrings null-terminates names handed to the C API.
func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		if len(s) == 0 || s[len(s)-1] != 0 {
			s += "\x00"
		}
		out[i] = s
	}
	return out
}

func toExtent2D(e render.Extent) vulkan.Extent2D {
	return vulkan.Extent2D{Width: e.Width, Height: e.Height}
}

func fromExtent2D(e vulkan.Extent2D) render.Extent {
	return render.Extent{Width: e.Width, Height: e.Height}
}
