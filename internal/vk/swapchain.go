package vk

import (
	"errors"
	"fmt"
	"math"

	"github.com/vulkan-go/vulkan"

	"Trigon/internal/render"
)

type swapchainSupport struct {
	capabilities vulkan.SurfaceCapabilities
	formats      []vulkan.SurfaceFormat
	presentModes []vulkan.PresentMode
}

func (b *Backend) querySwapchainSupport(device vulkan.PhysicalDevice) swapchainSupport {
	var details swapchainSupport
	vulkan.GetPhysicalDeviceSurfaceCapabilities(device, b.surface, &details.capabilities)
	details.capabilities.Deref()
	details.capabilities.CurrentExtent.Deref()
	details.capabilities.MinImageExtent.Deref()
	details.capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vulkan.GetPhysicalDeviceSurfaceFormats(device, b.surface, &formatCount, nil)
	if formatCount > 0 {
		details.formats = make([]vulkan.SurfaceFormat, formatCount)
		vulkan.GetPhysicalDeviceSurfaceFormats(device, b.surface, &formatCount, details.formats)
		for i := range details.formats {
			details.formats[i].Deref()
		}
	}

	var presentCount uint32
	vulkan.GetPhysicalDeviceSurfacePresentModes(device, b.surface, &presentCount, nil)
	if presentCount > 0 {
		details.presentModes = make([]vulkan.PresentMode, presentCount)
		vulkan.GetPhysicalDeviceSurfacePresentModes(device, b.surface, &presentCount, details.presentModes)
	}
	return details
}

func chooseSwapSurfaceFormat(available []vulkan.SurfaceFormat) vulkan.SurfaceFormat {
	for _, f := range available {
		if f.Format == vulkan.FormatB8g8r8a8Unorm && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return available[0]
}

// chooseSwapExtent takes the surface's current extent when the window
// system fixes it, and otherwise clamps want to the allowed range.
func chooseSwapExtent(caps vulkan.SurfaceCapabilities, want vulkan.Extent2D) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	lo, hi := caps.MinImageExtent, caps.MaxImageExtent
	return vulkan.Extent2D{
		Width:  clamp(want.Width, lo.Width, hi.Width),
		Height: clamp(want.Height, lo.Height, hi.Height),
	}
}

func clamp(val, lo, hi uint32) uint32 {
	return max(lo, min(val, hi))
}

// createSwapchain creates the swapchain at want, replacing the current one
// if there is one. Format and image count are picked on the first call and
// kept for every later one.
func (b *Backend) createSwapchain(want vulkan.Extent2D) error {
	support := b.querySwapchainSupport(b.physicalDevice)
	first := b.swapchain == vulkan.Swapchain(vulkan.NullHandle)
	if first {
		if len(support.formats) == 0 {
			return errors.New("surface reports no formats")
		}
		surfaceFormat := chooseSwapSurfaceFormat(support.formats)
		b.format = surfaceFormat.Format
		b.colorSpace = surfaceFormat.ColorSpace
		// FIFO waits for vertical blank and is always supported.
		b.presentMode = vulkan.PresentModeFifo
	}
	extent := chooseSwapExtent(support.capabilities, want)
	if extent.Width == 0 || extent.Height == 0 {
		return fmt.Errorf("surface extent %dx%d", extent.Width, extent.Height)
	}

	imageCount := max(b.bufferCount, support.capabilities.MinImageCount)
	if support.capabilities.MaxImageCount > 0 && imageCount > support.capabilities.MaxImageCount {
		imageCount = support.capabilities.MaxImageCount
	}

	old := b.swapchain
	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          b.surface,
		MinImageCount:    imageCount,
		ImageFormat:      b.format,
		ImageColorSpace:  b.colorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vulkan.CompositeAlphaOpaqueBit,
		PresentMode:      b.presentMode,
		Clipped:          vulkan.True,
		OldSwapchain:     old,
	}
	if b.queues.graphicsFamily != b.queues.presentFamily {
		indices := []uint32{b.queues.graphicsFamily, b.queues.presentFamily}
		createInfo.ImageSharingMode = vulkan.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = uint32(len(indices))
		createInfo.PQueueFamilyIndices = indices
	} else {
		createInfo.ImageSharingMode = vulkan.SharingModeExclusive
	}

	var swapchain vulkan.Swapchain
	if res := vulkan.CreateSwapchain(b.device, &createInfo, nil, &swapchain); res != vulkan.Success {
		return fmt.Errorf("create swapchain: %w", vulkan.Error(res))
	}
	if !first {
		vulkan.DestroySwapchain(b.device, old, nil)
	}
	b.swapchain = swapchain

	var count uint32
	vulkan.GetSwapchainImages(b.device, b.swapchain, &count, nil)
	b.images = make([]vulkan.Image, count)
	vulkan.GetSwapchainImages(b.device, b.swapchain, &count, b.images)
	b.extent = extent
	return nil
}

// ResizeBuffers recreates the swapchain at ext with the same format and
// image count. Every render target must have been released first.
func (b *Backend) ResizeBuffers(ext render.Extent) error {
	if b.liveTargets > 0 || b.bound != nil {
		return fmt.Errorf("resize buffers: %d render target(s) still reference the swapchain", b.liveTargets)
	}
	b.waitIdle()
	if err := b.createSwapchain(toExtent2D(ext)); err != nil {
		return err
	}
	b.frame = frameState{}
	return nil
}

// renderTarget is one image view and framebuffer per swapchain image.
type renderTarget struct {
	extent       vulkan.Extent2D
	views        []vulkan.ImageView
	framebuffers []vulkan.Framebuffer
	released     bool
}

func (t *renderTarget) Extent() render.Extent { return fromExtent2D(t.extent) }

func (b *Backend) CreateRenderTarget() (render.RenderTarget, error) {
	rt := &renderTarget{extent: b.extent}
	for i, img := range b.images {
		view, err := b.createImageView(img)
		if err != nil {
			b.destroyTarget(rt)
			return nil, fmt.Errorf("create image view %d: %w", i, err)
		}
		rt.views = append(rt.views, view)

		createInfo := vulkan.FramebufferCreateInfo{
			SType:           vulkan.StructureTypeFramebufferCreateInfo,
			RenderPass:      b.renderPass,
			AttachmentCount: 1,
			PAttachments:    []vulkan.ImageView{view},
			Width:           b.extent.Width,
			Height:          b.extent.Height,
			Layers:          1,
		}
		var fb vulkan.Framebuffer
		if res := vulkan.CreateFramebuffer(b.device, &createInfo, nil, &fb); res != vulkan.Success {
			b.destroyTarget(rt)
			return nil, fmt.Errorf("create framebuffer %d: %w", i, vulkan.Error(res))
		}
		rt.framebuffers = append(rt.framebuffers, fb)
	}
	b.liveTargets++
	return rt, nil
}

func (b *Backend) createImageView(image vulkan.Image) (vulkan.ImageView, error) {
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   b.format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vulkan.ImageView
	if res := vulkan.CreateImageView(b.device, &viewInfo, nil, &view); res != vulkan.Success {
		return vulkan.ImageView(vulkan.NullHandle), vulkan.Error(res)
	}
	return view, nil
}

func (b *Backend) BindRenderTarget(rt render.RenderTarget) {
	if rt == nil {
		b.bound = nil
		return
	}
	b.bound = rt.(*renderTarget)
}

func (b *Backend) ReleaseRenderTarget(rt render.RenderTarget) {
	t, ok := rt.(*renderTarget)
	if !ok || t == nil || t.released {
		return
	}
	if b.bound == t {
		b.bound = nil
	}
	b.waitIdle()
	b.destroyTarget(t)
	t.released = true
	b.liveTargets--
}

func (b *Backend) destroyTarget(t *renderTarget) {
	for _, fb := range t.framebuffers {
		vulkan.DestroyFramebuffer(b.device, fb, nil)
	}
	for _, view := range t.views {
		vulkan.DestroyImageView(b.device, view, nil)
	}
	t.framebuffers, t.views = nil, nil
}

func (b *Backend) SetViewport(vp render.Viewport) {
	b.viewport = vulkan.Viewport{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}
}
