package vk

import (
	"errors"
	"fmt"

	"github.com/vulkan-go/vulkan"

	"Trigon/internal/render"
)

// frameState is the one frame being recorded between Clear and Present.
type frameState struct {
	recording  bool
	cmd        vulkan.CommandBuffer
	imageIndex uint32
}

// frameSync is the fence, acquire and submit traffic around one frame.
type frameSync interface {
	waitFence()
	resetFence()
	acquire() (uint32, vulkan.Result)
	beginCommands() vulkan.Result
	// drain consumes a signalled imageAvailable without rendering and
	// waits for the queue, leaving the fence untouched.
	drain() vulkan.Result
}

type deviceSync struct{ b *Backend }

func (s deviceSync) waitFence() {
	vulkan.WaitForFences(s.b.device, 1, []vulkan.Fence{s.b.inFlight}, vulkan.True, vulkan.MaxUint64)
}

func (s deviceSync) resetFence() {
	vulkan.ResetFences(s.b.device, 1, []vulkan.Fence{s.b.inFlight})
}

func (s deviceSync) acquire() (uint32, vulkan.Result) {
	var imageIndex uint32
	res := vulkan.AcquireNextImage(s.b.device, s.b.swapchain, vulkan.MaxUint64, s.b.imageAvailable, vulkan.Fence(vulkan.NullHandle), &imageIndex)
	return imageIndex, res
}

func (s deviceSync) beginCommands() vulkan.Result {
	vulkan.ResetCommandBuffer(s.b.commandBuffer, 0)
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	return vulkan.BeginCommandBuffer(s.b.commandBuffer, &beginInfo)
}

func (s deviceSync) drain() vulkan.Result {
	submitInfo := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{s.b.imageAvailable},
		PWaitDstStageMask:  []vulkan.PipelineStageFlags{vulkan.PipelineStageFlags(vulkan.PipelineStageAllCommandsBit)},
	}
	if res := vulkan.QueueSubmit(s.b.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, vulkan.Fence(vulkan.NullHandle)); res != vulkan.Success {
		return res
	}
	return vulkan.QueueWaitIdle(s.b.graphicsQueue)
}

func (b *Backend) frameSync() frameSync {
	if b.sync != nil {
		return b.sync
	}
	return deviceSync{b}
}

// abandonImage gives up on an acquired image before anything was submitted.
func (b *Backend) abandonImage() {
	if res := b.frameSync().drain(); res != vulkan.Success {
		render.Logger().Error("drain image semaphore", "err", vulkan.Error(res))
	}
}

// Clear waits for the previous frame, acquires the next back buffer and
// opens the render pass, which clears it to c. The fence stays signalled
// until Present submits.
func (b *Backend) Clear(c render.Color) error {
	if b.bound == nil {
		return errors.New("clear: no render target bound")
	}
	if b.frame.recording {
		return errors.New("clear: frame already recording")
	}
	sync := b.frameSync()
	sync.waitFence()

	imageIndex, res := sync.acquire()
	if res == vulkan.ErrorOutOfDate {
		return fmt.Errorf("acquire next image: %w", render.ErrSurfaceLost)
	}
	if res != vulkan.Success && res != vulkan.Suboptimal {
		return fmt.Errorf("acquire next image: %w", vulkan.Error(res))
	}
	if int(imageIndex) >= len(b.bound.framebuffers) {
		b.abandonImage()
		return fmt.Errorf("acquire next image: index %d outside render target: %w", imageIndex, render.ErrSurfaceLost)
	}
	if res := sync.beginCommands(); res != vulkan.Success {
		b.abandonImage()
		return fmt.Errorf("begin command buffer: %w", vulkan.Error(res))
	}

	cb := b.commandBuffer
	renderArea := vulkan.Rect2D{Extent: b.bound.extent}
	renderPassInfo := vulkan.RenderPassBeginInfo{
		SType:           vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:      b.renderPass,
		Framebuffer:     b.bound.framebuffers[imageIndex],
		RenderArea:      renderArea,
		ClearValueCount: 1,
		PClearValues:    []vulkan.ClearValue{vulkan.NewClearValue(c[:])},
	}
	vulkan.CmdBeginRenderPass(cb, &renderPassInfo, vulkan.SubpassContentsInline)
	vulkan.CmdSetViewport(cb, 0, 1, []vulkan.Viewport{b.viewport})
	vulkan.CmdSetScissor(cb, 0, 1, []vulkan.Rect2D{renderArea})
	if b.pipeline != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointGraphics, b.pipeline)
	}

	b.frame = frameState{recording: true, cmd: cb, imageIndex: imageIndex}
	return nil
}

func (b *Backend) Draw(vertexCount uint32) error {
	if !b.frame.recording {
		return errors.New("draw: no frame recording")
	}
	if b.vertexBuffer == vulkan.Buffer(vulkan.NullHandle) {
		return errors.New("draw: no vertex buffer")
	}
	vulkan.CmdBindVertexBuffers(b.frame.cmd, 0, 1, []vulkan.Buffer{b.vertexBuffer}, []vulkan.DeviceSize{0})
	vulkan.CmdDraw(b.frame.cmd, vertexCount, 1, 0, 0)
	return nil
}

// Present submits the recorded frame and queues the image for display.
// FIFO presentation makes every present wait for vertical blank, so the
// only supported syncInterval is 1.
func (b *Backend) Present(syncInterval int) error {
	if !b.frame.recording {
		return errors.New("present: no frame recording")
	}
	if syncInterval != 1 {
		return fmt.Errorf("present: sync interval %d unsupported", syncInterval)
	}
	cb := b.frame.cmd
	imageIndex := b.frame.imageIndex
	b.frame = frameState{}

	vulkan.CmdEndRenderPass(cb)
	if res := vulkan.EndCommandBuffer(cb); res != vulkan.Success {
		b.abandonImage()
		return fmt.Errorf("end command buffer: %w", vulkan.Error(res))
	}

	submitInfo := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{b.imageAvailable},
		PWaitDstStageMask:    []vulkan.PipelineStageFlags{vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{cb},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{b.renderFinished},
	}
	b.frameSync().resetFence()
	if res := vulkan.QueueSubmit(b.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, b.inFlight); res != vulkan.Success {
		return fmt.Errorf("queue submit: %w", vulkan.Error(res))
	}

	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{b.renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{b.swapchain},
		PImageIndices:      []uint32{imageIndex},
	}
	res := vulkan.QueuePresent(b.presentQueue, &presentInfo)
	if res == vulkan.ErrorOutOfDate || res == vulkan.Suboptimal {
		return fmt.Errorf("queue present: %w", render.ErrSurfaceLost)
	}
	if res != vulkan.Success {
		return fmt.Errorf("queue present: %w", vulkan.Error(res))
	}
	return nil
}
