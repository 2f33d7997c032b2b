package vk

import (
	"fmt"

	"github.com/vulkan-go/vulkan"

	"Trigon/internal/render"
)

var vertexFormats = map[render.Format]vulkan.Format{
	render.FormatFloat32:   vulkan.FormatR32Sfloat,
	render.FormatFloat32x2: vulkan.FormatR32g32Sfloat,
	render.FormatFloat32x3: vulkan.FormatR32g32b32Sfloat,
	render.FormatFloat32x4: vulkan.FormatR32g32b32a32Sfloat,
}

func vertexInput(layout render.InputLayout) ([]vulkan.VertexInputBindingDescription, []vulkan.VertexInputAttributeDescription, error) {
	bindings := []vulkan.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    layout.Stride,
		InputRate: vulkan.VertexInputRateVertex,
	}}
	attrs := make([]vulkan.VertexInputAttributeDescription, 0, len(layout.Attributes))
	for _, a := range layout.Attributes {
		f, ok := vertexFormats[a.Format]
		if !ok {
			return nil, nil, fmt.Errorf("vertex attribute %d: unsupported format %s", a.Location, a.Format)
		}
		attrs = append(attrs, vulkan.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   f,
			Offset:   a.Offset,
		})
	}
	return bindings, attrs, nil
}

// CreatePipeline builds the descriptor set layout, the pipeline layout and
// the graphics pipeline from one SPIR-V module holding both entry points.
func (b *Backend) CreatePipeline(desc render.PipelineDesc) error {
	bindings, attrs, err := vertexInput(desc.Layout)
	if err != nil {
		return err
	}

	uboBinding := vulkan.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
	}
	layoutInfo := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vulkan.DescriptorSetLayoutBinding{uboBinding},
	}
	if res := vulkan.CreateDescriptorSetLayout(b.device, &layoutInfo, nil, &b.descriptorSetLayout); res != vulkan.Success {
		return fmt.Errorf("create descriptor set layout: %w", vulkan.Error(res))
	}

	module, err := b.createShaderModule(desc.SPIRV)
	if err != nil {
		return err
	}
	defer vulkan.DestroyShaderModule(b.device, module, nil)

	shaderStages := []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: module,
			PName:  desc.VertexEntry + "\x00",
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: module,
			PName:  desc.FragmentEntry + "\x00",
		},
	}

	vertexInputState := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}
	inputAssembly := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vulkan.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vulkan.False,
	}
	// Viewport and scissor are set per frame.
	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicStates := []vulkan.DynamicState{
		vulkan.DynamicStateViewport,
		vulkan.DynamicStateScissor,
	}
	dynamicState := vulkan.PipelineDynamicStateCreateInfo{
		SType:             vulkan.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}
	// The triangle spins, so both faces must be drawn.
	rasterizer := vulkan.PipelineRasterizationStateCreateInfo{
		SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vulkan.False,
		RasterizerDiscardEnable: vulkan.False,
		PolygonMode:             vulkan.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vulkan.CullModeFlags(vulkan.CullModeNone),
		FrontFace:               vulkan.FrontFaceClockwise,
		DepthBiasEnable:         vulkan.False,
	}
	multisampling := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vulkan.SampleCount1Bit,
	}
	colorBlendAttachment := vulkan.PipelineColorBlendAttachmentState{
		ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit | vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
		BlendEnable:    vulkan.False,
	}
	colorBlending := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vulkan.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	pipelineLayoutInfo := vulkan.PipelineLayoutCreateInfo{
		SType:          vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vulkan.DescriptorSetLayout{b.descriptorSetLayout},
	}
	if res := vulkan.CreatePipelineLayout(b.device, &pipelineLayoutInfo, nil, &b.pipelineLayout); res != vulkan.Success {
		return fmt.Errorf("create pipeline layout: %w", vulkan.Error(res))
	}

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              b.pipelineLayout,
		RenderPass:          b.renderPass,
		Subpass:             0,
	}
	pipelines := make([]vulkan.Pipeline, 1)
	if res := vulkan.CreateGraphicsPipelines(b.device, vulkan.PipelineCache(vulkan.NullHandle), 1, []vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vulkan.Success {
		return fmt.Errorf("create graphics pipeline: %w", vulkan.Error(res))
	}
	b.pipeline = pipelines[0]
	return nil
}

func (b *Backend) createShaderModule(code []uint32) (vulkan.ShaderModule, error) {
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vulkan.ShaderModule
	if res := vulkan.CreateShaderModule(b.device, &createInfo, nil, &module); res != vulkan.Success {
		return vulkan.ShaderModule(vulkan.NullHandle), fmt.Errorf("create shader module: %w", vulkan.Error(res))
	}
	return module, nil
}

// CreateVertexBuffer uploads data once into host-visible memory.
func (b *Backend) CreateVertexBuffer(data []byte) error {
	size := vulkan.DeviceSize(len(data))
	buf, mem, err := b.createBuffer(size, vulkan.BufferUsageFlags(vulkan.BufferUsageVertexBufferBit), vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return err
	}
	b.vertexBuffer, b.vertexMemory = buf, mem
	if err := b.upload(mem, data); err != nil {
		return fmt.Errorf("vertex buffer: %w", err)
	}
	return nil
}

// CreateUniformBuffer creates the per-frame constant buffer and the
// descriptor set binding it at slot 0.
func (b *Backend) CreateUniformBuffer(size int) error {
	b.uniformSize = vulkan.DeviceSize(size)
	buf, mem, err := b.createBuffer(b.uniformSize, vulkan.BufferUsageFlags(vulkan.BufferUsageUniformBufferBit), vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return err
	}
	b.uniformBuffer, b.uniformMemory = buf, mem

	poolInfo := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: 1,
		PPoolSizes: []vulkan.DescriptorPoolSize{{
			Type:            vulkan.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
		}},
	}
	if res := vulkan.CreateDescriptorPool(b.device, &poolInfo, nil, &b.descriptorPool); res != vulkan.Success {
		return fmt.Errorf("create descriptor pool: %w", vulkan.Error(res))
	}

	allocInfo := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     b.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vulkan.DescriptorSetLayout{b.descriptorSetLayout},
	}
	if res := vulkan.AllocateDescriptorSets(b.device, &allocInfo, &b.descriptorSet); res != vulkan.Success {
		return fmt.Errorf("allocate descriptor set: %w", vulkan.Error(res))
	}

	write := vulkan.WriteDescriptorSet{
		SType:           vulkan.StructureTypeWriteDescriptorSet,
		DstSet:          b.descriptorSet,
		DstBinding:      0,
		DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		PBufferInfo: []vulkan.DescriptorBufferInfo{{
			Buffer: b.uniformBuffer,
			Offset: 0,
			Range:  b.uniformSize,
		}},
	}
	vulkan.UpdateDescriptorSets(b.device, 1, []vulkan.WriteDescriptorSet{write}, 0, nil)
	return nil
}

// WriteUniform copies data into the uniform buffer. Clear has already waited
// for the previous frame, so the GPU is not reading it.
func (b *Backend) WriteUniform(data []byte) error {
	if vulkan.DeviceSize(len(data)) != b.uniformSize {
		return fmt.Errorf("uniform write of %d bytes into %d byte buffer", len(data), b.uniformSize)
	}
	return b.upload(b.uniformMemory, data)
}

func (b *Backend) BindUniform(slot uint32) {
	if !b.frame.recording {
		return
	}
	vulkan.CmdBindDescriptorSets(b.frame.cmd, vulkan.PipelineBindPointGraphics, b.pipelineLayout, slot, 1, []vulkan.DescriptorSet{b.descriptorSet}, 0, nil)
}

func (b *Backend) releasePipeline() {
	if b.device == vulkan.Device(vulkan.NullHandle) {
		return
	}
	if b.descriptorPool != vulkan.DescriptorPool(vulkan.NullHandle) {
		vulkan.DestroyDescriptorPool(b.device, b.descriptorPool, nil)
	}
	if b.uniformBuffer != vulkan.Buffer(vulkan.NullHandle) {
		vulkan.DestroyBuffer(b.device, b.uniformBuffer, nil)
	}
	if b.uniformMemory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(b.device, b.uniformMemory, nil)
	}
	if b.vertexBuffer != vulkan.Buffer(vulkan.NullHandle) {
		vulkan.DestroyBuffer(b.device, b.vertexBuffer, nil)
	}
	if b.vertexMemory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(b.device, b.vertexMemory, nil)
	}
	if b.pipeline != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.DestroyPipeline(b.device, b.pipeline, nil)
	}
	if b.pipelineLayout != vulkan.PipelineLayout(vulkan.NullHandle) {
		vulkan.DestroyPipelineLayout(b.device, b.pipelineLayout, nil)
	}
	if b.descriptorSetLayout != vulkan.DescriptorSetLayout(vulkan.NullHandle) {
		vulkan.DestroyDescriptorSetLayout(b.device, b.descriptorSetLayout, nil)
	}
}
