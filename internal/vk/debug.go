package vk

import (
	"context"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/vulkan-go/vulkan"

	"Trigon/internal/render"
)

func validationLayersSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].LayerName[:])] = true
	}
	for _, l := range validationLayers {
		if !supported[l] {
			return false
		}
	}
	return true
}

// setupDebugCallback forwards validation messages to the render logger.
func (b *Backend) setupDebugCallback() error {
	if !b.validation {
		return nil
	}
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: debugReport,
	}
	if res := vulkan.CreateDebugReportCallback(b.instance, &createInfo, nil, &b.debugCallback); res != vulkan.Success {
		return fmt.Errorf("create debug callback: %w", vulkan.Error(res))
	}
	return nil
}

func debugReport(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
	render.Logger().Log(context.Background(), debugLevel(flags), message,
		"layer", layerPrefix, "code", messageCode, "object_type", objectType)
	return vulkan.False
}

func debugLevel(flags vulkan.DebugReportFlags) slog.Level {
	switch {
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportErrorBit) != 0:
		return slog.LevelError
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportWarningBit|vulkan.DebugReportPerformanceWarningBit) != 0:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}
