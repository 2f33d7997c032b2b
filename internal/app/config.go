package app

import (
	"os"
	"time"

	mgl32 "github.com/go-gl/mathgl/mgl32"

	"Trigon/internal/camera"
	"Trigon/internal/resize"
)

type Config struct {
	Title         string
	Width, Height uint32

	FovY      float32 // radians
	Near, Far float32
	Eye       mgl32.Vec3
	Target    mgl32.Vec3
	Up        mgl32.Vec3

	ShaderPath  string
	SettleDelay time.Duration
	Validation  bool
}

func DefaultConfig() Config {
	return Config{
		Title:       "Trigon",
		Width:       camera.DefaultWidth,
		Height:      camera.DefaultHeight,
		FovY:        camera.DefaultFovY,
		Near:        camera.DefaultNear,
		Far:         camera.DefaultFar,
		Eye:         mgl32.Vec3{0, 0, -3},
		Target:      mgl32.Vec3{0, 0, 0},
		Up:          mgl32.Vec3{0, 1, 0},
		ShaderPath:  "shaders/basic.wgsl",
		SettleDelay: resize.DefaultSettleDelay,
		Validation:  enableValidationLayers(),
	}
}

func enableValidationLayers() bool {
	val := os.Getenv("VK_VALIDATION")
	if val == "" {
		return true
	}
	switch val {
	case "0", "false", "False", "FALSE":
		return false
	default:
		return true
	}
}
