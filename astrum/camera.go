package astrum

import (
	"github.com/spaghettifunk/ludo/engine/math"
	"github.com/spaghettifunk/ludo/engine/memory"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
	"github.com/spaghettifunk/ludo/engine/systems"
)

/**
 * @brief A perspective camera. Its view and projection matrices live in the
 * frame context buffer every program reads at the context binding.
 */
type Camera struct {
	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3
	// Vertical field of view in degrees.
	FOV    float32
	Near   float32
	Far    float32
	Aspect float32

	context *memory.DoubleBuffer
}

func NewCamera(sm *systems.SystemManager, position, target math.Vec3) (*Camera, error) {
	front, err := sm.Heaps.Get(metadata.HeapInstances)
	if err != nil {
		return nil, err
	}
	back, err := sm.Heaps.Get(metadata.HeapHost)
	if err != nil {
		return nil, err
	}
	context, err := memory.NewDoubleBuffer(front, back, uint64(metadata.ContextSize))
	if err != nil {
		return nil, err
	}
	return &Camera{
		Position: position,
		Target:   target,
		Up:       math.NewVec3(0, 1, 0),
		FOV:      CameraFOV,
		Near:     CameraNear,
		Far:      CameraFar,
		Aspect:   1,
		context:  context,
	}, nil
}

// SetViewport updates the aspect ratio. A zero height is ignored.
func (c *Camera) SetViewport(width, height uint32) {
	if height == 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

func (c *Camera) View() math.Mat4 {
	return math.NewMat4LookAt(c.Position, c.Target, c.Up)
}

func (c *Camera) Projection() math.Mat4 {
	return math.NewMat4Perspective(math.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
}

// Direction is the unit vector from the camera towards its target.
func (c *Camera) Direction() math.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

/**
 * @brief Writes the matrices into the back half of the context. The front
 * half changes when the render program system binds it.
 */
func (c *Camera) Write() *memory.DoubleBuffer {
	data := c.context.Back().MustBytes()
	memory.WriteMat4(data, 0, c.View())
	memory.WriteMat4(data, uint64(metadata.Mat4Size), c.Projection())
	return c.context
}

func (c *Camera) Release() error {
	return c.context.Release()
}
