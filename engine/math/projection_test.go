package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookAtMovesTargetDownNegativeZ(t *testing.T) {
	view := NewMat4LookAt(NewVec3(0, 0, 5), NewVec3Zero(), NewVec3(0, 1, 0))

	assert.True(t, NewVec3Zero().Transform(view).Compare(NewVec3(0, 0, -5), 1e-5))
	assert.True(t, NewVec3(1, 0, 0).Transform(view).Compare(NewVec3(1, 0, -5), 1e-5))
	assert.True(t, NewVec3(0, 1, 5).Transform(view).Compare(NewVec3(0, 1, 0), 1e-5))
}

func TestPerspectiveMapsClipPlanes(t *testing.T) {
	projection := NewMat4Perspective(1.5707964, 1, 1, 10)

	clip := func(z float32) float32 {
		v := NewVec4(0, 0, z, 1)
		// row vector times matrix
		var out [4]float32
		for col := 0; col < 4; col++ {
			out[col] = v.X*projection.Data[col] + v.Y*projection.Data[4+col] + v.Z*projection.Data[8+col] + v.W*projection.Data[12+col]
		}
		return out[2] / out[3]
	}
	assert.InDelta(t, -1, clip(-1), 1e-5)
	assert.InDelta(t, 1, clip(-10), 1e-5)
	assert.InDelta(t, 1, projection.Data[5], 1e-5)
}
