package math

import "github.com/chewxy/math32"

/**
 * @brief Creates and returns a perspective matrix. Typically used to render 3d scenes.
 *
 * @param fovRadians The vertical field of view in radians.
 * @param aspectRatio The aspect ratio.
 * @param nearClip The near clipping plane distance.
 * @param farClip The far clipping plane distance.
 */
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	halfTanFov := math32.Tan(fovRadians * 0.5)
	out_matrix := Mat4{}
	out_matrix.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out_matrix.Data[5] = 1.0 / halfTanFov
	out_matrix.Data[10] = -((farClip + nearClip) / (farClip - nearClip))
	out_matrix.Data[11] = -1.0
	out_matrix.Data[14] = -((2.0 * farClip * nearClip) / (farClip - nearClip))
	return out_matrix
}

/**
 * @brief Creates and returns a matrix looking at target from the
 * perspective of position.
 */
func NewMat4LookAt(position, target, up Vec3) Mat4 {
	zAxis := target.Sub(position).Normalize()
	xAxis := zAxis.Cross(up).Normalize()
	yAxis := xAxis.Cross(zAxis)

	out_matrix := Mat4{}
	out_matrix.Data[0] = xAxis.X
	out_matrix.Data[1] = yAxis.X
	out_matrix.Data[2] = -zAxis.X
	out_matrix.Data[4] = xAxis.Y
	out_matrix.Data[5] = yAxis.Y
	out_matrix.Data[6] = -zAxis.Y
	out_matrix.Data[8] = xAxis.Z
	out_matrix.Data[9] = yAxis.Z
	out_matrix.Data[10] = -zAxis.Z
	out_matrix.Data[12] = -xAxis.Dot(position)
	out_matrix.Data[13] = -yAxis.Dot(position)
	out_matrix.Data[14] = zAxis.Dot(position)
	out_matrix.Data[15] = 1.0
	return out_matrix
}
