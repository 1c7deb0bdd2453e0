package astrum

const (
	// Planet radius in world units. The unit sphere is scaled up to it.
	TerraRadius float32 = 100
	// Outer radius of the atmosphere relative to TerraRadius.
	TerraAtmosphereScale float32 = 1.25

	// Sections the planet is cut into are the icosahedron faces split this
	// many times minus one.
	TerraSectionDivisions uint32 = 2
	// Divisions of the sections facing the camera and of the others.
	TerraNearDivisions uint32 = 6
	TerraFarDivisions  uint32 = 3
	// Sections whose triangle reaches this far towards the camera, as the
	// cosine of the angle to the view direction, are drawn in detail.
	TerraNearThreshold float32 = 0.5

	BloomIterations uint32  = 5
	BloomThreshold  float32 = 0.1

	// Imported models circle the planet at this distance from its center.
	ModelOrbitRadius float32 = TerraRadius * 1.5
	// Radians per second.
	ModelOrbitSpeed float32 = 0.2
	ModelSpinSpeed  float32 = 1

	CameraDistance float32 = TerraRadius * 3.5
	CameraFOV      float32 = 60
	CameraNear     float32 = 0.1
	CameraFar      float32 = 10000
)
