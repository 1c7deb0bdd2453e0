package metadata

/**
 * @brief Shader stages.
 */
type ShaderStage int

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageGeometry
	ShaderStageFragment
	ShaderStageCompute
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageGeometry:
		return "geometry"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageCompute:
		return "compute"
	}
	return "unknown"
}

/**
 * @brief A compiled shader stage.
 */
type Shader struct {
	ID     uint64
	Name   string
	Stage  ShaderStage
	Source string
	/** @brief Backend shader object. */
	Handle uint32
}
