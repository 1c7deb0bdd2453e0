package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	ResourceTypeNone ResourceType = iota
	/** @brief Image resource type. */
	ResourceTypeImage
	/** @brief Shader source resource type. */
	ResourceTypeShader
	/** @brief Scene resource type (meshes, bones, animations). */
	ResourceTypeModel
	/** @brief Material library referenced by a model. */
	ResourceTypeMaterial
	/** @brief Raw bytes, e.g. external glTF buffers. */
	ResourceTypeBinary
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeImage:
		return "image"
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeModel:
		return "model"
	case ResourceTypeMaterial:
		return "material"
	case ResourceTypeBinary:
		return "binary"
	}
	return "none"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}
