package loaders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

// ModelLoader picks the scene loader matching the file extension.
type ModelLoader struct {
	obj  ObjLoader
	gltf GltfLoader
}

func (ml *ModelLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return ml.obj.Load(path, assetType, params)
	case ".gltf", ".glb":
		return ml.gltf.Load(path, assetType, params)
	}
	return nil, fmt.Errorf("model '%s': unknown extension: %w", path, core.ErrUnsupportedFormat)
}

func (ml *ModelLoader) Unload(*metadata.Resource) error {
	return nil
}
