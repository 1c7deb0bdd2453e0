package assets

import "github.com/spaghettifunk/ludo/engine/renderer/metadata"

// Loader turns a file into a resource. params carries type specific options
// such as *metadata.ImageResourceParams.
type Loader interface {
	Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error)
	Unload(*metadata.Resource) error
}
