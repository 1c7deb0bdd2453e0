package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/ludo/engine/assets/loaders"
	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Indexes the files of the asset folder and loads them with the
 * loader registered for their type. With watching enabled, a goroutine keeps
 * the index current and fires EventCodeAssetChanged for every change.
 */
type AssetManager struct {
	folder  string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader
	events  *core.EventSystem

	mutex sync.RWMutex

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
}

func NewAssetManager(folder string, events *core.EventSystem) (*AssetManager, error) {
	if folder == "" {
		err := fmt.Errorf("asset folder must be set: %w", core.ErrValidation)
		core.LogError(err.Error())
		return nil, err
	}
	return &AssetManager{
		folder:  filepath.Clean(folder),
		assets:  make(map[string]AssetInfo),
		loaders: make(map[metadata.ResourceType]Loader),
		events:  events,
	}, nil
}

func (am *AssetManager) Initialize(watch bool) error {
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeModel, &loaders.ModelLoader{})

	if err := am.index(); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogDebug("indexed %d assets under '%s'", am.Count(), am.folder)

	if !watch {
		return nil
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	am.fsnotify = fsWatch
	if err := am.watchRecursive(am.folder); err != nil {
		am.fsnotify.Close()
		am.fsnotify = nil
		core.LogError(err.Error())
		return err
	}
	am.done = make(chan struct{})
	am.stopped = make(chan struct{})
	go am.start()
	return nil
}

// Shutdown stops the watcher, if any, and waits for it to exit.
func (am *AssetManager) Shutdown() error {
	if am.fsnotify == nil {
		return nil
	}
	close(am.done)
	<-am.stopped
	am.fsnotify = nil
	return nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

/**
 * @brief Loads the file at path with the loader of resourceType. Files that
 * are not indexed yet are accepted when they exist and their extension
 * matches the requested type.
 */
func (am *AssetManager) LoadAsset(path string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	key := filepath.Clean(path)

	am.mutex.RLock()
	asset, exists := am.assets[key]
	am.mutex.RUnlock()
	if !exists {
		if _, err := os.Stat(key); err != nil {
			return nil, fmt.Errorf("asset not found: %s: %w", path, core.ErrNotFound)
		}
		asset = AssetInfo{Path: key, Type: determineAssetType(key)}
	}
	if asset.Type != resourceType {
		return nil, fmt.Errorf("asset '%s' is a %s, not a %s: %w", path, asset.Type, resourceType, core.ErrUnsupportedFormat)
	}

	loader, loaderExists := am.loaders[resourceType]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", resourceType)
	}
	resource, err := loader.Load(key, resourceType, params)
	if err != nil {
		return nil, err
	}

	asset.LastLoaded = time.Now()
	am.mutex.Lock()
	am.assets[key] = asset
	am.mutex.Unlock()
	return resource, nil
}

func (am *AssetManager) UnloadAsset(resource *metadata.Resource) error {
	if resource == nil {
		return nil
	}
	am.mutex.RLock()
	asset, exists := am.assets[filepath.Clean(resource.FullPath)]
	am.mutex.RUnlock()
	if !exists {
		return nil
	}
	if loader, ok := am.loaders[asset.Type]; ok {
		return loader.Unload(resource)
	}
	return nil
}

// Asset returns the index entry of path.
func (am *AssetManager) Asset(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	asset, ok := am.assets[filepath.Clean(path)]
	return asset, ok
}

// Assets returns the indexed assets of a type sorted by path.
func (am *AssetManager) Assets(assetType metadata.ResourceType) []AssetInfo {
	am.mutex.RLock()
	var out []AssetInfo
	for _, asset := range am.assets {
		if asset.Type == assetType {
			out = append(out, asset)
		}
	}
	am.mutex.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) index() error {
	return filepath.WalkDir(am.folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			am.handleFileEvent(path)
		}
		return nil
	})
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("cannot watch '%s': %s", e.Name, err.Error())
					}
				}
				continue
			}
			switch {
			case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if !am.handleFileEvent(e.Name) {
					continue
				}
			case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if !am.removeAsset(e.Name) {
					continue
				}
			default:
				continue
			}
			core.LogDebug("asset changed: %s (%s)", e.Name, e.Op)
			if am.events != nil {
				context := core.EventContext{}
				context.Data.Path = filepath.Clean(e.Name)
				am.events.Fire(core.EventCodeAssetChanged, am, context)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds path and every directory below it to the watch list,
// indexing the files found on the way.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// handleFileEvent indexes a created or modified file. It reports false for
// files of no known type.
func (am *AssetManager) handleFileEvent(path string) bool {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return false
	}
	key := filepath.Clean(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	asset := am.assets[key]
	asset.Path = key
	asset.Type = assetType
	am.assets[key] = asset
	return true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) bool {
	key := filepath.Clean(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	_, ok := am.assets[key]
	delete(am.assets, key)
	return ok
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".glsl", ".vert", ".frag", ".geom":
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp", ".tga":
		return metadata.ResourceTypeImage
	case ".mtl":
		return metadata.ResourceTypeMaterial
	case ".bin":
		return metadata.ResourceTypeBinary
	case ".obj", ".gltf", ".glb":
		return metadata.ResourceTypeModel
	default:
		return metadata.ResourceTypeNone
	}
}
