package geoid

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// A GridSet is a set of named GeoTIFF grids stored in one or more file
// systems. Each grid is decoded at most once while it remains in the cache.
type GridSet struct {
	mutex              sync.Mutex
	fsyss              []fs.FS
	missingGrids       sync.Map
	geoTIFFGridOptions []GeoTIFFGridOption
	cacheSize          int
	gridCache          *lru.Cache[string, *GeoTIFFGrid]
}

// A GridSetOption sets an option on a GridSet.
type GridSetOption func(*GridSet)

// NewGridSet returns a new GridSet with the given options.
func NewGridSet(options ...GridSetOption) (*GridSet, error) {
	s := &GridSet{
		cacheSize: 4,
	}
	for _, option := range options {
		option(s)
	}

	var err error
	s.gridCache, err = lru.New[string, *GeoTIFFGrid](s.cacheSize)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func WithCacheSize(cacheSize int) GridSetOption {
	return func(s *GridSet) {
		s.cacheSize = cacheSize
	}
}

// WithFS adds fsys to the file systems searched for grids. File systems are
// searched in the order in which they are added.
func WithFS(fsys fs.FS) GridSetOption {
	return func(s *GridSet) {
		if fsys != nil {
			s.fsyss = append(s.fsyss, fsys)
		}
	}
}

func WithGeoTIFFGridOptions(geoTIFFGridOptions ...GeoTIFFGridOption) GridSetOption {
	return func(s *GridSet) {
		s.geoTIFFGridOptions = geoTIFFGridOptions
	}
}

// Grid returns the grid called name. If no file system contains name then the
// returned error wraps fs.ErrNotExist.
func (s *GridSet) Grid(name string) (*GeoTIFFGrid, error) {
	if _, ok := s.missingGrids.Load(name); ok {
		missingGridCacheHits.Inc()
		return nil, notExistError(name)
	}

	if grid, ok := s.gridCache.Get(name); ok {
		gridCacheHits.Inc()
		return grid, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.missingGrids.Load(name); ok {
		missingGridCacheHits.Inc()
		return nil, notExistError(name)
	}

	if grid, ok := s.gridCache.Get(name); ok {
		gridCacheHits.Inc()
		return grid, nil
	}

	gridCacheMisses.Inc()

	grid, err := s.getGrid(name)
	if err != nil {
		return nil, err
	}

	if eviction := s.gridCache.Add(name, grid); eviction {
		gridCacheEvictions.Inc()
	}

	return grid, nil
}

// Names returns the names of all GeoTIFF files in s's file systems.
func (s *GridSet) Names() ([]string, error) {
	var names []string
	for _, fsys := range s.fsyss {
		for _, pattern := range []string{"*.tif", "*.tiff", "*.TIF", "*.TIFF"} {
			matches, err := fs.Glob(fsys, pattern)
			if err != nil {
				return nil, err
			}
			names = append(names, matches...)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// getGrid reads and decodes the grid called name from the first file system
// that contains it.
func (s *GridSet) getGrid(name string) (*GeoTIFFGrid, error) {
	for _, fsys := range s.fsyss {
		switch data, err := fs.ReadFile(fsys, name); {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return nil, err
		default:
			grid, err := DecodeGeoTIFFGrid(NewByteReader(data), s.geoTIFFGridOptions...)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return grid, nil
		}
	}
	s.missingGrids.Store(name, struct{}{})
	return nil, notExistError(name)
}

func notExistError(name string) error {
	return &fs.PathError{
		Op:   "open",
		Path: name,
		Err:  fs.ErrNotExist,
	}
}
