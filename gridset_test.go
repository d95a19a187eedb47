package geoid_test

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-geoid"
	"github.com/twpayne/go-geoid/internal/geotifftest"
)

func TestGridSet_Grid(t *testing.T) {
	gridSet, err := geoid.NewGridSet(
		geoid.WithFS(fstest.MapFS{
			"nn2000.tif": &fstest.MapFile{Data: geotifftest.Constant(41.3)},
			"ramp.tiff":  &fstest.MapFile{Data: geotifftest.Ramp()},
			"bad.tif":    &fstest.MapFile{Data: []byte("not a GeoTIFF")},
			"README.md":  &fstest.MapFile{Data: []byte("# Grids\n")},
		}),
		geoid.WithFS(nil),
	)
	assert.NoError(t, err)

	grid, err := gridSet.Grid("nn2000.tif")
	assert.NoError(t, err)
	assert.Equal(t, 4258, grid.Info().EPSG)

	again, err := gridSet.Grid("nn2000.tif")
	assert.NoError(t, err)
	assert.True(t, grid == again)

	ramp, err := gridSet.Grid("ramp.tiff")
	assert.NoError(t, err)
	assert.Equal(t, 4326, ramp.Info().EPSG)

	for range 2 {
		_, err = gridSet.Grid("missing.tif")
		assert.IsError(t, err, fs.ErrNotExist)
		assert.EqualError(t, err, "open missing.tif: file does not exist")
	}

	_, err = gridSet.Grid("bad.tif")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, fs.ErrNotExist))

	names, err := gridSet.Names()
	assert.NoError(t, err)
	assert.Equal(t, []string{"bad.tif", "nn2000.tif", "ramp.tiff"}, names)
}

func TestGridSet_FSOrder(t *testing.T) {
	gridSet, err := geoid.NewGridSet(
		geoid.WithFS(fstest.MapFS{
			"nn2000.tif": &fstest.MapFile{Data: geotifftest.Constant(1)},
		}),
		geoid.WithFS(fstest.MapFS{
			"nn2000.tif": &fstest.MapFile{Data: geotifftest.Constant(2)},
			"other.tif":  &fstest.MapFile{Data: geotifftest.Constant(3)},
		}),
		geoid.WithCacheSize(1),
	)
	assert.NoError(t, err)

	for _, tc := range []struct {
		name     string
		expected float64
	}{
		{name: "nn2000.tif", expected: 1},
		{name: "other.tif", expected: 3},
		{name: "nn2000.tif", expected: 1},
	} {
		grid, err := gridSet.Grid(tc.name)
		assert.NoError(t, err)
		actual, err := grid.ElevationAt(t.Context(), grid.ModelToGrid(10.7, 59.9))
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
	}

	names, err := gridSet.Names()
	assert.NoError(t, err)
	assert.Equal(t, []string{"nn2000.tif", "other.tif"}, names)
}

func TestGridSet_NoFS(t *testing.T) {
	gridSet, err := geoid.NewGridSet()
	assert.NoError(t, err)
	_, err = gridSet.Grid("nn2000.tif")
	assert.IsError(t, err, fs.ErrNotExist)
	names, err := gridSet.Names()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(names))
}

func TestNewGridSet_InvalidCacheSize(t *testing.T) {
	_, err := geoid.NewGridSet(geoid.WithCacheSize(0))
	assert.Error(t, err)
}
