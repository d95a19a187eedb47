package geoid

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	"github.com/maypok86/otter/v2"
	"golang.org/x/image/tiff/lzw"
)

const (
	tagGeoDoubleParams = 34736
	tagGeoASCIIParams  = 34737

	compressionNone = 1
	compressionLZW  = 5

	sampleFormatIEEEFP = 3
)

var errShortRead = errors.New("short read")

// A ReadAtReadSeeker can be read sequentially and at arbitrary offsets.
// *os.File and *ByteReader are ReadAtReadSeekers.
type ReadAtReadSeeker interface {
	io.ReaderAt
	io.ReadSeeker
}

// A GeoTIFFGrid is a grid of float32 samples decoded from a GeoTIFF.
type GeoTIFFGrid struct {
	r                     ReadAtReadSeeker
	imageWidth            int
	imageLength           int
	tileWidth             int
	tileLength            int
	tilesAcross           int
	tilesDown             int
	stripped              bool
	compression           int
	tileOffsets           []uint64
	tileByteCounts        []uint64
	smallestTileByteCount uint64
	tileSampleCount       int
	tileByteCountFull     int
	tileCacheSizeBytes    int
	tileSamplesCache      *otter.Cache[TileCoord, []float32]
	emptyTileMutex        sync.Mutex
	emptyTileBytes        []byte
	hasNoData             bool
	noData                float32
	scaleX                float64
	scaleY                float64
	tiepointI             float64
	tiepointJ             float64
	tiepointX             float64
	tiepointY             float64
	pixelOffset           float64
	geoKeys               *ParsedGeoKeys
}

// A GeoTIFFGridOption sets an option on a GeoTIFFGrid.
type GeoTIFFGridOption func(*GeoTIFFGrid)

// GridInfo describes the size and extent of a grid.
type GridInfo struct {
	Rows     int
	Cols     int
	EPSG     int
	MinLat   float64
	MaxLat   float64
	MinLon   float64
	MaxLon   float64
	NoData   float64
	Stripped bool
}

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint16    `tiff:"field,tag=256"`
	ImageLength               uint16    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	StripOffsets              []uint64  `tiff:"field,tag=273"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	RowsPerStrip              uint16    `tiff:"field,tag=278"`
	StripByteCounts           []uint64  `tiff:"field,tag=279"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// DecodeGeoTIFFGrid decodes a GeoTIFF grid from r. Samples are read from r
// lazily, so r must remain readable for the lifetime of the returned grid.
//
// Only single-image, little-endian GeoTIFFs with one float32 sample per pixel,
// no predictor, and no or LZW compression are supported.
func DecodeGeoTIFFGrid(r ReadAtReadSeeker, options ...GeoTIFFGridOption) (*GeoTIFFGrid, error) {
	f := &GeoTIFFGrid{
		r:                  r,
		tileCacheSizeBytes: 32 << 20, // 32MB.
	}
	for _, option := range options {
		option(f)
	}

	var byteOrder [2]byte
	switch n, err := r.ReadAt(byteOrder[:], 0); {
	case n != len(byteOrder):
		return nil, errShortRead
	case err != nil && !errors.Is(err, io.EOF):
		return nil, err
	case byteOrder != [2]byte{'I', 'I'}:
		return nil, errors.ErrUnsupported
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	tiffTIFF, err := tiff.Parse(r, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}

	if len(tiffTIFF.IFDs()) != 1 {
		return nil, fmt.Errorf("found %d IFDs, expected 1", len(tiffTIFF.IFDs()))
	}

	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	if ifd.BitsPerSample != 32 ||
		ifd.SampleFormat != sampleFormatIEEEFP ||
		ifd.SamplesPerPixel != 1 ||
		ifd.PlanarConfiguration > 1 ||
		ifd.Predictor > 1 ||
		len(ifd.ModelPixelScaleTag) != 3 ||
		len(ifd.ModelTiepointTag) != 6 {
		return nil, errors.ErrUnsupported
	}

	switch ifd.Compression {
	case 0, compressionNone:
		f.compression = compressionNone
	case compressionLZW:
		f.compression = compressionLZW
	default:
		return nil, errors.ErrUnsupported
	}

	f.imageWidth = int(ifd.ImageWidth)
	f.imageLength = int(ifd.ImageLength)
	if f.imageWidth == 0 || f.imageLength == 0 {
		return nil, errors.New("empty image")
	}

	switch {
	case ifd.TileWidth != 0 && ifd.TileLength != 0:
		f.tileWidth = int(ifd.TileWidth)
		f.tileLength = int(ifd.TileLength)
		f.tileOffsets = ifd.TileOffsets
		f.tileByteCounts = ifd.TileByteCounts
	case len(ifd.StripOffsets) != 0:
		// A strip is a tile as wide as the image.
		f.stripped = true
		f.tileWidth = f.imageWidth
		f.tileLength = int(ifd.RowsPerStrip)
		if f.tileLength == 0 || f.tileLength > f.imageLength {
			f.tileLength = f.imageLength
		}
		f.tileOffsets = ifd.StripOffsets
		f.tileByteCounts = ifd.StripByteCounts
	default:
		return nil, errors.ErrUnsupported
	}
	f.tilesAcross = (f.imageWidth + f.tileWidth - 1) / f.tileWidth
	f.tilesDown = (f.imageLength + f.tileLength - 1) / f.tileLength
	tilesPerImage := f.tilesAcross * f.tilesDown
	if len(f.tileByteCounts) != tilesPerImage || len(f.tileOffsets) != tilesPerImage {
		return nil, errors.New("incorrect number of tile byte counts or offsets")
	}
	f.smallestTileByteCount = slices.Min(f.tileByteCounts)
	f.tileSampleCount = f.tileWidth * f.tileLength
	f.tileByteCountFull = f.tileSampleCount * int(ifd.BitsPerSample) / 8

	if ifd.GDALNoData != "" {
		noData, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimRight(ifd.GDALNoData, "\x00")), 64)
		if err != nil {
			return nil, fmt.Errorf("GDAL_NODATA: %w", err)
		}
		f.hasNoData = true
		f.noData = float32(noData)
	}

	if len(ifd.GeoKeyDirectoryTag) != 0 {
		f.geoKeys, err = ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, ifd.GeoASCIIParamsTag)
		if err != nil {
			return nil, fmt.Errorf("GeoKeyDirectory: %w", err)
		}
	} else {
		f.geoKeys = &ParsedGeoKeys{}
	}

	scaleX, scaleY, scaleZ := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1], ifd.ModelPixelScaleTag[2]
	if scaleX <= 0 || scaleY <= 0 || scaleZ != 0 {
		return nil, errors.ErrUnsupported
	}
	f.scaleX = scaleX
	f.scaleY = scaleY
	f.tiepointI, f.tiepointJ = ifd.ModelTiepointTag[0], ifd.ModelTiepointTag[1]
	f.tiepointX, f.tiepointY = ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]
	if f.geoKeys.RasterType() == RasterPixelIsArea {
		f.pixelOffset = 0.5
	}

	tileCacheCount := max(f.tileCacheSizeBytes/f.tileByteCountFull, 1)
	f.tileSamplesCache, err = otter.New(&otter.Options[TileCoord, []float32]{
		MaximumSize: tileCacheCount,
	})
	if err != nil {
		return nil, err
	}

	return f, nil
}

// WithTileCacheSize sets the size of the decoded tile cache in bytes.
func WithTileCacheSize(tileCacheSize int) GeoTIFFGridOption {
	return func(f *GeoTIFFGrid) {
		f.tileCacheSizeBytes = tileCacheSize
	}
}

// Size returns the number of columns and rows in f.
func (f *GeoTIFFGrid) Size() (int, int) {
	return f.imageWidth, f.imageLength
}

// GeoKeys returns f's parsed GeoKeys.
func (f *GeoTIFFGrid) GeoKeys() *ParsedGeoKeys {
	return f.geoKeys
}

// ModelToGrid returns the grid coordinate of the model coordinate (x, y), i.e.
// longitude and latitude for geographic grids.
func (f *GeoTIFFGrid) ModelToGrid(x, y float64) GridCoord {
	return GridCoord{
		Col: (x-f.tiepointX)/f.scaleX + f.tiepointI - f.pixelOffset,
		Row: (f.tiepointY-y)/f.scaleY + f.tiepointJ - f.pixelOffset,
	}
}

// GridToModel returns the model coordinate of gridCoord.
func (f *GeoTIFFGrid) GridToModel(gridCoord GridCoord) (float64, float64) {
	x := f.tiepointX + (gridCoord.Col+f.pixelOffset-f.tiepointI)*f.scaleX
	y := f.tiepointY - (gridCoord.Row+f.pixelOffset-f.tiepointJ)*f.scaleY
	return x, y
}

// ElevationAt returns the bilinearly interpolated value at gridCoord, or NaN
// if there is no data.
func (f *GeoTIFFGrid) ElevationAt(ctx context.Context, gridCoord GridCoord) (float64, error) {
	values, err := InterpolateBilinear(ctx, f, []GridCoord{gridCoord})
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// Info returns information about f. The extent covers the pixel edges for
// PixelIsArea grids and the sample centers for PixelIsPoint grids.
func (f *GeoTIFFGrid) Info() GridInfo {
	edge := f.pixelOffset
	x0, y0 := f.GridToModel(GridCoord{Col: -edge, Row: -edge})
	x1, y1 := f.GridToModel(GridCoord{
		Col: float64(f.imageWidth-1) + edge,
		Row: float64(f.imageLength-1) + edge,
	})
	info := GridInfo{
		Rows:     f.imageLength,
		Cols:     f.imageWidth,
		EPSG:     f.geoKeys.EPSG(),
		MinLat:   min(y0, y1),
		MaxLat:   max(y0, y1),
		MinLon:   min(x0, x1),
		MaxLon:   max(x0, x1),
		NoData:   math.NaN(),
		Stripped: f.stripped,
	}
	if f.hasNoData {
		info.NoData = float64(f.noData)
	}
	return info
}

// Sample returns a single sample from f.
func (f *GeoTIFFGrid) Sample(ctx context.Context, coord Coord) (float64, error) {
	tileCoord, ok := f.tileCoord(coord)
	if !ok {
		return math.NaN(), nil
	}
	switch tileSamples, err := f.getTileSamplesCached(ctx, tileCoord); {
	case errors.Is(err, otter.ErrNotFound):
		return math.NaN(), nil
	case err != nil:
		return 0, err
	default:
		return f.tileSample(tileSamples, coord), nil
	}
}

// Samples returns multiple samples from f. It is significantly faster than
// calling [Sample] for each coordinate.
func (f *GeoTIFFGrid) Samples(ctx context.Context, coords []Coord) ([]float64, error) {
	samples := make([]float64, len(coords))

	// Group indexes by tile coord.
	indexesByTileCoord := make(map[TileCoord][]int)
	for index, coord := range coords {
		tileCoord, ok := f.tileCoord(coord)
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		indexesByTileCoord[tileCoord] = append(indexesByTileCoord[tileCoord], index)
	}

	// Populate samples one tile at a time.
	for tileCoord, indexes := range indexesByTileCoord {
		switch tileSamples, err := f.getTileSamplesCached(ctx, tileCoord); {
		case errors.Is(err, otter.ErrNotFound):
			for _, index := range indexes {
				samples[index] = math.NaN()
			}
		case err != nil:
			return nil, err
		default:
			for _, index := range indexes {
				samples[index] = f.tileSample(tileSamples, coords[index])
			}
		}
	}

	return samples, nil
}

// tileByteCountUncompressed returns the number of bytes of decompressed data in
// the tile at tileCoord. The last strip of a stripped image may be shorter than
// the others.
func (f *GeoTIFFGrid) tileByteCountUncompressed(tileCoord TileCoord) int {
	if !f.stripped {
		return f.tileByteCountFull
	}
	rows := min(f.tileLength, f.imageLength-tileCoord.R*f.tileLength)
	return rows * f.tileWidth * 4
}

// getCompressedTileData returns the compressed tile data for the data at
// tileCoord. If the tile is known to be empty, it returns the error
// otter.ErrNotFound.
func (f *GeoTIFFGrid) getCompressedTileData(tileCoord TileCoord) ([]byte, error) {
	tileIndex := tileCoord.C + f.tilesAcross*tileCoord.R
	tileByteCount := f.tileByteCounts[tileIndex]
	tileOffset := f.tileOffsets[tileIndex]
	compressedData := make([]byte, tileByteCount)
	n, err := f.r.ReadAt(compressedData, int64(tileOffset))
	switch {
	case err != nil && !errors.Is(err, io.EOF):
		return nil, err
	case n != int(tileByteCount):
		return nil, errShortRead
	}

	f.emptyTileMutex.Lock()
	emptyTileBytes := f.emptyTileBytes
	f.emptyTileMutex.Unlock()
	if emptyTileBytes != nil && bytes.Equal(compressedData, emptyTileBytes) {
		return nil, otter.ErrNotFound
	}
	return compressedData, nil
}

// decompressTileData decompresses the tile data in compressedData.
func (f *GeoTIFFGrid) decompressTileData(tileCoord TileCoord, compressedData []byte) ([]byte, error) {
	tileData := make([]byte, f.tileByteCountFull)
	n := f.tileByteCountUncompressed(tileCoord)
	switch f.compression {
	case compressionLZW:
		r := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
		defer r.Close()
		if _, err := io.ReadFull(r, tileData[:n]); err != nil {
			return nil, err
		}
	default:
		if len(compressedData) < n {
			return nil, errShortRead
		}
		copy(tileData, compressedData[:n])
	}
	return tileData, nil
}

// decodeTileData decodes tileData.
func (f *GeoTIFFGrid) decodeTileData(tileData []byte) []float32 {
	tileSamples := make([]float32, f.tileSampleCount)
	for i := range f.tileSampleCount {
		b := binary.LittleEndian.Uint32(tileData[i*4 : (i+1)*4])
		tileSamples[i] = math.Float32frombits(b)
	}
	return tileSamples
}

// getTileSamples returns the tile samples at tileCoord.
func (f *GeoTIFFGrid) getTileSamples(ctx context.Context, tileCoord TileCoord) ([]float32, error) {
	tileCacheLoads.Inc()

	// Retrieve the compressed tile data.
	compressedTileData, err := f.getCompressedTileData(tileCoord)
	if err != nil {
		if errors.Is(err, otter.ErrNotFound) {
			emptyTiles.Inc()
		}
		return nil, err
	}

	// Decompress the tile data and decode it.
	tileData, err := f.decompressTileData(tileCoord, compressedTileData)
	if err != nil {
		return nil, err
	}
	tileSamples := f.decodeTileData(tileData)

	// If we do not know what an empty tile looks like compressed, check to see
	// if this is an empty tile, and, if so, use its bytes to detect empty tiles
	// before they are decompressed. We assume that the empty tile is the
	// smallest tile.
	if f.hasNoData && len(compressedTileData) == int(f.smallestTileByteCount) &&
		f.tileByteCountUncompressed(tileCoord) == f.tileByteCountFull {
		isEmptyTile := true
		for _, sample := range tileSamples {
			if sample != f.noData {
				isEmptyTile = false
				break
			}
		}
		if isEmptyTile {
			f.emptyTileMutex.Lock()
			if f.emptyTileBytes == nil {
				f.emptyTileBytes = compressedTileData
			}
			f.emptyTileMutex.Unlock()
			emptyTiles.Inc()
			return nil, otter.ErrNotFound
		}
	}

	return tileSamples, nil
}

// getTileSamplesCached returns the tile at tileCoord using f's cache.
func (f *GeoTIFFGrid) getTileSamplesCached(ctx context.Context, tileCoord TileCoord) ([]float32, error) {
	return f.tileSamplesCache.Get(ctx, tileCoord, otter.LoaderFunc[TileCoord, []float32](f.getTileSamples))
}

// tileCoord returns the tile coord for a given coordinate.
func (f *GeoTIFFGrid) tileCoord(coord Coord) (TileCoord, bool) {
	if coord.X < 0 || f.imageWidth <= coord.X || coord.Y < 0 || f.imageLength <= coord.Y {
		return TileCoord{}, false
	}
	return TileCoord{
		C: coord.X / f.tileWidth,
		R: coord.Y / f.tileLength,
	}, true
}

// tileSample returns the sample from tileSamples at coord.
func (f *GeoTIFFGrid) tileSample(tileSamples []float32, coord Coord) float64 {
	sample := tileSamples[coord.X%f.tileWidth+(coord.Y%f.tileLength)*f.tileWidth]
	if f.hasNoData && sample == f.noData {
		return math.NaN()
	}
	return float64(sample)
}
