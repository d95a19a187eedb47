package geotifftest

// NoData is the GDAL no-data value used by the fixtures.
const NoData = "-3.4028234663852886e+38"

// Constant returns a tiled, uncompressed, PixelIsArea grid covering longitudes
// 4 to 36 and latitudes 48 to 72 at one degree resolution where every sample
// is value.
func Constant(value float32) []byte {
	return Encode(Options{
		Width:       32,
		Length:      24,
		TileWidth:   16,
		TileLength:  16,
		PixelScale:  [3]float64{1, 1, 0},
		Tiepoint:    [6]float64{0, 0, 0, 4, 72, 0},
		RasterType:  1,
		GeodeticCRS: 4258,
		Sample: func(col, row int) float32 {
			return value
		},
	})
}

// Ramp returns a stripped, LZW-compressed, PixelIsPoint grid with 10 columns
// and 8 rows whose sample centers lie at integer longitudes 0 to 9 and
// latitudes 68 down to 61. The sample at (col, row) is col+10*row, except for
// the samples with col >= 8 and row >= 6, which are no data.
func Ramp() []byte {
	return Encode(Options{
		Width:        10,
		Length:       8,
		RowsPerStrip: 3,
		LZW:          true,
		PixelScale:   [3]float64{1, 1, 0},
		Tiepoint:     [6]float64{0, 0, 0, 0, 68, 0},
		RasterType:   2,
		GeodeticCRS:  4326,
		NoData:       NoData,
		Sample:       RampSample,
	})
}

// RampSample returns the sample at (col, row) in Ramp.
func RampSample(col, row int) float32 {
	if col >= 8 && row >= 6 {
		return -3.4028234663852886e+38
	}
	return float32(col + 10*row)
}

// HalfEmpty returns a tiled, uncompressed, PixelIsArea grid of two 16x16
// tiles. Every sample in the left tile is one and every sample in the right
// tile is no data.
func HalfEmpty() []byte {
	return Encode(Options{
		Width:       32,
		Length:      16,
		TileWidth:   16,
		TileLength:  16,
		PixelScale:  [3]float64{1, 1, 0},
		Tiepoint:    [6]float64{0, 0, 0, 0, 16, 0},
		RasterType:  1,
		GeodeticCRS: 4326,
		NoData:      NoData,
		Sample: func(col, row int) float32 {
			if col >= 16 {
				return -3.4028234663852886e+38
			}
			return 1
		},
	})
}
