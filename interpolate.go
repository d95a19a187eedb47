package geoid

import (
	"context"
	"math"
)

// InterpolateBilinear returns the bilinear interpolation of raster's samples at
// each of gridCoords. The result is NaN for coordinates outside raster and for
// coordinates where any surrounding sample with a non-zero weight is NaN.
func InterpolateBilinear(ctx context.Context, raster Raster, gridCoords []GridCoord) ([]float64, error) {
	cols, rows := raster.Size()
	rasterCoords := make([]Coord, 4*len(gridCoords))
	for i, gridCoord := range gridCoords {
		// NaN fails both comparisons.
		if !(0 <= gridCoord.Col && gridCoord.Col <= float64(cols-1) &&
			0 <= gridCoord.Row && gridCoord.Row <= float64(rows-1)) {
			outside := Coord{X: -1, Y: -1}
			rasterCoords[4*i+0] = outside
			rasterCoords[4*i+1] = outside
			rasterCoords[4*i+2] = outside
			rasterCoords[4*i+3] = outside
			continue
		}
		x0 := int(gridCoord.Col)
		y0 := int(gridCoord.Row)
		x1 := min(x0+1, cols-1)
		y1 := min(y0+1, rows-1)
		rasterCoords[4*i+0] = Coord{X: x0, Y: y0}
		rasterCoords[4*i+1] = Coord{X: x1, Y: y0}
		rasterCoords[4*i+2] = Coord{X: x0, Y: y1}
		rasterCoords[4*i+3] = Coord{X: x1, Y: y1}
	}
	samples, err := raster.Samples(ctx, rasterCoords)
	if err != nil {
		return nil, err
	}
	result := make([]float64, len(gridCoords))
	for i, gridCoord := range gridCoords {
		if rasterCoords[4*i].X < 0 {
			result[i] = math.NaN()
			continue
		}
		dx := gridCoord.Col - math.Floor(gridCoord.Col)
		dy := gridCoord.Row - math.Floor(gridCoord.Row)
		result[i] = 0 +
			weighted(samples[4*i+0], (1-dx)*(1-dy)) +
			weighted(samples[4*i+1], dx*(1-dy)) +
			weighted(samples[4*i+2], (1-dx)*dy) +
			weighted(samples[4*i+3], dx*dy)
	}
	return result, nil
}

// weighted returns sample*weight, treating samples with zero weight as zero
// even if they are NaN.
func weighted(sample, weight float64) float64 {
	if weight == 0 {
		return 0
	}
	return sample * weight
}
