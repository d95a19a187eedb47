package geoid

import (
	"github.com/twpayne/go-proj/v10"
)

// A Transformer transforms a latitude and longitude into the model
// coordinates of a grid.
type Transformer interface {
	Transform(lat, lon float64) (float64, float64, error)
}

// A PROJTransformer transforms coordinates between two CRSs with PROJ.
type PROJTransformer struct {
	pj *proj.PJ
}

// NewPROJTransformer returns a new PROJTransformer from sourceCRS to
// targetCRS, for example "epsg:4326" and "epsg:4258". sourceCRS must be a
// geographic CRS with latitude first. targetCRS must have its northing or
// latitude axis first, as EPSG geographic CRSs do.
func NewPROJTransformer(sourceCRS, targetCRS string) (*PROJTransformer, error) {
	pj, err := proj.NewCRSToCRS(sourceCRS, targetCRS, nil)
	if err != nil {
		return nil, err
	}
	return &PROJTransformer{
		pj: pj,
	}, nil
}

// Transform returns the model coordinates (x, y) of (lat, lon).
func (t *PROJTransformer) Transform(lat, lon float64) (float64, float64, error) {
	coords := [][]float64{{lat, lon}}
	if err := t.pj.ForwardFloat64Slices(coords); err != nil {
		return 0, 0, err
	}
	flipCoords(coords)
	return coords[0][0], coords[0][1], nil
}

func flipCoords(coords [][]float64) {
	for i, coord := range coords {
		coords[i][0], coords[i][1] = coord[1], coord[0]
	}
}
