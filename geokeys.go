package geoid

import (
	"errors"
	"strings"
)

var errParse = errors.New("parse error")

// A GeoKey is a key in a GeoTIFF GeoKeyDirectory.
type GeoKey uint16

const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS            GeoKey = 2048
	GeoKeyGeogCitation           GeoKey = 2049
	GeoKeyGeodeticDatum          GeoKey = 2050
	GeoKeyPrimeMeridian          GeoKey = 2051
	GeoKeyAngularUnits           GeoKey = 2054
	GeoKeyGeogAngularUnitSize    GeoKey = 2055
	GeoKeyEllipsoid              GeoKey = 2056
	GeoKeyEllipsoidSemiMajorAxis GeoKey = 2057
	GeoKeyEllipsoidInvFlattening GeoKey = 2059
	GeoKeyPrimeMeridianLongitude GeoKey = 2061

	GeoKeyProjectedCRS GeoKey = 3072
	GeoKeyPCSCitation  GeoKey = 3073

	GeoKeyVertical         GeoKey = 4096
	GeoKeyVerticalCitation GeoKey = 4097
	GeoKeyVerticalDatum    GeoKey = 4098
	GeoKeyVerticalUnits    GeoKey = 4099
)

// Values of GeoKeyGTModelType.
const (
	ModelTypeProjected  = 1
	ModelTypeGeographic = 2
	ModelTypeGeocentric = 3
)

// Values of GeoKeyGTRasterType.
const (
	RasterPixelIsArea  = 1
	RasterPixelIsPoint = 2
)

// userDefined is the value of a GeoKey whose value is not an EPSG code.
const userDefined = 32767

// ParsedGeoKeys are the parsed contents of a GeoKeyDirectory.
type ParsedGeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

// ParseGeoKeys parses a GeoKeyDirectory and its associated double and ASCII
// parameters.
func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams string) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, errParse
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, errParse
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, errParse
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, errParse
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, errParse
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		keyValues := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(keyValues[0])
		tiffTagLocation := int(keyValues[1])
		count := int(keyValues[2])
		valueOrIndex := int(keyValues[3])
		switch tiffTagLocation {
		case 0:
			if count != 1 {
				return nil, errParse
			}
			parsedGeoKeys.Params[key] = valueOrIndex
		case tagGeoDoubleParams:
			if count != 1 {
				return nil, errors.ErrUnsupported
			}
			if valueOrIndex >= len(doubleParams) {
				return nil, errParse
			}
			parsedGeoKeys.DoubleParams[key] = doubleParams[valueOrIndex]
		case tagGeoASCIIParams:
			if valueOrIndex+count > len(asciiParams) {
				return nil, errParse
			}
			parsedGeoKeys.ASCIIParams[key] = strings.TrimSuffix(asciiParams[valueOrIndex:valueOrIndex+count], "|")
		default:
			return nil, errors.ErrUnsupported
		}
	}
	return parsedGeoKeys, nil
}

// ModelType returns the model type, or zero if it is not set.
func (k *ParsedGeoKeys) ModelType() int {
	return k.Params[GeoKeyGTModelType]
}

// RasterType returns the raster type. It defaults to RasterPixelIsArea.
func (k *ParsedGeoKeys) RasterType() int {
	if rasterType, ok := k.Params[GeoKeyGTRasterType]; ok {
		return rasterType
	}
	return RasterPixelIsArea
}

func (k *ParsedGeoKeys) GeodeticCRS() int {
	return k.epsg(GeoKeyGeodeticCRS)
}

func (k *ParsedGeoKeys) ProjectedCRS() int {
	return k.epsg(GeoKeyProjectedCRS)
}

func (k *ParsedGeoKeys) VerticalCRS() int {
	return k.epsg(GeoKeyVertical)
}

// EPSG returns the EPSG code of the horizontal CRS: the projected CRS if there
// is one, otherwise the geodetic CRS. It returns zero if neither is an EPSG
// code.
func (k *ParsedGeoKeys) EPSG() int {
	if k.ModelType() == ModelTypeProjected {
		if epsg := k.ProjectedCRS(); epsg != 0 {
			return epsg
		}
	}
	return k.GeodeticCRS()
}

func (k *ParsedGeoKeys) epsg(key GeoKey) int {
	if value := k.Params[key]; value != userDefined {
		return value
	}
	return 0
}
