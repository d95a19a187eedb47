package geoid_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-geoid"
	"github.com/twpayne/go-geoid/internal/geotifftest"
)

// A funcGrid is a geoid.Grid whose model and grid coordinates are the same.
type funcGrid func(lon, lat float64) float64

func (f funcGrid) ModelToGrid(lon, lat float64) geoid.GridCoord {
	return geoid.GridCoord{Col: lon, Row: lat}
}

func (f funcGrid) GridToModel(gridCoord geoid.GridCoord) (float64, float64) {
	return gridCoord.Col, gridCoord.Row
}

func (f funcGrid) ElevationAt(ctx context.Context, gridCoord geoid.GridCoord) (float64, error) {
	return f(gridCoord.Col, gridCoord.Row), nil
}

func constantGrid(value float64) funcGrid {
	return func(lon, lat float64) float64 {
		return value
	}
}

// northernGrid has no data south of latitude 50.
var northernGrid funcGrid = func(lon, lat float64) float64 {
	if lat < 50 {
		return math.NaN()
	}
	return 40
}

type errorGrid struct {
	funcGrid
	err error
}

func (g errorGrid) ElevationAt(ctx context.Context, gridCoord geoid.GridCoord) (float64, error) {
	return 0, g.err
}

type offsetTransformer struct{}

func (offsetTransformer) Transform(lat, lon float64) (float64, float64, error) {
	return lon + 1, lat + 1, nil
}

func TestParseRecord(t *testing.T) {
	for _, tc := range []struct {
		line        string
		expected    geoid.Record
		expectedErr error
	}{
		{
			line: "59.9 10.7 100.0",
			expected: geoid.Record{
				Lat:       59.9,
				Lon:       10.7,
				Elevation: 100,
				LatText:   "59.9",
				LonText:   "10.7",
			},
		},
		{
			line: "\t59.90000  10.70\t-3e2 extra fields  \r",
			expected: geoid.Record{
				Lat:       59.9,
				Lon:       10.7,
				Elevation: -300,
				LatText:   "59.90000",
				LonText:   "10.70",
			},
		},
		{line: "", expectedErr: geoid.ErrInvalidInputFormat},
		{line: "   ", expectedErr: geoid.ErrInvalidInputFormat},
		{line: "59.9 10.7", expectedErr: geoid.ErrInvalidInputFormat},
		{line: "59.9 10.7 abc", expectedErr: geoid.ErrInvalidInputFormat},
		{line: "59.9,10.7,100", expectedErr: geoid.ErrInvalidInputFormat},
		{line: "59.9 NaN 100", expectedErr: geoid.ErrInvalidInputFormat},
		{line: "59.9 10.7 +Inf", expectedErr: geoid.ErrInvalidInputFormat},
		{line: "1e400 10.7 100", expectedErr: geoid.ErrInvalidInputFormat},
	} {
		t.Run(tc.line, func(t *testing.T) {
			actual, err := geoid.ParseRecord(tc.line)
			if tc.expectedErr != nil {
				assert.IsError(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, actual)
			}
		})
	}
}

func TestConverter_Convert(t *testing.T) {
	for _, tc := range []struct {
		name           string
		grid           geoid.Grid
		options        []geoid.ConverterOption
		input          string
		expected       string
		expectedN      int
		expectedLine   int
		expectedErr    error
		expectedErrMsg string
	}{
		{
			name:      "geoid_to_ellipsoid",
			grid:      constantGrid(41.3),
			input:     "59.9 10.7 100.0\n",
			expected:  "59.9 10.7 141.3\n",
			expectedN: 1,
		},
		{
			name:      "ellipsoid_to_geoid",
			grid:      constantGrid(41.3),
			options:   []geoid.ConverterOption{geoid.WithDirection(geoid.EllipsoidToGeoid)},
			input:     "59.9 10.7 141.3\n",
			expected:  "59.9 10.7 100\n",
			expectedN: 1,
		},
		{
			name:      "coordinates_echoed_verbatim",
			grid:      constantGrid(1),
			input:     "59.900000 +10.70 1\n-0.0 1e1 2\n",
			expected:  "59.900000 +10.70 2\n-0.0 1e1 3\n",
			expectedN: 2,
		},
		{
			name:      "empty_input",
			grid:      constantGrid(1),
			input:     "",
			expected:  "",
			expectedN: 0,
		},
		{
			name:      "no_trailing_newline",
			grid:      constantGrid(0.5),
			input:     "1 2 3\n4 5 6",
			expected:  "1 2 3.5\n4 5 6.5\n",
			expectedN: 2,
		},
		{
			name:      "crlf",
			grid:      constantGrid(0.5),
			input:     "1 2 3\r\n4 5 6\r\n",
			expected:  "1 2 3.5\n4 5 6.5\n",
			expectedN: 2,
		},
		{
			name:      "precision",
			grid:      constantGrid(0.123456),
			options:   []geoid.ConverterOption{geoid.WithPrecision(2)},
			input:     "1 2 3\n",
			expected:  "1 2 3.12\n",
			expectedN: 1,
		},
		{
			name:      "shortest_precision",
			grid:      constantGrid(0.125),
			options:   []geoid.ConverterOption{geoid.WithPrecision(-1)},
			input:     "1 2 3\n",
			expected:  "1 2 3.125\n",
			expectedN: 1,
		},
		{
			name:      "transformer",
			grid:      funcGrid(func(lon, lat float64) float64 { return 100*lon + lat }),
			options:   []geoid.ConverterOption{geoid.WithTransformer(offsetTransformer{})},
			input:     "3 2 0\n",
			expected:  "3 2 304\n",
			expectedN: 1,
		},
		{
			name:      "long_line",
			grid:      constantGrid(1),
			input:     "59.9 10.7 100.0 " + strings.Repeat("extra ", 16*1024) + "\n60 11 1\n",
			expected:  "59.9 10.7 101\n60 11 2\n",
			expectedN: 2,
		},
		{
			name:           "long_invalid_line",
			grid:           constantGrid(1),
			input:          "60 11 1\n" + strings.Repeat("x", 128*1024) + "\n61 12 1\n",
			expected:       "60 11 2\n",
			expectedN:      1,
			expectedLine:   2,
			expectedErr:    geoid.ErrInvalidInputFormat,
			expectedErrMsg: "invalid input format on line 2",
		},
		{
			name:           "invalid_first_line",
			grid:           constantGrid(1),
			input:          "not a record\n1 2 3\n",
			expected:       "",
			expectedN:      0,
			expectedLine:   1,
			expectedErr:    geoid.ErrInvalidInputFormat,
			expectedErrMsg: "invalid input format on line 1",
		},
		{
			name:           "blank_line",
			grid:           constantGrid(1),
			input:          "1 2 3\n\n4 5 6\n",
			expected:       "1 2 4\n",
			expectedN:      1,
			expectedLine:   2,
			expectedErr:    geoid.ErrInvalidInputFormat,
			expectedErrMsg: "invalid input format on line 2",
		},
		{
			name:           "no_geoid_data",
			grid:           northernGrid,
			input:          "60 10 1\n61 10 2\n49 10 3\n62 10 4\n",
			expected:       "60 10 41\n61 10 42\n",
			expectedN:      2,
			expectedLine:   3,
			expectedErr:    geoid.ErrNoGeoidData,
			expectedErrMsg: "no geoid data for point on line 3",
		},
		{
			name:           "lookup_error",
			grid:           errorGrid{funcGrid: constantGrid(0), err: errors.New("read error")},
			input:          "60 10 1\n",
			expected:       "",
			expectedN:      0,
			expectedLine:   1,
			expectedErrMsg: "read error on line 1",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			converter := geoid.NewConverter(tc.grid, tc.options...)
			output := &strings.Builder{}
			n, err := converter.Convert(t.Context(), strings.NewReader(tc.input), output)
			assert.Equal(t, tc.expected, output.String())
			assert.Equal(t, tc.expectedN, n)
			if tc.expectedErrMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.expectedErrMsg)
			var lineErr *geoid.LineError
			assert.True(t, errors.As(err, &lineErr))
			assert.Equal(t, tc.expectedLine, lineErr.Line)
			if tc.expectedErr != nil {
				assert.IsError(t, err, tc.expectedErr)
			}
		})
	}
}

func TestConverter_FailFast(t *testing.T) {
	converter := geoid.NewConverter(constantGrid(10))
	for n := range 8 {
		input := &strings.Builder{}
		expected := &strings.Builder{}
		for i := range n {
			fmt.Fprintf(input, "%d.5 %d 1.25\n", i, i)
			fmt.Fprintf(expected, "%d.5 %d 11.25\n", i, i)
		}
		input.WriteString("60 10\n")
		input.WriteString("61 11 1\n")

		output := &bytes.Buffer{}
		actualN, err := converter.Convert(t.Context(), strings.NewReader(input.String()), output)
		assert.Equal(t, n, actualN)
		assert.Equal(t, expected.String(), output.String())
		var lineErr *geoid.LineError
		assert.True(t, errors.As(err, &lineErr))
		assert.Equal(t, n+1, lineErr.Line)
		assert.IsError(t, err, geoid.ErrInvalidInputFormat)
	}
}

func TestConverter_RoundTrip(t *testing.T) {
	grid := constantGrid(41.3)
	toEllipsoid := geoid.NewConverter(grid, geoid.WithPrecision(-1))
	toGeoid := geoid.NewConverter(grid, geoid.WithDirection(geoid.EllipsoidToGeoid), geoid.WithPrecision(-1))
	for _, elevation := range []float64{-12.5, 0, 100, 1234.567, 8848.86} {
		record := geoid.Record{Lat: 59.9, Lon: 10.7, Elevation: elevation}
		ellipsoidal, err := toEllipsoid.ConvertRecord(t.Context(), record)
		assert.NoError(t, err)
		assert.True(t, math.Abs(ellipsoidal-(elevation+41.3)) < 1e-9)

		record.Elevation = ellipsoidal
		actual, err := toGeoid.ConvertRecord(t.Context(), record)
		assert.NoError(t, err)
		assert.True(t, math.Abs(actual-elevation) < 1e-9)
	}

	input := "59.9 10.7 100.0\n63.4 10.4 -2.25\n"
	intermediate := &strings.Builder{}
	_, err := toEllipsoid.Convert(t.Context(), strings.NewReader(input), intermediate)
	assert.NoError(t, err)
	output := &strings.Builder{}
	_, err = toGeoid.Convert(t.Context(), strings.NewReader(intermediate.String()), output)
	assert.NoError(t, err)
	for i, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		expected, err := geoid.ParseRecord(strings.Split(input, "\n")[i])
		assert.NoError(t, err)
		actual, err := geoid.ParseRecord(line)
		assert.NoError(t, err)
		assert.Equal(t, expected.LatText, actual.LatText)
		assert.Equal(t, expected.LonText, actual.LonText)
		assert.True(t, math.Abs(expected.Elevation-actual.Elevation) < 1e-9)
	}
}

func TestConverter_GeoTIFFGrid(t *testing.T) {
	grid, err := geoid.DecodeGeoTIFFGrid(geoid.NewByteReader(geotifftest.Constant(41.3)))
	assert.NoError(t, err)

	output := &strings.Builder{}
	n, err := geoid.NewConverter(grid).Convert(t.Context(), strings.NewReader("59.9 10.7 100.0\n"), output)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "59.9 10.7 141.3\n", output.String())

	output.Reset()
	n, err = geoid.NewConverter(grid).Convert(t.Context(), strings.NewReader("59.9 10.7 100.0\n40 10.7 100.0\n"), output)
	assert.Equal(t, 1, n)
	assert.Equal(t, "59.9 10.7 141.3\n", output.String())
	assert.EqualError(t, err, "no geoid data for point on line 2")
}

func TestConverter_FormatElevation(t *testing.T) {
	for _, tc := range []struct {
		precision int
		value     float64
		expected  string
	}{
		{precision: 3, value: 141.3, expected: "141.3"},
		{precision: 3, value: 141.29999999999998, expected: "141.3"},
		{precision: 3, value: 100, expected: "100"},
		{precision: 3, value: 0.0004, expected: "0"},
		{precision: 3, value: -0.0004, expected: "0"},
		{precision: 3, value: -1.2345, expected: "-1.234"},
		{precision: 0, value: 12.5, expected: "12"},
		{precision: 0, value: 10, expected: "10"},
		{precision: -1, value: 0.1, expected: "0.1"},
	} {
		converter := geoid.NewConverter(constantGrid(0), geoid.WithPrecision(tc.precision))
		assert.Equal(t, tc.expected, converter.FormatElevation(tc.value))
	}
}

func TestDirection(t *testing.T) {
	for _, tc := range []struct {
		direction geoid.Direction
		text      string
		expected  float64
	}{
		{direction: geoid.GeoidToEllipsoid, text: "geoid-to-ellipsoid", expected: 12},
		{direction: geoid.EllipsoidToGeoid, text: "ellipsoid-to-geoid", expected: 8},
	} {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.text, tc.direction.String())
			text, err := tc.direction.MarshalText()
			assert.NoError(t, err)
			assert.Equal(t, tc.text, string(text))
			var direction geoid.Direction
			assert.NoError(t, direction.UnmarshalText([]byte(tc.text)))
			assert.Equal(t, tc.direction, direction)
			assert.Equal(t, tc.expected, direction.Apply(10, 2))
		})
	}

	var direction geoid.Direction
	assert.Error(t, direction.UnmarshalText([]byte("sideways")))
	assert.Equal(t, "Direction(7)", geoid.Direction(7).String())
}

func TestConverter_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	output := &strings.Builder{}
	n, err := geoid.NewConverter(constantGrid(1)).Convert(ctx, strings.NewReader("1 2 3\n"), output)
	assert.Equal(t, 0, n)
	assert.Equal(t, "", output.String())
	assert.IsError(t, err, context.Canceled)
}

type failingReader struct {
	data string
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestConverter_ReadError(t *testing.T) {
	readErr := errors.New("read error")
	output := &strings.Builder{}
	n, err := geoid.NewConverter(constantGrid(1)).Convert(t.Context(), &failingReader{data: "1 2 3\n4 5", err: readErr}, output)
	assert.Equal(t, 1, n)
	assert.Equal(t, "1 2 4\n", output.String())
	assert.IsError(t, err, readErr)
}
