package geoid

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidInputFormat = errors.New("invalid input format")
	ErrNoGeoidData        = errors.New("no geoid data for point")
)

// A LineError is an error on a line of input. Lines are numbered from one.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s on line %d", e.Err, e.Line)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// A Record is a parsed line of input. LatText and LonText are the latitude
// and longitude exactly as they appeared in the input.
type Record struct {
	Lat       float64
	Lon       float64
	Elevation float64
	LatText   string
	LonText   string
}

// ParseRecord parses a line containing a latitude, longitude, and elevation
// separated by whitespace. Any further fields are ignored.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Record{}, ErrInvalidInputFormat
	}
	var values [3]float64
	for i, field := range fields[:3] {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return Record{}, ErrInvalidInputFormat
		}
		values[i] = value
	}
	return Record{
		Lat:       values[0],
		Lon:       values[1],
		Elevation: values[2],
		LatText:   fields[0],
		LonText:   fields[1],
	}, nil
}

// A Converter converts elevations using the corrections in a Grid.
type Converter struct {
	grid        Grid
	direction   Direction
	precision   int
	transformer Transformer
}

// A ConverterOption sets an option on a Converter.
type ConverterOption func(*Converter)

// NewConverter returns a new Converter that looks up corrections in grid. By
// default it converts from the geoid to the ellipsoid and writes elevations
// with millimeter precision.
func NewConverter(grid Grid, options ...ConverterOption) *Converter {
	c := &Converter{
		grid:      grid,
		direction: GeoidToEllipsoid,
		precision: 3,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func WithDirection(direction Direction) ConverterOption {
	return func(c *Converter) {
		c.direction = direction
	}
}

// WithPrecision sets the maximum number of decimals in output elevations. A
// negative precision writes the fewest decimals needed to represent the value
// exactly.
func WithPrecision(precision int) ConverterOption {
	return func(c *Converter) {
		c.precision = precision
	}
}

// WithTransformer sets a transformer from input coordinates to the grid's
// model coordinates. Without a transformer, input coordinates are used
// unchanged.
func WithTransformer(transformer Transformer) ConverterOption {
	return func(c *Converter) {
		c.transformer = transformer
	}
}

// Direction returns c's direction.
func (c *Converter) Direction() Direction {
	return c.direction
}

// ConvertRecord returns the converted elevation of record. It returns
// ErrNoGeoidData if the grid has no data at record's position.
func (c *Converter) ConvertRecord(ctx context.Context, record Record) (float64, error) {
	x, y := record.Lon, record.Lat
	if c.transformer != nil {
		var err error
		x, y, err = c.transformer.Transform(record.Lat, record.Lon)
		if err != nil {
			return 0, err
		}
	}
	correction, err := c.grid.ElevationAt(ctx, c.grid.ModelToGrid(x, y))
	if err != nil {
		return 0, err
	}
	elevation := c.direction.Apply(record.Elevation, correction)
	if math.IsNaN(elevation) || math.IsInf(elevation, 0) {
		return 0, ErrNoGeoidData
	}
	return elevation, nil
}

// Convert reads records from r one line at a time and writes each converted
// record to w. It stops at the first line that cannot be converted and returns
// a *LineError. Records before that line are written to w. It returns the
// number of records written. Convert checks ctx between lines.
func (c *Converter) Convert(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	n, err := c.convert(ctx, r, bw)
	if flushErr := bw.Flush(); err == nil {
		err = flushErr
	}
	return n, err
}

func (c *Converter) convert(ctx context.Context, r io.Reader, w *bufio.Writer) (int, error) {
	n := 0
	br := bufio.NewReader(r)
	// Lines are read whole, whatever their length.
	for lineNumber := 1; ; lineNumber++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return n, readErr
		}
		if line == "" {
			return n, nil
		}
		record, err := ParseRecord(line)
		if err != nil {
			recordsRejected.WithLabelValues("invalid_input_format").Inc()
			return n, &LineError{Line: lineNumber, Err: err}
		}
		elevation, err := c.ConvertRecord(ctx, record)
		switch {
		case errors.Is(err, ErrNoGeoidData):
			recordsRejected.WithLabelValues("no_geoid_data").Inc()
			return n, &LineError{Line: lineNumber, Err: err}
		case err != nil:
			return n, &LineError{Line: lineNumber, Err: err}
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\n", record.LatText, record.LonText, c.FormatElevation(elevation)); err != nil {
			return n, err
		}
		n++
		recordsConverted.Inc()
		if readErr != nil {
			return n, nil
		}
	}
}

// FormatElevation formats elevation with c's precision, without trailing
// zeros.
func (c *Converter) FormatElevation(elevation float64) string {
	s := strconv.FormatFloat(elevation, 'f', c.precision, 64)
	if c.precision > 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}
