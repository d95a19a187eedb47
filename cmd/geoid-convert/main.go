// Command geoid-convert converts elevations between the NN2000 geoid and the
// ETRS89 ellipsoid.
package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/twpayne/go-geoid"
	"github.com/twpayne/go-geoid/internal/config"
	"github.com/twpayne/go-geoid/internal/xyzio"
)

//go:embed grids
var embeddedGrids embed.FS

// gridsFS contains the grids built into the binary.
var gridsFS = mustSub(embeddedGrids, "grids")

type options struct {
	configPath string
	info       bool
	config.Config
}

func newFlagSet(stderr io.Writer, o *options) *flag.FlagSet {
	flagSet := flag.NewFlagSet("geoid-convert", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&o.configPath, "config", os.Getenv("GEOID_CONFIG"), "path to YAML configuration file")
	flagSet.TextVar(&o.Direction, "direction", geoid.GeoidToEllipsoid, "conversion direction (geoid-to-ellipsoid or ellipsoid-to-geoid)")
	flagSet.StringVar(&o.Grid, "grid", config.DefaultGrid, "grid filename")
	flagSet.StringVar(&o.GridDir, "grid-dir", os.Getenv("GEOID_GRID_DIR"), "directory searched for grids before the embedded grids")
	flagSet.StringVar(&o.InputCRS, "input-crs", "", "CRS of input coordinates, e.g. epsg:4326 (default the grid's CRS)")
	flagSet.BoolVar(&o.info, "info", false, "print grid info and exit")
	flagSet.StringVar(&o.MetricsTextfile, "metrics-textfile", "", "write metrics to file in Prometheus text format")
	flagSet.IntVar(&o.Precision, "precision", config.DefaultPrecision, "maximum decimals in output elevations (negative for shortest)")
	flagSet.BoolVar(&o.Verbose, "v", false, "verbose")
	return flagSet
}

// parseArgs parses args. Flags set on the command line override values from
// the configuration file.
func parseArgs(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	o := &options{}
	flagSet := newFlagSet(stderr, o)
	flagSet.Usage = func() {
		printUsage(stderr, flagSet, o)
	}
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "direction":
			cfg.Direction = o.Direction
		case "grid":
			cfg.Grid = o.Grid
		case "grid-dir":
			cfg.GridDir = o.GridDir
		case "input-crs":
			cfg.InputCRS = o.InputCRS
		case "metrics-textfile":
			cfg.MetricsTextfile = o.MetricsTextfile
		case "precision":
			cfg.Precision = o.Precision
		case "v":
			cfg.Verbose = o.Verbose
		}
	})
	if cfg.GridDir == "" {
		cfg.GridDir = o.GridDir
	}
	o.Config = *cfg
	return o, flagSet, nil
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

func newGridSet(gridDir string) (*geoid.GridSet, error) {
	var gridDirFS fs.FS
	if gridDir != "" {
		gridDirFS = os.DirFS(gridDir)
	}
	return geoid.NewGridSet(
		geoid.WithFS(gridDirFS),
		geoid.WithFS(gridsFS),
		geoid.WithCacheSize(1),
	)
}

func printUsage(w io.Writer, flagSet *flag.FlagSet, o *options) {
	fmt.Fprintln(w, "usage: geoid-convert [flags] input-file [output-file]")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Converts lines of \"latitude longitude elevation\" from input-file (%s for stdin)\n", xyzio.Stdin)
	fmt.Fprintln(w, "to output-file (default stdout). Compressed input files are read transparently.")
	fmt.Fprintln(w)
	flagSet.PrintDefaults()
	fmt.Fprintln(w)
	gridSet, err := newGridSet(o.GridDir)
	if err == nil {
		var grid *geoid.GeoTIFFGrid
		if grid, err = gridSet.Grid(o.Grid); err == nil {
			printGridInfo(w, o.Grid, grid.Info())
			return
		}
	}
	fmt.Fprintf(w, "grid info unavailable: %v\n", err)
}

func printGridInfo(w io.Writer, name string, info geoid.GridInfo) {
	fmt.Fprintf(w, "grid: %s\n", name)
	fmt.Fprintf(w, "rows: %d\n", info.Rows)
	fmt.Fprintf(w, "columns: %d\n", info.Cols)
	fmt.Fprintf(w, "EPSG: %d\n", info.EPSG)
	fmt.Fprintf(w, "min latitude: %g\n", info.MinLat)
	fmt.Fprintf(w, "max latitude: %g\n", info.MaxLat)
	fmt.Fprintf(w, "min longitude: %g\n", info.MinLon)
	fmt.Fprintf(w, "max longitude: %g\n", info.MaxLon)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	o, flagSet, err := parseArgs(args, stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		return nil
	case err != nil:
		return err
	}

	logger := log.New(stderr, "geoid-convert: ", 0)
	if !o.Verbose {
		logger.SetOutput(io.Discard)
	}

	if o.MetricsTextfile != "" {
		defer func() {
			if textfileErr := prometheus.WriteToTextfile(o.MetricsTextfile, prometheus.DefaultGatherer); err == nil {
				err = textfileErr
			}
		}()
	}

	gridSet, err := newGridSet(o.GridDir)
	if err != nil {
		return err
	}
	grid, err := gridSet.Grid(o.Grid)
	if err != nil {
		return err
	}
	info := grid.Info()
	logger.Printf("grid %s: %d rows, %d columns, EPSG:%d", o.Grid, info.Rows, info.Cols, info.EPSG)

	if o.info {
		printGridInfo(stdout, o.Grid, info)
		names, namesErr := gridSet.Names()
		if namesErr != nil {
			return namesErr
		}
		fmt.Fprintf(stdout, "available grids: %s\n", strings.Join(names, " "))
		return nil
	}

	if flagSet.NArg() < 1 || flagSet.NArg() > 2 {
		flagSet.Usage()
		return errors.New("syntax: geoid-convert [flags] input-file [output-file]")
	}

	converterOptions := []geoid.ConverterOption{
		geoid.WithDirection(o.Direction),
		geoid.WithPrecision(o.Precision),
	}
	if o.InputCRS != "" {
		if info.EPSG == 0 {
			return fmt.Errorf("%s: grid has no EPSG code", o.Grid)
		}
		gridCRS := fmt.Sprintf("epsg:%d", info.EPSG)
		transformer, err := geoid.NewPROJTransformer(o.InputCRS, gridCRS)
		if err != nil {
			return fmt.Errorf("%s: %w", o.InputCRS, err)
		}
		logger.Printf("transforming %s to %s", o.InputCRS, gridCRS)
		converterOptions = append(converterOptions, geoid.WithTransformer(transformer))
	}
	converter := geoid.NewConverter(grid, converterOptions...)

	input, err := xyzio.OpenInput(flagSet.Arg(0), stdin)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := xyzio.CreateOutput(flagSet.Arg(1), stdout)
	if err != nil {
		return err
	}

	start := time.Now()
	n, err := converter.Convert(ctx, input, output)
	// Records converted before an error are kept.
	if closeErr := output.Close(); err == nil {
		err = closeErr
	}
	logger.Printf("%s: converted %d records in %s", converter.Direction(), n, time.Since(start))
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
