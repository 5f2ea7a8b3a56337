// Command roadtiles inspects road tile datasets: the tiles an archive
// holds, their traffic overlays and weekly speed profiles.
//
// Usage:
//
//	roadtiles list -graph tiles.tar [-level local]
//	roadtiles info -graph tiles.tar [-traffic traffic.tar]
//	roadtiles bbox -graph tiles.tar -min-lat 60.1 -min-lon 24.8 -max-lat 60.3 -max-lon 25.2 [-level local]
//	roadtiles traffic -graph tiles.tar -traffic traffic.tar [-tile 2/838852/0 [-edge 5]]
//	roadtiles profile encode < week.csv
//	roadtiles profile decode < coeffs.b64
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kinkard/roadtiles"
	"github.com/kinkard/roadtiles/graph"
	"github.com/kinkard/roadtiles/speeds"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("roadtiles: ")
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "bbox":
		err = runBBox(os.Args[2:])
	case "traffic":
		err = runTraffic(os.Args[2:])
	case "profile":
		err = runProfile(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: roadtiles <list|info|bbox|traffic|profile> [flags]")
}

// datasetFlags registers the archive path flags shared by every
// subcommand that opens a dataset.
func datasetFlags(fs *flag.FlagSet) *roadtiles.Dataset {
	ds := &roadtiles.Dataset{}
	fs.StringVar(&ds.GraphPath, "graph", "", "graph tile archive (tar)")
	fs.StringVar(&ds.TrafficPath, "traffic", "", "traffic overlay archive (tar), optional")
	return ds
}

// openStore opens the dataset with a logger that only surfaces warnings,
// so index anomalies reach the operator without drowning the output.
func openStore(ds *roadtiles.Dataset) (*roadtiles.TileSet, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return roadtiles.Open(*ds, roadtiles.WithLogger(logger))
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	ds := datasetFlags(fs)
	levelName := fs.String("level", "", "only list this level (highway, arterial, local)")
	fs.Parse(args)

	var filter *graph.Level
	if *levelName != "" {
		level, err := graph.ParseLevel(*levelName)
		if err != nil {
			return err
		}
		filter = &level
	}

	ts, err := openStore(ds)
	if err != nil {
		return err
	}
	defer ts.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	counts := make(map[graph.Level]int)
	for _, id := range ts.Tiles() {
		if filter != nil && id.Level() != *filter {
			continue
		}
		counts[id.Level()]++
		region, ok := ts.Region(id)
		if !ok {
			continue
		}
		path, _ := graph.TilePath(id)
		fmt.Fprintf(w, "%s\t%s\t%d\n", id, path, region.Len())
		region.Close()
	}
	for _, level := range graph.Levels() {
		if n := counts[level]; n > 0 {
			fmt.Fprintf(w, "%s: %d tiles\n", level, n)
		}
	}
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	ds := datasetFlags(fs)
	fs.Parse(args)

	ts, err := openStore(ds)
	if err != nil {
		return err
	}
	defer ts.Close()

	fmt.Printf("graph archive:   %s\n", ds.GraphPath)
	if ds.TrafficPath != "" {
		fmt.Printf("traffic archive: %s\n", ds.TrafficPath)
	}
	fmt.Printf("tiles:           %d\n", len(ts.Tiles()))
	for _, level := range graph.Levels() {
		n := 0
		for _, id := range ts.Tiles() {
			if id.Level() == level {
				n++
			}
		}
		fmt.Printf("  %-9s      %d\n", level.String()+":", n)
	}
	fmt.Printf("dataset id:      %#x\n", ts.DatasetID())
	fmt.Printf("graph checksum:  %#x\n", ts.Checksum())
	if ds.TrafficPath != "" {
		fmt.Printf("traffic checksum: %#x\n", ts.TrafficChecksum())
	}
	return nil
}

func runBBox(args []string) error {
	fs := flag.NewFlagSet("bbox", flag.ExitOnError)
	ds := datasetFlags(fs)
	levelName := fs.String("level", "local", "hierarchy level to query")
	box := graph.BBox{}
	fs.Float64Var(&box.MinLat, "min-lat", -90, "south edge")
	fs.Float64Var(&box.MinLon, "min-lon", -180, "west edge")
	fs.Float64Var(&box.MaxLat, "max-lat", 90, "north edge")
	fs.Float64Var(&box.MaxLon, "max-lon", 180, "east edge")
	fs.Parse(args)

	level, err := graph.ParseLevel(*levelName)
	if err != nil {
		return err
	}

	ts, err := openStore(ds)
	if err != nil {
		return err
	}
	defer ts.Close()

	for _, id := range ts.TilesInBBox(box, level) {
		fmt.Println(id)
	}
	return nil
}

func runTraffic(args []string) error {
	fs := flag.NewFlagSet("traffic", flag.ExitOnError)
	ds := datasetFlags(fs)
	tileName := fs.String("tile", "", "tile id, e.g. 2/838852/0")
	edge := fs.Int("edge", -1, "print one record instead of the tile summary")
	fs.Parse(args)

	if ds.TrafficPath == "" {
		return fmt.Errorf("a traffic archive is required")
	}

	ts, err := openStore(ds)
	if err != nil {
		return err
	}
	defer ts.Close()

	if *tileName == "" {
		for _, id := range ts.Tiles() {
			if err := printOverlaySummary(ts, id); err != nil {
				return err
			}
		}
		return nil
	}

	id, err := graph.ParseTileID(*tileName)
	if err != nil {
		return err
	}
	if *edge < 0 {
		return printOverlaySummary(ts, id)
	}
	return printRecord(ts, id, uint32(*edge))
}

func printOverlaySummary(ts *roadtiles.TileSet, id graph.TileID) error {
	tile, err := ts.TrafficTile(id)
	if err != nil {
		return err
	}
	if tile == nil {
		return nil
	}
	defer tile.Close()

	live, closed := 0, 0
	for _, r := range tile.Records() {
		if r.Valid() {
			live++
		}
		if r.Closed() {
			closed++
		}
	}
	last := "never"
	if lu := tile.LastUpdate(); lu != 0 {
		last = time.Unix(int64(lu), 0).UTC().Format(time.RFC3339)
	}
	fmt.Printf("%s\tedges=%d\tlive=%d\tclosed=%d\tlast_update=%s\n",
		tile.TileID(), tile.EdgeCount(), live, closed, last)
	return nil
}

func printRecord(ts *roadtiles.TileSet, id graph.TileID, edge uint32) error {
	tile, err := ts.TrafficTile(id)
	if err != nil {
		return err
	}
	if tile == nil {
		return fmt.Errorf("no traffic overlay for %s", id)
	}
	defer tile.Close()

	r, err := tile.Record(edge)
	if err != nil {
		return err
	}
	fmt.Printf("tile %s edge %d\n", id.Base(), edge)
	fmt.Printf("  valid       %t\n", r.Valid())
	fmt.Printf("  closed      %t\n", r.Closed())
	fmt.Printf("  overall     %d km/h\n", r.OverallSpeed())
	fmt.Printf("  sub speeds  %d %d %d km/h\n", r.SubSpeed(0), r.SubSpeed(1), r.SubSpeed(2))
	fmt.Printf("  breakpoints %d %d\n", r.Breakpoint(0), r.Breakpoint(1))
	fmt.Printf("  congestion  %d %d %d\n", r.Congestion(0), r.Congestion(1), r.Congestion(2))
	return nil
}

// runProfile converts between a weekly speed CSV (2016 values, any row
// split) and the base64 coefficient form used in tile metadata.
func runProfile(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: roadtiles profile <encode|decode>")
	}
	switch args[0] {
	case "encode":
		return profileEncode(os.Stdin, os.Stdout)
	case "decode":
		return profileDecode(os.Stdin, os.Stdout)
	}
	return fmt.Errorf("unknown profile action %q", args[0])
}

func profileEncode(in io.Reader, out io.Writer) error {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	var kmh []float32
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for _, field := range record {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return fmt.Errorf("bad speed %q: %w", field, err)
			}
			kmh = append(kmh, float32(v))
		}
	}

	coeffs, err := speeds.Encode(kmh)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, coeffs.EncodeBase64())
	return err
}

func profileDecode(in io.Reader, out io.Writer) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	coeffs, err := speeds.DecodeBase64(strings.TrimSpace(string(raw)))
	if err != nil {
		return err
	}

	// One CSV row per day keeps the output diffable.
	w := bufio.NewWriter(out)
	defer w.Flush()
	kmh := coeffs.Decode()
	for day := 0; day < speeds.DaysPerWeek; day++ {
		row := kmh[day*speeds.BucketsPerDay : (day+1)*speeds.BucketsPerDay]
		for i, v := range row {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%.1f", v); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}
