// detailtool is a CLI utility for inspecting details assets and generating
// terrains.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/midgard-details/internal/details"
	"github.com/Faultbox/midgard-details/internal/terrain"
	"github.com/Faultbox/midgard-details/pkg/formats"
	"github.com/Faultbox/midgard-details/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "nodes":
		cmdNodes(args)
	case "query", "q":
		cmdQuery(args)
	case "repack":
		cmdRepack(args)
	case "gen-terrain", "gen":
		cmdGenTerrain(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`detailtool - terrain details utility

Usage:
  detailtool <command> [options]

Commands:
  info <file.dda|file.dtl>            Show asset or detail map information
  nodes <file.dda> [-n N] [-min M]    List quadtree nodes holding data
  query <file.dda> -x X -z Z -r R     Count instances streamed around a point
  repack <file.dda> [-o out.dda]      Rewrite an asset from its quadtree leaves
  gen-terrain <name> [options]        Generate a detail map and description

Examples:
  detailtool info assets/DetailsData_meadow.dda
  detailtool nodes -n 20 assets/DetailsData_meadow.dda
  detailtool query -x 10 -z -40 -r 200 assets/DetailsData_meadow.dda
  detailtool repack -o packed.dda assets/DetailsData_meadow.dda
  detailtool gen-terrain -size 512 -seed 7 -o terrains meadow`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// loadAsset reads a baked asset. The asset name is the file name without
// the asset prefix and extension.
func loadAsset(path string) *details.Asset {
	dda, err := formats.ParseDDAFile(path)
	if err != nil {
		fatal("Error: %v", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimPrefix(name, details.AssetPrefix)

	asset, err := details.DecodeAsset(name, dda)
	if err != nil {
		fatal("Error: %v", err)
	}
	return asset
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fatal("Usage: detailtool info <file.dda|file.dtl>")
	}

	if strings.EqualFold(filepath.Ext(args[0]), ".dtl") {
		dtlInfo(args[0])
		return
	}

	asset := loadAsset(args[0])
	d := asset.Data

	fmt.Printf("Asset:      %s\n", asset.Name)
	fmt.Printf("Terrain:    %.0f x %.0f at (%.1f, %.1f, %.1f)\n",
		d.TerrainWidth, d.TerrainHeight, d.Position.X, d.Position.Y, d.Position.Z)
	fmt.Printf("Resolution: %d (%d x %d cells)\n", d.Resolution, d.DetailWidth, d.DetailHeight)
	fmt.Printf("Instances:  %d\n", d.Count())
	fmt.Printf("Nodes:      %d\n", len(asset.Tree.Nodes()))
	fmt.Printf("LODs:       %d\n", d.TotalLODCount)
	fmt.Println()
	fmt.Println("Prototypes:")

	counts := make([]int, len(d.Prototypes))
	for _, t := range d.Types {
		counts[t]++
	}
	for i, p := range d.Prototypes {
		th := d.LODThresholds[i]
		fmt.Printf("  %-2d %-12s %-8s lods=%d instances=%-8d thresholds=(%g, %g, %g, %g)\n",
			i, p.Name, p.Mesh, p.LODCount(), counts[i], th.X, th.Y, th.Z, th.W)
	}
}

func dtlInfo(path string) {
	dtl, err := formats.ParseDTLFile(path)
	if err != nil {
		fatal("Error: %v", err)
	}

	fmt.Printf("Detail map: %s\n", path)
	fmt.Printf("Version:    %s\n", dtl.Version)
	fmt.Printf("Cells:      %d x %d\n", dtl.Width, dtl.Height)
	fmt.Printf("Heights:    %d x %d\n", dtl.HeightWidth, dtl.HeightDepth)
	fmt.Printf("Instances:  %d\n", dtl.TotalInstances())
	fmt.Println()
	fmt.Println("Layers:")
	for i, layer := range dtl.Layers {
		total, used := 0, 0
		for _, c := range layer {
			total += int(c)
			if c > 0 {
				used++
			}
		}
		fmt.Printf("  %-2d instances=%-8d cells=%d\n", i, total, used)
	}
}

func cmdNodes(args []string) {
	fs := flag.NewFlagSet("nodes", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N nodes (0 = all)")
	minCount := fs.Int("min", 1, "Only list nodes with at least this many instances")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: detailtool nodes <file.dda> [-n N] [-min M]")
	}

	asset := loadAsset(fs.Arg(0))
	nodes := asset.Tree.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Index < nodes[j].Index })

	fmt.Printf("%-7s %-22s %-7s %-9s %s\n", "INDEX", "CENTER", "SIZE", "FIRST", "COUNT")
	count := 0
	for _, n := range nodes {
		if n.DataCount < *minCount {
			continue
		}
		fmt.Printf("%-7d (%7.1f, %7.1f)   %-7g %-9d %d\n",
			n.Index, n.Center.X, n.Center.Z, n.Size, n.DataIndex, n.DataCount)
		count++
		if *limit > 0 && count >= *limit {
			fmt.Fprintf(os.Stderr, "\n(showing first %d nodes, use -n 0 for all)\n", *limit)
			return
		}
	}
	fmt.Fprintf(os.Stderr, "\n(%d of %d nodes)\n", count, len(nodes))
}

func cmdQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	x := fs.Float64("x", 0, "World X of the query center")
	z := fs.Float64("z", 0, "World Z of the query center")
	radius := fs.Float64("r", 200, "Streaming radius")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: detailtool query <file.dda> -x X -z Z -r R")
	}

	asset := loadAsset(fs.Arg(0))
	dst := details.NewData()
	center := math.Vec3{X: float32(*x), Z: float32(*z)}
	asset.ClearAndCopyDataTo(dst, center, float32(*radius))

	fmt.Printf("Query:     (%.1f, %.1f) radius %.1f\n", *x, *z, *radius)
	fmt.Printf("Streamed:  %d of %d instances\n", dst.Count(), asset.Data.Count())

	counts := make([]int, len(dst.Prototypes))
	for _, t := range dst.Types {
		counts[t]++
	}
	for i, p := range dst.Prototypes {
		fmt.Printf("  %-12s %d\n", p.Name, counts[i])
	}
}

func cmdRepack(args []string) {
	fs := flag.NewFlagSet("repack", flag.ExitOnError)
	out := fs.String("o", "", "Output file (default: overwrite the input)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: detailtool repack <file.dda> [-o out.dda]")
	}
	path := fs.Arg(0)
	if *out == "" {
		*out = path
	}

	src := loadAsset(path)
	dst := details.NewAsset(src.Name)
	n := dst.CopyFrom(src)

	if err := formats.WriteDDAFile(*out, dst.Encode()); err != nil {
		fatal("Error: %v", err)
	}
	fmt.Printf("Repacked:  %s -> %s\n", path, *out)
	fmt.Printf("Instances: %d (dropped %d unindexed)\n", n, src.Data.Count()-n)
}

func cmdGenTerrain(args []string) {
	fs := flag.NewFlagSet("gen-terrain", flag.ExitOnError)
	outDir := fs.String("o", ".", "Output directory")
	size := fs.Float64("size", 256, "World size of the terrain square")
	opts := terrain.DefaultGenerateOptions()
	fs.IntVar(&opts.Resolution, "res", opts.Resolution, "Detail cells per side")
	fs.IntVar(&opts.HeightGrid, "heights", opts.HeightGrid, "Height samples per side")
	fs.IntVar(&opts.MaxDensity, "density", opts.MaxDensity, "Instances in the densest cell")
	fs.IntVar(&opts.Seed, "seed", opts.Seed, "Noise seed")
	maxHeight := fs.Float64("height", float64(opts.MaxHeight), "Height of the tallest hill")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: detailtool gen-terrain <name> [-o dir] [-size S] [-res N] [-seed N]")
	}
	name := fs.Arg(0)
	opts.MaxHeight = float32(*maxHeight)

	desc := terrain.DefaultDescription(name, name+".dtl", float32(*size))
	opts.Layers = len(desc.Prototypes)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fatal("Error creating directory: %v", err)
	}

	dtl := terrain.Generate(opts)
	mapPath := filepath.Join(*outDir, name+".dtl")
	if err := formats.WriteDTLFile(mapPath, dtl); err != nil {
		fatal("Error: %v", err)
	}

	descPath := filepath.Join(*outDir, name+".yaml")
	if err := terrain.SaveDescription(descPath, desc); err != nil {
		fatal("Error: %v", err)
	}

	fmt.Printf("Generated: %s (%d instances)\n", mapPath, dtl.TotalInstances())
	fmt.Printf("Generated: %s\n", descPath)
}
