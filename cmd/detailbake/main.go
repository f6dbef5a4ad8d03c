// detailbake bakes the details assets of terrain descriptions.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-details/internal/details"
	"github.com/Faultbox/midgard-details/internal/logger"
	"github.com/Faultbox/midgard-details/internal/terrain"
)

func main() {
	outDir := flag.String("o", "assets", "Output directory for baked assets")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(level, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store := details.NewStore(*outDir)
	var errs error
	for _, path := range flag.Args() {
		if err := bake(store, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		fmt.Fprintf(os.Stderr, "\n%d of %d terrains failed\n", len(multierr.Errors(errs)), flag.NArg())
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`detailbake - bake terrain details assets

Usage:
  detailbake [-o dir] [-v] <terrain.yaml>...

Each terrain description is opened with its detail map, every quadtree
leaf is synthesized and the result is written to
<dir>/DetailsData_<name>.dda, replacing any previous bake.

Examples:
  detailbake meadow.yaml
  detailbake -o build/assets terrains/*.yaml`)
}

func bake(store *details.Store, path string) error {
	src, err := terrain.Open(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	asset, err := store.Bake(src)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	info := src.Info()
	fmt.Printf("Baked: %s\n", store.Path(asset.Name))
	fmt.Printf("  Terrain:    %s (%.0f x %.0f at %.1f, %.1f, %.1f)\n",
		info.Name, info.Width, info.Depth, info.Position.X, info.Position.Y, info.Position.Z)
	fmt.Printf("  Resolution: %d\n", info.Resolution)
	fmt.Printf("  Instances:  %d\n", asset.Data.Count())
	fmt.Printf("  Nodes:      %d\n", len(asset.Tree.Nodes()))
	fmt.Printf("  LODs:       %d\n", asset.Data.TotalLODCount)
	return nil
}
