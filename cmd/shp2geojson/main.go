// Command shp2geojson converts an ESRI shapefile to a GeoJSON
// FeatureCollection, optionally reprojecting the coordinates between EPSG
// codes on the way. Useful for turning survey exports into layers the
// upload endpoint accepts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/paulmach/orb/geojson"

	"coastwatch/pkg/crs"
	"coastwatch/pkg/predict"
)

func main() {
	inputPath := flag.String("input", "", "Path to input .shp file")
	outputPath := flag.String("output", "", "Path to output .geojson file")
	fromEPSG := flag.Int("from", 0, "EPSG code of the shapefile coordinates (0: guess from magnitude)")
	toEPSG := flag.Int("to", 0, "EPSG code to reproject into (0: keep source coordinates)")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" {
		flag.Usage()
		log.Fatal("Input and output paths are required")
	}

	if err := run(*inputPath, *outputPath, *fromEPSG, *toEPSG); err != nil {
		log.Fatal(err)
	}
}

func run(inputPath, outputPath string, fromEPSG, toEPSG int) error {
	features, err := predict.LoadShapefile(inputPath)
	if err != nil {
		return err
	}

	if toEPSG != 0 {
		norm, err := crs.NewNormalizer(toEPSG)
		if err != nil {
			return fmt.Errorf("invalid target EPSG: %w", err)
		}
		features, err = norm.Normalize(features, fromEPSG)
		if err != nil {
			return fmt.Errorf("reprojection failed: %w", err)
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		gf := geojson.NewFeature(f.Geometry)
		for k, v := range f.Attributes {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Printf("Successfully converted %d features to %s\n", len(fc.Features), outputPath)
	return nil
}
