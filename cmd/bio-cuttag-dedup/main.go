// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
bio-cuttag-dedup collapses CUT&Tag molecule observations into one
representative fragment per molecule. For more information, see
github.com/grailbio/cuttag/dedup/doc.go.

Usage:

  bio-cuttag-dedup -endbp 2 -perc-cutoff 0.5 \
    -ab H3K27me3:ACGTACGT,TTGCAAGC -ab H3K4me3:GGATCCTA \
    -odir /out sample1.txt sample2.txt.gz
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/cuttag/dedup"
)

var (
	configPath  = flag.String("config", "", "TOML file with default options; flags given explicitly override it")
	outputDir   = flag.String("odir", dedup.DefaultOpts.OutputDir, "Output directory. By default, outputs are written next to each input")
	endTol      = flag.Int("endbp", dedup.DefaultOpts.EndTolerance, "Fragment ends within this many bp of an end already in a cluster are duplicates")
	percCutoff  = flag.Float64("perc-cutoff", dedup.DefaultOpts.PercCutoff, "Keep a cluster only if its top antibody pair holds more than this fraction of the observations")
	gzipOutput  = flag.Bool("gzip", dedup.DefaultOpts.Gzip, "gzip the outputs and add a .gz suffix")
	metricsFile = flag.String("metrics", dedup.DefaultOpts.MetricsFile, "Output metrics file")
	parallelism = flag.Int("parallelism", dedup.DefaultOpts.Parallelism, "Number of input files to process at once")
	antibodies  = dedup.AntibodyGroups{}
)

func init() {
	flag.Var(antibodies, "ab", "Antibody group as name:barcode[,barcode...]; may be repeated")
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] input.txt[.gz]...\n", os.Args[0])
	flag.PrintDefaults()
}

// buildOpts merges the defaults, the config file and the flags the user
// set, in increasing priority.
func buildOpts() (dedup.Opts, error) {
	opts := dedup.DefaultOpts
	if *configPath != "" {
		var err error
		if opts, err = dedup.LoadConfig(vcontext.Background(), *configPath, opts); err != nil {
			return dedup.Opts{}, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "odir":
			opts.OutputDir = *outputDir
		case "endbp":
			opts.EndTolerance = *endTol
		case "perc-cutoff":
			opts.PercCutoff = *percCutoff
		case "gzip":
			opts.Gzip = *gzipOutput
		case "metrics":
			opts.MetricsFile = *metricsFile
		case "parallelism":
			opts.Parallelism = *parallelism
		case "ab":
			opts.Antibodies = antibodies
		}
	})
	return opts, opts.Validate()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	inputs := flag.Args()
	if len(inputs) == 0 {
		usage()
		log.Fatalf("no input files given")
	}
	opts, err := buildOpts()
	if err != nil {
		log.Fatalf("%v", err)
	}
	ctx := vcontext.Background()
	if err := dedup.RunAll(ctx, inputs, &opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
