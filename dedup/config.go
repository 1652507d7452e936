package dedup

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Opts configures a deduplication run.
type Opts struct {
	// EndTolerance is the largest end-coordinate drift, in bp, treated as
	// the same fragment end.
	EndTolerance int `toml:"end_tolerance"`
	// PercCutoff is the antibody-pair vote share, in [0,1], that the
	// winning pair must strictly exceed for a fragment to be kept.
	PercCutoff float64 `toml:"perc_cutoff"`
	// Antibodies routes cut sites to per-antibody outputs.
	Antibodies AntibodyGroups `toml:"antibodies"`

	// OutputDir receives the output files. Empty means the directory of
	// the input.
	OutputDir string `toml:"output_dir"`
	// Gzip compresses every output and appends ".gz" to its name.
	Gzip bool `toml:"gzip"`
	// MetricsFile, if set, receives a TSV summary of each run. With
	// several inputs, one row per input is written.
	MetricsFile string `toml:"metrics_file"`
	// Parallelism bounds the number of inputs processed at once.
	Parallelism int `toml:"parallelism"`
}

// DefaultOpts are the defaults used by bio-cuttag-dedup.
var DefaultOpts = Opts{
	EndTolerance: 0,
	PercCutoff:   0.5,
	Parallelism:  runtime.NumCPU(),
}

// Validate checks o for values the run cannot use.
func (o *Opts) Validate() error {
	if o.EndTolerance < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("end tolerance must be >= 0, got %d", o.EndTolerance))
	}
	if o.PercCutoff < 0 || o.PercCutoff > 1 {
		return errors.E(errors.Invalid, fmt.Sprintf("perc cutoff must be in [0,1], got %v", o.PercCutoff))
	}
	if o.Parallelism < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("parallelism must be >= 0, got %d", o.Parallelism))
	}
	return o.Antibodies.validate()
}

// LoadConfig reads a TOML file into a copy of base. Keys absent from the
// file keep their values from base; unknown keys are an error. Antibody
// groups in the file replace those in base.
func LoadConfig(ctx context.Context, path string, base Opts) (opts Opts, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return Opts{}, errors.E(err, "open config", path)
	}
	defer file.CloseAndReport(ctx, in, &err)

	opts = base
	opts.Antibodies = nil
	md, err := toml.NewDecoder(in.Reader(ctx)).Decode(&opts)
	if err != nil {
		return Opts{}, errors.E(errors.Invalid, err, "decode config", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Opts{}, errors.E(errors.Invalid, "config", path, "has unknown keys:", strings.Join(keys, ", "))
	}
	if opts.Antibodies == nil {
		opts.Antibodies = base.Antibodies
	}
	return opts, nil
}
