package dedup

import (
	"path/filepath"
	"strings"

	"github.com/grailbio/base/file"
)

// OutputPaths are the files written for one input.
type OutputPaths struct {
	Fragments   string
	Frequencies string
	// CutSites maps antibody group name to its cut-site track.
	CutSites map[string]string
}

// outputPrefix strips the directory and the .gz and .txt extensions from
// an input path.
func outputPrefix(inputPath string) string {
	name := filepath.Base(inputPath)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, ".txt")
}

// NewOutputPaths derives output names from the input path: "x.txt" gives
// "x_dedup.txt", "x_freq.txt" and "x_<group>.txt" in opts.OutputDir, or
// next to the input if OutputDir is empty.
func NewOutputPaths(inputPath string, opts *Opts) OutputPaths {
	prefix := outputPrefix(inputPath)
	name := func(suffix string) string {
		base := prefix + "_" + suffix + ".txt"
		var p string
		if opts.OutputDir == "" {
			// Keep any URL scheme of the input intact.
			p = strings.TrimSuffix(inputPath, filepath.Base(inputPath)) + base
		} else {
			p = file.Join(opts.OutputDir, base)
		}
		if opts.Gzip {
			p += ".gz"
		}
		return p
	}
	paths := OutputPaths{
		Fragments:   name("dedup"),
		Frequencies: name("freq"),
		CutSites:    map[string]string{},
	}
	for _, group := range opts.Antibodies.Names() {
		paths.CutSites[group] = name(group)
	}
	return paths
}
