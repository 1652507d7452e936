// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dedup

import (
	"context"
	"io"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/cuttag/encoding/molkey"
	"github.com/klauspost/compress/gzip"
)

// Deduplicate reads sorted records from r, groups them into duplicate
// clusters and sends the selection of every cluster to sink, in input
// order. The last cluster is closed at the end of input. An empty input
// emits nothing.
//
// A malformed line stops the run with an errors.Invalid error; the
// cluster that was open at that point is not emitted.
func Deduplicate(ctx context.Context, r io.Reader, sink Sink, opts *Opts) (Metrics, error) {
	var (
		m       Metrics
		cluster *Cluster
		rec     molkey.Record
	)
	emit := func() error {
		sel := Select(cluster.Members(), opts.PercCutoff)
		m.Clusters++
		if sel.Accepted {
			m.Accepted++
		} else {
			m.Rejected++
		}
		return sink.Emit(sel)
	}

	sc := molkey.NewScanner(r)
	for sc.Scan(&rec) {
		m.Records++
		m.Observations += rec.Count
		if cluster != nil && cluster.IsDuplicate(rec.Key, opts.EndTolerance) {
			if cluster.add(rec) {
				m.OverwrittenKeys++
				log.Debug.Printf("line %d: key %s repeated within a cluster; count replaced by %d",
					sc.Line(), rec.Key, rec.Count)
			}
			continue
		}
		if cluster != nil {
			if err := emit(); err != nil {
				return m, err
			}
			if err := ctx.Err(); err != nil {
				return m, err
			}
		}
		cluster = &Cluster{}
		cluster.add(rec)
	}
	if err := sc.Err(); err != nil {
		if molkey.IsMalformed(err) {
			return m, errors.E(errors.Invalid, err)
		}
		return m, errors.E(err, "read records")
	}
	if cluster != nil {
		if err := emit(); err != nil {
			return m, err
		}
	}
	return m, nil
}

// openInput opens path for reading, decompressing it if it ends in ".gz".
// The returned function closes everything that was opened.
func openInput(ctx context.Context, path string) (io.Reader, func() error, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "open", path)
	}
	closeIn := func() error { return in.Close(ctx) }
	if !strings.HasSuffix(path, ".gz") {
		return in.Reader(ctx), closeIn, nil
	}
	gz, err := gzip.NewReader(in.Reader(ctx))
	if err == io.EOF {
		// Zero-length file: treat as empty input.
		return strings.NewReader(""), closeIn, nil
	}
	if err != nil {
		_ = closeIn()
		return nil, nil, errors.E(err, "gzip", path)
	}
	return gz, func() error {
		var e errors.Once
		e.Set(gz.Close())
		e.Set(closeIn())
		return e.Err()
	}, nil
}

// deduplicateTo runs Deduplicate into router and then closes it. A failure
// to close any output is returned even if deduplication succeeded.
func deduplicateTo(ctx context.Context, r io.Reader, router *Router, opts *Opts) (Metrics, error) {
	m, err := Deduplicate(ctx, r, router, opts)
	if cerr := router.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	m.Add(&router.metrics)
	return m, err
}

// Run deduplicates one input file and writes its outputs, named by
// NewOutputPaths. All outputs are closed before Run returns, whether or
// not the run succeeded.
func Run(ctx context.Context, inputPath string, opts *Opts) (m Metrics, err error) {
	if err = opts.Validate(); err != nil {
		return
	}
	r, closeIn, err := openInput(ctx, inputPath)
	if err != nil {
		return
	}
	defer func() {
		if cerr := closeIn(); cerr != nil && err == nil {
			err = errors.E(cerr, "close", inputPath)
		}
	}()
	router, err := NewRouter(ctx, NewOutputPaths(inputPath, opts), opts.Antibodies, opts.Gzip)
	if err != nil {
		return
	}
	m, err = deduplicateTo(ctx, r, router, opts)
	if err != nil {
		return m, errors.E(err, inputPath)
	}
	log.Printf("%s: %d records, %d clusters, %d fragments kept, %d rejected",
		inputPath, m.Records, m.Clusters, m.Accepted, m.Rejected)
	if m.UnknownBarcodes > 0 {
		log.Printf("%s: dropped %d cut sites with an antibody barcode in no group",
			inputPath, m.UnknownBarcodes)
	}
	return m, nil
}

// checkOutputs verifies that no two inputs write the same file and that no
// input is overwritten by the outputs of another.
func checkOutputs(inputs []string, opts *Opts) error {
	isInput := map[string]bool{}
	for _, input := range inputs {
		isInput[input] = true
	}
	seen := map[string]string{}
	for _, input := range inputs {
		paths := NewOutputPaths(input, opts)
		outs := []string{paths.Fragments, paths.Frequencies}
		for _, group := range opts.Antibodies.Names() {
			outs = append(outs, paths.CutSites[group])
		}
		for _, out := range outs {
			if isInput[out] {
				return errors.E(errors.Invalid, "input", out, "would be overwritten by the outputs of", input)
			}
			if prev, ok := seen[out]; ok {
				return errors.E(errors.Invalid, "inputs", prev, "and", input, "both write", out)
			}
			seen[out] = input
		}
	}
	return nil
}

// RunAll runs Run on each input, up to opts.Parallelism at a time, and
// then writes opts.MetricsFile if it is set. Inputs must map to distinct
// outputs.
func RunAll(ctx context.Context, inputs []string, opts *Opts) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := checkOutputs(inputs, opts); err != nil {
		return err
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	metrics := make([]Metrics, len(inputs))
	err := traverse.Limit(parallelism).Each(len(inputs), func(i int) (err error) {
		metrics[i], err = Run(ctx, inputs[i], opts)
		return
	})
	if err != nil {
		return err
	}
	if opts.MetricsFile != "" {
		return writeMetrics(ctx, opts.MetricsFile, inputs, metrics)
	}
	return nil
}
