// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dedup

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/cuttag/encoding/molkey"
	"github.com/klauspost/compress/gzip"
)

// Sink receives the selection of every closed cluster, in input order.
type Sink interface {
	Emit(sel Selection) error
}

// output is one TSV output stream, optionally gzipped.
type output struct {
	path string
	f    file.File
	gz   *gzip.Writer
	w    *tsv.Writer
}

func createOutput(ctx context.Context, path string, compress bool) (*output, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	o := &output{path: path, f: f}
	var w io.Writer = f.Writer(ctx)
	if compress {
		o.gz = gzip.NewWriter(w)
		w = o.gz
	}
	o.w = tsv.NewWriter(w)
	return o, nil
}

// close flushes and closes the stream. Every step is attempted even if an
// earlier one fails; the first error is returned.
func (o *output) close(ctx context.Context) error {
	var e errors.Once
	e.Set(o.w.Flush())
	if o.gz != nil {
		e.Set(o.gz.Close())
	}
	e.Set(o.f.Close(ctx))
	if err := e.Err(); err != nil {
		return errors.E(err, "close", o.path)
	}
	return nil
}

// Router writes the fragment, frequency and per-antibody cut-site files.
// It implements Sink.
type Router struct {
	groups   barcodeIndex
	frags    *output
	freqs    *output
	cutSites map[string]*output

	// metrics counts cut sites written and dropped.
	metrics Metrics
}

// NewRouter creates the files named by paths. Cut sites are routed with
// groups. If compress is true, the outputs are gzip-compressed.
func NewRouter(ctx context.Context, paths OutputPaths, groups AntibodyGroups, compress bool) (r *Router, err error) {
	r = &Router{
		groups:   groups.index(),
		cutSites: map[string]*output{},
		metrics:  Metrics{CutSites: map[string]int{}},
	}
	defer func() {
		if err != nil {
			if cerr := r.Close(ctx); cerr != nil {
				log.Error.Printf("close partial outputs: %v", cerr)
			}
			r = nil
		}
	}()
	if r.frags, err = createOutput(ctx, paths.Fragments, compress); err != nil {
		return
	}
	if r.freqs, err = createOutput(ctx, paths.Frequencies, compress); err != nil {
		return
	}
	for _, group := range groups.Names() {
		path, ok := paths.CutSites[group]
		if !ok {
			return r, errors.E(errors.Invalid, "no cut-site path for antibody group", group)
		}
		var o *output
		if o, err = createOutput(ctx, path, compress); err != nil {
			return
		}
		r.cutSites[group] = o
		r.metrics.CutSites[group] = 0
	}
	return r, nil
}

// Emit writes the frequency row of sel and, if sel was accepted, its
// fragment row and cut sites. Each mate's cut site goes to every group
// containing that mate's antibody barcode.
func (r *Router) Emit(sel Selection) error {
	for _, n := range sel.Frequencies {
		r.freqs.w.WriteString(strconv.Itoa(n))
	}
	if err := r.freqs.w.EndLine(); err != nil {
		return errors.E(err, "write", r.freqs.path)
	}
	if !sel.Accepted {
		return nil
	}
	frag := sel.Fragment
	if err := molkey.WriteFragment(r.frags.w, frag); err != nil {
		return errors.E(err, "write", r.frags.path)
	}
	for _, mate := range []molkey.Mate{molkey.Mate1, molkey.Mate2} {
		barcode := frag.Antibody(mate)
		groups := r.groups[barcode]
		if len(groups) == 0 {
			r.metrics.UnknownBarcodes++
			log.Debug.Printf("antibody barcode %s (mate %d) of fragment %s is in no group; dropping cut site",
				barcode, mate, strings.Join(frag.Fields(), ":"))
			continue
		}
		for _, group := range groups {
			o := r.cutSites[group]
			if err := molkey.WriteCutSite(o.w, frag, mate); err != nil {
				return errors.E(err, "write", o.path)
			}
			r.metrics.CutSites[group]++
		}
	}
	return nil
}

// Close flushes and closes every output, including those after one that
// fails, and returns the first error. It is safe to call on a partially
// constructed Router.
func (r *Router) Close(ctx context.Context) error {
	var e errors.Once
	for _, o := range []*output{r.frags, r.freqs} {
		if o != nil {
			e.Set(o.close(ctx))
		}
	}
	for _, group := range sortedKeys(r.cutSites) {
		e.Set(r.cutSites[group].close(ctx))
	}
	return e.Err()
}

func sortedKeys(m map[string]*output) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
