// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dedup

import (
	"github.com/grailbio/cuttag/encoding/molkey"
)

// Selection is the outcome of voting over one closed cluster.
type Selection struct {
	// Fragment is the representative. It is valid only if Accepted.
	Fragment molkey.Fragment
	// Accepted is true if the winning antibody pair holds more than the
	// cutoff share of the cluster's observations.
	Accepted bool
	// Frequencies are the per-antibody-pair totals, in order of first
	// appearance in the cluster.
	Frequencies []int
	// Total is the sum of Frequencies.
	Total int
}

// tally accumulates counts per key, remembering first-appearance order.
type tally struct {
	keys   []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: map[string]int{}}
}

func (t *tally) add(key string, n int) {
	if _, ok := t.counts[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.counts[key] += n
}

// best returns the index into t.keys of the key with the highest count.
// Ties are broken by taking the lexicographically smallest key.
func (t *tally) best() int {
	bi := 0
	for i := 1; i < len(t.keys); i++ {
		k, bk := t.keys[i], t.keys[bi]
		if c, bc := t.counts[k], t.counts[bk]; c > bc || (c == bc && k < bk) {
			bi = i
		}
	}
	return bi
}

// Select votes for the representative fragment of a closed cluster.
// Observation counts are summed separately per locus key and per antibody
// pair, and the two winners are combined. The fragment is accepted iff the
// winning pair's total is strictly greater than percCutoff times the
// cluster total.
//
// REQUIRES: len(members) > 0.
func Select(members []Member, percCutoff float64) Selection {
	if len(members) == 0 {
		panic("dedup: Select called on an empty cluster")
	}
	var (
		loci      = newTally()
		abs       = newTally()
		lociByKey = map[string]molkey.LocusKey{}
		absByKey  = map[string]molkey.AntibodyPair{}
	)
	for _, m := range members {
		lk, ak := m.Key.LocusKey.String(), m.Key.AntibodyPair.String()
		loci.add(lk, m.Count)
		abs.add(ak, m.Count)
		lociByKey[lk] = m.Key.LocusKey
		absByKey[ak] = m.Key.AntibodyPair
	}

	sel := Selection{Frequencies: make([]int, len(abs.keys))}
	for i, k := range abs.keys {
		sel.Frequencies[i] = abs.counts[k]
		sel.Total += abs.counts[k]
	}
	winLocus := loci.keys[loci.best()]
	winAB := abs.keys[abs.best()]
	if float64(abs.counts[winAB]) > percCutoff*float64(sel.Total) {
		sel.Accepted = true
		sel.Fragment = molkey.Fragment{
			LocusKey:     lociByKey[winLocus],
			AntibodyPair: absByKey[winAB],
		}
	}
	return sel
}
