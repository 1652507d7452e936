// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dedup

import (
	"github.com/biogo/store/llrb"
	"github.com/grailbio/cuttag/encoding/molkey"
)

// endPos is an llrb key for an absorbed fragment end.
type endPos int

// Compare implements llrb.Comparable.
func (e endPos) Compare(c llrb.Comparable) int {
	other := c.(endPos)
	switch {
	case e < other:
		return -1
	case e > other:
		return 1
	}
	return 0
}

// Member is one distinct key in a cluster together with its count.
type Member struct {
	Key   molkey.Key
	Count int
}

// Cluster is the state of the open duplicate cluster. The zero value is
// an empty cluster.
type Cluster struct {
	starts       map[string]struct{}
	cellBarcodes map[string]struct{}
	ends         llrb.Tree

	members []Member
	index   map[molkey.Key]int
}

// Absorb adds the start, end and cell barcode of k to the cluster's match
// state. It does not record k as a member.
func (c *Cluster) Absorb(k molkey.Key) {
	if c.starts == nil {
		c.starts = map[string]struct{}{}
		c.cellBarcodes = map[string]struct{}{}
	}
	c.starts[k.Start] = struct{}{}
	c.cellBarcodes[k.CellBarcode] = struct{}{}
	c.ends.Insert(endPos(k.End))
}

// IsDuplicate reports whether k belongs to the cluster: its cell barcode
// and start must have been absorbed, and its end must lie within
// ±endTolerance of some absorbed end. The cluster is not modified.
func (c *Cluster) IsDuplicate(k molkey.Key, endTolerance int) bool {
	if _, ok := c.cellBarcodes[k.CellBarcode]; !ok {
		return false
	}
	if _, ok := c.starts[k.Start]; !ok {
		return false
	}
	q := endPos(k.End)
	if c.ends.Get(q) != nil {
		return true
	}
	// The union of [e-tol, e+tol] over all absorbed ends contains k.End iff
	// the nearest absorbed end on either side is within tol.
	if lo := c.ends.Floor(q); lo != nil && k.End-int(lo.(endPos)) <= endTolerance {
		return true
	}
	if hi := c.ends.Ceil(q); hi != nil && int(hi.(endPos))-k.End <= endTolerance {
		return true
	}
	return false
}

// add absorbs r and records it as a member. A key that is already a member
// has its count replaced by r.Count. add returns true if that happened.
func (c *Cluster) add(r molkey.Record) (overwrote bool) {
	c.Absorb(r.Key)
	if c.index == nil {
		c.index = map[molkey.Key]int{}
	}
	if i, ok := c.index[r.Key]; ok {
		c.members[i].Count = r.Count
		return true
	}
	c.index[r.Key] = len(c.members)
	c.members = append(c.members, Member{Key: r.Key, Count: r.Count})
	return false
}

// Members returns the cluster's distinct keys in order of first
// appearance.
func (c *Cluster) Members() []Member { return c.members }

// Len returns the number of distinct keys in the cluster.
func (c *Cluster) Len() int { return len(c.members) }
