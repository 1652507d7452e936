// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

/*
Package dedup collapses CUT&Tag molecule observations into one
representative fragment per molecule.

Input records are "<count> <locus:start:end:cellbarcode:ab1:ab2>" lines,
sorted by the caller so that the observations of one molecule are
contiguous (e.g. by cell barcode, then start). Sequencing and alignment
add jitter to the fragment end, so records are grouped greedily in a
single pass:

  A record joins the open cluster if its cell barcode and its start have
  both been seen in the cluster, and its end lies within ±EndTolerance of
  any end already absorbed by the cluster.

Because every absorbed end contributes its own window, the reach of a
cluster grows as records are added, and membership depends on input
order. With EndTolerance=2, ends 100, 102, 104 form one cluster in that
order, but 100, 104, 102 forms two: 104 is not within 2 of 100 when it
arrives.

When a record does not join, the open cluster is closed and a new one is
seeded from the record. For each closed cluster, counts are summed per
locus (locus, start, end, cell barcode) and per antibody pair (ab1, ab2).
The locus and the antibody pair with the highest totals are the
representative; ties go to the lexicographically smallest key. The
fragment is accepted only when the winning antibody pair holds strictly
more than PercCutoff of the cluster's observations.

If the same key appears twice within a cluster, the later count replaces
the earlier one rather than adding to it.

Outputs, per input file:

  <name>_dedup.txt    one row per accepted cluster: locus, start, end,
                      cell barcode, ab1, ab2.
  <name>_freq.txt     one row per cluster, accepted or not: the antibody
                      pair totals in order of first appearance.
  <name>_<group>.txt  cut sites of accepted fragments whose antibody
                      barcode belongs to the group: locus, start, cell
                      barcode for read 1; locus, end, cell barcode for
                      read 2.

A cut site whose barcode belongs to no group is dropped and counted in
Metrics.UnknownBarcodes.
*/
package dedup
