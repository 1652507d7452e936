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

// Package molkey reads and writes the compact molecule keys produced by
// the CUT&Tag barcode extraction stage. A key has the form
//
//   locus:start:end:cellbarcode:ab1:ab2
//
// where ab1 and ab2 are the antibody barcodes carried by read 1 and read 2
// of the pair. Input lines are "<count><whitespace><key>".
package molkey

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed is the cause of every error returned for a line or key that
// does not have the expected shape.
var ErrMalformed = errors.New("malformed record")

const (
	nKeyFields = 6
	sep        = ":"
)

// LocusKey identifies the genomic position and cell of a molecule.
type LocusKey struct {
	Locus string
	// Start is kept as text. Starts are only ever compared for equality.
	Start       string
	End         int
	CellBarcode string
}

// String returns "locus:start:end:cellbarcode".
func (l LocusKey) String() string {
	return l.Locus + sep + l.Start + sep + strconv.Itoa(l.End) + sep + l.CellBarcode
}

// AntibodyPair is the pair of antibody barcodes found on the two reads.
type AntibodyPair struct {
	AB1, AB2 string
}

// String returns "ab1:ab2".
func (a AntibodyPair) String() string {
	return a.AB1 + sep + a.AB2
}

// Key is one parsed molecule key.
type Key struct {
	LocusKey
	AntibodyPair
}

// String serializes k back into the colon-delimited form.
func (k Key) String() string {
	return k.LocusKey.String() + sep + k.AntibodyPair.String()
}

// Record is one input line: an observation count and its key.
type Record struct {
	Count int
	Key   Key
}

// Fragment is the representative molecule chosen for a cluster.
type Fragment struct {
	LocusKey
	AntibodyPair
}

// Fields returns the six output columns of f.
func (f Fragment) Fields() []string {
	return []string{f.Locus, f.Start, strconv.Itoa(f.End), f.CellBarcode, f.AB1, f.AB2}
}

// Mate selects one of the two cut sites of a fragment.
type Mate int

const (
	// Mate1 is the read 1 end; its cut site is the fragment start.
	Mate1 Mate = 1
	// Mate2 is the read 2 end; its cut site is the fragment end.
	Mate2 Mate = 2
)

// CutSite returns the locus, coordinate and cell barcode columns for the
// given mate.
func (f Fragment) CutSite(m Mate) []string {
	switch m {
	case Mate1:
		return []string{f.Locus, f.Start, f.CellBarcode}
	case Mate2:
		return []string{f.Locus, strconv.Itoa(f.End), f.CellBarcode}
	}
	panic(m)
}

// Antibody returns the antibody barcode carried by the given mate.
func (f Fragment) Antibody(m Mate) string {
	if m == Mate1 {
		return f.AB1
	}
	return f.AB2
}

// ParseKey parses a colon-delimited molecule key.
func ParseKey(s string) (Key, error) {
	fields := strings.Split(s, sep)
	if len(fields) != nKeyFields {
		return Key{}, errors.Wrapf(ErrMalformed, "key %q: expect %d fields, found %d", s, nKeyFields, len(fields))
	}
	if _, err := strconv.Atoi(fields[1]); err != nil {
		return Key{}, errors.Wrapf(ErrMalformed, "key %q: start %q is not an integer", s, fields[1])
	}
	end, err := strconv.Atoi(fields[2])
	if err != nil {
		return Key{}, errors.Wrapf(ErrMalformed, "key %q: end %q is not an integer", s, fields[2])
	}
	return Key{
		LocusKey: LocusKey{
			Locus:       fields[0],
			Start:       fields[1],
			End:         end,
			CellBarcode: fields[3],
		},
		AntibodyPair: AntibodyPair{AB1: fields[4], AB2: fields[5]},
	}, nil
}

// Parse parses one "<count> <key>" input line.
func Parse(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Record{}, errors.Wrapf(ErrMalformed, "line %q: expect 2 fields, found %d", line, len(fields))
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 1 {
		return Record{}, errors.Wrapf(ErrMalformed, "line %q: count %q is not a positive integer", line, fields[0])
	}
	key, err := ParseKey(fields[1])
	if err != nil {
		return Record{}, err
	}
	return Record{Count: count, Key: key}, nil
}

// IsMalformed reports whether err was caused by a malformed line or key.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}

// FormatFragment returns the tab-joined fragment columns.
func FormatFragment(f Fragment) string {
	return strings.Join(f.Fields(), "\t")
}

// FormatCutSite returns the tab-joined cut-site columns for mate m.
func FormatCutSite(f Fragment, m Mate) string {
	return strings.Join(f.CutSite(m), "\t")
}
