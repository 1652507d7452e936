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

package molkey

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// Scanner reads Records line by line. Blank lines are skipped. Scanners
// are not threadsafe.
type Scanner struct {
	b    *bufio.Scanner
	line int
	err  error
}

// NewScanner constructs a Scanner that reads "<count> <key>" lines from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 64<<10), 1<<20)
	return &Scanner{b: b}
}

// Scan parses the next record into rec. Scan returns false at the end of
// input or on the first error; once it returns false it never returns true
// again. The caller should then check Err.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil {
		return false
	}
	for s.b.Scan() {
		s.line++
		text := s.b.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		r, err := Parse(text)
		if err != nil {
			s.err = errors.Wrapf(err, "line %d", s.line)
			return false
		}
		*rec = r
		return true
	}
	if s.err = s.b.Err(); s.err == nil {
		s.err = io.EOF
	}
	return false
}

// Line returns the 1-based number of the line last read.
func (s *Scanner) Line() int { return s.line }

// Err returns the error that stopped the scanner, or nil if the input was
// consumed completely.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

// WriteFragment appends one fragment row to w.
func WriteFragment(w *tsv.Writer, f Fragment) error {
	for _, col := range f.Fields() {
		w.WriteString(col)
	}
	return w.EndLine()
}

// WriteCutSite appends the cut-site row of mate m to w.
func WriteCutSite(w *tsv.Writer, f Fragment, m Mate) error {
	for _, col := range f.CutSite(m) {
		w.WriteString(col)
	}
	return w.EndLine()
}
