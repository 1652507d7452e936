package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Metrics summarizes one deduplication run.
type Metrics struct {
	// Records is the number of input lines parsed.
	Records int
	// Observations is the sum of the input counts.
	Observations int
	// Clusters is the number of duplicate clusters closed.
	Clusters int
	// Accepted is the number of clusters that produced a fragment.
	Accepted int
	// Rejected is the number of clusters whose winning antibody pair did
	// not pass the cutoff.
	Rejected int
	// OverwrittenKeys is the number of records whose key was already a
	// member of the open cluster; their count replaced the earlier one.
	OverwrittenKeys int
	// UnknownBarcodes is the number of cut sites dropped because their
	// antibody barcode is in no group.
	UnknownBarcodes int
	// CutSites is the number of cut sites written per antibody group.
	CutSites map[string]int
}

// Add adds the metrics in other to m.
func (m *Metrics) Add(other *Metrics) {
	m.Records += other.Records
	m.Observations += other.Observations
	m.Clusters += other.Clusters
	m.Accepted += other.Accepted
	m.Rejected += other.Rejected
	m.OverwrittenKeys += other.OverwrittenKeys
	m.UnknownBarcodes += other.UnknownBarcodes
	for group, n := range other.CutSites {
		if m.CutSites == nil {
			m.CutSites = map[string]int{}
		}
		m.CutSites[group] += n
	}
}

// String returns a string representation of the metrics contained in m.
// The string can be used as a metrics file row.
func (m *Metrics) String() string {
	librarySizeStr := "0"
	librarySize, err := estimateLibrarySize(uint64(m.Observations), uint64(m.Clusters))
	if err == nil {
		librarySizeStr = fmt.Sprintf("%v", librarySize)
	} else {
		log.Debug.Printf("estimateLibrarySize(%v, %v): %v", m.Observations, m.Clusters, err)
	}
	dupFrac := 0.0
	if m.Observations > 0 {
		dupFrac = 100 * float64(m.Observations-m.Clusters) / float64(m.Observations)
	}
	groups := make([]string, 0, len(m.CutSites))
	for group := range m.CutSites {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	cutSites := make([]string, len(groups))
	for i, group := range groups {
		cutSites[i] = fmt.Sprintf("%s=%d", group, m.CutSites[group])
	}
	return fmt.Sprintf("%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%0.6f\t%v",
		m.Records, m.Observations, m.Clusters, m.Accepted, m.Rejected,
		m.OverwrittenKeys, m.UnknownBarcodes, strings.Join(cutSites, ","),
		dupFrac, librarySizeStr)
}

const metricsHeader = "INPUT\tRECORDS\tOBSERVATIONS\tCLUSTERS\tACCEPTED\tREJECTED\t" +
	"OVERWRITTEN_KEYS\tUNKNOWN_BARCODES\tCUT_SITES\tPERCENT_DUPLICATION\t" +
	"ESTIMATED_LIBRARY_SIZE\n"

// writeMetrics writes one row per input, in the order of inputs.
func writeMetrics(ctx context.Context, path string, inputs []string, metrics []Metrics) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "couldn't create metrics file:", path)
	}
	defer file.CloseAndReport(ctx, out, &err)

	s := "# bio-cuttag-dedup\n" + metricsHeader
	for i, input := range inputs {
		s += input + "\t" + metrics[i].String() + "\n"
	}
	if _, err = out.Writer(ctx).Write([]byte(s)); err != nil {
		return errors.E(err, "error writing to metrics file:", path)
	}
	return nil
}
