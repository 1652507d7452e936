package dedup

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/cuttag/encoding/molkey"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSink keeps every selection in memory.
type memSink struct {
	sels []Selection
}

func (s *memSink) Emit(sel Selection) error {
	s.sels = append(s.sels, sel)
	return nil
}

func (s *memSink) fragments() []string {
	var frags []string
	for _, sel := range s.sels {
		if sel.Accepted {
			frags = append(frags, molkey.FormatFragment(sel.Fragment))
		}
	}
	return frags
}

func dedupString(t *testing.T, in string, opts Opts) (*memSink, Metrics, error) {
	sink := &memSink{}
	m, err := Deduplicate(context.Background(), strings.NewReader(in), sink, &opts)
	return sink, m, err
}

const exampleInput = `3 chr1:100:150:CB1:AB1:AB2
2 chr1:100:151:CB1:AB1:AB2
5 chr1:100:300:CB1:AB3:AB4
`

func TestDeduplicateExample(t *testing.T) {
	sink, m, err := dedupString(t, exampleInput, Opts{EndTolerance: 2, PercCutoff: 0.5})
	require.NoError(t, err)
	require.Equal(t, 2, len(sink.sels))
	expect.EQ(t, sink.fragments(), []string{
		"chr1\t100\t150\tCB1\tAB1\tAB2",
		"chr1\t100\t300\tCB1\tAB3\tAB4",
	})
	expect.EQ(t, sink.sels[0].Frequencies, []int{5})
	expect.EQ(t, sink.sels[1].Frequencies, []int{5})
	expect.EQ(t, m.Records, 3)
	expect.EQ(t, m.Observations, 10)
	expect.EQ(t, m.Clusters, 2)
	expect.EQ(t, m.Accepted, 2)
	expect.EQ(t, m.Rejected, 0)
}

func TestDeduplicateOrderDependent(t *testing.T) {
	opts := Opts{EndTolerance: 2, PercCutoff: 0.5}
	sink, _, err := dedupString(t, "1 chr1:10:100:CB:A:B\n1 chr1:10:102:CB:A:B\n1 chr1:10:104:CB:A:B\n", opts)
	require.NoError(t, err)
	expect.EQ(t, len(sink.sels), 1)

	sink, _, err = dedupString(t, "1 chr1:10:100:CB:A:B\n1 chr1:10:104:CB:A:B\n1 chr1:10:102:CB:A:B\n", opts)
	require.NoError(t, err)
	expect.EQ(t, len(sink.sels), 2)
	expect.EQ(t, sink.fragments(), []string{
		"chr1\t10\t100\tCB\tA\tB",
		"chr1\t10\t102\tCB\tA\tB",
	})
}

func TestDeduplicateRepeatedKeyOverwrites(t *testing.T) {
	in := "3 chr1:100:150:CB1:AB1:AB2\n2 chr1:100:151:CB1:AB3:AB4\n1 chr1:100:150:CB1:AB1:AB2\n"
	sink, m, err := dedupString(t, in, Opts{EndTolerance: 1, PercCutoff: 0.5})
	require.NoError(t, err)
	require.Equal(t, 1, len(sink.sels))
	// The second AB1:AB2 line replaces the count 3 with 1.
	expect.EQ(t, sink.sels[0].Frequencies, []int{1, 2})
	expect.EQ(t, sink.fragments(), []string{"chr1\t100\t151\tCB1\tAB3\tAB4"})
	expect.EQ(t, m.OverwrittenKeys, 1)
	expect.EQ(t, m.Observations, 6)
}

func TestDeduplicateRejected(t *testing.T) {
	in := "2 chr1:100:150:CB1:AB1:AB2\n2 chr1:100:150:CB1:AB3:AB4\n1 chr2:5:50:CB1:AB1:AB2\n"
	sink, m, err := dedupString(t, in, Opts{PercCutoff: 0.5})
	require.NoError(t, err)
	require.Equal(t, 2, len(sink.sels))
	assert.False(t, sink.sels[0].Accepted)
	assert.True(t, sink.sels[1].Accepted)
	expect.EQ(t, m.Rejected, 1)
	expect.EQ(t, m.Accepted, 1)
}

func TestDeduplicateEmpty(t *testing.T) {
	sink, m, err := dedupString(t, "", Opts{PercCutoff: 0.5})
	require.NoError(t, err)
	expect.EQ(t, len(sink.sels), 0)
	expect.EQ(t, m.Clusters, 0)
}

func TestDeduplicateMalformed(t *testing.T) {
	in := "3 chr1:100:150:CB1:AB1:AB2\n5 chr1:100:300:CB1:AB3:AB4\n2 chr1:100:301:CB1\n1 chr1:900:950:CB1:AB1:AB2\n"
	sink, _, err := dedupString(t, in, Opts{EndTolerance: 2, PercCutoff: 0.5})
	require.Error(t, err)
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
	// Only the cluster closed before the bad line is emitted; the open one
	// is abandoned.
	expect.EQ(t, sink.fragments(), []string{"chr1\t100\t150\tCB1\tAB1\tAB2"})
}

func TestDeduplicateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &memSink{}
	_, err := Deduplicate(ctx, strings.NewReader(exampleInput), sink, &Opts{EndTolerance: 2, PercCutoff: 0.5})
	expect.EQ(t, err, context.Canceled)
	expect.EQ(t, len(sink.sels), 1)
}

func TestDeduplicateIdempotent(t *testing.T) {
	in := "3 chr1:100:150:CB1:AB1:AB2\n2 chr1:100:151:CB1:AB1:AB2\n1 chr1:100:151:CB1:AB3:AB4\n"
	sink, _, err := dedupString(t, in, Opts{EndTolerance: 2, PercCutoff: 0.5})
	require.NoError(t, err)
	require.Equal(t, 1, len(sink.sels))
	frag := sink.sels[0].Fragment

	again, _, err := dedupString(t, "1 "+strings.Join(frag.Fields(), ":")+"\n", Opts{PercCutoff: 0.5})
	require.NoError(t, err)
	require.Equal(t, 1, len(again.sels))
	expect.EQ(t, again.sels[0].Fragment, frag)
}

func TestDeduplicateFrequencySums(t *testing.T) {
	in := `4 chr1:100:150:CB1:AB1:AB2
1 chr1:100:149:CB1:AB3:AB4
2 chr1:100:151:CB1:AB1:AB2
6 chr1:100:150:CB2:AB1:AB2
1 chr1:200:250:CB2:AB3:AB4
`
	sink, m, err := dedupString(t, in, Opts{EndTolerance: 1, PercCutoff: 0.5})
	require.NoError(t, err)
	total := 0
	for _, sel := range sink.sels {
		for _, n := range sel.Frequencies {
			total += n
		}
	}
	expect.EQ(t, total, m.Observations)
	expect.EQ(t, len(sink.sels), 3)
}

var testGroups = AntibodyGroups{
	"K27": {"AB1", "AB3"},
	"K4":  {"AB2"},
}

func readFile(t *testing.T, path string) string {
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	input := filepath.Join(dir, "sample.txt")
	in := exampleInput + "4 chr2:7:70:CB9:AB1:AB9\n"
	require.NoError(t, ioutil.WriteFile(input, []byte(in), 0644))

	opts := Opts{EndTolerance: 2, PercCutoff: 0.5, Antibodies: testGroups}
	m, err := Run(context.Background(), input, &opts)
	require.NoError(t, err)

	expect.EQ(t, readFile(t, filepath.Join(dir, "sample_dedup.txt")),
		"chr1\t100\t150\tCB1\tAB1\tAB2\n"+
			"chr1\t100\t300\tCB1\tAB3\tAB4\n"+
			"chr2\t7\t70\tCB9\tAB1\tAB9\n")
	expect.EQ(t, readFile(t, filepath.Join(dir, "sample_freq.txt")), "5\n5\n4\n")
	// AB4 and AB9 belong to no group, so those cut sites are dropped. The
	// last cluster's cut sites are written like any other.
	expect.EQ(t, readFile(t, filepath.Join(dir, "sample_K27.txt")),
		"chr1\t100\tCB1\n"+
			"chr1\t100\tCB1\n"+
			"chr2\t7\tCB9\n")
	expect.EQ(t, readFile(t, filepath.Join(dir, "sample_K4.txt")), "chr1\t150\tCB1\n")

	expect.EQ(t, m.Clusters, 3)
	expect.EQ(t, m.UnknownBarcodes, 2)
	expect.EQ(t, m.CutSites, map[string]int{"K27": 3, "K4": 1})
}

func TestRunSameBarcodeBothMates(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	input := filepath.Join(dir, "same.txt")
	require.NoError(t, ioutil.WriteFile(input, []byte("1 chr1:10:90:CB:AB1:AB1\n"), 0644))

	opts := Opts{PercCutoff: 0.5, Antibodies: testGroups}
	_, err := Run(context.Background(), input, &opts)
	require.NoError(t, err)
	expect.EQ(t, readFile(t, filepath.Join(dir, "same_K27.txt")), "chr1\t10\tCB\nchr1\t90\tCB\n")
	expect.EQ(t, readFile(t, filepath.Join(dir, "same_K4.txt")), "")
}

func TestRunEmptyInput(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	input := filepath.Join(dir, "empty.txt")
	require.NoError(t, ioutil.WriteFile(input, nil, 0644))

	opts := Opts{PercCutoff: 0.5, Antibodies: testGroups, OutputDir: filepath.Join(dir, "out")}
	require.NoError(t, os.MkdirAll(opts.OutputDir, 0755))
	_, err := Run(context.Background(), input, &opts)
	require.NoError(t, err)
	for _, name := range []string{"empty_dedup.txt", "empty_freq.txt", "empty_K27.txt", "empty_K4.txt"} {
		expect.EQ(t, readFile(t, filepath.Join(opts.OutputDir, name)), "")
	}
}

func TestRunMalformedClosesOutputs(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	input := filepath.Join(dir, "bad.txt")
	in := "3 chr1:100:150:CB1:AB1:AB2\n5 chr1:100:300:CB1:AB3:AB4\nnot a record\n"
	require.NoError(t, ioutil.WriteFile(input, []byte(in), 0644))

	opts := Opts{EndTolerance: 2, PercCutoff: 0.5, Antibodies: testGroups}
	_, err := Run(context.Background(), input, &opts)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
	// Output written before the bad line is flushed.
	expect.EQ(t, readFile(t, filepath.Join(dir, "bad_dedup.txt")), "chr1\t100\t150\tCB1\tAB1\tAB2\n")
	expect.EQ(t, readFile(t, filepath.Join(dir, "bad_freq.txt")), "5\n")
}

func TestRunInvalidOpts(t *testing.T) {
	for _, opts := range []Opts{
		{EndTolerance: -1, PercCutoff: 0.5, Antibodies: testGroups},
		{PercCutoff: 1.5, Antibodies: testGroups},
		{PercCutoff: -0.1, Antibodies: testGroups},
		{PercCutoff: 0.5},
		{PercCutoff: 0.5, Antibodies: AntibodyGroups{"freq": {"AB1"}}},
		{PercCutoff: 0.5, Antibodies: AntibodyGroups{"a/b": {"AB1"}}},
	} {
		_, err := Run(context.Background(), "/nonexistent/input.txt", &opts)
		assert.True(t, errors.Is(errors.Invalid, err), "%+v: %v", opts, err)
	}
}
