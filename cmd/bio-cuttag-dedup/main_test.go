package main

import (
	"flag"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/cuttag/dedup"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestBuildOpts(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	config := filepath.Join(dir, "dedup.toml")
	require.NoError(t, ioutil.WriteFile(config, []byte(`
end_tolerance = 3
perc_cutoff = 0.6

[antibodies]
K27 = ["AB1"]
`), 0644))

	require.NoError(t, flag.Set("config", config))
	require.NoError(t, flag.Set("endbp", "5"))
	require.NoError(t, flag.Set("odir", "/out"))
	opts, err := buildOpts()
	require.NoError(t, err)
	// Explicit flags win over the file; the file wins over the defaults.
	expect.EQ(t, opts.EndTolerance, 5)
	expect.EQ(t, opts.PercCutoff, 0.6)
	expect.EQ(t, opts.OutputDir, "/out")
	expect.EQ(t, opts.Parallelism, dedup.DefaultOpts.Parallelism)
	expect.EQ(t, opts.Antibodies, dedup.AntibodyGroups{"K27": {"AB1"}})

	require.NoError(t, flag.Set("ab", "K4:AB2,AB4"))
	opts, err = buildOpts()
	require.NoError(t, err)
	expect.EQ(t, opts.Antibodies, dedup.AntibodyGroups{"K4": {"AB2", "AB4"}})
}
