package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/arrest-news-cli/internal/config"
)

const sampleInput = "arrestdate,CountyName,ST,StateCountyFIPS,FIPSState,FIPSCounty\n" +
	"3/14/2019,Harris,TX,48201,48,201\n" +
	"7/2/2018,Maricopa,AZ,04013,04,013\n"

// useTestConfig points the package config at a temp dir holding loaded
// defaults, a SQLite checkpoint and an output dir. It returns the temp dir.
func useTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	c, err := config.Load()
	require.NoError(t, err)
	c.Checkpoint.DatabaseURL = filepath.Join(dir, "checkpoint.db")
	c.Output.Dir = filepath.Join(dir, "output")

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return dir
}

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "abnormal_dates.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleInput), 0o644))
	return path
}
