package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`funds:
  store:
    type: file
    path: %s
records:
  store: file
  dir: %s
`, filepath.Join(dir, "fund_names.json"), filepath.Join(dir, "output"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLIRoundTrip(t *testing.T) {
	cfgPath := writeConfig(t)
	doc := filepath.Join(t.TempDir(), "q3.txt")
	require.NoError(t, os.WriteFile(doc, []byte("AlphaFund committed $2,500,000 (50%)"), 0o644))

	out, err := execute(t, "", "process", "--config", cfgPath, doc)
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 3)
	id := fields[0]
	assert.Equal(t, "q3.txt", fields[1])
	assert.Equal(t, "masked=2 funds=1 chars=36 pages=1", fields[2])

	out, err = execute(t, "Fund006 put in NUM_000000", "decrypt", "--config", cfgPath, "--record-id", id, "-i", "-")
	require.NoError(t, err)
	assert.Equal(t, "AlphaFund put in $2,500,000", out)

	auditPath := filepath.Join(t.TempDir(), "audit.parquet")
	out, err = execute(t, "", "export", "--config", cfgPath, "-o", auditPath, id)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 rows from 1 records")
	_, err = os.Stat(auditPath)
	assert.NoError(t, err)
}

func TestCLIFunds(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "", "funds", "add", "--config", cfgPath, "Zeta", "Capital")
	require.NoError(t, err)
	assert.Equal(t, "added\tFund021\tZeta Capital\n", out)

	out, err = execute(t, "", "funds", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Fund021\tZeta Capital\n")
	assert.Contains(t, out, "Fund001\tMasterFund1\n")

	out, err = execute(t, "", "funds", "remove", "--config", cfgPath, "Unknown")
	require.NoError(t, err)
	assert.Equal(t, "not_found\tUnknown\n", out)
}

func TestCLIDecryptNeedsOneRecordSource(t *testing.T) {
	decryptRecordID, decryptRecordFile = "", ""
	_, err := execute(t, "", "decrypt")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "privacyctl version "+version+"\n", out)
}
