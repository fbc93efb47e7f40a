package ioutils

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zipContent = `{"name": "flib", "version": "0.12.4"}`

func writeZip(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.CreateHeader(&zip.FileHeader{Name: "flib/info.json", Method: zip.Store})
	require.NoError(t, err)
	_, err = f.Write([]byte(zipContent))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestValidateZip(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "flib_0.12.4.zip")
	writeZip(t, good)
	assert.NoError(t, ValidateZip(good))

	notZip := filepath.Join(dir, "stdlib_1.0.0.zip")
	require.NoError(t, os.WriteFile(notZip, []byte("<html>rate limited</html>"), 0644))
	assert.ErrorIs(t, ValidateZip(notZip), ErrInvalidZip)

	damaged := filepath.Join(dir, "bob_1.0.0.zip")
	writeZip(t, damaged)
	data, err := os.ReadFile(damaged)
	require.NoError(t, err)
	idx := bytes.Index(data, []byte("0.12.4"))
	require.Positive(t, idx)
	data[idx] = '9'
	require.NoError(t, os.WriteFile(damaged, data, 0644))
	err = ValidateZip(damaged)
	require.Error(t, err)
	assert.ErrorIs(t, err, zip.ErrChecksum)
}

func TestValidateZips(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "b_1.0.0.zip"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_1.0.0.zip"), []byte("truncated"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	statuses, err := ValidateZips(dir)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "a_1.0.0.zip", filepath.Base(statuses[0].Path))
	assert.False(t, statuses[0].Valid())
	assert.True(t, statuses[1].Valid())
	assert.Positive(t, statuses[1].Size)

	_, err = ValidateZips(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
