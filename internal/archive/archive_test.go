package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestNormalize_PlainFilePassThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("id\n1\n"), 0644))

	out, cleanup, err := Normalize(path)
	defer cleanup()
	require.NoError(t, err)
	assert.Equal(t, path, out)
}

func TestNormalize_MissingFile(t *testing.T) {
	_, _, err := Normalize(filepath.Join(t.TempDir(), "absent.csv"))
	var ue *UnpackError
	require.ErrorAs(t, err, &ue)
}

func TestNormalize_GzipSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv.gz")
	writeGzip(t, path, "id,name\n1,a\n")

	out, cleanup, err := Normalize(path)
	defer cleanup()
	require.NoError(t, err)
	assert.Equal(t, "data.csv", filepath.Base(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,a\n", string(data))
}

func TestNormalize_ZipSingleMember(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.zip")
	writeZip(t, path, map[string]string{"data.csv": "id\n1\n"})

	out, cleanup, err := Normalize(path)
	defer cleanup()
	require.NoError(t, err)
	assert.Equal(t, "data.csv", filepath.Base(out))
}

func TestNormalize_ZipShapefileBundle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parcels.zip")
	writeZip(t, path, map[string]string{
		"parcels.shp": "shp",
		"parcels.shx": "shx",
		"parcels.dbf": "dbf",
		"parcels.prj": "prj",
	})

	out, cleanup, err := Normalize(path)
	defer cleanup()
	require.NoError(t, err)
	assert.Equal(t, "parcels.shp", filepath.Base(out))
}

func TestNormalize_ZipMultipleDatasetsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multi.zip")
	writeZip(t, path, map[string]string{
		"a.csv": "id\n",
		"b.csv": "id\n",
	})

	_, _, err := Normalize(path)
	var ue *UnpackError
	require.ErrorAs(t, err, &ue)
}

func TestNormalize_ZipTraversalRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.zip")
	writeZip(t, path, map[string]string{"../escape.txt": "x"})

	_, _, err := Normalize(path)
	var ue *UnpackError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "unsafe member path")
}

func TestNormalize_CorruptGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.csv.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip at all"), 0644))

	_, _, err := Normalize(path)
	var ue *UnpackError
	require.ErrorAs(t, err, &ue)
}

func TestOpenReader_PlainAndGzip(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(plain, []byte("hello"), 0644))
	gz := filepath.Join(dir, "a.csv.gz")
	writeGzip(t, gz, "hello")

	for _, p := range []string{plain, gz} {
		r, err := OpenReader(p)
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
		require.NoError(t, r.Close())
	}
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("x.zip"))
	assert.True(t, IsArchive("x.csv.gz"))
	assert.True(t, IsArchive("x.csv.zst"))
	assert.False(t, IsArchive("x.csv"))
	assert.False(t, IsArchive("x.parquet"))
}
