package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func drain(t *testing.T, h Handle, chunkSize int) ([]Chunk, error) {
	t.Helper()
	it := h.Chunks(context.Background(), chunkSize)
	var chunks []Chunk
	for it.Next() {
		chunks = append(chunks, it.Chunk())
	}
	return chunks, it.Err()
}

func TestCSV_HeaderAndChunks(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data.csv", "id,name,score\n1,alice,10\n2,bob,\n3,carol,7\n")

	h, err := NewCSV(0).Open(path)
	require.NoError(t, err)
	defer h.Close()

	probe, err := h.SchemaProbe()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "string", "name": "string", "score": "string"}, probe)

	chunks, err := drain(t, h, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, int64(0), chunks[0].Base)
	assert.Equal(t, int64(2), chunks[1].Base)
	assert.Len(t, chunks[0].Rows, 2)
	assert.Len(t, chunks[1].Rows, 1)

	// Empty field is a null cell.
	assert.True(t, chunks[0].Rows[1][2].Null)
	assert.Equal(t, "alice", chunks[0].Rows[0][1].Raw)
}

func TestCSV_CustomDelimiter(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data.csv", "id;name\n1;x\n")

	h, err := NewCSV(';').Open(path)
	require.NoError(t, err)
	defer h.Close()

	chunks, err := drain(t, h, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"id", "name"}, chunks[0].Columns)
}

func TestCSV_Gzipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte("id\n1\n2\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	h, err := NewCSV(0).Open(path)
	require.NoError(t, err)
	defer h.Close()

	chunks, err := drain(t, h, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Rows, 2)
}

func TestCSV_EmptyFileIsCorruption(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.csv", "")

	_, err := NewCSV(0).Open(path)
	var ce *CorruptionError
	require.ErrorAs(t, err, &ce)
}

func TestCSV_RaggedRowIsMidScanCorruption(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ragged.csv", "id,name\n1,a\n2,b\n3,c,EXTRA\n")

	h, err := NewCSV(0).Open(path)
	require.NoError(t, err)
	defer h.Close()

	chunks, err := drain(t, h, 10)
	var ce *CorruptionError
	require.ErrorAs(t, err, &ce)
	// The two clean rows before the fault are still delivered.
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Rows, 2)
}

func TestCSV_CloseIdempotent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data.csv", "id\n1\n")
	h, err := NewCSV(0).Open(path)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}

func TestCSV_ContextCancellationStopsIteration(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data.csv", "id\n1\n2\n")
	h, err := NewCSV(0).Open(path)
	require.NoError(t, err)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it := h.Chunks(ctx, 1)
	assert.False(t, it.Next())
	assert.Error(t, it.Err())
}
