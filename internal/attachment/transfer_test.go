package attachment

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploader_SplitsIntoChunksOfConfiguredSize(t *testing.T) {
	u := &Uploader{ChunkSizeBytes: 4}
	src := strings.NewReader("0123456789")

	var got []Chunk
	_, err := u.Upload(context.Background(), src, 10, 0, func(_ context.Context, c Chunk) error {
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "0123", string(got[0].Data))
	assert.Equal(t, "4567", string(got[1].Data))
	assert.Equal(t, "89", string(got[2].Data))
	assert.False(t, got[0].Last)
	assert.True(t, got[2].Last)
}

func TestUploader_ResumesFromGivenOffset(t *testing.T) {
	u := &Uploader{ChunkSizeBytes: 4}
	src := bytes.NewReader([]byte("0123456789"))

	var got []Chunk
	resumeAt, err := u.Upload(context.Background(), src, 10, 4, func(_ context.Context, c Chunk) error {
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), resumeAt)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].Offset)
	assert.Equal(t, "4567", string(got[0].Data))
}

func TestUploader_SendErrorReturnsResumeOffsetOfFailedChunk(t *testing.T) {
	u := &Uploader{ChunkSizeBytes: 4}
	src := strings.NewReader("0123456789")

	calls := 0
	resumeAt, err := u.Upload(context.Background(), src, 10, 0, func(_ context.Context, c Chunk) error {
		calls++
		if calls == 2 {
			return errors.New("upstream reset")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, int64(4), resumeAt)
}

func TestDownloader_ResumeOffsetReflectsExistingPartialSize(t *testing.T) {
	dir := t.TempDir()
	d := &Downloader{}
	path := dir + "/blob.partial"

	assert.Equal(t, int64(0), d.ResumeOffset(path))

	require.NoError(t, d.Append(context.Background(), path, strings.NewReader("hello")))
	assert.Equal(t, int64(5), d.ResumeOffset(path))

	require.NoError(t, d.Append(context.Background(), path, strings.NewReader(" world")))
	assert.Equal(t, int64(11), d.ResumeOffset(path))
}
