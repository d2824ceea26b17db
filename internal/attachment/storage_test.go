package attachment

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/conversation"
)

func TestDownload_SmallFileWritesBlobAndSidecarDirectly(t *testing.T) {
	store := &Store{RootDir: t.TempDir(), LargeFileThresholdBytes: 1 << 20}
	info := conversation.AttachmentInfo{
		AttachmentID:   "att-1",
		AttachmentType: conversation.AttachmentImage,
		FileExtension:  "png",
		Size:           5,
	}

	err := store.Download(context.Background(), info, strings.NewReader("hello"))
	require.NoError(t, err)

	data, err := os.ReadFile(store.blobPath(info))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = os.Stat(store.blobPath(info) + ".partial")
	assert.True(t, os.IsNotExist(err))

	loaded, err := store.ReadSidecar("att-1", conversation.AttachmentImage)
	require.NoError(t, err)
	assert.Equal(t, info.AttachmentID, loaded.AttachmentID)
}

func TestDownload_LargeFileUsesPartialThenRenames(t *testing.T) {
	store := &Store{RootDir: t.TempDir(), LargeFileThresholdBytes: 4}
	info := conversation.AttachmentInfo{
		AttachmentID:   "att-2",
		AttachmentType: conversation.AttachmentVideo,
		FileExtension:  "mp4",
		Size:           10,
	}

	err := store.Download(context.Background(), info, strings.NewReader("0123456789"))
	require.NoError(t, err)

	_, err = os.Stat(store.blobPath(info) + ".partial")
	assert.True(t, os.IsNotExist(err), "partial file should have been renamed away")

	data, err := os.ReadFile(store.blobPath(info))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestDeriveType_PrefersExtensionOverSniffing(t *testing.T) {
	got := DeriveType("photo.png", []byte{0xFF, 0xD8, 0xFF}) // jpeg magic bytes
	assert.Equal(t, conversation.AttachmentImage, got)
}

func TestDeriveType_FallsBackToSniffingWithoutExtension(t *testing.T) {
	// PNG magic header.
	pngMagic := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	got := DeriveType("noext", pngMagic)
	assert.Equal(t, conversation.AttachmentImage, got)
}

func TestDeriveType_UnknownFallsBackToDocument(t *testing.T) {
	got := DeriveType("noext", []byte{0x00, 0x01, 0x02})
	assert.Equal(t, conversation.AttachmentDocument, got)
}

func TestStore_DirLayoutIsContentAddressed(t *testing.T) {
	store := &Store{RootDir: "/root"}
	info := conversation.AttachmentInfo{AttachmentID: "abc", AttachmentType: conversation.AttachmentDocument, FileExtension: "pdf"}
	assert.Equal(t, filepath.Join("/root", "document", "abc"), store.dir(info))
	assert.Equal(t, filepath.Join("/root", "document", "abc", "abc.pdf"), store.blobPath(info))
}
