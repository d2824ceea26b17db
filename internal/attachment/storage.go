// Package attachment implements the C3-adjacent download/upload pipeline:
// content-addressed on-disk storage with a JSON sidecar, resumable
// `.partial` streaming for large files, and content-type derivation with
// an extension-first, sniffing-fallback strategy (spec.md §6
// "Attachment on-disk layout"; SPEC_FULL.md supplemented feature
// "Attachment content sniffing").
package attachment

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/meshbridge/bridge/internal/conversation"
)

// Store manages attachment blobs under a root storage directory, laid
// out as <storage_dir>/<type>/<id>/<id>.<ext> plus a sidecar
// <id>.json.
type Store struct {
	RootDir         string
	LargeFileThresholdBytes int64
	ChunkSizeBytes          int
}

func (s *Store) dir(info conversation.AttachmentInfo) string {
	return filepath.Join(s.RootDir, string(info.AttachmentType), info.AttachmentID)
}

func (s *Store) blobPath(info conversation.AttachmentInfo) string {
	ext := info.FileExtension
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.dir(info), info.AttachmentID+ext)
}

func (s *Store) sidecarPath(info conversation.AttachmentInfo) string {
	return filepath.Join(s.dir(info), info.AttachmentID+".json")
}

// Download streams src into the content-addressed blob location. Files
// at or above LargeFileThresholdBytes stream through a `.partial` file
// first, renamed to the final path only on success. A second call with
// the same info truncates the partial and restarts the copy from the
// beginning; it does not resume (Downloader in transfer.go is the
// resuming path).
func (s *Store) Download(ctx context.Context, info conversation.AttachmentInfo, src io.Reader) error {
	if err := os.MkdirAll(s.dir(info), 0o755); err != nil {
		return err
	}

	final := s.blobPath(info)
	large := info.Size >= s.LargeFileThresholdBytes && s.LargeFileThresholdBytes > 0

	target := final
	if large {
		target = final + ".partial"
	}

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, s.chunkSize())
	if _, err := io.CopyBuffer(out, src, buf); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if large {
		if err := os.Rename(target, final); err != nil {
			return err
		}
	}

	return s.writeSidecar(info)
}

func (s *Store) chunkSize() int {
	if s.ChunkSizeBytes > 0 {
		return s.ChunkSizeBytes
	}
	return 1 << 20 // 1 MB default, per spec.md §6 large-download chunking
}

func (s *Store) writeSidecar(info conversation.AttachmentInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.sidecarPath(info), data, 0o644)
}

// ReadSidecar loads the cached AttachmentInfo sidecar for a previously
// stored attachment.
func (s *Store) ReadSidecar(attachmentID string, attachmentType conversation.AttachmentType) (conversation.AttachmentInfo, error) {
	stub := conversation.AttachmentInfo{AttachmentID: attachmentID, AttachmentType: attachmentType}
	data, err := os.ReadFile(s.sidecarPath(stub))
	if err != nil {
		return conversation.AttachmentInfo{}, err
	}
	var info conversation.AttachmentInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return conversation.AttachmentInfo{}, err
	}
	return info, nil
}

// Open returns a reader over the stored blob for upload/re-serve.
func (s *Store) Open(info conversation.AttachmentInfo) (io.ReadCloser, error) {
	return os.Open(s.blobPath(info))
}

// DeriveType picks the AttachmentType: first from the file extension
// (authoritative per spec.md §3), falling back to content sniffing via
// h2non/filetype when the upstream attachment carries no usable
// extension (common for Telegram/Discord pasted images).
func DeriveType(filename string, sample []byte) conversation.AttachmentType {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if t, ok := extTypes[ext]; ok {
		return t
	}

	kind, err := filetype.Match(sample)
	if err == nil && kind != filetype.Unknown {
		if t, ok := kindTypes[kind.Extension]; ok {
			return t
		}
	}
	return conversation.AttachmentDocument
}

var extTypes = map[string]conversation.AttachmentType{
	"jpg": conversation.AttachmentImage, "jpeg": conversation.AttachmentImage,
	"png": conversation.AttachmentImage, "gif": conversation.AttachmentImage,
	"webp": conversation.AttachmentImage,
	"mp4":  conversation.AttachmentVideo, "mov": conversation.AttachmentVideo,
	"webm": conversation.AttachmentVideo,
	"mp3":  conversation.AttachmentAudio, "wav": conversation.AttachmentAudio,
	"ogg": conversation.AttachmentAudio,
	"zip": conversation.AttachmentArchive, "tar": conversation.AttachmentArchive,
	"gz": conversation.AttachmentArchive, "7z": conversation.AttachmentArchive,
	"go": conversation.AttachmentCode, "py": conversation.AttachmentCode,
	"js": conversation.AttachmentCode, "ts": conversation.AttachmentCode,
	"epub": conversation.AttachmentEbook, "mobi": conversation.AttachmentEbook,
	"ttf": conversation.AttachmentFont, "otf": conversation.AttachmentFont,
	"stl": conversation.Attachment3DModel, "obj": conversation.Attachment3DModel,
	"exe": conversation.AttachmentExecutable, "sh": conversation.AttachmentExecutable,
	"webp_sticker": conversation.AttachmentSticker,
}

var kindTypes = map[string]conversation.AttachmentType{
	"jpg": conversation.AttachmentImage, "png": conversation.AttachmentImage,
	"gif": conversation.AttachmentImage, "webp": conversation.AttachmentImage,
	"mp4": conversation.AttachmentVideo, "webm": conversation.AttachmentVideo,
	"mp3": conversation.AttachmentAudio, "wav": conversation.AttachmentAudio,
	"zip": conversation.AttachmentArchive, "gz": conversation.AttachmentArchive,
	"7z": conversation.AttachmentArchive,
}
