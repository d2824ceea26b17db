package attachment

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/meshbridge/bridge/internal/coreerr"
)

// UploadSource is whatever an outgoing platform adapter needs to push a
// stored attachment out: a seekable reader plus the original metadata.
type UploadSource struct {
	Info   AttachmentDescriptor
	Reader io.ReadSeekCloser
}

// AttachmentDescriptor carries just the fields an upload chunker needs,
// kept separate from conversation.AttachmentInfo so this package does not
// need the full cache-eviction fields to do a transfer.
type AttachmentDescriptor struct {
	AttachmentID string
	Filename     string
	Size         int64
}

// Uploader streams a stored blob to an upstream platform in fixed-size
// chunks, matching spec.md §6's per-platform chunk sizes (512 KB for
// Telegram's sendDocument chunked upload, larger for platforms that
// accept single-shot multipart).
type Uploader struct {
	ChunkSizeBytes int
}

// Chunk is one piece of an upload, with its offset for resume.
type Chunk struct {
	Offset int64
	Data   []byte
	Last   bool
}

// ChunkFunc is invoked once per chunk; returning an error aborts the
// upload at that offset so a retry can resume from it.
type ChunkFunc func(ctx context.Context, c Chunk) error

func (u *Uploader) chunkSize() int {
	if u.ChunkSizeBytes > 0 {
		return u.ChunkSizeBytes
	}
	return 512 * 1024
}

// Upload reads src from resumeFrom and invokes send for each chunk in
// order. On a send error it returns the offset the caller should resume
// from (the start of the failed chunk), wrapped in coreerr with
// KindTransientNetwork so the dispatch circuit breaker can decide to
// retry.
func (u *Uploader) Upload(ctx context.Context, src io.ReadSeeker, size int64, resumeFrom int64, send ChunkFunc) (resumeAt int64, err error) {
	if resumeFrom > 0 {
		if _, err := src.Seek(resumeFrom, io.SeekStart); err != nil {
			return 0, coreerr.Wrap(coreerr.KindInvalidRequest, "attachment: seek to resume offset", err)
		}
	}

	buf := make([]byte, u.chunkSize())
	offset := resumeFrom
	for {
		if err := ctx.Err(); err != nil {
			return offset, err
		}

		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			last := offset+int64(n) >= size
			chunk := Chunk{Offset: offset, Data: append([]byte(nil), buf[:n]...), Last: last}
			if sendErr := send(ctx, chunk); sendErr != nil {
				return offset, coreerr.Wrap(coreerr.KindTransientNetwork, "attachment: send chunk", sendErr)
			}
			offset += int64(n)
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return offset, nil
		}
		if readErr != nil {
			return offset, coreerr.Wrap(coreerr.KindTransientNetwork, "attachment: read chunk", readErr)
		}
	}
}

// Downloader streams an upstream attachment into the content-addressed
// store through a `.partial` file, advancing a resume cursor so a
// connection drop mid-download does not require restarting a large file
// from byte zero (spec.md §6 large-attachment handling).
type Downloader struct {
	ChunkSizeBytes int
}

func (d *Downloader) chunkSize() int {
	if d.ChunkSizeBytes > 0 {
		return d.ChunkSizeBytes
	}
	return 1 << 20
}

// ResumeOffset inspects an existing `.partial` file (if any) and returns
// how many bytes are already on disk, so the caller can request a
// byte-range continuation from the upstream platform.
func (d *Downloader) ResumeOffset(partialPath string) int64 {
	fi, err := os.Stat(partialPath)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// Append writes src (a byte-range response starting at the resume
// offset) onto the partial file, fsyncing so a crash mid-write leaves a
// recoverable resume point rather than a corrupt tail.
func (d *Downloader) Append(ctx context.Context, partialPath string, src io.Reader) error {
	f, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return coreerr.Wrap(coreerr.KindIOError, "attachment: open partial", err)
	}
	defer f.Close()

	buf := make([]byte, d.chunkSize())
	if _, err := io.CopyBuffer(f, src, buf); err != nil {
		return coreerr.Wrap(coreerr.KindTransientNetwork, "attachment: append partial", err)
	}
	return f.Sync()
}
