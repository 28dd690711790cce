package fileinfo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// FileInfo describes one outbound file: what the member sees before picking
// it and what gets logged around a transfer.
type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Path     string `json:"-"`
}

// Describe stats the file and detects its media type. Directories are
// rejected; transfers carry single flat files.
func Describe(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return FileInfo{}, fmt.Errorf("%s is a directory, only flat files can be sent", path)
	}

	fi := FileInfo{
		Name: filepath.Base(path),
		Size: info.Size(),
		Path: path,
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		fi.MimeType = "application/octet-stream"
	} else {
		fi.MimeType = mime.String()
	}

	return fi, nil
}

// CalcChecksum streams the file through SHA-256 and records the digest.
func (f *FileInfo) CalcChecksum() (string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("fail to close file", "error", err.Error())
		}
	}()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", f.Path, err)
	}
	f.Checksum = hex.EncodeToString(hasher.Sum(nil))
	return f.Checksum, nil
}

// ChecksumBytes digests an in-memory artifact, e.g. a completed download.
func ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
