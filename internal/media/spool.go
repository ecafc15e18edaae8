package media

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrTooLarge is returned when the payload exceeds the size limit.
	ErrTooLarge = errors.New("media payload too large")
	// ErrEmptyPayload is returned for zero-byte uploads.
	ErrEmptyPayload = errors.New("media payload is empty")
	// ErrUnreadable is returned when the payload stream fails mid-read.
	// Such uploads fail outright; no substitute digest is ever produced.
	ErrUnreadable = errors.New("media payload unreadable")
)

// Spooled is an upload staged on local disk together with its digest.
type Spooled struct {
	Path   string
	Digest string
	Size   int64
}

// Open returns a fresh reader over the staged bytes.
func (s *Spooled) Open() (*os.File, error) {
	return os.Open(s.Path)
}

// Close removes the staged file. It is safe to call more than once.
func (s *Spooled) Close() error {
	if s == nil || s.Path == "" {
		return nil
	}
	err := os.Remove(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	return err
}

// Spool copies r into a temp file while computing the SHA-256 of the exact
// bytes read. At most maxBytes are accepted.
func Spool(r io.Reader, maxBytes int64) (*Spooled, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: reader is required", ErrUnreadable)
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be greater than 0")
	}
	tempFile, err := os.CreateTemp("", "tenteen-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	keepFile := false
	defer func() {
		_ = tempFile.Close()
		if !keepFile {
			_ = os.Remove(tempPath)
		}
	}()

	hasher := sha256.New()
	limited := &io.LimitedReader{R: r, N: maxBytes + 1}
	written, err := io.Copy(io.MultiWriter(tempFile, hasher), limited)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if written > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrTooLarge, maxBytes)
	}
	if written == 0 {
		return nil, ErrEmptyPayload
	}
	if err := tempFile.Sync(); err != nil {
		return nil, fmt.Errorf("sync temp file: %w", err)
	}
	keepFile = true
	return &Spooled{
		Path:   tempPath,
		Digest: hex.EncodeToString(hasher.Sum(nil)),
		Size:   written,
	}, nil
}

// Digest returns the lowercase hex SHA-256 of everything read from r.
func Digest(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
