// Package security reads operator-supplied files without trusting the path.
package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxWebhookPayload caps payloads read from disk for webhook replay.
const MaxWebhookPayload = 1 << 20

// ErrPayloadTooLarge is returned when a file exceeds the read limit.
var ErrPayloadTooLarge = errors.New("payload exceeds size limit")

// shell metacharacters are never part of a path we accept
var forbidden = []string{";", "&", "|", "$", "`", "<", ">", "\n", "\r"}

// CleanPath rejects empty paths and shell metacharacters, then returns the
// absolute path with symlinks resolved.
func CleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("file path cannot be empty")
	}
	for _, c := range forbidden {
		if strings.Contains(path, c) {
			return "", fmt.Errorf("file path contains forbidden character %q", c)
		}
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve file path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve file path: %w", err)
	}
	return resolved, nil
}

// ReadPayload reads a regular file of at most limit bytes.
func ReadPayload(path string, limit int64) ([]byte, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	// #nosec G304 - path is validated above
	f, err := os.Open(clean)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w (%d bytes)", path, ErrPayloadTooLarge, limit)
	}
	return data, nil
}
