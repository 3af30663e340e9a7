package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// MaxObjectSize caps a single snapshot or screenshot.
	MaxObjectSize = 20 * 1024 * 1024
)

var (
	ErrNotFound      = errors.New("blob not found")
	ErrTooLarge      = errors.New("blob exceeds maximum size")
	ErrInvalidPath   = errors.New("invalid blob path")
	ErrPathTraversal = errors.New("path traversal not allowed")
)

// Kind groups objects by what produced them.
type Kind string

const (
	KindHTML       Kind = "html"
	KindScreenshot Kind = "screenshots"
)

// Ref points at a stored object.
type Ref struct {
	Path   string
	URL    string
	SHA256 string
	Size   int
}

// Store persists scraped artifacts such as HTML snapshots and screenshots.
type Store interface {
	Put(ctx context.Context, kind Kind, data []byte) (Ref, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// LocalStore implements Store on the local filesystem. Objects are content-addressed,
// so writing the same bytes twice yields the same path.
type LocalStore struct {
	rootDir       string
	publicBaseURL string
	now           func() time.Time
}

// NewLocalStore creates a LocalStore rooted at rootDir. publicBaseURL, when set,
// is used to build Ref.URL; otherwise the URL is a file:// reference.
func NewLocalStore(rootDir, publicBaseURL string) (*LocalStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root directory: %w", err)
	}

	return &LocalStore{
		rootDir:       rootDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}, nil
}

func (s *LocalStore) Put(ctx context.Context, kind Kind, data []byte) (Ref, error) {
	if len(data) == 0 {
		return Ref{}, fmt.Errorf("blob content cannot be empty")
	}
	if len(data) > MaxObjectSize {
		return Ref{}, ErrTooLarge
	}

	hash := sha256Hash(data)
	day := s.now().UTC().Format("2006/01/02")
	relPath := filepath.Join(string(kind), day, hash+extensionFor(kind))

	if err := validatePath(relPath); err != nil {
		return Ref{}, err
	}

	fullPath := filepath.Join(s.rootDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return Ref{}, fmt.Errorf("creating blob directory: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return Ref{}, fmt.Errorf("writing temp blob: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return Ref{}, fmt.Errorf("renaming blob: %w", err)
	}

	return Ref{
		Path:   filepath.ToSlash(relPath),
		URL:    s.urlFor(relPath),
		SHA256: hash,
		Size:   len(data),
	}, nil
}

func (s *LocalStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.rootDir, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := validatePath(path); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(s.rootDir, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking blob existence: %w", err)
	}
	return true, nil
}

func (s *LocalStore) urlFor(relPath string) string {
	slashed := filepath.ToSlash(relPath)
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + slashed
	}
	abs, err := filepath.Abs(filepath.Join(s.rootDir, relPath))
	if err != nil {
		return "file://" + slashed
	}
	return "file://" + filepath.ToSlash(abs)
}

func extensionFor(kind Kind) string {
	switch kind {
	case KindHTML:
		return ".html"
	case KindScreenshot:
		return ".png"
	default:
		return ".bin"
	}
}

// validatePath ensures the path is relative and stays under the root.
func validatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	if strings.Contains(path, "..") || filepath.IsAbs(path) {
		return ErrPathTraversal
	}
	return nil
}

func sha256Hash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
