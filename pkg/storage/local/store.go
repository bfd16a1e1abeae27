package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

var (
	ErrTooLarge        = errors.New("file exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmpty           = errors.New("file is empty")
)

// ImageTypes are the content types accepted for photos and avatars.
var ImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Object describes a stored upload.
type Object struct {
	URL         string
	Path        string
	ContentType string
	Size        int64
}

// Store keeps uploads on local disk under Root and serves them from BaseURL.
type Store struct {
	root    string
	baseURL string
	logg    *logger.Logger
}

func New(cfg config.UploadsConfig, logg *logger.Logger) (*Store, error) {
	root := strings.TrimSpace(cfg.RootDir)
	if root == "" {
		return nil, errors.New("uploads root dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = "/uploads"
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{root: root, baseURL: base, logg: logg}, nil
}

// Root returns the directory uploads are written to.
func (s *Store) Root() string { return s.root }

// Save sniffs the content of r, rejects anything not in allowed or larger
// than maxBytes, and writes it under dir with a random name.
func (s *Store) Save(ctx context.Context, dir string, r io.Reader, maxBytes int64, allowed []string) (Object, error) {
	if r == nil {
		return Object{}, ErrEmpty
	}
	limit := maxBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Object{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return Object{}, ErrEmpty
	}
	if int64(len(data)) > limit {
		return Object{}, ErrTooLarge
	}

	mime := mimetype.Detect(data)
	if len(allowed) > 0 && !mimetype.EqualsAny(mime.String(), allowed...) {
		return Object{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mime.String())
	}

	dir = cleanDir(dir)
	name := uuid.NewString() + mime.Extension()
	target := filepath.Join(s.root, filepath.FromSlash(dir), name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Object{}, fmt.Errorf("create upload dir: %w", err)
	}
	if err := writeFile(target, data); err != nil {
		return Object{}, err
	}

	rel := path.Join(dir, name)
	obj := Object{
		URL:         s.baseURL + "/" + rel,
		Path:        target,
		ContentType: mime.String(),
		Size:        int64(len(data)),
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{"upload_path": rel, "content_type": obj.ContentType}), "upload stored")
	return obj, nil
}

// Delete removes the file behind a URL previously returned by Save. Missing
// files and foreign URLs are ignored.
func (s *Store) Delete(ctx context.Context, url string) error {
	rel, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || rel == "" {
		return nil
	}
	clean := path.Clean("/" + rel)
	target := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// Ping checks the uploads root is still a writable directory.
func (s *Store) Ping(ctx context.Context) error {
	check, err := os.CreateTemp(s.root, ".write-check-*")
	if err != nil {
		return fmt.Errorf("uploads dir not writable: %w", err)
	}
	name := check.Name()
	_ = check.Close()
	return os.Remove(name)
}

func cleanDir(dir string) string {
	dir = strings.Trim(path.Clean("/"+strings.ReplaceAll(dir, "\\", "/")), "/")
	if dir == "." {
		return ""
	}
	return dir
}

func writeFile(target string, data []byte) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return fmt.Errorf("write upload file: %w", err)
	}
	return f.Close()
}

// Classify maps Save failures onto typed API errors.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTooLarge):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file exceeds size limit")
	case errors.Is(err, ErrUnsupportedType):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file must be a JPEG, PNG or WebP image")
	case errors.Is(err, ErrEmpty):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is empty")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store upload")
	}
}
