package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore serves a corpus from a directory on disk. Symlinks that
// resolve outside the root are rejected by os.Root.
type LocalStore struct {
	root *os.Root
	dir  string
}

// NewLocalStore opens the corpus rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus root %s: %w", dir, err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("open corpus root %s: %w", abs, err)
	}
	return &LocalStore{root: root, dir: abs}, nil
}

// Close releases the root directory handle.
func (s *LocalStore) Close() error {
	return s.root.Close() //nolint:wrapcheck // pass-through
}

// Open implements Store.
func (s *LocalStore) Open(_ context.Context, relPath string) (io.ReadCloser, Info, error) {
	clean, err := cleanPath(relPath)
	if err != nil {
		return nil, Info{}, err
	}

	f, err := s.root.Open(filepath.FromSlash(clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Info{}, fmt.Errorf("%q: %w", clean, ErrNotFound)
		}
		// os.Root reports escapes as a generic path error.
		return nil, Info{}, fmt.Errorf("%q: %w: %w", clean, ErrInvalidPath, err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Info{}, fmt.Errorf("stat %q: %w", clean, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, Info{}, fmt.Errorf("%q: %w", clean, ErrNotFound)
	}

	return f, Info{Size: st.Size(), ContentType: ContentType(clean), ModTime: st.ModTime()}, nil
}

// Walk implements Store. Hidden files and directories are skipped.
func (s *LocalStore) Walk(ctx context.Context, fn WalkFunc) error {
	err := fs.WalkDir(s.root.FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p != "." && len(d.Name()) > 0 && d.Name()[0] == '.' {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !IsImage(p) {
			return nil
		}
		return fn(p)
	})
	if err != nil {
		return fmt.Errorf("walk corpus %s: %w", s.dir, err)
	}
	return nil
}
