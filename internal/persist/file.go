package persist

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"facecapture/internal/capture"

	"github.com/pkg/errors"
)

const fileExt = ".yaml"

// FileStore keeps one YAML document per buffer store in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create store dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Load implements Store.Load.
func (s *FileStore) Load(_ context.Context, name string) (*capture.BufferStore, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - name is validated by path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStoreNotFound
		}
		return nil, errors.Wrapf(err, "read store %q", name)
	}
	return decodeAs(name, data)
}

// Save implements Store.Save. The document is written to a temporary file
// and renamed into place.
func (s *FileStore) Save(_ context.Context, store *capture.BufferStore) error {
	path, err := s.path(store.Name())
	if err != nil {
		return err
	}
	data, err := Encode(store)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+store.Name()+"-*")
	if err != nil {
		return errors.Wrapf(err, "save store %q", store.Name())
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "save store %q", store.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "save store %q", store.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "save store %q", store.Name())
	}
	return nil
}

// List implements Store.List. Names are sorted.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", s.dir)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || filepath.Ext(n) != fileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(n, fileExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) path(name string) (string, error) {
	if !validName(name) {
		return "", errors.Errorf("invalid store name %q", name)
	}
	return filepath.Join(s.dir, name+fileExt), nil
}

// validName rejects names that could escape the store directory.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
