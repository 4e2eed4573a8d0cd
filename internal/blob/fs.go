package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/strata-systems/strata/pkg/types"
)

// FS stores snapshot files under one directory per datasource.
type FS struct {
	base string
}

// NewFS creates a filesystem store rooted at base.
func NewFS(base string) *FS { return &FS{base: base} }

func (f *FS) NewPath(dataSourceID, label string, at time.Time) string {
	return filepath.Join(dataSourceID, fmt.Sprintf("%s_%s.csv", timestampName(at), label))
}

func (f *FS) full(path string) string { return filepath.Join(f.base, path) }

func (f *FS) Put(_ context.Context, path string, data []byte) error {
	full := f.full(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return types.WrapError(types.KindStorageError, err, "creating snapshot dir")
	}
	// O_EXCL: a snapshot path is written exactly once.
	file, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "creating snapshot file %s", path)
	}
	defer file.Close()
	if _, err := file.Write(data); err != nil {
		return types.WrapError(types.KindStorageError, err, "writing snapshot file %s", path)
	}
	if err := file.Sync(); err != nil {
		return types.WrapError(types.KindStorageError, err, "syncing snapshot file %s", path)
	}
	return nil
}

func (f *FS) Get(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(f.full(path))
	if os.IsNotExist(err) {
		return nil, types.NewError(types.KindNotFound, "snapshot file %s not found", path)
	}
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "reading snapshot file %s", path)
	}
	return data, nil
}

func (f *FS) Copy(ctx context.Context, srcPath, dstPath string) error {
	src, err := os.Open(f.full(srcPath))
	if os.IsNotExist(err) {
		return types.NewError(types.KindNotFound, "snapshot file %s not found", srcPath)
	}
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "opening %s", srcPath)
	}
	defer src.Close()

	full := f.full(dstPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return types.WrapError(types.KindStorageError, err, "creating snapshot dir")
	}
	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "creating %s", dstPath)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return types.WrapError(types.KindStorageError, err, "copying %s to %s", srcPath, dstPath)
	}
	return dst.Sync()
}

func (f *FS) Size(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(f.full(path))
	if os.IsNotExist(err) {
		return 0, types.NewError(types.KindNotFound, "snapshot file %s not found", path)
	}
	if err != nil {
		return 0, types.WrapError(types.KindStorageError, err, "statting %s", path)
	}
	return info.Size(), nil
}
