package osutil

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Copy copies file src to dst.
func Copy(ctx context.Context, src, dst string) error {
	// Attempt to hard link for performance.
	if err := os.Link(src, dst); err == nil {
		return nil
	}

	return slowCopy(ctx, src, dst)
}

// slowCopy force copies the content of a file.
func slowCopy(ctx context.Context, src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open src")
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "failed to create dst")
	}
	defer dstFile.Close()

	if t, ok := ctx.Deadline(); ok {
		srcFile.SetDeadline(t)
		dstFile.SetDeadline(t)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return errors.Wrap(err, "failed to copy")
	}

	return dstFile.Close()
}

// Mirror places a copy of file inside dir under the same base name, creating
// dir if needed, and returns the path of the copy.
func Mirror(ctx context.Context, file, dir string) (string, error) {
	if _, err := os.Stat(file); err != nil {
		return "", errors.Wrap(err, "failed to stat file to mirror")
	}

	if err := os.MkdirAll(dir, 0775); err != nil {
		return "", errors.Wrap(err, "failed to mkdir -p mirror directory")
	}

	dst := filepath.Join(dir, filepath.Base(file))

	if sameFile(file, dst) {
		return dst, nil
	}

	// An older mirror may be a hard link to file itself. Copying over it would
	// truncate the source, so unlink it first.
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return "", errors.Wrap(err, "failed to remove old mirror")
	}

	if err := Copy(ctx, file, dst); err != nil {
		return "", err
	}

	return dst, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
