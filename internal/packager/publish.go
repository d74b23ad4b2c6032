package packager

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
)

// publishDir moves the finished build output src to dst. When dst already
// exists it is swapped aside and removed once src is in place.
func publishDir(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	staged := sibling(dst, "tmp")
	if err := os.Rename(src, staged); err != nil {
		if !stderrors.Is(err, syscall.EXDEV) {
			return err
		}
		if err := copyTree(src, staged); err != nil {
			_ = os.RemoveAll(staged)
			return fmt.Errorf("copy build output: %w", err)
		}
	}

	if _, err := os.Lstat(dst); err != nil {
		if err := os.Rename(staged, dst); err != nil {
			_ = os.RemoveAll(staged)
			return err
		}
		return nil
	}

	// dst exists: swap it with the staged build, then drop the previous one.
	if err := exchangeDirs(staged, dst); err != nil {
		_ = os.RemoveAll(staged)
		return fmt.Errorf("replace previous build: %w", err)
	}
	return os.RemoveAll(staged)
}

// swapAside replaces dst with staged in two renames. The old tree ends up at staged.
func swapAside(staged, dst string) error {
	old := sibling(dst, "old")
	if err := os.Rename(dst, old); err != nil {
		return err
	}
	if err := os.Rename(staged, dst); err != nil {
		_ = os.Rename(old, dst)
		return err
	}
	return os.Rename(old, staged)
}

func sibling(p, tag string) string {
	return filepath.Join(filepath.Dir(p), "."+filepath.Base(p)+"."+tag+"-"+uuid.NewString())
}

// copyTree copies a directory tree keeping modes and symlinks.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(p, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src) // #nosec G304 -- scratch build output
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// swapPointer atomically points link at target. A stale non-symlink at
// link is removed first.
func swapPointer(link, target string) (bool, error) {
	if cur, err := os.Readlink(link); err == nil && cur == target {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o750); err != nil {
		return false, err
	}
	// rename cannot replace a directory with a symlink
	if st, err := os.Lstat(link); err == nil && st.Mode()&fs.ModeSymlink == 0 {
		if err := os.RemoveAll(link); err != nil {
			return false, err
		}
	}
	tmp := sibling(link, "link")
	if err := os.Symlink(target, tmp); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return false, err
	}
	return true, nil
}
