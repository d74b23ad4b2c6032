//go:build linux

package packager

import (
	stderrors "errors"

	"golang.org/x/sys/unix"
)

// exchangeDirs atomically swaps two directory trees when the kernel and
// filesystem support RENAME_EXCHANGE, so dst is never missing.
func exchangeDirs(staged, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, staged, unix.AT_FDCWD, dst, unix.RENAME_EXCHANGE)
	if err == nil {
		return nil
	}
	if stderrors.Is(err, unix.ENOSYS) || stderrors.Is(err, unix.EINVAL) || stderrors.Is(err, unix.EOPNOTSUPP) {
		return swapAside(staged, dst)
	}
	return err
}
