//go:build !linux

package packager

func exchangeDirs(staged, dst string) error {
	return swapAside(staged, dst)
}
