package release

import (
	"archive/tar"
	"crypto/sha1" // #nosec G505 -- BOSH records artifact checksums as sha1
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

// maxEntrySize bounds a single in-memory archive entry.
const maxEntrySize = 64 << 20

// FileSHA1 returns the hex sha1 digest of the file at p.
func FileSHA1(p string) (string, error) {
	f, err := os.Open(p) // #nosec G304 -- artifact path built from repository layout
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha1.New() // #nosec G401
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func verifySHA1(p, want string) error {
	if want == "" {
		return nil
	}
	got, err := FileSHA1(p)
	if err != nil {
		return errors.WrapError(err, errors.CategoryRepository, "cannot checksum build artifact").
			WithContext("path", p).Build()
	}
	if got != want {
		return errors.RepositoryError("build artifact checksum mismatch").
			WithContext("path", p).
			WithContext("expected", want).
			WithContext("actual", got).
			Build()
	}
	return nil
}

// entryName normalizes a tar member name such as "./templates/a.erb".
func entryName(name string) string {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	if name == "." {
		return ""
	}
	return name
}

// walkTarGz calls fn for every member of the gzip-compressed tar at p.
func walkTarGz(p string, fn func(hdr *tar.Header, r io.Reader) error) error {
	f, err := os.Open(p) // #nosec G304 -- artifact path built from repository layout
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip %s: %w", p, err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar %s: %w", p, err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// readTarGzFiles loads every regular file of a small artifact into memory.
func readTarGzFiles(p string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := walkTarGz(p, func(hdr *tar.Header, r io.Reader) error {
		if hdr.Typeflag != tar.TypeReg {
			return nil
		}
		name := entryName(hdr.Name)
		if name == "" {
			return nil
		}
		data, err := io.ReadAll(io.LimitReader(r, maxEntrySize+1))
		if err != nil {
			return err
		}
		if len(data) > maxEntrySize {
			return fmt.Errorf("archive member %s exceeds %d bytes", name, maxEntrySize)
		}
		files[name] = data
		return nil
	})
	return files, err
}

// ExtractTarGz unpacks the gzip-compressed tar at p into dest.
// Members escaping dest are rejected.
func ExtractTarGz(p, dest string) error {
	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	return walkTarGz(p, func(hdr *tar.Header, r io.Reader) error {
		name := entryName(hdr.Name)
		if name == "" {
			return nil
		}
		target := filepath.Join(root, filepath.FromSlash(name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("archive member %q escapes %s", hdr.Name, dest)
		}

		mode := os.FileMode(hdr.Mode).Perm()
		switch hdr.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, mode|0o700)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode|0o600) // #nosec G304
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, r); err != nil { // #nosec G110 -- local trusted artifacts
				_ = out.Close()
				return err
			}
			return out.Close()
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return err
			}
			return os.Symlink(hdr.Linkname, target)
		default:
			return nil
		}
	})
}
