// Package packager compiles and installs release packages into an install root.
//
// A package version is built in a single-use scratch directory and published
// into data/packages/<name>/<version> by rename. The pointer packages/<name>
// is then swapped to the version directory with a symlink-and-rename, so it
// always names a fully populated directory or is absent.
//
// The install root is single-writer: concurrent invocations against the same
// root are not coordinated.
package packager
