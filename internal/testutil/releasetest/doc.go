// Package releasetest builds release repositories and deploy manifests on disk
// for tests. The generated repository mirrors what `bosh create release` leaves
// behind: dev release records, dev and final build artifacts, and config files.
package releasetest
