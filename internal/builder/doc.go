// Package builder installs a BOSH release job, or individual packages, onto
// the local machine as a BOSH agent would, and packs the artifacts a job needs
// into a self-contained archive.
//
// All execution paths (CLI, tests) go through Builder. Work is sequential:
// packages are compiled one at a time in dependency order, templates are
// rendered, then monit fragments are written.
package builder
