// Package workspace manages the installer's working directory.
//
// The working directory persists across runs. Each package build gets a
// scratch directory named by a fresh UUID (e.g. packages/miku/2f1c.../) so an
// interrupted build is never picked up again; leftovers are swept as garbage
// before the next build of the same package.
package workspace
