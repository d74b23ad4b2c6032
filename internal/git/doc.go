// Package git inspects the version control state of a release repository.
//
// Release repositories are usually git work trees. The installer reports the
// checked-out commit and whether uncommitted changes are present so that an
// install can be traced back to the exact release sources.
package git
