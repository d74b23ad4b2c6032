package git

import (
	stderrors "errors"

	gogit "github.com/go-git/go-git/v5"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

// ErrNotRepository is returned when the path is not inside a git work tree.
var ErrNotRepository = stderrors.New("not a git repository")

// HeadState describes the checked-out revision of a work tree.
type HeadState struct {
	Commit string
	Branch string
	Dirty  bool
}

// ShortCommit returns the abbreviated commit hash.
func (h HeadState) ShortCommit() string {
	if len(h.Commit) > 8 {
		return h.Commit[:8]
	}
	return h.Commit
}

// ReadHead opens the work tree containing repoPath and reports its HEAD.
func ReadHead(repoPath string) (HeadState, error) {
	repo, err := gogit.PlainOpenWithOptions(repoPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if stderrors.Is(err, gogit.ErrRepositoryNotExists) {
			return HeadState{}, ErrNotRepository
		}
		return HeadState{}, classify(err, "open", repoPath)
	}

	ref, err := repo.Head()
	if err != nil {
		return HeadState{}, classify(err, "head", repoPath)
	}

	state := HeadState{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		state.Branch = ref.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return state, classify(err, "worktree", repoPath)
	}
	status, err := wt.Status()
	if err != nil {
		return state, classify(err, "status", repoPath)
	}
	state.Dirty = !status.IsClean()
	return state, nil
}

func classify(err error, op, path string) error {
	return errors.WrapError(err, errors.CategoryRepository, "git operation failed").
		WithContext("op", op).
		WithContext("path", path).
		Build()
}
