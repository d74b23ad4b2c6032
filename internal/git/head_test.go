package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHead(t *testing.T) {
	repoPath := t.TempDir()
	repo, err := gogit.PlainInit(repoPath, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "README"), []byte("release"), 0o600))
	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add("README")
	require.NoError(t, err)
	commit, err := w.Commit("Initial commit", &gogit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	state, err := ReadHead(repoPath)
	require.NoError(t, err)
	assert.Equal(t, commit.String(), state.Commit)
	assert.Equal(t, commit.String()[:8], state.ShortCommit())
	assert.False(t, state.Dirty)

	// Subdirectories resolve to the enclosing work tree.
	sub := filepath.Join(repoPath, "dev_releases")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "README"), []byte("changed"), 0o600))

	state, err = ReadHead(sub)
	require.NoError(t, err)
	assert.True(t, state.Dirty)
}

func TestReadHeadNotRepository(t *testing.T) {
	_, err := ReadHead(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}
