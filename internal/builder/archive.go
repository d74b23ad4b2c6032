package builder

import (
	"context"
	"os"

	"github.com/WuLonghui/nise-bosh/internal/archive"
)

// Archive packs the release jobs of a deployment job, the packages they need
// and the release descriptor into a tar.gz and returns its path. An existing
// directory as output receives the archive under its default name.
func (b *Builder) Archive(ctx context.Context, job, output string) (string, error) {
	templates, err := b.JobTemplates(job)
	if err != nil {
		return "", err
	}
	if err := b.archiver.CheckJobs(templates); err != nil {
		return "", err
	}
	pkgs, err := b.packages(job)
	if err != nil {
		return "", err
	}

	target, err := b.archiver.Archive(ctx, archive.Contents{
		Job:      job,
		Jobs:     templates,
		Packages: pkgs,
	}, output)
	if err != nil {
		return "", err
	}

	var size int64
	if st, statErr := os.Stat(target); statErr == nil {
		size = st.Size()
	}
	b.recorder.SetArchiveBytes(size)
	b.journal.ArchiveWritten(ctx, job, target, size)
	return target, nil
}
