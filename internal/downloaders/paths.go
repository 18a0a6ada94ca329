package downloaders

import (
	"errors"

	"github.com/spf13/afero"
	"github.com/tanq16/mtd/internal/mtd"
	"github.com/tanq16/mtd/internal/utils"
)

var ErrAlreadyDownloaded = errors.New("file already exists with same size")

// ResolveOutputPath makes job.OutputPath absolute. A pending working file
// for that path means the job resumes it; an existing file of the remote
// size fails the job and any other collision picks a new name.
func ResolveOutputPath(fs afero.Fs, job *utils.MTDJob, size int64) error {
	path, err := utils.NormalizePath(job.OutputPath)
	if err != nil {
		return err
	}
	job.OutputPath = path
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	if ok, _ := afero.Exists(fs, path+mtd.WorkingFileSuffix); ok {
		job.Metadata["resume"] = true
		return nil
	}
	existing, err := fs.Stat(path)
	if err != nil {
		return nil
	}
	if size >= 0 && existing.Size() == size {
		return ErrAlreadyDownloaded
	}
	job.OutputPath = utils.RenewOutputPath(fs, path)
	return nil
}
