package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	appconfig "optionflow/config"
	"optionflow/logger"
	"optionflow/models"
)

// FileSink writes snapshot files below a local directory, mirroring the
// object keys used for S3.
type FileSink struct {
	dir     string
	encoder Encoder
	log     *logger.Entry
}

func NewFileSink(cfg *appconfig.Config) (*FileSink, error) {
	dir := cfg.Storage.Local.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &FileSink{
		dir:     dir,
		encoder: NewEncoder(cfg.Writer),
		log:     logger.GetLogger().WithComponent("file_writer"),
	}, nil
}

func (w *FileSink) Write(ctx context.Context, runID string, snap models.Snapshot) error {
	objects, err := w.encoder.Encode(snap)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(w.dir, filepath.FromSlash(obj.Key))
		if err := writeFileAtomic(path, obj.Body); err != nil {
			return err
		}
		logger.IncrementSinkWrite()
		w.log.WithFields(logger.Fields{
			"run_id":  runID,
			"path":    path,
			"records": obj.Records,
		}).Debug("wrote snapshot file")
	}
	return nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it into place so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
