package uploader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ecairns22/csvdeploy/internal/blobstore"
	"github.com/ecairns22/csvdeploy/internal/deploylog"
)

// Appender is the subset of deploylog.Store the uploader writes to.
type Appender interface {
	Append(ctx context.Context, rec deploylog.Record) error
}

// Uploader pushes local CSV files to one blob container.
type Uploader struct {
	store     blobstore.Store
	container string
	log       Appender
	logger    log.FieldLogger
	now       func() time.Time
}

// New creates an Uploader targeting container.
func New(store blobstore.Store, container string, deployLog Appender, logger log.FieldLogger) *Uploader {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Uploader{
		store:     store,
		container: container,
		log:       deployLog,
		logger:    logger.WithField("component", "uploader"),
		now:       time.Now,
	}
}

// CSVFiles returns the names of regular files in dir ending in ".csv",
// sorted by name. Subdirectories are not searched.
func CSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Preflight lists the target container once to confirm the credential works.
func (u *Uploader) Preflight(ctx context.Context) error {
	names, err := u.store.List(ctx, u.container)
	if err != nil {
		return fmt.Errorf("checking access to container %s: %w", u.container, err)
	}
	u.logger.Infof("Blob service client created successfully. Found %d blobs in container '%s'.", len(names), u.container)
	return nil
}

// UploadAll uploads every CSV in dir, overwriting blobs of the same name, and
// returns one entry per uploaded file. A missing directory or one without
// CSVs yields no entries and no error.
func (u *Uploader) UploadAll(ctx context.Context, dir string) ([]deploylog.UploadedFile, error) {
	names, err := CSVFiles(dir)
	if errors.Is(err, fs.ErrNotExist) {
		u.logger.Warnf("Data folder '%s' not found.", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	if len(names) == 0 {
		u.logger.Info("No CSV files found in the data folder.")
		return nil, nil
	}

	uploaded := make([]deploylog.UploadedFile, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		u.logger.Infof("Uploading %s (%s) to container %s...", name, humanize.Bytes(uint64(len(data))), u.container)
		if err := u.store.Upload(ctx, u.container, name, data); err != nil {
			return nil, err
		}
		u.logger.Infof("Successfully uploaded: %s", name)

		uploaded = append(uploaded, deploylog.UploadedFile{
			FileName:      name,
			ContainerName: u.container,
			Timestamp:     deploylog.Timestamp(u.now()),
		})
	}
	return uploaded, nil
}

// Run checks access, uploads dir and appends a single upload record for the
// run. Nothing is appended when no files were uploaded or when any step
// fails; blobs uploaded before a failure stay in the container.
func (u *Uploader) Run(ctx context.Context, dir string) ([]deploylog.UploadedFile, error) {
	runID := uuid.NewString()
	logger := u.logger.WithField("run_id", runID)

	if err := u.Preflight(ctx); err != nil {
		logger.WithError(err).Error("Failed to create blob service client")
		return nil, err
	}

	files, err := u.UploadAll(ctx, dir)
	if err != nil {
		logger.WithError(err).Error("Error uploading files")
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	if err := u.log.Append(ctx, deploylog.UploadRecord{Files: files, RunID: runID}); err != nil {
		logger.WithError(err).Error("Error recording upload in deployment log")
		return files, fmt.Errorf("%w: recording upload: %w", deploylog.ErrNotRecorded, err)
	}
	logger.Infof("Recorded %d uploaded files in deployment log", len(files))
	return files, nil
}
