package releasenote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ecairns22/csvdeploy/internal/blobstore"
	"github.com/ecairns22/csvdeploy/internal/deploylog"
)

const filenameFormat = "20060102150405"

// Reader is the read side of the deployment log.
type Reader interface {
	LatestUploads() ([]deploylog.UploadedFile, error)
	LatestInserts() ([]deploylog.InsertedRecord, error)
}

// ReleasePublisher sets the body of a hosted release, e.g. on GitHub.
type ReleasePublisher interface {
	PublishNote(ctx context.Context, tag, title, body string) error
}

// Note is a rendered release note.
type Note struct {
	Filename string
	Content  string
}

// Generator builds release notes from the deployment log and publishes them.
type Generator struct {
	log       Reader
	store     blobstore.Store
	container string
	dir       string
	logger    log.FieldLogger
	now       func() time.Time

	release    ReleasePublisher
	releaseTag string
}

// New creates a Generator writing notes to dir and uploading them to container.
func New(deployLog Reader, store blobstore.Store, container, dir string, logger log.FieldLogger) *Generator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Generator{
		log:       deployLog,
		store:     store,
		container: container,
		dir:       dir,
		logger:    logger.WithField("component", "releasenote"),
		now:       time.Now,
	}
}

// WithRelease additionally publishes every note as the body of the release
// tagged tag.
func (g *Generator) WithRelease(p ReleasePublisher, tag string) *Generator {
	g.release = p
	g.releaseTag = tag
	return g
}

// Build renders a note from the latest uploaded files and the latest insert
// entries, looked up independently. A corrupt log renders an empty note with
// a warning line.
func (g *Generator) Build() (Note, error) {
	now := g.now().UTC()
	p := noteParams{Timestamp: deploylog.Timestamp(now)}

	uploads, err := g.log.LatestUploads()
	if err != nil && !errors.Is(err, deploylog.ErrCorrupt) {
		return Note{}, err
	}
	inserts, err2 := g.log.LatestInserts()
	if err2 != nil && !errors.Is(err2, deploylog.ErrCorrupt) {
		return Note{}, err2
	}
	if err := errors.Join(err, err2); err != nil {
		g.logger.WithError(err).Error("Could not decode the deployment log")
		p.Warning = "Corrupt deployment metadata."
	}
	p.Uploads = uploads
	p.Inserts = inserts

	content, err := render(p)
	if err != nil {
		return Note{}, err
	}
	return Note{
		Filename: "release_note_" + now.Format(filenameFormat) + ".txt",
		Content:  content,
	}, nil
}

// Save writes the note into the notes directory and returns its path.
func (g *Generator) Save(n Note) (string, error) {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return "", fmt.Errorf("creating release notes dir: %w", err)
	}
	path := filepath.Join(g.dir, n.Filename)
	if err := os.WriteFile(path, []byte(n.Content), 0644); err != nil {
		return "", fmt.Errorf("writing release note %s: %w", path, err)
	}
	g.logger.Infof("Release note saved: %s", path)
	return path, nil
}

// Publish uploads the saved file at path under its base name, overwriting
// any existing blob.
func (g *Generator) Publish(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading release note %s: %w", path, err)
	}
	name := filepath.Base(path)
	g.logger.Infof("Uploading release note: %s to Blob Storage...", name)
	if err := g.store.Upload(ctx, g.container, name, data); err != nil {
		return err
	}
	g.logger.Info("Release note uploaded successfully.")
	return nil
}

// Run builds, saves and publishes one note. Publishing failures are logged
// and returned; the local file is kept either way.
func (g *Generator) Run(ctx context.Context) (string, error) {
	note, err := g.Build()
	if err != nil {
		g.logger.WithError(err).Error("Error reading deployment log")
		return "", err
	}
	path, err := g.Save(note)
	if err != nil {
		g.logger.WithError(err).Error("Error saving release note")
		return "", err
	}

	var errs []error
	if err := g.Publish(ctx, path); err != nil {
		g.logger.WithError(err).Error("Error uploading release note")
		errs = append(errs, err)
	}
	if g.release != nil {
		if err := g.release.PublishNote(ctx, g.releaseTag, "Release "+g.releaseTag, note.Content); err != nil {
			g.logger.WithError(err).Error("Error publishing release note to GitHub")
			errs = append(errs, err)
		} else {
			g.logger.Infof("Release %s updated with release note", g.releaseTag)
		}
	}
	return path, errors.Join(errs...)
}
