package deploylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
)

// ErrCorrupt is returned by readers when the log file cannot be parsed.
// Writers never return it: Append replaces a corrupt log with a fresh one.
var ErrCorrupt = errors.New("corrupt deployment metadata")

// ErrNotRecorded marks a run whose work completed but whose record could not
// be appended.
var ErrNotRecorded = errors.New("run not recorded in deployment log")

const lockRetryDelay = 50 * time.Millisecond

// document is the on-disk layout. Entries stay raw so that records written
// by other tools (or older versions) are carried forward untouched.
type document struct {
	Deployments []json.RawMessage `json:"deployments"`
}

// Store is the shared deployment_log.json file.
//
// Appends hold an advisory lock on <path>.lock for the whole
// read-modify-write and replace the file by renaming a temp file over it,
// so overlapping runs never drop each other's records and readers never see
// a partially written document.
type Store struct {
	path string
	lock *flock.Flock
	log  log.FieldLogger
}

// New returns a Store for the log file at path. Nothing is touched on disk
// until the first Append.
func New(path string, logger log.FieldLogger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		log:  logger.WithField("deployment_log", path),
	}
}

// Path returns the log file location.
func (s *Store) Path() string {
	return s.path
}

// Append adds rec to the end of the log. A missing log is created; a corrupt
// one is logged and replaced by a log holding only rec.
func (s *Store) Append(ctx context.Context, rec Record) error {
	entry, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating deployment log dir: %w", err)
	}
	if _, err := s.lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("locking deployment log %s: %w", s.path, err)
	}
	defer s.lock.Unlock()

	doc, err := s.load()
	if errors.Is(err, ErrCorrupt) {
		s.log.WithError(err).Warn("Deployment log is corrupt; starting a new log")
		doc = document{}
	} else if err != nil {
		return err
	}

	doc.Deployments = append(doc.Deployments, entry)
	if err := s.write(doc); err != nil {
		return err
	}
	s.log.WithField("kind", rec.Kind()).Debugf("appended record %d", len(doc.Deployments))
	return nil
}

// LatestUploads returns the files of the most recent record with a non-empty
// uploaded_files list, or nil if there is none.
func (s *Store) LatestUploads() ([]UploadedFile, error) {
	return latest[UploadedFile](s, KindUploads)
}

// LatestInserts returns the entries of the most recent record with a
// non-empty inserted_records list, or nil if there is none.
func (s *Store) LatestInserts() ([]InsertedRecord, error) {
	return latest[InsertedRecord](s, KindInserts)
}

// Len returns the number of records in the log.
func (s *Store) Len() (int, error) {
	doc, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(doc.Deployments), nil
}

func latest[T any](s *Store, kind Kind) ([]T, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := len(doc.Deployments) - 1; i >= 0; i-- {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(doc.Deployments[i], &fields); err != nil {
			// not an object; cannot carry the key
			continue
		}
		raw, ok := fields[string(kind)]
		if !ok {
			continue
		}
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %s in record %d: %v", ErrCorrupt, kind, i, err)
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	return nil, nil
}

func (s *Store) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("reading deployment log %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	if doc.Deployments == nil {
		doc.Deployments = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling deployment log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", s.path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing deployment log %s: %w", s.path, err)
	}
	return nil
}
