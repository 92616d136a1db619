package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ecairns22/csvdeploy/internal/blobstore"
	"github.com/ecairns22/csvdeploy/internal/deploylog"
)

// Inserter is the database side of a load. *db.Manager implements it.
type Inserter interface {
	InsertRows(ctx context.Context, table string, columns []string, n int, next func(i int) ([]any, error)) (int, error)
	Close() error
}

// Opener connects to the destination database. It is only called when there
// is data to insert.
type Opener func() (Inserter, error)

// Appender is the subset of deploylog.Store the loader writes to.
type Appender interface {
	Append(ctx context.Context, rec deploylog.Record) error
}

// Loader copies CSV objects from a blob container into a database table.
type Loader struct {
	store     blobstore.Store
	container string
	open      Opener
	table     string
	log       Appender
	logger    log.FieldLogger
	now       func() time.Time
}

// New creates a Loader reading container and inserting into table.
func New(store blobstore.Store, container string, open Opener, table string, deployLog Appender, logger log.FieldLogger) *Loader {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Loader{
		store:     store,
		container: container,
		open:      open,
		table:     table,
		log:       deployLog,
		logger:    logger.WithField("component", "loader"),
		now:       time.Now,
	}
}

// FetchAll downloads and parses every ".csv" object in the container.
// Other objects are skipped.
func (l *Loader) FetchAll(ctx context.Context) ([]Table, error) {
	names, err := l.store.List(ctx, l.container)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		l.logger.Info("No files found in Blob Storage.")
		return nil, nil
	}

	var tables []Table
	for _, name := range names {
		if !strings.HasSuffix(name, ".csv") {
			l.logger.Debugf("Skipping %s", name)
			continue
		}
		data, err := l.store.Download(ctx, l.container, name)
		if err != nil {
			return nil, err
		}
		t, err := Parse(name, data)
		if err != nil {
			return nil, err
		}
		l.logger.WithField(SourceColumn, name).Debugf("Parsed %d rows", len(t.Rows))
		tables = append(tables, t)
	}
	l.logger.Infof("Successfully fetched %d CSV files from Blob Storage.", len(tables))
	return tables, nil
}

// InsertAll inserts every row of every table in one transaction and returns
// the number of rows inserted. Any failure rolls the whole batch back.
func (l *Loader) InsertAll(ctx context.Context, db Inserter, tables []Table) (int, error) {
	type ref struct {
		table int
		row   int
	}
	var refs []ref
	indexes := make([][]int, len(tables))
	for ti, t := range tables {
		idx, err := t.index(Columns)
		if err != nil {
			return 0, err
		}
		indexes[ti] = idx
		for ri := range t.Rows {
			refs = append(refs, ref{ti, ri})
		}
	}

	return db.InsertRows(ctx, l.table, Columns, len(refs), func(i int) ([]any, error) {
		r := refs[i]
		return tables[r.table].values(indexes[r.table], r.row)
	})
}

// Run fetches, inserts and records one load. It returns the number of rows
// inserted. Nothing is recorded unless the insert committed.
func (l *Loader) Run(ctx context.Context) (int, error) {
	runID := uuid.NewString()
	logger := l.logger.WithField("run_id", runID)

	tables, err := l.FetchAll(ctx)
	if err != nil {
		logger.WithError(err).Error("Error fetching files from Blob Storage")
		return 0, err
	}
	total := 0
	for _, t := range tables {
		total += len(t.Rows)
	}
	if total == 0 {
		logger.Info("No data to insert into the database.")
		return 0, nil
	}

	db, err := l.open()
	if err != nil {
		logger.WithError(err).Error("Error connecting to database")
		return 0, err
	}
	defer db.Close()

	inserted, err := l.InsertAll(ctx, db, tables)
	if err != nil {
		logger.WithError(err).Error("Error inserting data into database")
		return 0, err
	}
	logger.Infof("Data inserted successfully! %d rows from %d files", inserted, len(tables))

	rec := deploylog.InsertRecord{
		Inserts: []deploylog.InsertedRecord{{InsertedRows: inserted, Timestamp: deploylog.Timestamp(l.now())}},
		RunID:   runID,
	}
	if err := l.log.Append(ctx, rec); err != nil {
		logger.WithError(err).Error("Error recording insert in deployment log")
		return inserted, fmt.Errorf("%w: recording insert: %w", deploylog.ErrNotRecorded, err)
	}
	return inserted, nil
}
