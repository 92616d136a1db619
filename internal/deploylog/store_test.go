package deploylog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	return New(filepath.Join(t.TempDir(), "deployment_log.json"), logger), hook
}

func upload(names ...string) UploadRecord {
	rec := UploadRecord{Files: []UploadedFile{}}
	for _, n := range names {
		rec.Files = append(rec.Files, UploadedFile{
			FileName:      n,
			ContainerName: "devops-tutorial-backup",
			Timestamp:     "2025-03-01T09:30:00.000000+00:00",
		})
	}
	return rec
}

func insert(rows int, ts string) InsertRecord {
	return InsertRecord{Inserts: []InsertedRecord{{InsertedRows: rows, Timestamp: ts}}}
}

func rawEntries(t *testing.T, s *Store) []json.RawMessage {
	t.Helper()
	doc, err := s.load()
	require.NoError(t, err)
	return doc.Deployments
}

func TestAppendCreatesLog(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, upload("a.csv")))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var doc struct {
		Deployments []map[string]any `json:"deployments"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Deployments, 1)
	assert.Contains(t, doc.Deployments[0], "uploaded_files")
	assert.NotContains(t, doc.Deployments[0], "inserted_records")
}

func TestAppendOnly(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, upload("a.csv")))
	require.NoError(t, s.Append(ctx, insert(3, "T1")))
	before := rawEntries(t, s)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, insert(i, fmt.Sprintf("T%d", i+2))))
	}

	after := rawEntries(t, s)
	require.Len(t, after, len(before)+5)
	for i := range before {
		assert.JSONEq(t, string(before[i]), string(after[i]), "entry %d changed", i)
	}
	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestLatestSkipsEmptyRecords(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, UploadRecord{}))
	require.NoError(t, s.Append(ctx, upload("A.csv")))
	require.NoError(t, s.Append(ctx, insert(7, "X")))
	require.NoError(t, s.Append(ctx, UploadRecord{}))

	files, err := s.LatestUploads()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "A.csv", files[0].FileName)

	inserts, err := s.LatestInserts()
	require.NoError(t, err)
	require.Len(t, inserts, 1)
	assert.Equal(t, 7, inserts[0].InsertedRows)
	assert.Equal(t, "X", inserts[0].Timestamp)
}

func TestLatestPicksNewest(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, upload("old.csv")))
	require.NoError(t, s.Append(ctx, upload("new1.csv", "new2.csv")))

	files, err := s.LatestUploads()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "new1.csv", files[0].FileName)
	assert.Equal(t, "new2.csv", files[1].FileName)
}

func TestMissingLog(t *testing.T) {
	s, _ := openTestStore(t)

	files, err := s.LatestUploads()
	require.NoError(t, err)
	assert.Empty(t, files)

	inserts, err := s.LatestInserts()
	require.NoError(t, err)
	assert.Empty(t, inserts)

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "reading must not create the log")

	require.NoError(t, s.Append(context.Background(), insert(1, "T")))
	assert.Len(t, rawEntries(t, s), 1)
}

func TestCorruptLogAsymmetry(t *testing.T) {
	s, hook := openTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"deployments": [`), 0644))

	_, err := s.LatestUploads()
	require.ErrorIs(t, err, ErrCorrupt)
	_, err = s.LatestInserts()
	require.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, s.Append(context.Background(), upload("fresh.csv")))
	entries := rawEntries(t, s)
	require.Len(t, entries, 1)

	files, err := s.LatestUploads()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "fresh.csv", files[0].FileName)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestEmptyFileIsCorrupt(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), nil, 0644))

	_, err := s.LatestUploads()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestWrongStructureIsCorrupt(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"deployments": {"uploaded_files": []}}`), 0644))

	_, err := s.LatestUploads()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestBadEntryValueIsCorrupt(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"deployments": [{"inserted_records": "lots"}]}`), 0644))

	_, err := s.LatestInserts()
	assert.ErrorIs(t, err, ErrCorrupt)

	files, err := s.LatestUploads()
	require.NoError(t, err, "other keys stay readable")
	assert.Empty(t, files)
}

func TestMissingDeploymentsField(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"other": 1}`), 0644))

	files, err := s.LatestUploads()
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, s.Append(context.Background(), upload("a.csv")))
	assert.Len(t, rawEntries(t, s), 1)
}

func TestUnknownEntriesSurviveAppend(t *testing.T) {
	s, _ := openTestStore(t)
	legacy := `{"deployments": [
		{"note": "manual hotfix", "by": "ops"},
		"not-an-object",
		{"uploaded_files": [{"file_name": "x.csv", "container_name": "c", "timestamp": "T0", "size": 12}]}
	]}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(legacy), 0644))

	require.NoError(t, s.Append(context.Background(), insert(2, "T1")))

	entries := rawEntries(t, s)
	require.Len(t, entries, 4)
	assert.JSONEq(t, `{"note": "manual hotfix", "by": "ops"}`, string(entries[0]))
	assert.JSONEq(t, `"not-an-object"`, string(entries[1]))
	assert.JSONEq(t, `{"uploaded_files": [{"file_name": "x.csv", "container_name": "c", "timestamp": "T0", "size": 12}]}`, string(entries[2]))

	files, err := s.LatestUploads()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "x.csv", files[0].FileName)
}

func TestRecordWithBothKeys(t *testing.T) {
	s, _ := openTestStore(t)
	mixed := `{"deployments": [{"uploaded_files": [{"file_name": "m.csv"}], "inserted_records": [{"inserted_rows": 4, "timestamp": "T"}]}]}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(mixed), 0644))

	files, err := s.LatestUploads()
	require.NoError(t, err)
	require.Len(t, files, 1)

	inserts, err := s.LatestInserts()
	require.NoError(t, err)
	require.Len(t, inserts, 1)
	assert.Equal(t, 4, inserts[0].InsertedRows)
}

func TestEmptyListsEncodedAsArrays(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.Append(context.Background(), UploadRecord{RunID: "r1"}))
	require.NoError(t, s.Append(context.Background(), InsertRecord{}))

	entries := rawEntries(t, s)
	assert.JSONEq(t, `{"uploaded_files": [], "run_id": "r1"}`, string(entries[0]))
	assert.JSONEq(t, `{"inserted_records": []}`, string(entries[1]))
}

func TestAppendRejectsNilRecord(t *testing.T) {
	s, _ := openTestStore(t)
	assert.Error(t, s.Append(context.Background(), nil))
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployment_log.json")
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// separate Store per goroutine, as separate processes would have
			s := New(path, logger)
			errs <- s.Append(ctx, insert(i, fmt.Sprintf("T%d", i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := New(path, logger).Len()
	require.NoError(t, err)
	assert.Equal(t, writers, n)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".deployment_log.json.*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestAppendHonoursCancelledContext(t *testing.T) {
	s, _ := openTestStore(t)
	holder := New(s.Path(), nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"deployments": []}`), 0644))

	locked, err := holder.lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer holder.lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = s.Append(ctx, insert(1, "T"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEndToEndScenario(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, upload("a.csv", "b.csv")))
	require.NoError(t, s.Append(ctx, insert(5, "T")))

	files, err := s.LatestUploads()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, s.Append(ctx, UploadRecord{}))

	files, err = s.LatestUploads()
	require.NoError(t, err)
	require.Len(t, files, 2, "an empty upload run must not hide the previous one")
	assert.Equal(t, "a.csv", files[0].FileName)

	inserts, err := s.LatestInserts()
	require.NoError(t, err)
	require.Len(t, inserts, 1)
	assert.Equal(t, 5, inserts[0].InsertedRows)
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 30, 0, 123456000, time.FixedZone("CET", 3600))
	got := Timestamp(ts)
	assert.Equal(t, "2025-03-01T08:30:00.123456+00:00", got)

	parsed, err := time.Parse(time.RFC3339, got)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}
