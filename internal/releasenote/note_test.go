package releasenote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecairns22/csvdeploy/internal/blobstore"
	"github.com/ecairns22/csvdeploy/internal/deploylog"
)

const notesContainer = "release-notes"

var fixedNow = time.Date(2025, 3, 1, 9, 30, 5, 123456000, time.UTC)

func newGenerator(t *testing.T) (*Generator, *deploylog.Store, *blobstore.Memory, string) {
	t.Helper()
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()
	store := deploylog.New(filepath.Join(dir, "deployment_log.json"), logger)
	mem := blobstore.NewMemory()
	notes := filepath.Join(dir, "notes")
	g := New(store, mem, notesContainer, notes, logger)
	g.now = func() time.Time { return fixedNow }
	return g, store, mem, notes
}

func TestBuildWithData(t *testing.T) {
	g, store, _, _ := newGenerator(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, deploylog.UploadRecord{Files: []deploylog.UploadedFile{
		{FileName: "a.csv", ContainerName: "devops-tutorial-backup", Timestamp: "T0"},
	}}))
	require.NoError(t, store.Append(ctx, deploylog.InsertRecord{Inserts: []deploylog.InsertedRecord{{InsertedRows: 5, Timestamp: "T"}}}))

	note, err := g.Build()
	require.NoError(t, err)
	assert.Equal(t, "release_note_20250301093005.txt", note.Filename)
	assert.True(t, strings.HasPrefix(note.Content, "Release Notes - 2025-03-01T09:30:05.123456+00:00\n"))
	assert.Contains(t, note.Content, "5 rows inserted at T")
	assert.Contains(t, note.Content, `"file_name": "a.csv"`)
	assert.Contains(t, note.Content, "[\n    {\n        \"file_name\"")
	assert.NotContains(t, note.Content, "No files uploaded.")
	assert.NotContains(t, note.Content, "No data inserted.")
	assert.True(t, strings.HasSuffix(note.Content, "End of Release Notes.\n"))
}

func TestBuildEmptyLog(t *testing.T) {
	g, _, _, _ := newGenerator(t)

	note, err := g.Build()
	require.NoError(t, err)
	assert.Contains(t, note.Content, "No files uploaded.")
	assert.Contains(t, note.Content, "No data inserted.")
	assert.NotContains(t, note.Content, "Warning")
}

func TestBuildDoesNotEscapeHTML(t *testing.T) {
	g, store, _, _ := newGenerator(t)
	require.NoError(t, store.Append(context.Background(), deploylog.UploadRecord{Files: []deploylog.UploadedFile{
		{FileName: "r&d <q1>.csv", ContainerName: "c", Timestamp: "T"},
	}}))

	note, err := g.Build()
	require.NoError(t, err)
	assert.Contains(t, note.Content, "r&d <q1>.csv")
}

func TestBuildCorruptLog(t *testing.T) {
	g, store, _, _ := newGenerator(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0644))

	note, err := g.Build()
	require.NoError(t, err)
	assert.Contains(t, note.Content, "Warning: Corrupt deployment metadata.")
	assert.Contains(t, note.Content, "No files uploaded.")
	assert.Contains(t, note.Content, "No data inserted.")
}

func TestBuildIsReadOnly(t *testing.T) {
	g, store, _, _ := newGenerator(t)
	require.NoError(t, store.Append(context.Background(), deploylog.InsertRecord{Inserts: []deploylog.InsertedRecord{{InsertedRows: 1, Timestamp: "T"}}}))
	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	_, err = g.Run(context.Background())
	require.NoError(t, err)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunSavesAndUploads(t *testing.T) {
	g, _, mem, notes := newGenerator(t)

	path, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(notes, "release_note_20250301093005.txt"), path)

	local, err := os.ReadFile(path)
	require.NoError(t, err)
	remote, ok := mem.Get(notesContainer, "release_note_20250301093005.txt")
	require.True(t, ok)
	assert.Equal(t, local, remote)
}

func TestRunUploadFailureKeepsLocalFile(t *testing.T) {
	g, _, mem, _ := newGenerator(t)
	boom := errors.New("403")
	mem.FailOn("upload", notesContainer+"/release_note_20250301093005.txt", boom)

	path, err := g.Run(context.Background())
	require.ErrorIs(t, err, boom)
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

type fakeRelease struct {
	tag, title, body string
	err              error
}

func (f *fakeRelease) PublishNote(_ context.Context, tag, title, body string) error {
	f.tag, f.title, f.body = tag, title, body
	return f.err
}

func TestRunPublishesRelease(t *testing.T) {
	g, _, _, _ := newGenerator(t)
	rel := &fakeRelease{}
	g.WithRelease(rel, "v1.2.0")

	_, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0", rel.tag)
	assert.Equal(t, "Release v1.2.0", rel.title)
	assert.Contains(t, rel.body, "No data inserted.")
}

func TestRunReleaseFailureStillUploads(t *testing.T) {
	g, _, mem, _ := newGenerator(t)
	rel := &fakeRelease{err: errors.New("401 Bad credentials")}
	g.WithRelease(rel, "v1")

	_, err := g.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, mem.Uploads, 1)
}

func TestEndToEndNote(t *testing.T) {
	g, store, _, _ := newGenerator(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, deploylog.UploadRecord{Files: []deploylog.UploadedFile{
		{FileName: "a.csv", ContainerName: "c", Timestamp: "T0"},
		{FileName: "b.csv", ContainerName: "c", Timestamp: "T0"},
	}}))
	require.NoError(t, store.Append(ctx, deploylog.InsertRecord{Inserts: []deploylog.InsertedRecord{{InsertedRows: 5, Timestamp: "T1"}}}))
	require.NoError(t, store.Append(ctx, deploylog.UploadRecord{}))

	note, err := g.Build()
	require.NoError(t, err)
	assert.Contains(t, note.Content, `"a.csv"`)
	assert.Contains(t, note.Content, `"b.csv"`)
	assert.Contains(t, note.Content, "- 5 rows inserted at T1\n")
}
