package deploylog

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeFormat renders timestamps as ISO-8601 with microseconds and an explicit
// offset, e.g. 2025-03-01T09:30:00.123456+00:00.
const TimeFormat = "2006-01-02T15:04:05.000000-07:00"

// Timestamp formats t in UTC using TimeFormat.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Kind names the key a record stores its entries under.
type Kind string

const (
	KindUploads Kind = "uploaded_files"
	KindInserts Kind = "inserted_records"
)

// UploadedFile describes one file pushed to blob storage.
type UploadedFile struct {
	FileName      string `json:"file_name"`
	ContainerName string `json:"container_name"`
	Timestamp     string `json:"timestamp"`
}

// InsertedRecord is the aggregate row count of one insert run.
type InsertedRecord struct {
	InsertedRows int    `json:"inserted_rows"`
	Timestamp    string `json:"timestamp"`
}

// Record is a single run's entry in the deployment log.
// UploadRecord and InsertRecord are the only implementations.
type Record interface {
	Kind() Kind
	isRecord()
}

// UploadRecord is appended once per upload run.
type UploadRecord struct {
	Files []UploadedFile `json:"uploaded_files"`
	RunID string         `json:"run_id,omitempty"`
}

// InsertRecord is appended once per successful insert run.
type InsertRecord struct {
	Inserts []InsertedRecord `json:"inserted_records"`
	RunID   string           `json:"run_id,omitempty"`
}

func (UploadRecord) Kind() Kind { return KindUploads }
func (InsertRecord) Kind() Kind { return KindInserts }

func (UploadRecord) isRecord() {}
func (InsertRecord) isRecord() {}

// encodeRecord marshals a record, writing empty lists as [] rather than null.
func encodeRecord(rec Record) (json.RawMessage, error) {
	var v any
	switch r := rec.(type) {
	case UploadRecord:
		if r.Files == nil {
			r.Files = []UploadedFile{}
		}
		v = r
	case InsertRecord:
		if r.Inserts == nil {
			r.Inserts = []InsertedRecord{}
		}
		v = r
	default:
		return nil, fmt.Errorf("unsupported record type %T", rec)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s record: %w", rec.Kind(), err)
	}
	return data, nil
}
