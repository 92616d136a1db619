package deploylog

import "encoding/json"

// Summary describes one log entry for display.
type Summary struct {
	Index     int // 1-based position in the log
	Kind      Kind
	Count     int // files uploaded or rows inserted
	RunID     string
	Timestamp string
}

// KindUnknown marks entries with neither known key, or with malformed values.
const KindUnknown Kind = "unknown"

// History summarizes every entry, oldest first. An entry carrying both keys
// is reported once per key.
func (s *Store) History() ([]Summary, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	var out []Summary
	for i, raw := range doc.Deployments {
		var e struct {
			Files   *[]UploadedFile   `json:"uploaded_files"`
			Inserts *[]InsertedRecord `json:"inserted_records"`
			RunID   string            `json:"run_id"`
		}
		if err := json.Unmarshal(raw, &e); err != nil || (e.Files == nil && e.Inserts == nil) {
			out = append(out, Summary{Index: i + 1, Kind: KindUnknown})
			continue
		}
		if e.Files != nil {
			sum := Summary{Index: i + 1, Kind: KindUploads, Count: len(*e.Files), RunID: e.RunID}
			if len(*e.Files) > 0 {
				sum.Timestamp = (*e.Files)[len(*e.Files)-1].Timestamp
			}
			out = append(out, sum)
		}
		if e.Inserts != nil {
			sum := Summary{Index: i + 1, Kind: KindInserts, RunID: e.RunID}
			for _, r := range *e.Inserts {
				sum.Count += r.InsertedRows
				sum.Timestamp = r.Timestamp
			}
			out = append(out, sum)
		}
	}
	return out, nil
}
