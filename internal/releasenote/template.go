package releasenote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/ecairns22/csvdeploy/internal/deploylog"
)

const noteTemplate = `Release Notes - {{.Timestamp}}
==================================
{{if .Warning}}
Warning: {{.Warning}}
{{end}}
Files Uploaded and Rows inserted in this release:
------------------------

✅ Uploaded Files to Blob Storage:
{{if .Uploads}}{{.UploadsJSON}}{{else}}No files uploaded.{{end}}

✅ Database Insertions:
{{range .Inserts}}- {{.InsertedRows}} rows inserted at {{.Timestamp}}
{{else}}No data inserted.
{{end}}
End of Release Notes.
`

var parsedNoteTemplate = template.Must(template.New("note").Parse(noteTemplate))

// noteParams holds values for rendering a release note.
type noteParams struct {
	Timestamp   string
	Warning     string
	Uploads     []deploylog.UploadedFile
	UploadsJSON string
	Inserts     []deploylog.InsertedRecord
}

// render produces the note text.
func render(p noteParams) (string, error) {
	if len(p.Uploads) > 0 {
		var js bytes.Buffer
		enc := json.NewEncoder(&js)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if err := enc.Encode(p.Uploads); err != nil {
			return "", fmt.Errorf("encoding uploaded files: %w", err)
		}
		p.UploadsJSON = strings.TrimRight(js.String(), "\n")
	}

	var buf bytes.Buffer
	if err := parsedNoteTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("rendering release note: %w", err)
	}
	return buf.String(), nil
}
