package export

import (
	"bytes"
	"strings"

	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
)

var columns = []string{"Category", "Description", "Size", "Material", "Quantity", "Unit", "Confidence", "Notes"}

// CSV writes one quoted line per record in grouping order. encoding/csv only
// quotes fields that need it; here every field is quoted.
func CSV(records []entity.MaterialRecord) ([]byte, error) {
	var buf bytes.Buffer
	writeCSVLine(&buf, columns)
	for _, r := range Ordered(records) {
		writeCSVLine(&buf, recordFields(r))
	}
	return buf.Bytes(), nil
}

func recordFields(r entity.MaterialRecord) []string {
	return []string{
		r.Category,
		r.Description,
		r.Size,
		r.Material,
		r.Quantity.String(),
		r.Unit,
		r.Confidence,
		r.NotesOrEmpty(),
	}
}

func writeCSVLine(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}
