package render

import (
	"encoding/json"
	"io"

	"bepreport/internal/aggregate"
)

// JSON writes the report as indented JSON with a stable field order.
func JSON(w io.Writer, report aggregate.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
